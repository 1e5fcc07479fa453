package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const nanosPerSecond = 1_000_000_000

// Duration is the engine's wire representation of a span of time.
type Duration struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

// DurationOf converts a time.Duration into the wire representation.
// Negative values are treated as zero.
func DurationOf(d time.Duration) Duration {
	if d <= 0 {
		return Duration{}
	}
	return Duration{
		Secs:  uint64(d / time.Second),
		Nanos: uint32(d % time.Second),
	}
}

// Millis normalizes the duration to milliseconds as secs*1000 + nanos/1e6.
// Every millisecond conversion in the module goes through here.
func (d Duration) Millis() float64 {
	return float64(d.Secs)*1000 + float64(d.Nanos)/1e6
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d.Secs)*time.Second + time.Duration(d.Nanos)
}

// IsZero reports whether the duration is empty.
func (d Duration) IsZero() bool {
	return d.Secs == 0 && d.Nanos == 0
}

func (d Duration) String() string {
	return d.Std().String()
}

// UnmarshalJSON rejects nanosecond fields outside [0, 1e9).
func (d *Duration) UnmarshalJSON(data []byte) error {
	type wire Duration
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Nanos >= nanosPerSecond {
		return fmt.Errorf("duration nanos out of range: %d", w.Nanos)
	}
	*d = Duration(w)
	return nil
}
