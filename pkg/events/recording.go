package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Control record names understood in recordings.
const (
	ControlStart = "start"
	ControlReset = "reset"
)

// Record is one line of a JSON-lines recording: either a channel payload or a
// session control action.
type Record struct {
	Channel   string          `json:"channel,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Control   string          `json:"control,omitempty"`
	Algorithm string          `json:"algorithm,omitempty"`
	At        *time.Time      `json:"at,omitempty"`
	Line      int             `json:"-"`
}

// IsControl reports whether the record drives the session instead of carrying a payload.
func (r Record) IsControl() bool {
	return r.Control != ""
}

// ReadRecording parses a JSON-lines recording. Blank lines and lines starting with
// '#' are skipped.
func ReadRecording(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var rec Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec.Line = line
		switch {
		case rec.IsControl():
			if rec.Control != ControlStart && rec.Control != ControlReset {
				return nil, fmt.Errorf("line %d: unknown control %q", line, rec.Control)
			}
		case rec.Channel == "":
			return nil, fmt.Errorf("line %d: record has neither channel nor control", line)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}
	return records, nil
}
