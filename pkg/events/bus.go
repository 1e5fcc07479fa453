package events

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/sherine-k/schedtrace/pkg/model"
)

// Handler receives typed events of one channel, in arrival order.
type Handler func(Event)

// GenerationSource provides the generation to stamp on arriving events.
type GenerationSource interface {
	Generation() uint64
}

// channelState serializes delivery within one channel.
type channelState struct {
	mu       sync.Mutex
	seq      uint64
	handlers []Handler
}

// Bus decodes raw channel payloads, stamps them and fans them out to the handlers
// subscribed to that channel. Channels are independent: events of one channel are
// delivered in arrival order, with no ordering across channels.
type Bus struct {
	channels  map[Channel]*channelState
	gen       GenerationSource
	maxLanes  int
	now       func() time.Time
	malformed atomic.Uint64
	logger    *slog.Logger
}

// NewBus creates a bus stamping events with gen's current generation.
func NewBus(gen GenerationSource, maxLanes int, logger *slog.Logger) *Bus {
	if maxLanes <= 0 {
		maxLanes = model.DefaultMaxLanes
	}
	b := &Bus{
		channels: make(map[Channel]*channelState),
		gen:      gen,
		maxLanes: maxLanes,
		now:      time.Now,
		logger:   logging.Component(logger, "events"),
	}
	for _, ch := range Channels() {
		b.channels[ch] = &channelState{}
	}
	return b
}

// Subscribe registers h for every event arriving on ch.
func (b *Bus) Subscribe(ch Channel, h Handler) error {
	state, ok := b.channels[ch]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.handlers = append(state.handlers, h)
	return nil
}

// OnEvent decodes raw and delivers it on channel. Malformed payloads are counted,
// logged and returned as *MalformedEventError; nothing is delivered for them.
func (b *Bus) OnEvent(channel string, raw []byte) error {
	ch, ok := ParseChannel(channel)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}

	payload, err := Decode(ch, raw, b.maxLanes)
	if err != nil {
		var me *MalformedEventError
		if errors.As(err, &me) {
			b.malformed.Add(1)
			b.logger.Warn("malformed event dropped", "channel", ch, "reason", me.Reason, "error", me.Err)
		}
		return err
	}

	state := b.channels[ch]
	state.mu.Lock()
	defer state.mu.Unlock()
	state.seq++
	ev := Event{
		Channel:    ch,
		Generation: b.gen.Generation(),
		Seq:        state.seq,
		ReceivedAt: b.now(),
		Payload:    payload,
	}
	b.logger.Debug("event received",
		"channel", ch, "kind", payload.Kind(), "generation", ev.Generation, "seq", ev.Seq)
	for _, h := range state.handlers {
		h(ev)
	}
	return nil
}

// Malformed returns the number of payloads dropped as malformed.
func (b *Bus) Malformed() uint64 {
	return b.malformed.Load()
}

// MaxLanes returns the lane bound applied to dispatch events.
func (b *Bus) MaxLanes() int {
	return b.maxLanes
}
