// Package finished keeps the ledger of completed processes for the active session.
package finished

import (
	"log/slog"
	"slices"

	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/sherine-k/schedtrace/pkg/model"
)

// Wave is one completion batch as received from the engine.
type Wave struct {
	Seq       int                     `json:"seq"`
	Processes []model.ProcessSnapshot `json:"processes"`
}

// Registry accumulates finished batches. Multi-level runs append every wave, since
// each lane reports its own; single-queue runs replace the contents with the latest
// batch because the engine resends the full finished list.
type Registry struct {
	accumulate bool
	waves      []Wave
	seq        int
	logger     *slog.Logger
}

// New creates an empty registry in replace mode.
func New(logger *slog.Logger) *Registry {
	return &Registry{logger: logging.Component(logger, "finished")}
}

// Reset empties the registry and selects the batch policy for algorithm.
func (r *Registry) Reset(algorithm model.Algorithm) {
	r.accumulate = algorithm.IsMultiLevel()
	r.waves = nil
	r.seq = 0
}

// Add applies one finished batch according to the registry's policy.
func (r *Registry) Add(batch model.FinishedBatch) {
	r.seq++
	wave := Wave{Seq: r.seq, Processes: slices.Clone(batch)}
	if r.accumulate {
		r.waves = append(r.waves, wave)
	} else {
		r.waves = []Wave{wave}
	}
	r.logger.Debug("finished batch applied",
		"seq", r.seq, "batch_size", len(batch), "size", r.Len(), "accumulate", r.accumulate)
}

// Len returns the number of entries in the registry.
func (r *Registry) Len() int {
	n := 0
	for _, w := range r.waves {
		n += len(w.Processes)
	}
	return n
}

// Waves returns a copy of the recorded waves.
func (r *Registry) Waves() []Wave {
	out := make([]Wave, len(r.waves))
	for i, w := range r.waves {
		out[i] = Wave{Seq: w.Seq, Processes: slices.Clone(w.Processes)}
	}
	return out
}

// Processes returns every entry in wave order.
func (r *Registry) Processes() []model.ProcessSnapshot {
	out := make([]model.ProcessSnapshot, 0, r.Len())
	for _, w := range r.waves {
		out = append(out, w.Processes...)
	}
	return out
}

// Distinct returns the entries de-duplicated by full process id, keeping the position
// of the first occurrence and the contents of the latest one.
func (r *Registry) Distinct() []model.ProcessSnapshot {
	index := make(map[string]int)
	var out []model.ProcessSnapshot
	for _, w := range r.waves {
		for _, p := range w.Processes {
			if i, ok := index[p.ID]; ok {
				out[i] = p
				continue
			}
			index[p.ID] = len(out)
			out = append(out, p)
		}
	}
	return out
}
