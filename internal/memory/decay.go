package memory

import (
	"time"

	"go.uber.org/zap"
)

// DecayEngine applies time-based confidence decay to batches of atoms,
// separating survivors from removal candidates.
type DecayEngine struct {
	model ConfidenceModel
	log   *zap.Logger
}

// NewDecayEngine returns a decay engine with the given half-life in days.
func NewDecayEngine(halfLifeDays float64, log *zap.Logger) *DecayEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &DecayEngine{model: NewConfidenceModel(halfLifeDays), log: log}
}

// Model exposes the underlying confidence model.
func (e *DecayEngine) Model() ConfidenceModel { return e.model }

// ProcessBatch decays every atom to now. Atoms whose decayed confidence
// falls below their tier floor go to remove; the rest have their stored
// confidence materialized to the decayed value (with DecayedAt stamped) and
// go to retain.
//
// Idempotent: running twice with the same now and no intervening trigger
// yields identical confidences: once materialized at now, the elapsed time
// is zero and the value is unchanged.
func (e *DecayEngine) ProcessBatch(atoms []*Atom, now time.Time) (retain, remove []*Atom) {
	for _, a := range atoms {
		decayed := e.model.DecayedConfidence(a, now)
		if decayed < Floor(a.Tier) {
			remove = append(remove, a)
			continue
		}
		if decayed < a.Confidence {
			a.Confidence = decayed
			a.DecayedAt = now
		}
		retain = append(retain, a)
	}
	if len(remove) > 0 {
		e.log.Debug("decay batch",
			zap.Int("retained", len(retain)),
			zap.Int("removed", len(remove)))
	}
	return retain, remove
}
