package memory

import (
	"time"

	"go.uber.org/zap"
)

const (
	// baseTriggerBoost is the confidence gain for a plain trigger.
	baseTriggerBoost = 0.05
	// patternMatchBoost is the extra gain when a repeated pattern matched.
	patternMatchBoost = 0.10
	// maxBoostPerTrigger caps the gain from a single trigger.
	maxBoostPerTrigger = 0.15
	// minTriggerInterval debounces triggers: anything sooner only refreshes
	// the trigger timestamp.
	minTriggerInterval = time.Hour
)

// StrengtheningEngine raises atom confidence on use. It owns no promotion
// thresholds; tier changes are the TierManager's business.
type StrengtheningEngine struct {
	baseBoost    float64
	patternBoost float64
	maxBoost     float64
	log          *zap.Logger
}

// NewStrengtheningEngine returns a strengthening engine with the default
// boost parameters.
func NewStrengtheningEngine(log *zap.Logger) *StrengtheningEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &StrengtheningEngine{
		baseBoost:    baseTriggerBoost,
		patternBoost: patternMatchBoost,
		maxBoost:     maxBoostPerTrigger,
		log:          log,
	}
}

// Trigger records a use of the atom. Within the debounce window only
// LastTriggeredAt moves; otherwise confidence gains a boost with
// diminishing returns and the trigger count increments.
func (e *StrengtheningEngine) Trigger(a *Atom, patternMatched bool, now time.Time) *Atom {
	if now.Sub(a.LastTriggeredAt) < minTriggerInterval {
		a.LastTriggeredAt = now
		return a
	}

	boost := e.baseBoost
	if patternMatched {
		boost += e.patternBoost
	}
	boost *= 1.0 / (1.0 + float64(a.TriggerCount)*0.1)
	if boost > e.maxBoost {
		boost = e.maxBoost
	}

	a.Confidence = clamp01(a.Confidence + boost)
	a.TriggerCount++
	a.LastTriggeredAt = now
	return a
}

// FindPatternMatches returns candidates of the same type whose tag sets
// overlap with the atom's by at least threshold (Jaccard index). Atoms
// without tags never match.
func (e *StrengtheningEngine) FindPatternMatches(a *Atom, candidates []*Atom, threshold float64) []*Atom {
	if len(a.Tags) == 0 {
		return nil
	}
	var matches []*Atom
	for _, other := range candidates {
		if other.ID == a.ID || other.Type != a.Type || len(other.Tags) == 0 {
			continue
		}
		if tagJaccard(a.Tags, other.Tags) >= threshold {
			matches = append(matches, other)
		}
	}
	return matches
}

// StrengthenPattern triggers every member of a matched group with the
// pattern bonus applied.
func (e *StrengtheningEngine) StrengthenPattern(group []*Atom, now time.Time) []*Atom {
	for _, a := range group {
		e.Trigger(a, true, now)
	}
	return group
}

// tagJaccard computes |a ∩ b| / |a ∪ b| over two tag sets.
func tagJaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
