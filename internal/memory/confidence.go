package memory

import (
	"math"
	"time"
)

// DefaultHalfLifeDays is the confidence half-life used when none is configured.
const DefaultHalfLifeDays = 30.0

// tierDecayFactors scale the half-life per tier. Higher tiers decay slower:
// the adjusted half-life is half_life / factor.
var tierDecayFactors = map[Tier]float64{
	TierShortTerm: 1.0,
	TierWorking:   0.5,
	TierLongTerm:  0.25,
}

// tierFloors are the confidence floors below which an atom becomes a
// removal candidate.
var tierFloors = map[Tier]float64{
	TierShortTerm: 0.30,
	TierWorking:   0.20,
	TierLongTerm:  0.10,
}

// Floor returns the confidence floor for a tier.
func Floor(t Tier) float64 {
	if f, ok := tierFloors[t]; ok {
		return f
	}
	return tierFloors[TierShortTerm]
}

// ConfidenceModel holds the decay math shared by every engine component.
// C(t) = C0 * 0.5^(t / (half_life / tier_factor)), t in days.
type ConfidenceModel struct {
	HalfLifeDays float64
}

// NewConfidenceModel returns a model with the given half-life in days,
// falling back to the default when the value is not positive.
func NewConfidenceModel(halfLifeDays float64) ConfidenceModel {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	return ConfidenceModel{HalfLifeDays: halfLifeDays}
}

// adjustedHalfLife returns the tier-scaled half-life in days.
func (m ConfidenceModel) adjustedHalfLife(tier Tier) float64 {
	factor, ok := tierDecayFactors[tier]
	if !ok || factor <= 0 {
		factor = 1.0
	}
	return m.HalfLifeDays / factor
}

// Decay returns the confidence after elapsedDays of disuse in the given
// tier, clamped to [0,1]. Non-positive elapsed time leaves it unchanged.
func (m ConfidenceModel) Decay(confidence, elapsedDays float64, tier Tier) float64 {
	if elapsedDays <= 0 {
		return clamp01(confidence)
	}
	decayed := confidence * math.Pow(0.5, elapsedDays/m.adjustedHalfLife(tier))
	return clamp01(decayed)
}

// DecayedConfidence returns the atom's confidence decayed to now. Elapsed
// time is measured from the instant the stored confidence was written, never
// accumulated across calls, so repeated evaluation at the same now is stable.
func (m ConfidenceModel) DecayedConfidence(a *Atom, now time.Time) float64 {
	return m.Decay(a.Confidence, daysBetween(a.confidenceBasis(), now), a.Tier)
}

// EstimateRemovalDate solves floor = confidence * 0.5^(t/adjusted_half_life)
// for t and returns the instant the atom's decayed confidence crosses its
// tier floor. ok is false when the confidence is already at or below the
// floor, meaning the crossing is already past.
func (m ConfidenceModel) EstimateRemovalDate(a *Atom) (when time.Time, ok bool) {
	floor := Floor(a.Tier)
	if a.Confidence <= floor {
		return time.Time{}, false
	}
	days := m.adjustedHalfLife(a.Tier) * math.Log(floor/a.Confidence) / math.Log(0.5)
	return a.confidenceBasis().Add(durationDays(days)), true
}

// daysBetween returns fractional days from from to to.
func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

func durationDays(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
