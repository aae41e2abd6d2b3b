package memory

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TierTransition is one entry of the audit log produced by ProcessAll.
// An empty To means the atom was deleted.
type TierTransition struct {
	AtomID string `json:"atom_id"`
	From   Tier   `json:"from_tier"`
	To     Tier   `json:"to_tier,omitempty"`
	Reason string `json:"reason"`
}

// Deleted reports whether the transition removed the atom.
func (t TierTransition) Deleted() bool { return t.To == "" }

type promotionRule struct {
	minAgeDays    float64
	minTriggers   int
	minConfidence float64
	next          Tier
}

// promotionRules gate the periodic, age-aware promotions evaluated by
// ProcessAll.
var promotionRules = map[Tier]promotionRule{
	TierShortTerm: {minAgeDays: 3, minTriggers: 2, minConfidence: 0.5, next: TierWorking},
	TierWorking:   {minAgeDays: 30, minTriggers: 5, minConfidence: 0.7, next: TierLongTerm},
}

// triggerPromotionRules gate the fast-path promotion evaluated right after a
// strengthening trigger. The original system kept these thresholds coded
// separately inside strengthening; both sets now live here so the tier
// manager is the single promotion authority.
var triggerPromotionRules = map[Tier]promotionRule{
	TierShortTerm: {minTriggers: 3, minConfidence: 0.6, next: TierWorking},
	TierWorking:   {minTriggers: 7, minConfidence: 0.8, next: TierLongTerm},
}

type deletionRule struct {
	inactiveDays float64
}

// deletionRules pair each tier's confidence floor with the inactivity window
// that must also elapse before an atom is evicted.
var deletionRules = map[Tier]deletionRule{
	TierShortTerm: {inactiveDays: 3},
	TierWorking:   {inactiveDays: 14},
	TierLongTerm:  {inactiveDays: 90},
}

// TierManager owns every tier transition: eviction of faded atoms and
// promotion of proven ones. All transitions are persisted through the store.
type TierManager struct {
	store Store
	model ConfidenceModel
	log   *zap.Logger
}

// NewTierManager returns a tier manager over the given store.
func NewTierManager(st Store, model ConfidenceModel, log *zap.Logger) *TierManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &TierManager{store: st, model: model, log: log}
}

// CheckDelete reports whether the atom should be evicted: decayed confidence
// below the tier floor and inactivity at least the tier window.
func (m *TierManager) CheckDelete(a *Atom, now time.Time) bool {
	rule, ok := deletionRules[a.Tier]
	if !ok {
		return false
	}
	if m.model.DecayedConfidence(a, now) >= Floor(a.Tier) {
		return false
	}
	return daysBetween(a.LastTriggeredAt, now) >= rule.inactiveDays
}

// CheckPromote reports the target tier for the periodic promotion path, or
// false when the atom stays put. Long-term atoms never promote further.
func (m *TierManager) CheckPromote(a *Atom, now time.Time) (Tier, bool) {
	rule, ok := promotionRules[a.Tier]
	if !ok {
		return "", false
	}
	if daysBetween(a.CreatedAt, now) < rule.minAgeDays {
		return "", false
	}
	if a.TriggerCount < rule.minTriggers {
		return "", false
	}
	if m.model.DecayedConfidence(a, now) < rule.minConfidence {
		return "", false
	}
	return rule.next, true
}

// PromoteOnTrigger applies the fast-path promotion check after a
// strengthening trigger and persists the move. Returns the new tier and
// whether a promotion happened.
func (m *TierManager) PromoteOnTrigger(a *Atom) (Tier, bool, error) {
	rule, ok := triggerPromotionRules[a.Tier]
	if !ok {
		return a.Tier, false, nil
	}
	if a.Confidence < rule.minConfidence || a.TriggerCount < rule.minTriggers {
		return a.Tier, false, nil
	}
	if err := m.promote(a, rule.next); err != nil {
		return a.Tier, false, err
	}
	return a.Tier, true, nil
}

// ProcessAll walks every tier, evicting then promoting, and returns the
// ordered transition log. A failed transition is logged and skipped; it
// never aborts the sweep.
func (m *TierManager) ProcessAll(now time.Time) ([]TierTransition, error) {
	var transitions []TierTransition

	for _, tier := range Tiers() {
		atoms, err := m.store.GetAll(tier)
		if err != nil {
			return transitions, fmt.Errorf("load tier %s: %w", tier, err)
		}

		for _, a := range atoms {
			if m.CheckDelete(a, now) {
				if _, err := m.store.Delete(a.ID); err != nil {
					m.log.Warn("evict failed", zap.String("atom", a.ID), zap.Error(err))
					continue
				}
				transitions = append(transitions, TierTransition{
					AtomID: a.ID,
					From:   tier,
					Reason: fmt.Sprintf("confidence below %.2f floor, inactive over %.0f days", Floor(tier), deletionRules[tier].inactiveDays),
				})
				continue
			}

			if next, ok := m.CheckPromote(a, now); ok {
				if err := m.promote(a, next); err != nil {
					m.log.Warn("promote failed", zap.String("atom", a.ID), zap.Error(err))
					continue
				}
				transitions = append(transitions, TierTransition{
					AtomID: a.ID,
					From:   tier,
					To:     next,
					Reason: fmt.Sprintf("%d triggers, confidence %.2f", a.TriggerCount, a.Confidence),
				})
			}
		}
	}

	if len(transitions) > 0 {
		m.log.Info("tier sweep", zap.Int("transitions", len(transitions)))
	}
	return transitions, nil
}

// promote relocates the atom one tier up via the store's atomic move and
// mirrors the change on the in-memory value.
func (m *TierManager) promote(a *Atom, to Tier) error {
	if to.Index() <= a.Tier.Index() {
		return fmt.Errorf("refusing move from %s to %s: tiers never decrease", a.Tier, to)
	}
	moved, err := m.store.Relocate(a.ID, a.Tier, to)
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("relocate %s: %w", a.ID, ErrNotFound)
	}
	a.Tier = to
	return nil
}
