package memory

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// tierWeights bias retrieval toward stable memories.
var tierWeights = map[Tier]float64{
	TierLongTerm:  1.0,
	TierWorking:   0.8,
	TierShortTerm: 0.5,
}

// typeWeights bias retrieval toward identity-level knowledge.
var typeWeights = map[Type]float64{
	TypeIdentity:      1.0,
	TypeValue:         0.95,
	TypeThinking:      0.9,
	TypePreference:    0.8,
	TypeCommunication: 0.7,
}

// ScoredMemory pairs an atom with its relevance score for one retrieval
// call. It is never persisted.
type ScoredMemory struct {
	Atom           *Atom   `json:"memory"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Retriever scores, ranks, and selects atoms for context injection.
// Selection is the one automatic strengthening path: every returned atom is
// triggered and the update persisted.
type Retriever struct {
	store        Store
	model        ConfidenceModel
	strengthener *StrengtheningEngine
	tiers        *TierManager
	log          *zap.Logger
}

// NewRetriever returns a retriever over the given store and engines.
func NewRetriever(st Store, model ConfidenceModel, strengthener *StrengtheningEngine, tiers *TierManager, log *zap.Logger) *Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{store: st, model: model, strengthener: strengthener, tiers: tiers, log: log}
}

// RetrieveRelevant returns up to limit atoms whose decayed confidence is at
// least minConfidence, ranked by relevance. When context is non-empty the
// score blends in keyword overlap. Ordering under equal scores is stable
// (store order), so output is deterministic.
//
// Retrieval never errors: store failures degrade to an empty result.
func (r *Retriever) RetrieveRelevant(limit int, minConfidence float64, context string, now time.Time) []ScoredMemory {
	if limit <= 0 {
		return nil
	}

	atoms, err := r.store.GetAll("")
	if err != nil {
		r.log.Warn("retrieval degraded to empty", zap.Error(err))
		return nil
	}

	contextWords := Keywords(context)

	var scored []ScoredMemory
	for _, a := range atoms {
		decayed := r.model.DecayedConfidence(a, now)
		if decayed < minConfidence {
			continue
		}
		score := r.relevance(a, decayed, contextWords)
		if score <= 0 {
			continue
		}
		scored = append(scored, ScoredMemory{Atom: a, RelevanceScore: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RelevanceScore > scored[j].RelevanceScore
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	for _, s := range scored {
		r.touch(s.Atom, now)
	}
	return scored
}

// relevance computes decayed_confidence * tier_weight * type_weight plus a
// capped trigger bonus, blended 70/30 with context keyword overlap when a
// context was supplied. Result is clamped to [0,1].
func (r *Retriever) relevance(a *Atom, decayed float64, contextWords map[string]struct{}) float64 {
	tierWeight, ok := tierWeights[a.Tier]
	if !ok {
		tierWeight = 0.5
	}
	typeWeight, ok := typeWeights[a.Type]
	if !ok {
		typeWeight = 0.5
	}
	triggerBonus := float64(a.TriggerCount) * 0.02
	if triggerBonus > 0.2 {
		triggerBonus = 0.2
	}

	score := decayed*tierWeight*typeWeight + triggerBonus

	if len(contextWords) > 0 {
		score = 0.7*score + 0.3*contextRelevance(a, contextWords)
	}
	return clamp01(score)
}

// contextRelevance is |memory_keywords ∩ context_keywords| / |memory_keywords|,
// where the memory keywords are the lower-cased content words plus tags.
func contextRelevance(a *Atom, contextWords map[string]struct{}) float64 {
	memWords := Keywords(a.Content)
	for _, tag := range a.Tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			memWords[tag] = struct{}{}
		}
	}
	if len(memWords) == 0 {
		return 0
	}

	matches := 0
	for w := range memWords {
		if _, ok := contextWords[w]; ok {
			matches++
		}
	}
	return clamp01(float64(matches) / float64(len(memWords)))
}

// touch strengthens a selected atom (the only non-user trigger path), runs
// the fast-path promotion check, and persists the result. Failures are
// logged; a selected atom is still returned to the caller.
func (r *Retriever) touch(a *Atom, now time.Time) {
	r.strengthener.Trigger(a, false, now)

	if _, promoted, err := r.tiers.PromoteOnTrigger(a); err != nil {
		r.log.Warn("promotion after retrieval failed", zap.String("atom", a.ID), zap.Error(err))
	} else if promoted {
		r.log.Debug("promoted on retrieval", zap.String("atom", a.ID), zap.String("tier", string(a.Tier)))
	}

	if err := r.store.Save(a); err != nil {
		r.log.Warn("persist trigger failed", zap.String("atom", a.ID), zap.Error(err))
	}
}

// Keywords lower-cases and tokenizes text into a word set, trimming
// surrounding punctuation from each token.
func Keywords(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r > 127)
		})
		if f != "" {
			words[f] = struct{}{}
		}
	}
	return words
}
