package memory

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	HalfLifeDays     float64 // confidence half-life, default 30
	MaxInjected      int     // retrieval limit, default 10
	MinConfidence    float64 // retrieval confidence threshold, default 0.3
	MaxContextLength int     // injection block budget in bytes, default 2000
	PatternThreshold float64 // tag similarity for pattern matches, default 0.7
}

func (o Options) withDefaults() Options {
	if o.HalfLifeDays <= 0 {
		o.HalfLifeDays = DefaultHalfLifeDays
	}
	if o.MaxInjected <= 0 {
		o.MaxInjected = 10
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = 0.3
	}
	if o.MaxContextLength <= 0 {
		o.MaxContextLength = 2000
	}
	if o.PatternThreshold <= 0 {
		o.PatternThreshold = 0.7
	}
	return o
}

// Engine wires the lifecycle components together and serializes every
// load-mutate-save sequence behind the store's advisory lock, so overlapping
// invocations (a session start racing a maintenance run) cannot lose
// updates. Each call runs synchronously; the working set is small.
type Engine struct {
	store        Store
	locker       Locker
	decay        *DecayEngine
	strengthener *StrengtheningEngine
	tiers        *TierManager
	retriever    *Retriever
	opts         Options
	log          *zap.Logger
	idx          *Index
}

// NewEngine assembles the engine over a store and its locker.
func NewEngine(st Store, locker Locker, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()

	decay := NewDecayEngine(opts.HalfLifeDays, log)
	strengthener := NewStrengtheningEngine(log)
	tiers := NewTierManager(st, decay.Model(), log)

	return &Engine{
		store:        st,
		locker:       locker,
		decay:        decay,
		strengthener: strengthener,
		tiers:        tiers,
		retriever:    NewRetriever(st, decay.Model(), strengthener, tiers, log),
		opts:         opts,
		log:          log,
		idx:          NewIndex(nil),
	}
}

// SessionStart runs the full session-start cycle: decay everything, sweep
// tier transitions, retrieve and strengthen the most relevant atoms, and
// format the injection block. Returns the block plus the selection.
func (e *Engine) SessionStart(contextHint string, now time.Time) (string, []ScoredMemory, error) {
	release, err := e.locker.Acquire()
	if err != nil {
		return "", nil, fmt.Errorf("acquire store lock: %w", err)
	}
	defer release()

	atoms, err := e.store.GetAll("")
	if err != nil {
		return "", nil, fmt.Errorf("load atoms: %w", err)
	}

	retain, remove := e.decay.ProcessBatch(atoms, now)
	for _, a := range retain {
		if !a.DecayedAt.Equal(now) {
			continue // confidence unchanged, nothing to persist
		}
		if err := e.store.Save(a); err != nil {
			e.log.Warn("persist decay failed", zap.String("atom", a.ID), zap.Error(err))
		}
	}
	for _, a := range remove {
		if _, err := e.store.Delete(a.ID); err != nil {
			e.log.Warn("remove faded atom failed", zap.String("atom", a.ID), zap.Error(err))
		}
	}

	transitions, err := e.tiers.ProcessAll(now)
	if err != nil {
		return "", nil, fmt.Errorf("tier sweep: %w", err)
	}
	if len(remove) > 0 || len(transitions) > 0 {
		e.log.Info("session start maintenance",
			zap.Int("faded", len(remove)),
			zap.Int("transitions", len(transitions)))
	}

	scored := e.retriever.RetrieveRelevant(e.opts.MaxInjected, e.opts.MinConfidence, contextHint, now)

	e.rebuildIndex()

	return FormatForInjection(scored, e.opts.MaxContextLength), scored, nil
}

// DecayBatch applies decay to a caller-supplied batch without touching the
// store. Pure apart from mutating the passed atoms.
func (e *Engine) DecayBatch(atoms []*Atom, now time.Time) (retain, remove []*Atom) {
	return e.decay.ProcessBatch(atoms, now)
}

// Maintain runs the periodic tier sweep under the store lock and returns
// the transition log.
func (e *Engine) Maintain(now time.Time) ([]TierTransition, error) {
	release, err := e.locker.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	defer release()

	transitions, err := e.tiers.ProcessAll(now)
	if err != nil {
		return transitions, err
	}
	e.rebuildIndex()
	return transitions, nil
}

// Remember persists an extractor-supplied atom and reinforces any existing
// atoms it pattern-matches (same type, overlapping tags). Returns the number
// of reinforced atoms.
func (e *Engine) Remember(a *Atom, now time.Time) (int, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}

	release, err := e.locker.Acquire()
	if err != nil {
		return 0, fmt.Errorf("acquire store lock: %w", err)
	}
	defer release()

	if err := e.store.Save(a); err != nil {
		return 0, fmt.Errorf("save atom: %w", err)
	}

	e.rebuildIndex()
	matches := e.strengthener.FindPatternMatches(a, e.idx.ByType(a.Type), e.opts.PatternThreshold)
	if len(matches) == 0 {
		return 0, nil
	}

	e.strengthener.StrengthenPattern(matches, now)
	for _, m := range matches {
		if _, _, err := e.tiers.PromoteOnTrigger(m); err != nil {
			e.log.Warn("promotion after pattern match failed", zap.String("atom", m.ID), zap.Error(err))
		}
		if err := e.store.Save(m); err != nil {
			e.log.Warn("persist reinforcement failed", zap.String("atom", m.ID), zap.Error(err))
		}
	}
	e.log.Debug("reinforced pattern", zap.String("atom", a.ID), zap.Int("matches", len(matches)))
	return len(matches), nil
}

// Get returns a stored atom by id.
func (e *Engine) Get(id string) (*Atom, error) {
	return e.store.GetByID(id)
}

// Forget removes an atom by id.
func (e *Engine) Forget(id string) (bool, error) {
	release, err := e.locker.Acquire()
	if err != nil {
		return false, fmt.Errorf("acquire store lock: %w", err)
	}
	defer release()
	return e.store.Delete(id)
}

// List returns atoms filtered by tier (empty = all) and type (empty = all)
// whose decayed confidence at now is at least minConfidence, in store order.
// A positive limit truncates the result.
func (e *Engine) List(tier Tier, typ Type, minConfidence float64, limit int, now time.Time) ([]*Atom, error) {
	atoms, err := e.store.GetAll(tier)
	if err != nil {
		return nil, err
	}
	model := e.decay.Model()
	var out []*Atom
	for _, a := range atoms {
		if typ != "" && a.Type != typ {
			continue
		}
		if model.DecayedConfidence(a, now) < minConfidence {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// TierStatus summarizes one tier for status reporting.
type TierStatus struct {
	Count       int        `json:"count"`
	NextRemoval *time.Time `json:"next_removal,omitempty"`
}

// Status reports per-tier counts and, per tier, the earliest estimated
// removal date among its atoms.
func (e *Engine) Status() (map[Tier]TierStatus, error) {
	status := make(map[Tier]TierStatus, 3)
	model := e.decay.Model()

	for _, tier := range Tiers() {
		atoms, err := e.store.GetAll(tier)
		if err != nil {
			return nil, err
		}
		ts := TierStatus{Count: len(atoms)}
		for _, a := range atoms {
			when, ok := model.EstimateRemovalDate(a)
			if !ok {
				continue
			}
			if ts.NextRemoval == nil || when.Before(*ts.NextRemoval) {
				w := when
				ts.NextRemoval = &w
			}
		}
		status[tier] = ts
	}
	return status, nil
}

// EstimateRemoval returns the estimated eviction date for one atom. ok is
// false when the atom is already at or below its tier floor.
func (e *Engine) EstimateRemoval(id string) (time.Time, bool, error) {
	a, err := e.store.GetByID(id)
	if err != nil {
		return time.Time{}, false, err
	}
	when, ok := e.decay.Model().EstimateRemovalDate(a)
	return when, ok, nil
}

// Index exposes the derived lookup cache, rebuilt after each mutating call.
func (e *Engine) Index() *Index { return e.idx }

func (e *Engine) rebuildIndex() {
	atoms, err := e.store.GetAll("")
	if err != nil {
		e.log.Warn("index rebuild failed", zap.Error(err))
		return
	}
	e.idx = NewIndex(atoms)
}
