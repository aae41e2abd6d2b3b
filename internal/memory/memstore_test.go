package memory

import (
	"time"
)

// fakeStore is a map-free in-memory Store preserving insertion order, used
// by the engine-component tests.
type fakeStore struct {
	atoms []*Atom
}

func (s *fakeStore) GetAll(tier Tier) ([]*Atom, error) {
	tiers := Tiers()
	if tier != "" {
		tiers = []Tier{tier}
	}
	var out []*Atom
	for _, t := range tiers {
		for _, a := range s.atoms {
			if a.Tier == t {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) GetByID(id string) (*Atom, error) {
	for _, a := range s.atoms {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) Save(a *Atom) error {
	for i, existing := range s.atoms {
		if existing.ID == a.ID {
			s.atoms[i] = a
			return nil
		}
	}
	s.atoms = append(s.atoms, a)
	return nil
}

func (s *fakeStore) Delete(id string) (bool, error) {
	for i, a := range s.atoms {
		if a.ID == id {
			s.atoms = append(s.atoms[:i], s.atoms[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Relocate(id string, from, to Tier) (bool, error) {
	for _, a := range s.atoms {
		if a.ID == id && a.Tier == from {
			a.Tier = to
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Count(tier Tier) (int, error) {
	atoms, _ := s.GetAll(tier)
	return len(atoms), nil
}

// noopLock satisfies Locker for single-goroutine tests.
type noopLock struct{}

func (noopLock) Acquire() (func(), error) { return func() {}, nil }

// testAtom builds an atom with explicit lifecycle state.
func testAtom(id string, typ Type, tier Tier, confidence float64, lastTriggered time.Time) *Atom {
	return &Atom{
		ID:              id,
		Type:            typ,
		Content:         "content for " + id,
		Confidence:      confidence,
		Tier:            tier,
		CreatedAt:       lastTriggered,
		LastTriggeredAt: lastTriggered,
		SourceSessionID: "test-session",
	}
}
