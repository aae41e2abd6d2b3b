package memory

// Store is the durable keyed collection of atoms, partitioned by tier.
// Adapters live in internal/store. All calls are durable before returning.
type Store interface {
	// GetAll returns atoms in the given tier, or in every tier when tier is
	// empty. Order is stable: tier order, then insertion order within a tier.
	// Malformed persisted records are excluded, not fatal.
	GetAll(tier Tier) ([]*Atom, error)

	// GetByID returns the atom with the given id, or ErrNotFound.
	GetByID(id string) (*Atom, error)

	// Save upserts an atom by id into the tier recorded on the atom. If the
	// atom previously lived in another tier, the stale copy is removed.
	Save(a *Atom) error

	// Delete removes the atom with the given id from whichever tier holds it.
	// Returns false when no such atom exists.
	Delete(id string) (bool, error)

	// Relocate atomically moves an atom between tiers, updating the record's
	// tier field. A reader never sees the atom in both tiers, and a crash
	// mid-move never loses it. Returns false when the atom is not in from.
	Relocate(id string, from, to Tier) (bool, error)

	// Count returns the number of atoms in the given tier, or in every tier
	// when tier is empty.
	Count(tier Tier) (int, error)
}

// Locker provides mutual exclusion scoped to a storage root. Every
// load-mutate-save sequence against the shared store runs under it so that
// overlapping invocations (session start racing a maintenance run) cannot
// lose updates.
type Locker interface {
	// Acquire blocks until the lock is held or a deadline passes, and
	// returns the release function.
	Acquire() (release func(), err error)
}
