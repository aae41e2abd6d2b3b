package memory

// Index is a derived, in-memory acceleration structure over the persisted
// store: lookups by type, tier, and tag. It is never a source of truth;
// rebuild it from the store whenever persisted state may have changed and
// throw it away freely.
type Index struct {
	byID   map[string]*Atom
	byType map[Type][]*Atom
	byTier map[Tier][]*Atom
	byTag  map[string][]*Atom
}

// NewIndex builds an index over the given atoms, preserving their order
// within each bucket.
func NewIndex(atoms []*Atom) *Index {
	idx := &Index{
		byID:   make(map[string]*Atom, len(atoms)),
		byType: make(map[Type][]*Atom),
		byTier: make(map[Tier][]*Atom),
		byTag:  make(map[string][]*Atom),
	}
	for _, a := range atoms {
		idx.byID[a.ID] = a
		idx.byType[a.Type] = append(idx.byType[a.Type], a)
		idx.byTier[a.Tier] = append(idx.byTier[a.Tier], a)
		for _, tag := range a.Tags {
			idx.byTag[tag] = append(idx.byTag[tag], a)
		}
	}
	return idx
}

// Get returns the atom with the given id, or nil.
func (idx *Index) Get(id string) *Atom { return idx.byID[id] }

// ByType returns atoms of the given type in store order.
func (idx *Index) ByType(t Type) []*Atom { return idx.byType[t] }

// ByTier returns atoms in the given tier in store order.
func (idx *Index) ByTier(t Tier) []*Atom { return idx.byTier[t] }

// ByTag returns atoms carrying the given tag in store order.
func (idx *Index) ByTag(tag string) []*Atom { return idx.byTag[tag] }

// Len returns the number of indexed atoms.
func (idx *Index) Len() int { return len(idx.byID) }
