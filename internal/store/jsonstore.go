package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/keepsake-dev/keepsake/internal/memory"
)

// tierFiles maps each tier to its collection file under <root>/memories/.
var tierFiles = map[memory.Tier]string{
	memory.TierShortTerm: "short-term.json",
	memory.TierWorking:   "working.json",
	memory.TierLongTerm:  "long-term.json",
}

// JSONStore persists atoms as one JSON array per tier. Every write lands in
// a temporary file in the same directory and is renamed into place, so a
// crash mid-write never leaves a tier partially written. Cross-tier moves
// write the destination before the source; a crash between the two leaves a
// duplicate that recovery resolves in favor of the higher tier.
type JSONStore struct {
	root string
	dir  string
	lock *DirLock
	log  *zap.Logger
}

// NewJSONStore opens (or creates) a JSON store rooted at the given
// directory and repairs any torn cross-tier moves from a previous crash.
func NewJSONStore(root string, log *zap.Logger) (*JSONStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Join(root, "memories")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &memory.StorageError{Op: "create storage dir", Err: err}
	}
	s := &JSONStore{root: root, dir: dir, lock: NewDirLock(root), log: log}
	if err := s.recoverDuplicates(); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultRoot returns the default storage root: ~/.keepsake
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "get home dir")
	}
	return filepath.Join(home, ".keepsake"), nil
}

// Locker returns the advisory lock scoped to this store's root.
func (s *JSONStore) Locker() memory.Locker { return s.lock }

// GetAll implements memory.Store.
func (s *JSONStore) GetAll(tier memory.Tier) ([]*memory.Atom, error) {
	tiers := memory.Tiers()
	if tier != "" {
		if !tier.Valid() {
			return nil, &memory.ValidationError{Field: "tier", Reason: string(tier)}
		}
		tiers = []memory.Tier{tier}
	}

	var all []*memory.Atom
	for _, t := range tiers {
		atoms, err := s.loadTier(t)
		if err != nil {
			return nil, err
		}
		all = append(all, atoms...)
	}
	return all, nil
}

// GetByID implements memory.Store.
func (s *JSONStore) GetByID(id string) (*memory.Atom, error) {
	for _, t := range memory.Tiers() {
		atoms, err := s.loadTier(t)
		if err != nil {
			return nil, err
		}
		for _, a := range atoms {
			if a.ID == id {
				return a, nil
			}
		}
	}
	return nil, errors.Wrap(memory.ErrNotFound, id)
}

// Save implements memory.Store: upsert by id into the atom's tier, clearing
// any stale copy left in another tier.
func (s *JSONStore) Save(a *memory.Atom) error {
	if err := a.Validate(); err != nil {
		return err
	}

	atoms, err := s.loadTier(a.Tier)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range atoms {
		if existing.ID == a.ID {
			atoms[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		atoms = append(atoms, a)
	}
	if err := s.saveTier(a.Tier, atoms); err != nil {
		return err
	}

	// Clear a stale copy if the atom moved tiers since it was last saved.
	for _, t := range memory.Tiers() {
		if t == a.Tier {
			continue
		}
		if _, err := s.removeFromTier(a.ID, t); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements memory.Store.
func (s *JSONStore) Delete(id string) (bool, error) {
	for _, t := range memory.Tiers() {
		removed, err := s.removeFromTier(id, t)
		if err != nil {
			return false, err
		}
		if removed {
			return true, nil
		}
	}
	return false, nil
}

// Relocate implements memory.Store. The destination tier is written before
// the source so the atom can never vanish mid-move.
func (s *JSONStore) Relocate(id string, from, to memory.Tier) (bool, error) {
	source, err := s.loadTier(from)
	if err != nil {
		return false, err
	}

	var moving *memory.Atom
	remaining := source[:0]
	for _, a := range source {
		if a.ID == id {
			moving = a
			continue
		}
		remaining = append(remaining, a)
	}
	if moving == nil {
		return false, nil
	}
	moving.Tier = to

	dest, err := s.loadTier(to)
	if err != nil {
		return false, err
	}
	replaced := false
	for i, a := range dest {
		if a.ID == id {
			dest[i] = moving
			replaced = true
			break
		}
	}
	if !replaced {
		dest = append(dest, moving)
	}

	if err := s.saveTier(to, dest); err != nil {
		return false, err
	}
	if err := s.saveTier(from, remaining); err != nil {
		return false, err
	}
	return true, nil
}

// Count implements memory.Store.
func (s *JSONStore) Count(tier memory.Tier) (int, error) {
	atoms, err := s.GetAll(tier)
	if err != nil {
		return 0, err
	}
	return len(atoms), nil
}

// loadTier reads one tier file. A missing file is an empty tier. Individual
// malformed records are reported and skipped; the rest of the batch loads.
func (s *JSONStore) loadTier(tier memory.Tier) ([]*memory.Atom, error) {
	path := filepath.Join(s.dir, tierFiles[tier])
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &memory.StorageError{Op: "read " + tierFiles[tier], Err: err}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &memory.StorageError{Op: "parse " + tierFiles[tier], Err: err}
	}

	atoms := make([]*memory.Atom, 0, len(raw))
	for i, rec := range raw {
		var a memory.Atom
		if err := json.Unmarshal(rec, &a); err != nil {
			s.reportCorrupt(tier, i, err)
			continue
		}
		if err := a.Validate(); err != nil {
			s.reportCorrupt(tier, i, err)
			continue
		}
		atoms = append(atoms, &a)
	}
	return atoms, nil
}

func (s *JSONStore) reportCorrupt(tier memory.Tier, i int, cause error) {
	err := &memory.StorageError{
		Op:  errors.Errorf("record %d in %s", i, tierFiles[tier]).Error(),
		Err: cause,
	}
	s.log.Warn("skipping corrupt record", zap.Error(err))
}

// saveTier writes one tier file atomically: temp file, sync, rename.
func (s *JSONStore) saveTier(tier memory.Tier, atoms []*memory.Atom) error {
	data, err := json.MarshalIndent(atoms, "", "  ")
	if err != nil {
		return &memory.StorageError{Op: "encode " + tierFiles[tier], Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, tierFiles[tier]+".tmp-*")
	if err != nil {
		return &memory.StorageError{Op: "create temp file", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return &memory.StorageError{Op: "write " + tierFiles[tier], Err: err}
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, tierFiles[tier])); err != nil {
		os.Remove(tmpName)
		return &memory.StorageError{Op: "commit " + tierFiles[tier], Err: err}
	}
	return nil
}

func (s *JSONStore) removeFromTier(id string, tier memory.Tier) (bool, error) {
	atoms, err := s.loadTier(tier)
	if err != nil {
		return false, err
	}
	kept := atoms[:0]
	removed := false
	for _, a := range atoms {
		if a.ID == id {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	if !removed {
		return false, nil
	}
	return true, s.saveTier(tier, kept)
}

// recoverDuplicates resolves atoms present in more than one tier file, the
// footprint of a crash between the two writes of a Relocate. Promotions only
// move up, so the higher tier's copy wins.
func (s *JSONStore) recoverDuplicates() error {
	seen := make(map[string]memory.Tier)
	dirty := make(map[memory.Tier]bool)
	byTier := make(map[memory.Tier][]*memory.Atom)

	// Walk from highest tier down so the winning copy registers first.
	tiers := memory.Tiers()
	for i := len(tiers) - 1; i >= 0; i-- {
		t := tiers[i]
		atoms, err := s.loadTier(t)
		if err != nil {
			return err
		}
		kept := atoms[:0]
		for _, a := range atoms {
			if winner, dup := seen[a.ID]; dup {
				s.log.Warn("dropping torn relocate leftover",
					zap.String("atom", a.ID),
					zap.String("kept_tier", string(winner)),
					zap.String("dropped_tier", string(t)))
				dirty[t] = true
				continue
			}
			seen[a.ID] = t
			kept = append(kept, a)
		}
		byTier[t] = kept
	}

	for t, isDirty := range dirty {
		if !isDirty {
			continue
		}
		if err := s.saveTier(t, byTier[t]); err != nil {
			return err
		}
	}
	return nil
}
