package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keepsake-dev/keepsake/internal/memory"
)

func storeAtom(id string, tier memory.Tier) *memory.Atom {
	now := time.Now()
	return &memory.Atom{
		ID:              id,
		Type:            memory.TypePreference,
		Content:         "content for " + id,
		Confidence:      0.5,
		Tier:            tier,
		CreatedAt:       now,
		LastTriggeredAt: now,
		SourceSessionID: "test-session",
	}
}

func newJSONStore(t *testing.T) *JSONStore {
	t.Helper()
	s, err := NewJSONStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	return s
}

func TestJSONStoreSaveAndGet(t *testing.T) {
	s := newJSONStore(t)

	long := storeAtom("long", memory.TierLongTerm)
	short := storeAtom("short", memory.TierShortTerm)
	for _, a := range []*memory.Atom{long, short} {
		if err := s.Save(a); err != nil {
			t.Fatalf("Save(%s): %v", a.ID, err)
		}
	}

	got, err := s.GetByID("short")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Content != short.Content || got.Tier != memory.TierShortTerm {
		t.Errorf("round trip mangled atom: %+v", got)
	}

	// GetAll with no tier filter walks tiers lowest to highest.
	all, err := s.GetAll("")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 2 || all[0].ID != "short" || all[1].ID != "long" {
		t.Errorf("GetAll order = %v, want [short long]", atomIDs(all))
	}

	onlyLong, _ := s.GetAll(memory.TierLongTerm)
	if len(onlyLong) != 1 || onlyLong[0].ID != "long" {
		t.Errorf("GetAll(long_term) = %v", atomIDs(onlyLong))
	}
}

func TestJSONStoreGetByIDMissing(t *testing.T) {
	s := newJSONStore(t)
	if _, err := s.GetByID("nope"); !memory.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestJSONStoreUpsert(t *testing.T) {
	s := newJSONStore(t)

	a := storeAtom("a1", memory.TierShortTerm)
	s.Save(a)
	a.Confidence = 0.9
	if err := s.Save(a); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	if n, _ := s.Count(""); n != 1 {
		t.Errorf("count = %d after upsert, want 1", n)
	}
	got, _ := s.GetByID("a1")
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want updated 0.9", got.Confidence)
	}
}

func TestJSONStoreSaveClearsStaleCopy(t *testing.T) {
	s := newJSONStore(t)

	a := storeAtom("a1", memory.TierShortTerm)
	s.Save(a)

	a.Tier = memory.TierWorking
	if err := s.Save(a); err != nil {
		t.Fatalf("Save after tier change: %v", err)
	}

	if n, _ := s.Count(""); n != 1 {
		t.Fatalf("count = %d, tier change must not duplicate", n)
	}
	got, _ := s.GetByID("a1")
	if got.Tier != memory.TierWorking {
		t.Errorf("tier = %v, want working", got.Tier)
	}
}

func TestJSONStoreDelete(t *testing.T) {
	s := newJSONStore(t)
	s.Save(storeAtom("a1", memory.TierWorking))

	removed, err := s.Delete("a1")
	if err != nil || !removed {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = s.Delete("a1")
	if err != nil || removed {
		t.Fatalf("second Delete = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestJSONStoreRelocate(t *testing.T) {
	s := newJSONStore(t)
	s.Save(storeAtom("a1", memory.TierShortTerm))

	moved, err := s.Relocate("a1", memory.TierShortTerm, memory.TierWorking)
	if err != nil || !moved {
		t.Fatalf("Relocate = (%v, %v), want (true, nil)", moved, err)
	}
	got, _ := s.GetByID("a1")
	if got.Tier != memory.TierWorking {
		t.Errorf("tier = %v, want working", got.Tier)
	}
	if n, _ := s.Count(memory.TierShortTerm); n != 0 {
		t.Errorf("source tier still holds %d atoms", n)
	}

	moved, err = s.Relocate("a1", memory.TierShortTerm, memory.TierWorking)
	if err != nil || moved {
		t.Errorf("relocate from wrong tier = (%v, %v), want (false, nil)", moved, err)
	}
}

func TestJSONStoreCorruptRecordSkipped(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "memories")
	os.MkdirAll(dir, 0o755)

	good := storeAtom("good", memory.TierShortTerm)
	goodJSON, _ := json.Marshal(good)
	// Second record fails validation (empty id), third fails decoding.
	raw := `[` + string(goodJSON) + `, {"id": "", "type": "preference"}, {"confidence": "not a number"}]`
	if err := os.WriteFile(filepath.Join(dir, "short-term.json"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewJSONStore(root, nil)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	atoms, err := s.GetAll("")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(atoms) != 1 || atoms[0].ID != "good" {
		t.Errorf("atoms = %v, want only good", atomIDs(atoms))
	}
}

func TestJSONStoreUnparseableFileErrors(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "memories")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "working.json"), []byte("{not json"), 0o644)

	s, err := NewJSONStore(root, nil)
	if err == nil {
		// Recovery reads every tier, so the torn file may surface either at
		// open or on first read.
		_, err = s.GetAll("")
	}
	if err == nil {
		t.Fatal("expected an error for an unparseable tier file")
	}
	var serr *memory.StorageError
	if !errors.As(err, &serr) {
		t.Errorf("error = %v, want StorageError", err)
	}
}

func TestJSONStoreRecoversTornRelocate(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "memories")
	os.MkdirAll(dir, 0o755)

	// The same atom in two tiers is the footprint of a crash between the two
	// writes of a relocate. The higher tier's copy must win.
	lower := storeAtom("dup", memory.TierShortTerm)
	higher := storeAtom("dup", memory.TierWorking)
	writeTierFile(t, dir, "short-term.json", lower)
	writeTierFile(t, dir, "working.json", higher)

	s, err := NewJSONStore(root, nil)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}

	got, err := s.GetByID("dup")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Tier != memory.TierWorking {
		t.Errorf("surviving tier = %v, want working", got.Tier)
	}
	if n, _ := s.Count(""); n != 1 {
		t.Errorf("count = %d after recovery, want 1", n)
	}
	if n, _ := s.Count(memory.TierShortTerm); n != 0 {
		t.Errorf("lower tier still holds the dropped copy")
	}
}

func TestDirLock(t *testing.T) {
	root := t.TempDir()
	lock := NewDirLock(root)

	release, err := lock.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, lockFileName)); err != nil {
		t.Errorf("lock file missing while held: %v", err)
	}
	release()
	if _, err := os.Stat(filepath.Join(root, lockFileName)); !os.IsNotExist(err) {
		t.Error("lock file should be gone after release")
	}

	release, err = lock.Acquire()
	if err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
	release()
}

func TestDirLockBreaksStaleLock(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, lockFileName)
	os.WriteFile(path, []byte("999999\n"), 0o644)
	old := time.Now().Add(-2 * lockStaleAfter)
	os.Chtimes(path, old, old)

	release, err := NewDirLock(root).Acquire()
	if err != nil {
		t.Fatalf("Acquire over stale lock: %v", err)
	}
	release()
}

func writeTierFile(t *testing.T, dir, name string, atoms ...*memory.Atom) {
	t.Helper()
	data, err := json.Marshal(atoms)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func atomIDs(atoms []*memory.Atom) []string {
	out := make([]string, len(atoms))
	for i, a := range atoms {
		out[i] = a.ID
	}
	return out
}
