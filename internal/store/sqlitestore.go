package store

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/keepsake-dev/keepsake/internal/memory"
)

const atomColumns = `id, type, content, confidence, tier,
	created_at, last_triggered_at, decayed_at, trigger_count,
	source_session, related_principle, tags`

// SQLiteStore is the SQLite adapter of memory.Store. Cross-tier moves are a
// single UPDATE, so relocation is atomic by construction.
type SQLiteStore struct {
	db   *DB
	lock memory.Locker
	log  *zap.Logger
}

// NewSQLiteStore wraps an open database. File-backed databases get an
// advisory lock in the database directory so whole load-mutate-save cycles
// are serialized across processes; an in-memory database only needs an
// in-process lock.
func NewSQLiteStore(db *DB, log *zap.Logger) *SQLiteStore {
	if log == nil {
		log = zap.NewNop()
	}
	var lock memory.Locker = NewMutexLock()
	if db.Path != ":memory:" {
		lock = NewDirLock(filepath.Dir(db.Path))
	}
	return &SQLiteStore{db: db, lock: lock, log: log}
}

// Locker returns the lock guarding this store's root.
func (s *SQLiteStore) Locker() memory.Locker { return s.lock }

// GetAll implements memory.Store. Order is stable: tier rank, then rowid.
func (s *SQLiteStore) GetAll(tier memory.Tier) ([]*memory.Atom, error) {
	query := `SELECT ` + atomColumns + ` FROM atoms
		ORDER BY CASE tier WHEN 'short_term' THEN 0 WHEN 'working' THEN 1 ELSE 2 END, rowid`
	args := []any{}
	if tier != "" {
		if !tier.Valid() {
			return nil, &memory.ValidationError{Field: "tier", Reason: string(tier)}
		}
		query = `SELECT ` + atomColumns + ` FROM atoms WHERE tier = ? ORDER BY rowid`
		args = append(args, string(tier))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &memory.StorageError{Op: "query atoms", Err: err}
	}
	defer rows.Close()

	var atoms []*memory.Atom
	for rows.Next() {
		a, err := scanAtom(rows)
		if err != nil {
			s.log.Warn("skipping corrupt record", zap.Error(&memory.StorageError{Op: "scan atom", Err: err}))
			continue
		}
		if err := a.Validate(); err != nil {
			s.log.Warn("skipping corrupt record", zap.Error(&memory.StorageError{Op: "validate " + a.ID, Err: err}))
			continue
		}
		atoms = append(atoms, a)
	}
	if err := rows.Err(); err != nil {
		return atoms, &memory.StorageError{Op: "iterate atoms", Err: err}
	}
	return atoms, nil
}

// GetByID implements memory.Store.
func (s *SQLiteStore) GetByID(id string) (*memory.Atom, error) {
	row := s.db.QueryRow(`SELECT `+atomColumns+` FROM atoms WHERE id = ?`, id)
	a, err := scanAtom(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(memory.ErrNotFound, id)
	}
	if err != nil {
		return nil, &memory.StorageError{Op: "get atom " + id, Err: err}
	}
	return a, nil
}

// Save implements memory.Store as an upsert on id. A tier change simply
// rewrites the row's tier column.
func (s *SQLiteStore) Save(a *memory.Atom) error {
	if err := a.Validate(); err != nil {
		return err
	}

	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return &memory.StorageError{Op: "encode tags", Err: err}
	}
	var decayedAt any
	if !a.DecayedAt.IsZero() {
		decayedAt = a.DecayedAt.UnixMilli()
	}

	_, err = s.db.Exec(`
		INSERT INTO atoms (`+atomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			content = excluded.content,
			confidence = excluded.confidence,
			tier = excluded.tier,
			last_triggered_at = excluded.last_triggered_at,
			decayed_at = excluded.decayed_at,
			trigger_count = excluded.trigger_count,
			source_session = excluded.source_session,
			related_principle = excluded.related_principle,
			tags = excluded.tags
	`, a.ID, string(a.Type), a.Content, a.Confidence, string(a.Tier),
		a.CreatedAt.UnixMilli(), a.LastTriggeredAt.UnixMilli(), decayedAt, a.TriggerCount,
		a.SourceSessionID, nullString(a.RelatedPrincipleID), string(tags))
	if err != nil {
		return &memory.StorageError{Op: "save atom " + a.ID, Err: err}
	}
	return nil
}

// Delete implements memory.Store.
func (s *SQLiteStore) Delete(id string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM atoms WHERE id = ?", id)
	if err != nil {
		return false, &memory.StorageError{Op: "delete atom " + id, Err: err}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Relocate implements memory.Store with one guarded UPDATE.
func (s *SQLiteStore) Relocate(id string, from, to memory.Tier) (bool, error) {
	res, err := s.db.Exec(
		"UPDATE atoms SET tier = ? WHERE id = ? AND tier = ?",
		string(to), id, string(from))
	if err != nil {
		return false, &memory.StorageError{Op: "relocate atom " + id, Err: err}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Count implements memory.Store.
func (s *SQLiteStore) Count(tier memory.Tier) (int, error) {
	query, args := "SELECT COUNT(*) FROM atoms", []any{}
	if tier != "" {
		query += " WHERE tier = ?"
		args = append(args, string(tier))
	}
	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, &memory.StorageError{Op: "count atoms", Err: err}
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAtom(row rowScanner) (*memory.Atom, error) {
	var a memory.Atom
	var typ, tier string
	var createdAt, lastTriggeredAt int64
	var decayedAt sql.NullInt64
	var sourceSession, relatedPrinciple, tags sql.NullString

	err := row.Scan(&a.ID, &typ, &a.Content, &a.Confidence, &tier,
		&createdAt, &lastTriggeredAt, &decayedAt, &a.TriggerCount,
		&sourceSession, &relatedPrinciple, &tags)
	if err != nil {
		return nil, err
	}

	a.Type = memory.Type(typ)
	a.Tier = memory.Tier(tier)
	a.CreatedAt = time.UnixMilli(createdAt)
	a.LastTriggeredAt = time.UnixMilli(lastTriggeredAt)
	if decayedAt.Valid {
		a.DecayedAt = time.UnixMilli(decayedAt.Int64)
	}
	a.SourceSessionID = sourceSession.String
	a.RelatedPrincipleID = relatedPrinciple.String
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &a.Tags); err != nil {
			return nil, errors.Wrapf(err, "decode tags for %s", a.ID)
		}
	}
	return &a, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
