package cli

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keepsake-dev/keepsake/internal/config"
	"github.com/keepsake-dev/keepsake/internal/memory"
	"github.com/keepsake-dev/keepsake/internal/store"
)

// lockedStore is what every storage backend hands the engine: the atom
// collection plus the advisory lock scoped to its root.
type lockedStore interface {
	memory.Store
	Locker() memory.Locker
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openStore opens the configured storage backend, creating it on first use.
// The returned close func is a no-op for the JSON backend.
func openStore(cfg config.Config, log *zap.Logger) (lockedStore, func(), error) {
	root := cfg.Storage.Root
	if root == "" {
		var err error
		root, err = store.DefaultRoot()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve storage root: %w", err)
		}
	}

	switch cfg.Storage.Backend {
	case "json":
		st, err := store.NewJSONStore(root, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open json store: %w", err)
		}
		return st, func() {}, nil
	case "sqlite", "":
		db, err := store.Open(root + "/keepsake.db")
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return store.NewSQLiteStore(db, log), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openEngine loads config and assembles the memory engine over the
// configured store.
func openEngine() (*memory.Engine, *config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build logger: %w", err)
	}

	st, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, nil, nil, err
	}

	engine := memory.NewEngine(st, st.Locker(), memory.Options{
		HalfLifeDays:     cfg.Memory.HalfLifeDays,
		MaxInjected:      cfg.Memory.MaxInjected,
		MinConfidence:    cfg.Memory.MinConfidence,
		MaxContextLength: cfg.Memory.MaxContextLength,
		PatternThreshold: cfg.Memory.PatternThreshold,
	}, log)

	cleanup := func() {
		closeStore()
		log.Sync()
	}
	return engine, &cfg, log, cleanup, nil
}
