// Package badgerstore persists state snapshots in an embedded BadgerDB.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze/pkg/state"
)

// Config describes how to open the database.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM; useful for tests.
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *zap.Logger
}

// Store implements state.Store[T] by storing JSON records under
// Ref.Identifier() keys.
type Store[T any] struct {
	db    *badger.DB
	owned bool
	now   func() time.Time
}

type record[T any] struct {
	Snapshot T          `json:"snapshot"`
	Meta     state.Meta `json:"meta"`
}

// Open opens (creating when needed) a database described by cfg. The
// returned Store owns the database and closes it on Close.
func Open[T any](cfg Config) (*Store[T], error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&zapLogger{logger: cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	store := New[T](db)
	store.owned = true
	return store, nil
}

// New wraps an already open database. Close does not close db.
func New[T any](db *badger.DB) *Store[T] {
	return &Store[T]{db: db, now: time.Now}
}

func (s *Store[T]) Load(_ context.Context, ref state.Ref) (T, state.Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, state.Meta{}, false, err
	}

	var rec record[T]
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return zero, state.Meta{}, false, nil
	}
	if err != nil {
		return zero, state.Meta{}, false, fmt.Errorf("badgerstore: load %s: %w", key, err)
	}
	return rec.Snapshot, rec.Meta, true, nil
}

func (s *Store[T]) Save(_ context.Context, ref state.Ref, snapshot T, meta state.Meta) (state.Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}

	stamped := state.StampMeta(meta, s.now(), uuid.NewString)
	payload, err := json.Marshal(record[T]{Snapshot: snapshot, Meta: stamped})
	if err != nil {
		return state.Meta{}, fmt.Errorf("badgerstore: encode %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
	if err != nil {
		return state.Meta{}, fmt.Errorf("badgerstore: save %s: %w", key, err)
	}
	return state.CloneMeta(stamped), nil
}

func (s *Store[T]) Delete(_ context.Context, ref state.Ref) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badgerstore: delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database when the Store opened it.
func (s *Store[T]) Close() error {
	if s == nil || !s.owned {
		return nil
	}
	return s.db.Close()
}

// zapLogger adapts zap to badger.Logger.
type zapLogger struct {
	logger *zap.SugaredLogger
}

func (l *zapLogger) Errorf(format string, args ...any)   { l.logger.Errorf(format, args...) }
func (l *zapLogger) Warningf(format string, args ...any) { l.logger.Warnf(format, args...) }
func (l *zapLogger) Infof(format string, args ...any)    { l.logger.Infof(format, args...) }
func (l *zapLogger) Debugf(format string, args ...any)   { l.logger.Debugf(format, args...) }
