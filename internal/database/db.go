package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/buntdb"
)

// InMemory opens a store that is never written to disk.
const InMemory = ":memory:"

// Key prefixes and secondary indexes
const (
	DevicePrefix  = "device:"
	SyncRunPrefix = "syncrun:"

	IndexDevicePlatform = "device_platform"
	IndexDeviceStatus   = "device_status"
)

// DB represents the database interface
type DB interface {
	View(fn func(tx *buntdb.Tx) error) error
	Update(fn func(tx *buntdb.Tx) error) error
	Close() error
}

// Config holds database configuration
type Config struct {
	Path string
}

// Store implements the DB interface
type Store struct {
	db   *buntdb.DB
	mu   sync.RWMutex
	path string
}

// NewStore creates a new database connection
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.Path != InMemory {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := buntdb.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createIndexes(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring database: %w", err)
	}

	return &Store{
		db:   db,
		path: cfg.Path,
	}, nil
}

func createIndexes(db *buntdb.DB) error {
	indexes := []struct {
		name    string
		pattern string
		less    func(a, b string) bool
	}{
		{IndexDevicePlatform, DevicePrefix + "*", buntdb.IndexJSONCaseSensitive("platform_name")},
		{IndexDeviceStatus, DevicePrefix + "*", buntdb.IndexJSONCaseSensitive("status")},
	}

	for _, idx := range indexes {
		err := db.ReplaceIndex(idx.name, idx.pattern, idx.less)
		if err != nil && !errors.Is(err, buntdb.ErrIndexExists) {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}
	return nil
}

// Path returns the file the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// View executes a read-only transaction
func (s *Store) View(fn func(tx *buntdb.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.View(fn)
}

// Update executes a read-write transaction
func (s *Store) Update(fn func(tx *buntdb.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(fn)
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Updater is the write side of DB.
type Updater interface {
	Update(fn func(tx *buntdb.Tx) error) error
}

// WithTransaction runs fn in a read-write transaction. A context that is done
// before or during fn rolls the transaction back.
func WithTransaction(ctx context.Context, db Updater, fn func(tx *buntdb.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.Update(func(tx *buntdb.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return ctx.Err()
	})
}
