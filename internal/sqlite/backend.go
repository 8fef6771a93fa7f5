// Package sqlite implements the note store on SQLite. Records of each kind
// live in their own table with a site index; media payloads live in a blob
// table keyed by note ID.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// DBFile is the database file name created under the data directory.
const DBFile = "sitenotes.db"

var _ types.Store = (*Backend)(nil)

// Backend implements types.Store. The database is opened at most once,
// either by Attach or by the first operation. A failed open is remembered
// and every later call reports the store unavailable.
type Backend struct {
	mu       sync.RWMutex
	config   types.Config
	logger   *slog.Logger
	openOnce sync.Once
	openErr  error
	db       *sql.DB
	detached bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for open, close and failed operations.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a backend for config. No I/O happens until Attach or
// the first store operation.
func NewBackend(config types.Config, opts ...Option) *Backend {
	b := &Backend{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Path returns the database file path.
func (b *Backend) Path() string {
	dataDir := b.config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	return filepath.Join(dataDir, DBFile)
}

// Attach opens the database eagerly. Calling it on an already open backend
// is a no-op; calling it after a failed open returns the cached failure.
func (b *Backend) Attach() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready()
}

// Detach closes the database. Operations after Detach return
// types.ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.detached {
		return nil
	}
	b.detached = true
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	b.logger.Debug("sqlite: store closed", "path", b.Path())
	return err
}

// ready opens the database on first use. The caller must hold b.mu.
func (b *Backend) ready() error {
	if b.detached {
		return types.ErrStoreDetached
	}
	b.openOnce.Do(func() {
		b.openErr = b.open()
		if b.openErr != nil {
			b.logger.Error("sqlite: open failed", "path", b.Path(), "error", b.openErr)
		}
	})
	if b.openErr != nil {
		return b.openErr
	}
	if b.detached {
		return types.ErrStoreDetached
	}
	return nil
}

func (b *Backend) open() error {
	if err := b.config.Validate(); err != nil {
		return types.Unavailable(err)
	}

	dataDir := filepath.Dir(b.Path())
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return types.Unavailable(fmt.Errorf("creating data dir: %w", err))
	}

	db, err := sql.Open("sqlite", b.Path())
	if err != nil {
		return types.Unavailable(err)
	}
	// A single connection keeps the pragmas and serialises writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return types.Unavailable(fmt.Errorf("%s: %w", stmt, err))
		}
	}
	for _, stmts := range [][]string{schemaDDL, indexDDL} {
		for _, stmt := range stmts {
			if _, err := db.Exec(stmt); err != nil {
				db.Close()
				return types.Unavailable(fmt.Errorf("applying schema: %w", err))
			}
		}
	}

	b.db = db
	b.logger.Debug("sqlite: store opened", "path", b.Path())
	return nil
}

// opFailed wraps err as an OpError and logs it.
func (b *Backend) opFailed(op string, kind types.Kind, id string, err error) error {
	opErr := &types.OpError{Op: op, Kind: kind, ID: id, Err: err}
	b.logger.Warn("sqlite: operation failed", "op", op, "kind", string(kind), "id", id, "error", err)
	return opErr
}

// Stats summarises the contents of the store.
type Stats struct {
	Records   map[types.Kind]int
	Blobs     int
	BlobBytes int64
}

// Stats counts records per kind and totals the blob table.
func (b *Backend) Stats(ctx context.Context) (Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(); err != nil {
		return Stats{}, err
	}

	st := Stats{Records: make(map[types.Kind]int, len(kindTables))}
	for _, kind := range types.Kinds() {
		t, _ := tableFor(kind)
		var n int
		if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
			return Stats{}, b.opFailed("stats", kind, "", err)
		}
		st.Records[kind] = n
	}
	row := b.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(size), 0) FROM media_blobs")
	if err := row.Scan(&st.Blobs, &st.BlobBytes); err != nil {
		return Stats{}, b.opFailed("stats", "", "", err)
	}
	return st, nil
}
