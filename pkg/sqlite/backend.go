// Package sqlite provides the public API for the SQLite note store.
// It exposes a constructor while keeping implementation details internal.
package sqlite

import (
	"context"
	"log/slog"

	"github.com/mesh-intelligence/sitenotes/internal/sqlite"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// DBFile is the database file name inside the data directory.
const DBFile = sqlite.DBFile

// Stats summarizes store contents.
type Stats = sqlite.Stats

// Backend is a note store kept in one SQLite file.
type Backend interface {
	types.Store

	// Attach opens the database now instead of on first use.
	Attach() error

	// Detach closes the database. Later operations fail with
	// types.ErrStoreDetached.
	Detach() error

	// Path returns the database file path.
	Path() string

	// Stats counts records per kind and stored media bytes.
	Stats(ctx context.Context) (Stats, error)
}

// NewBackend creates a SQLite note store for config. Nothing is opened until
// Attach or the first operation.
//
// Example:
//
//	store := sqlite.NewBackend(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: dataDir,
//	}, logger)
//	defer store.Detach()
func NewBackend(config types.Config, logger *slog.Logger) Backend {
	return sqlite.NewBackend(config, sqlite.WithLogger(logger))
}
