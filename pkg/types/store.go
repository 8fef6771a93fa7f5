package types

import "context"

// Store provides durable CRUD and site lookup for the three note kinds, plus
// an opaque blob store keyed by note ID.
//
// Absent records and blobs are reported with ok == false and a nil error.
// Per-operation failures are returned as *OpError; a store that cannot be
// opened returns errors matching ErrStoreUnavailable from every method.
type Store interface {
	// GetAll returns every record of the kind in unspecified order.
	GetAll(ctx context.Context, kind Kind) ([]Record, error)

	// Get looks up one record by ID.
	Get(ctx context.Context, kind Kind, id string) (Record, bool, error)

	// Put inserts or replaces the record keyed by its ID. The created
	// timestamp of an existing record is kept. IDs are unique across
	// kinds: a record whose ID is held by another kind fails with
	// ErrIDInUse.
	Put(ctx context.Context, r Record) error

	// Delete removes the record if present. Deleting an absent ID succeeds.
	Delete(ctx context.Context, kind Kind, id string) error

	// GetBySite returns all records of the kind whose site equals site.
	GetBySite(ctx context.Context, kind Kind, site string) ([]Record, error)

	// GetBlob looks up a blob by ID.
	GetBlob(ctx context.Context, id string) (*Blob, bool, error)

	// PutBlob inserts or replaces a blob.
	PutBlob(ctx context.Context, b *Blob) error

	// DeleteBlob removes the blob if present. Deleting an absent ID succeeds.
	DeleteBlob(ctx context.Context, id string) error
}
