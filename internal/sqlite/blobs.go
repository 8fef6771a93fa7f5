package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// GetBlob looks up a blob by note ID. An absent blob returns ok == false
// and a nil error.
func (b *Backend) GetBlob(ctx context.Context, id string) (*types.Blob, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, b.opFailed("getBlob", "", id, types.ErrInvalidID)
	}

	blob := &types.Blob{ID: id}
	row := b.db.QueryRowContext(ctx, "SELECT content_type, data FROM media_blobs WHERE id = ?", id)
	err := row.Scan(&blob.ContentType, &blob.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, b.opFailed("getBlob", "", id, err)
	}
	return blob, true, nil
}

// PutBlob inserts or replaces a blob. With a positive quota, a write that
// would take the stored total past it fails with types.ErrQuotaExceeded.
// The size of a blob being replaced does not count against its successor.
func (b *Backend) PutBlob(ctx context.Context, blob *types.Blob) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return err
	}
	if blob == nil || blob.ID == "" {
		id := ""
		if blob != nil {
			id = blob.ID
		}
		return b.opFailed("putBlob", "", id, types.ErrInvalidID)
	}
	if len(blob.Data) == 0 {
		return b.opFailed("putBlob", "", blob.ID, types.ErrEmptyMedia)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return b.opFailed("putBlob", "", blob.ID, err)
	}
	defer tx.Rollback()

	if quota := b.config.BlobQuotaBytes; quota > 0 {
		var used int64
		row := tx.QueryRowContext(ctx, "SELECT COALESCE(SUM(size), 0) FROM media_blobs WHERE id != ?", blob.ID)
		if err := row.Scan(&used); err != nil {
			return b.opFailed("putBlob", "", blob.ID, err)
		}
		if used+blob.Size() > quota {
			return b.opFailed("putBlob", "", blob.ID,
				fmt.Errorf("%w: %d of %d bytes used, blob is %d", types.ErrQuotaExceeded, used, quota, blob.Size()))
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO media_blobs (id, content_type, size, data, stored_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET content_type = excluded.content_type, size = excluded.size,
data = excluded.data, stored_at = excluded.stored_at`,
		blob.ID, blob.ContentType, blob.Size(), blob.Data, types.FormatCreated(time.Now()))
	if err != nil {
		return b.opFailed("putBlob", "", blob.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return b.opFailed("putBlob", "", blob.ID, err)
	}
	return nil
}

// DeleteBlob removes a blob. Deleting an absent ID succeeds.
func (b *Backend) DeleteBlob(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return err
	}
	if id == "" {
		return b.opFailed("deleteBlob", "", id, types.ErrInvalidID)
	}
	if _, err := b.db.ExecContext(ctx, "DELETE FROM media_blobs WHERE id = ?", id); err != nil {
		return b.opFailed("deleteBlob", "", id, err)
	}
	return nil
}
