// Package media keeps audio and image note records paired with their blobs.
//
// A media note is two writes: the blob keyed by note ID and the record whose
// URI equals that ID. SaveMedia writes the blob first so a record never
// points at a missing blob; a failure between the writes can leave an
// unreferenced blob, which readers never see.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// Binding saves, opens, renames and deletes media notes over a store.
type Binding struct {
	store  types.Store
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
}

// Option configures a Binding.
type Option func(*Binding)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Binding) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithIDGenerator replaces the note ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(b *Binding) { b.newID = fn }
}

// WithClock replaces the source of creation timestamps.
func WithClock(fn func() time.Time) Option {
	return func(b *Binding) { b.now = fn }
}

// New returns a Binding over store.
func New(store types.Store, opts ...Option) *Binding {
	b := &Binding{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:  types.NewID,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Media is an opened media note. Available is false when the record exists
// but its blob does not.
type Media struct {
	Record    types.Record
	Blob      *types.Blob
	Available bool
}

// SaveMedia stores data as a new note of kind at site. The blob is written
// before the record; if the blob write fails nothing is stored.
func (b *Binding) SaveMedia(ctx context.Context, kind types.Kind, data []byte, contentType, site, title string) (types.Record, error) {
	if !kind.IsMedia() {
		return nil, fmt.Errorf("saving media: %w: %q", types.ErrInvalidKind, kind)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("saving media: %w", types.ErrEmptyMedia)
	}

	id := b.newID()
	rec, err := types.NewMediaNote(kind, types.Meta{
		ID:      id,
		Title:   title,
		Site:    site,
		Created: b.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	blob := &types.Blob{ID: id, ContentType: contentType, Data: data}
	if err := b.store.PutBlob(ctx, blob); err != nil {
		return nil, fmt.Errorf("saving media blob: %w", err)
	}
	if err := b.store.Put(ctx, rec); err != nil {
		b.logger.Warn("media: record write failed after blob write",
			"kind", string(kind), "id", id, "error", err)
		return nil, fmt.Errorf("saving media record: %w", err)
	}

	b.logger.Debug("media: saved", "kind", string(kind), "id", id, "bytes", blob.Size())
	return rec, nil
}

// DeleteMedia removes the record and the blob of a media note. Both deletes
// are attempted even when one fails; the failures are joined. Retrying after
// a partial failure finishes the job.
func (b *Binding) DeleteMedia(ctx context.Context, kind types.Kind, id string) error {
	if !kind.IsMedia() {
		return fmt.Errorf("deleting media: %w: %q", types.ErrInvalidKind, kind)
	}
	recErr := b.store.Delete(ctx, kind, id)
	blobErr := b.store.DeleteBlob(ctx, id)
	if err := errors.Join(recErr, blobErr); err != nil {
		b.logger.Warn("media: delete incomplete", "kind", string(kind), "id", id, "error", err)
		return err
	}
	return nil
}

// UpdateTitle rewrites the title of an existing note of any kind. It
// returns types.ErrNotFound when no record has the ID and never creates
// one.
func (b *Binding) UpdateTitle(ctx context.Context, kind types.Kind, id, title string) (types.Record, error) {
	rec, ok, err := b.store.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("updating title of %s/%s: %w", kind, id, types.ErrNotFound)
	}
	rec.Common().Title = title
	if err := b.store.Put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Open loads a media note with its blob. A missing record returns
// types.ErrNotFound; a record without a blob is returned with Available
// set to false.
func (b *Binding) Open(ctx context.Context, kind types.Kind, id string) (Media, error) {
	if !kind.IsMedia() {
		return Media{}, fmt.Errorf("opening media: %w: %q", types.ErrInvalidKind, kind)
	}
	rec, ok, err := b.store.Get(ctx, kind, id)
	if err != nil {
		return Media{}, err
	}
	if !ok {
		return Media{}, fmt.Errorf("opening %s/%s: %w", kind, id, types.ErrNotFound)
	}
	blob, ok, err := b.store.GetBlob(ctx, types.Payload(rec))
	if err != nil {
		return Media{}, err
	}
	if !ok {
		b.logger.Warn("media: blob missing", "kind", string(kind), "id", id)
		return Media{Record: rec}, nil
	}
	return Media{Record: rec, Blob: blob, Available: true}, nil
}
