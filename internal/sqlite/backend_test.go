package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

var created = time.Date(2024, time.April, 1, 9, 30, 0, 0, time.UTC)

func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	require.NoError(t, b.Attach())
	t.Cleanup(func() { b.Detach() })
	return b
}

func textNote(id, site, body string) *types.TextNote {
	return &types.TextNote{
		Meta: types.Meta{ID: id, Title: "title " + id, Site: site, Created: created},
		Body: body,
	}
}

func TestBackend_AttachCreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: dir})

	_, err := os.Stat(filepath.Join(dir, DBFile))
	assert.True(t, os.IsNotExist(err), "no I/O before first use")

	require.NoError(t, b.Attach())
	defer b.Detach()

	_, err = os.Stat(filepath.Join(dir, DBFile))
	assert.NoError(t, err)
	assert.NoError(t, b.Attach(), "second attach is a no-op")
}

func TestBackend_LazyOpenOnFirstOperation(t *testing.T) {
	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	defer b.Detach()

	all, err := b.GetAll(context.Background(), types.KindText)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBackend_OpenFailureIsCached(t *testing.T) {
	ctx := context.Background()
	// A regular file where the data dir should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: filepath.Join(blocker, "data")})

	err := b.Attach()
	require.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.False(t, types.IsRecoverable(err))

	_, _, err = b.Get(ctx, types.KindText, "n1")
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	err = b.Put(ctx, textNote("n1", "s", "b"))
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestBackend_InvalidConfigIsUnavailable(t *testing.T) {
	b := NewBackend(types.Config{Backend: "postgres", DataDir: t.TempDir()})
	err := b.Attach()
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestBackend_Detach(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	require.NoError(t, b.Attach())

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "detach is idempotent")

	_, _, err := b.Get(ctx, types.KindText, "n1")
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.ErrorIs(t, b.Attach(), types.ErrStoreDetached)
}

func TestBackend_DataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b := NewBackend(cfg)
	require.NoError(t, b.Put(ctx, textNote("n1", "Bahjí", "kept")))
	require.NoError(t, b.Detach())

	b2 := NewBackend(cfg)
	defer b2.Detach()
	r, ok, err := b2.Get(ctx, types.KindText, "n1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", r.(*types.TextNote).Body)
}

func TestRecords_CRUD(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	tests := []struct {
		name   string
		record types.Record
	}{
		{name: "text", record: textNote("t1", "Shrine of the Báb", "<p>gardens</p>")},
		{name: "audio", record: &types.AudioNote{Meta: types.Meta{ID: "a1", Site: "Bahjí", Created: created}, URI: "a1"}},
		{name: "image", record: &types.ImageNote{Meta: types.Meta{ID: "i1", Title: "gate", Site: "Bahjí", Created: created}, URI: "i1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id := tt.record.Kind(), tt.record.Common().ID

			_, ok, err := b.Get(ctx, kind, id)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Put(ctx, tt.record))
			got, ok, err := b.Get(ctx, kind, id)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.record, got)

			require.NoError(t, b.Delete(ctx, kind, id))
			_, ok, err = b.Get(ctx, kind, id)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRecords_PutReplacesAndKeepsCreated(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	require.NoError(t, b.Put(ctx, textNote("n1", "s", "first")))

	second := textNote("n1", "s2", "second")
	second.Created = created.Add(48 * time.Hour)
	require.NoError(t, b.Put(ctx, second))

	all, err := b.GetAll(ctx, types.KindText)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0].(*types.TextNote)
	assert.Equal(t, "second", got.Body)
	assert.Equal(t, "s2", got.Site)
	assert.True(t, got.Created.Equal(created))
}

func TestRecords_KindsAreSeparateStores(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	require.NoError(t, b.Put(ctx, textNote("same", "s", "b")))
	_, ok, err := b.Get(ctx, types.KindImage, "same")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecords_IDIsUniqueAcrossKinds(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	require.NoError(t, b.Put(ctx, textNote("same", "s", "b")))

	err := b.Put(ctx, &types.ImageNote{Meta: types.Meta{ID: "same", Created: created}, URI: "same"})
	require.ErrorIs(t, err, types.ErrIDInUse)
	assert.True(t, types.IsRecoverable(err))
	assert.Contains(t, err.Error(), "text")

	_, ok, err := b.Get(ctx, types.KindImage, "same")
	require.NoError(t, err)
	assert.False(t, ok, "rejected put leaves no row")

	// Once the text note is gone the ID is free for another kind.
	require.NoError(t, b.Delete(ctx, types.KindText, "same"))
	require.NoError(t, b.Put(ctx, &types.ImageNote{Meta: types.Meta{ID: "same", Created: created}, URI: "same"}))

	// Replacing a record of the same kind is not a conflict.
	require.NoError(t, b.Put(ctx, &types.ImageNote{Meta: types.Meta{ID: "same", Title: "gate", Created: created}, URI: "same"}))
}

func TestRecords_GetBySite(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	require.NoError(t, b.Put(ctx, textNote("n1", "Shrine of the Báb", "a")))
	require.NoError(t, b.Put(ctx, textNote("n2", "Shrine of the Báb", "b")))
	require.NoError(t, b.Put(ctx, textNote("n3", "Bahjí", "c")))

	got, err := b.GetBySite(ctx, types.KindText, "Shrine of the Báb")
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.Common().ID)
	}
	assert.ElementsMatch(t, []string{"n1", "n2"}, ids)

	got, err = b.GetBySite(ctx, types.KindText, "shrine of the báb")
	require.NoError(t, err)
	assert.Empty(t, got, "site match is exact")
}

func TestRecords_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	require.NoError(t, b.Put(ctx, textNote("n1", "s", "b")))
	require.NoError(t, b.Delete(ctx, types.KindText, "n1"))
	require.NoError(t, b.Delete(ctx, types.KindText, "n1"))
	require.NoError(t, b.Delete(ctx, types.KindText, "never-existed"))
}

func TestRecords_ValidationErrors(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{
			name:    "put missing id",
			call:    func() error { return b.Put(ctx, textNote("", "s", "b")) },
			wantErr: types.ErrInvalidID,
		},
		{
			name: "put media uri mismatch",
			call: func() error {
				return b.Put(ctx, &types.ImageNote{Meta: types.Meta{ID: "i1", Created: created}, URI: "x"})
			},
			wantErr: types.ErrInvalidRecord,
		},
		{
			name: "get unknown kind",
			call: func() error {
				_, _, err := b.Get(ctx, types.Kind("video"), "x")
				return err
			},
			wantErr: types.ErrInvalidKind,
		},
		{
			name:    "delete empty id",
			call:    func() error { return b.Delete(ctx, types.KindText, "") },
			wantErr: types.ErrInvalidID,
		},
		{
			name:    "empty blob",
			call:    func() error { return b.PutBlob(ctx, &types.Blob{ID: "b1"}) },
			wantErr: types.ErrEmptyMedia,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, types.IsRecoverable(err))
		})
	}
}

func TestBlobs_RoundTripAndDelete(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	data := []byte{0xff, 0xd8, 0xff, 0x00, 0x10}
	require.NoError(t, b.PutBlob(ctx, &types.Blob{ID: "i1", ContentType: "image/jpeg", Data: data}))

	got, ok, err := b.GetBlob(ctx, "i1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", got.ContentType)
	assert.Equal(t, data, got.Data)

	require.NoError(t, b.DeleteBlob(ctx, "i1"))
	require.NoError(t, b.DeleteBlob(ctx, "i1"))
	_, ok, err = b.GetBlob(ctx, "i1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlobs_Quota(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir(), BlobQuotaBytes: 10})
	t.Cleanup(func() { b.Detach() })

	require.NoError(t, b.PutBlob(ctx, &types.Blob{ID: "a", Data: make([]byte, 6)}))

	err := b.PutBlob(ctx, &types.Blob{ID: "b", Data: make([]byte, 5)})
	require.ErrorIs(t, err, types.ErrQuotaExceeded)
	assert.True(t, types.IsRecoverable(err))

	// Replacing a blob only counts its new size.
	require.NoError(t, b.PutBlob(ctx, &types.Blob{ID: "a", Data: make([]byte, 10)}))

	_, ok, err := b.GetBlob(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok, "rejected blob is not stored")
}

func TestBackend_Stats(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	require.NoError(t, b.Put(ctx, textNote("n1", "s", "b")))
	require.NoError(t, b.Put(ctx, textNote("n2", "s", "b")))
	require.NoError(t, b.Put(ctx, &types.AudioNote{Meta: types.Meta{ID: "a1", Created: created}, URI: "a1"}))
	require.NoError(t, b.PutBlob(ctx, &types.Blob{ID: "a1", ContentType: "audio/webm", Data: make([]byte, 42)}))

	st, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Records[types.KindText])
	assert.Equal(t, 1, st.Records[types.KindAudio])
	assert.Equal(t, 0, st.Records[types.KindImage])
	assert.Equal(t, 1, st.Blobs)
	assert.Equal(t, int64(42), st.BlobBytes)
}

func TestRecords_PutIsInsertOrReplaceProperty(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringMatching(`[a-z0-9]{4,12}`).Draw(t, "id")
		bodies := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z .]{0,40}`), 1, 5).Draw(t, "bodies")

		for _, body := range bodies {
			require.NoError(t, b.Put(ctx, textNote(id, "site", body)))
		}

		all, err := b.GetAll(ctx, types.KindText)
		require.NoError(t, err)
		var matches []*types.TextNote
		for _, r := range all {
			if r.Common().ID == id {
				matches = append(matches, r.(*types.TextNote))
			}
		}
		require.Len(t, matches, 1)
		assert.Equal(t, bodies[len(bodies)-1], matches[0].Body)

		require.NoError(t, b.Delete(ctx, types.KindText, id))
		require.NoError(t, b.Delete(ctx, types.KindText, id))
		_, ok, err := b.Get(ctx, types.KindText, id)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
