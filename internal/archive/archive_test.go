package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/sitenotes/internal/media"
	"github.com/mesh-intelligence/sitenotes/internal/sqlite"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

var stamp = time.Date(2024, time.August, 3, 7, 15, 0, 0, time.UTC)

func setupStore(t *testing.T) *sqlite.Backend {
	t.Helper()
	b := sqlite.NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	require.NoError(t, b.Attach())
	t.Cleanup(func() { b.Detach() })
	return b
}

func seed(t *testing.T, store types.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &types.TextNote{
		Meta: types.Meta{ID: "n1", Title: "Terraces", Site: "Shrine of the Báb", Created: stamp},
		Body: "<p>Nineteen terraces & gardens</p>",
	}))
	bind := media.New(store, media.WithClock(func() time.Time { return stamp }))
	_, err := bind.SaveMedia(ctx, types.KindImage, []byte{1, 2, 3, 4}, "image/png", "Bahjí", "gate")
	require.NoError(t, err)
	_, err = bind.SaveMedia(ctx, types.KindAudio, []byte("ogg-bytes"), "audio/ogg", "Bahjí", "")
	require.NoError(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupStore(t)
	seed(t, src)
	dir := filepath.Join(t.TempDir(), "export")

	rep, err := Export(ctx, src, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Records[types.KindText])
	assert.Equal(t, 1, rep.Records[types.KindImage])
	assert.Equal(t, 1, rep.Records[types.KindAudio])
	assert.Equal(t, 2, rep.Blobs)

	for _, name := range []string{"textNotes.jsonl", "audioNotes.jsonl", "imageNotes.jsonl", BlobManifest} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	data, err := os.ReadFile(filepath.Join(dir, "textNotes.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"easyCreatedTime"`)
	assert.Contains(t, string(data), "& gardens", "HTML is not escaped")

	dst := setupStore(t)
	rep, err = Import(ctx, dst, dir)
	require.NoError(t, err)
	assert.Zero(t, rep.Skipped)
	assert.Equal(t, 2, rep.Blobs)

	for _, kind := range types.Kinds() {
		want, err := src.GetAll(ctx, kind)
		require.NoError(t, err)
		got, err := dst.GetAll(ctx, kind)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, got, "kind %s", kind)
	}

	images, err := dst.GetAll(ctx, types.KindImage)
	require.NoError(t, err)
	blob, ok, err := dst.GetBlob(ctx, images[0].Common().ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, blob.Data)
	assert.Equal(t, "image/png", blob.ContentType)
}

func TestExportCountsOrphans(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	require.NoError(t, store.Put(ctx, &types.ImageNote{Meta: types.Meta{ID: "lost", Created: stamp}, URI: "lost"}))

	rep, err := Export(ctx, store, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Orphans)
	assert.Zero(t, rep.Blobs)
}

func TestImportSkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	lines := []string{
		`{"id":"ok1","title":"","body":"fine","site":"s","created":"2024-08-03T07:15:00.000Z","kind":"text"}`,
		`not json at all`,
		`{"id":"","title":"","body":"","site":"s","created":"2024-08-03T07:15:00.000Z","kind":"text"}`,
		`{"id":"nobody","title":"","site":"s","created":"2024-08-03T07:15:00.000Z","kind":"text"}`,
		`{"id":"baddate","title":"","body":"","site":"s","created":"last tuesday","kind":"text"}`,
		`{"id":"wrongkind","title":"","uri":"wrongkind","site":"s","created":"2024-08-03T07:15:00.000Z","kind":"audio"}`,
		``,
		`{"id":"ok2","title":"t","body":"","site":"s","created":"2024-08-03T07:16:00Z","kind":"text"}`,
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "textNotes.jsonl"), []byte(strings.Join(lines, "\n")), 0o644))

	store := setupStore(t)
	rep, err := Import(ctx, store, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Records[types.KindText])
	assert.Equal(t, 5, rep.Skipped)

	all, err := store.GetAll(ctx, types.KindText)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImportSkipsIDHeldByAnotherKind(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	line := `{"id":"shared","title":"","uri":"shared","site":"s","created":"2024-08-03T07:15:00.000Z","kind":"audio"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audioNotes.jsonl"), []byte(line+"\n"), 0o644))

	store := setupStore(t)
	require.NoError(t, store.Put(ctx, &types.TextNote{Meta: types.Meta{ID: "shared", Site: "s", Created: stamp}, Body: "mine"}))

	rep, err := Import(ctx, store, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Zero(t, rep.Records[types.KindAudio])

	_, ok, err := store.Get(ctx, types.KindAudio, "shared")
	require.NoError(t, err)
	assert.False(t, ok)
	got, ok, err := store.Get(ctx, types.KindText, "shared")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mine", types.Payload(got))
}

func TestImportEmptyDir(t *testing.T) {
	rep, err := Import(context.Background(), setupStore(t), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, rep.Blobs)
	assert.Zero(t, rep.Skipped)
}

func TestImportMissingDir(t *testing.T) {
	_, err := Import(context.Background(), setupStore(t), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrNotArchive)
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")
	require.NoError(t, writeJSONL(path, []map[string]int{{"a": 1}, {"b": 2}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	lines, err := readJSONL(path)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte(`{"a":1}`), []byte(`{"b":2}`)}, lines)
}
