package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/sitenotes/internal/clock"
	"github.com/mesh-intelligence/sitenotes/internal/sqlite"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// countingStore records Put calls and can be told to fail them.
type countingStore struct {
	types.Store

	mu       sync.Mutex
	puts     []*types.TextNote
	failPuts int
}

var errInjected = errors.New("injected put failure")

func (s *countingStore) Put(ctx context.Context, r types.Record) error {
	s.mu.Lock()
	if s.failPuts > 0 {
		s.failPuts--
		s.mu.Unlock()
		return errInjected
	}
	s.puts = append(s.puts, r.Clone().(*types.TextNote))
	s.mu.Unlock()
	return s.Store.Put(ctx, r)
}

func (s *countingStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

func (s *countingStore) lastPut() *types.TextNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[len(s.puts)-1]
}

func setupEditorStore(t *testing.T) *countingStore {
	t.Helper()
	b := sqlite.NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	require.NoError(t, b.Attach())
	t.Cleanup(func() { b.Detach() })
	return &countingStore{Store: b}
}

// typeFor sends body edits every step until elapsed typing reaches d.
func typeFor(e *Editor, c *clock.Fake, d, step time.Duration) {
	var elapsed time.Duration
	for i := 0; ; i++ {
		e.SetBody(fmt.Sprintf("<p>edit %d</p>", i))
		if elapsed >= d {
			return
		}
		next := step
		if elapsed+next > d {
			next = d - elapsed
		}
		c.Advance(next)
		elapsed += next
	}
}

func newTestEditor(store types.Store, c *clock.Fake, opts ...Option) *Editor {
	return NewEditor(store, append([]Option{WithClock(c)}, opts...)...)
}

func TestEditor_ThresholdGating(t *testing.T) {
	tests := []struct {
		name     string
		typing   time.Duration
		wantPuts bool
	}{
		{name: "9999ms writes nothing", typing: 9999 * time.Millisecond, wantPuts: false},
		{name: "10001ms writes", typing: 10001 * time.Millisecond, wantPuts: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := setupEditorStore(t)
			c := clock.NewFake(t0)
			e := newTestEditor(store, c)

			typeFor(e, c, tt.typing, 50*time.Millisecond)
			c.Advance(5 * time.Second)

			if tt.wantPuts {
				assert.GreaterOrEqual(t, store.putCount(), 1)
			} else {
				assert.Zero(t, store.putCount())
				require.NoError(t, e.Close(ctx))
				assert.Zero(t, store.putCount(), "closing an uncrossed draft writes nothing")
				all, err := store.GetAll(ctx, types.KindText)
				require.NoError(t, err)
				assert.Empty(t, all)
			}
		})
	}
}

func TestEditor_DebounceCoalescing(t *testing.T) {
	store := setupEditorStore(t)
	c := clock.NewFake(t0)
	e := newTestEditor(store, c)

	typeFor(e, c, 11*time.Second, 100*time.Millisecond)
	c.Advance(600 * time.Millisecond)
	require.Equal(t, 1, store.putCount())

	for i := 0; i < 10; i++ {
		e.SetBody(fmt.Sprintf("burst %d", i))
		c.Advance(50 * time.Millisecond)
	}
	assert.Equal(t, 1, store.putCount(), "no write while edits keep arriving")

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, 2, store.putCount())
	assert.Equal(t, "burst 9", store.lastPut().Body)
}

func TestEditor_ShrineScenario(t *testing.T) {
	ctx := context.Background()
	store := setupEditorStore(t)
	c := clock.NewFake(t0)
	e := newTestEditor(store, c, WithID("n1"))

	e.SetSite("Shrine of the Báb")
	e.SetTitle("Terraces")
	typeFor(e, c, 11*time.Second, 100*time.Millisecond)
	c.Advance(2 * time.Second)
	require.NoError(t, e.Close(ctx))

	got, err := store.GetBySite(ctx, types.KindText, "Shrine of the Báb")
	require.NoError(t, err)
	require.Len(t, got, 1)
	note := got[0].(*types.TextNote)
	assert.Equal(t, "n1", note.ID)
	assert.Equal(t, "Shrine of the Báb", note.Site)
	assert.Equal(t, "Terraces", note.Title)

	require.NoError(t, store.Delete(ctx, types.KindText, "n1"))
	require.NoError(t, store.Delete(ctx, types.KindText, "n1"))
	all, err := store.GetAll(ctx, types.KindText)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEditor_CreatedStampedAtFirstWrite(t *testing.T) {
	store := setupEditorStore(t)
	c := clock.NewFake(t0)
	e := newTestEditor(store, c)

	typeFor(e, c, 11*time.Second, 100*time.Millisecond)
	c.Advance(time.Second)
	require.Equal(t, 1, store.putCount())
	first := store.lastPut().Created
	assert.True(t, first.After(t0), "created is not the editor open time")

	e.SetBody("more")
	c.Advance(time.Second)
	require.Equal(t, 2, store.putCount())
	assert.True(t, store.lastPut().Created.Equal(first))
}

func TestEditor_OpenExistingKeepsCreated(t *testing.T) {
	ctx := context.Background()
	store := setupEditorStore(t)
	orig := time.Date(2023, time.December, 24, 18, 0, 0, 0, time.UTC)
	require.NoError(t, store.Store.Put(ctx, &types.TextNote{
		Meta: types.Meta{ID: "old", Title: "Old", Site: "Bahjí", Created: orig},
		Body: "before",
	}))

	c := clock.NewFake(t0)
	e, err := OpenEditor(ctx, store, "old", WithClock(c))
	require.NoError(t, err)
	assert.Equal(t, "old", e.ID())
	assert.Equal(t, Draft{Title: "Old", Body: "before", Site: "Bahjí"}, e.Draft())

	typeFor(e, c, 11*time.Second, 100*time.Millisecond)
	c.Advance(time.Second)
	require.NoError(t, e.Close(ctx))

	got, ok, err := store.Get(ctx, types.KindText, "old")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Common().Created.Equal(orig))
	assert.NotEqual(t, "before", got.(*types.TextNote).Body)

	_, err = OpenEditor(ctx, store, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestEditor_UnchangedExistingNoteIsNotRewritten(t *testing.T) {
	ctx := context.Background()
	store := setupEditorStore(t)
	require.NoError(t, store.Store.Put(ctx, &types.TextNote{
		Meta: types.Meta{ID: "n", Created: t0}, Body: "same",
	}))

	e, err := OpenEditor(ctx, store, "n", WithClock(clock.NewFake(t0)),
		WithSettings(Settings{Debounce: time.Millisecond, Inactivity: time.Second}))
	require.NoError(t, err)
	e.SetBody("same")
	require.NoError(t, e.Close(ctx))
	assert.Zero(t, store.putCount())
}

func TestEditor_CloseFlushesPendingEdit(t *testing.T) {
	ctx := context.Background()
	store := setupEditorStore(t)
	c := clock.NewFake(t0)
	e := newTestEditor(store, c)

	typeFor(e, c, 11*time.Second, 100*time.Millisecond)
	c.Advance(time.Second)
	require.Equal(t, 1, store.putCount())

	e.SetBody("typed just before leaving")
	require.NoError(t, e.Close(ctx))
	assert.Equal(t, 2, store.putCount())
	assert.Equal(t, "typed just before leaving", store.lastPut().Body)
	assert.Equal(t, Closed, e.State())
	assert.Zero(t, c.Pending(), "timers are stopped on close")

	e.SetBody("after close")
	c.Advance(time.Second)
	assert.Equal(t, 2, store.putCount())
}

func TestEditor_DeleteElsewhereIsNotResurrected(t *testing.T) {
	ctx := context.Background()
	store := setupEditorStore(t)
	c := clock.NewFake(t0)
	e := newTestEditor(store, c, WithID("n1"))

	typeFor(e, c, 11*time.Second, 100*time.Millisecond)
	c.Advance(time.Second)
	require.Equal(t, 1, store.putCount())

	e.SetBody("pending edit")
	require.NoError(t, store.Delete(ctx, types.KindText, "n1"))
	c.Advance(time.Second)

	assert.Equal(t, 1, store.putCount())
	_, ok, err := store.Get(ctx, types.KindText, "n1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Closed, e.State())
}

func TestEditor_CancelStopsPendingWrite(t *testing.T) {
	store := setupEditorStore(t)
	c := clock.NewFake(t0)
	e := newTestEditor(store, c)

	typeFor(e, c, 11*time.Second, 100*time.Millisecond)
	e.Cancel()
	c.Advance(5 * time.Second)

	assert.Zero(t, store.putCount())
	assert.Zero(t, c.Pending())
	require.NoError(t, e.Close(context.Background()))
	assert.Zero(t, store.putCount())
}

func TestEditor_FailedWriteIsRetriedByNextEdit(t *testing.T) {
	store := setupEditorStore(t)
	store.failPuts = 1
	c := clock.NewFake(t0)

	var reported []error
	e := newTestEditor(store, c, WithErrorHandler(func(err error) { reported = append(reported, err) }))

	typeFor(e, c, 11*time.Second, 100*time.Millisecond)
	c.Advance(time.Second)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], errInjected)
	assert.Zero(t, store.putCount())
	assert.Contains(t, e.Draft().Body, "edit", "draft survives the failure")

	e.SetTitle("retry")
	c.Advance(time.Second)
	assert.Equal(t, 1, store.putCount())
	assert.Equal(t, "retry", store.lastPut().Title)
}

func TestEditor_Flush(t *testing.T) {
	ctx := context.Background()
	store := setupEditorStore(t)
	c := clock.NewFake(t0)
	e := newTestEditor(store, c, WithSettings(Settings{Debounce: time.Hour, Inactivity: time.Second}))

	e.SetBody("now")
	require.NoError(t, e.Flush(ctx))
	assert.Equal(t, 1, store.putCount())
	assert.Equal(t, Saving, e.State())
}

func TestEditor_SeededDraftIsNotTyping(t *testing.T) {
	ctx := context.Background()
	store := setupEditorStore(t)
	c := clock.NewFake(t0)
	e := newTestEditor(store, c, WithDraft(Draft{Site: "Bahjí", Title: "Gardens"}))

	assert.Equal(t, Draft{Site: "Bahjí", Title: "Gardens"}, e.Draft())
	assert.Equal(t, Idle, e.State())
	assert.Zero(t, e.ActiveTyping())

	c.Advance(900 * time.Millisecond)
	typeFor(e, c, 9900*time.Millisecond, 100*time.Millisecond)
	c.Advance(time.Second)
	require.NoError(t, e.Close(ctx))
	assert.Zero(t, store.putCount(), "9.9s of typing stays under the threshold")
}

func TestEditor_SeededDraftIsWrittenWithFirstSave(t *testing.T) {
	store := setupEditorStore(t)
	c := clock.NewFake(t0)
	e := newTestEditor(store, c, WithDraft(Draft{Site: "Bahjí"}))

	typeFor(e, c, 11*time.Second, 100*time.Millisecond)
	c.Advance(time.Second)
	require.Equal(t, 1, store.putCount())
	assert.Equal(t, "Bahjí", store.lastPut().Site)
}
