package autosave

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mesh-intelligence/sitenotes/internal/clock"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// Editor is an editing session for one text note. Edits update the draft
// in memory; writes are scheduled by the session's Machine.
//
// If a write fails the draft stays dirty and the next edit schedules
// another attempt. Closing the editor before a retry succeeds loses the
// unsaved draft, and so does closing before the threshold is crossed.
type Editor struct {
	store    types.Store
	clock    clock.Clock
	logger   *slog.Logger
	onError  func(error)
	settings Settings
	id       string
	seed     Draft

	mu         sync.Mutex
	m          *Machine
	created    time.Time // zero until the first write of a new note
	debounce   clock.Timer
	inactivity clock.Timer
	gen        int // bumped by every edit; stale debounce callbacks compare it

	writeMu sync.Mutex // serialises writes
}

// Option configures an Editor.
type Option func(*Editor)

// WithClock sets the clock driving timers and timestamps.
func WithClock(c clock.Clock) Option {
	return func(e *Editor) { e.clock = c }
}

// WithSettings overrides the timing parameters.
func WithSettings(s Settings) Option {
	return func(e *Editor) { e.settings = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithErrorHandler receives failed background writes.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Editor) { e.onError = fn }
}

// WithID fixes the ID of a new note instead of generating one.
func WithID(id string) Option {
	return func(e *Editor) { e.id = id }
}

// WithDraft sets the starting content of a new note. Seeded content is not
// an edit and does not count as typing time.
func WithDraft(d Draft) Option {
	return func(e *Editor) { e.seed = d }
}

// DefaultSettings returns the reference timings.
func DefaultSettings() Settings {
	return Settings{
		Threshold:  types.DefaultTypingThreshold,
		Debounce:   types.DefaultDebounce,
		Inactivity: types.DefaultInactivityWindow,
	}
}

// SettingsFromConfig converts the autosave section of a config.
func SettingsFromConfig(c types.AutosaveConfig) Settings {
	return Settings{Threshold: c.Threshold, Debounce: c.Debounce, Inactivity: c.Inactivity}
}

func newEditor(store types.Store, opts []Option) *Editor {
	e := &Editor{
		store:    store,
		clock:    clock.Real(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = types.NewID()
	}
	return e
}

// NewEditor starts a session for a new text note. Nothing is stored until
// the typing threshold is crossed.
func NewEditor(store types.Store, opts ...Option) *Editor {
	e := newEditor(store, opts)
	e.m = NewMachine(e.settings)
	e.m.draft = e.seed
	return e
}

// OpenEditor starts a session for an existing text note. Its created
// timestamp is kept on every write. Returns types.ErrNotFound if the note
// does not exist.
func OpenEditor(ctx context.Context, store types.Store, id string, opts ...Option) (*Editor, error) {
	rec, ok, err := store.Get(ctx, types.KindText, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("opening editor for %s: %w", id, types.ErrNotFound)
	}
	note := rec.(*types.TextNote)

	e := newEditor(store, append(opts, WithID(id)))
	e.created = note.Created
	e.m = ResumeMachine(e.settings, Draft{Title: note.Title, Body: note.Body, Site: note.Site})
	return e, nil
}

// ID returns the note ID the session writes to.
func (e *Editor) ID() string { return e.id }

// SetTitle replaces the title.
func (e *Editor) SetTitle(title string) { e.edit(func(d *Draft) { d.Title = title }) }

// SetBody replaces the body markup.
func (e *Editor) SetBody(body string) { e.edit(func(d *Draft) { d.Body = body }) }

// SetSite replaces the site.
func (e *Editor) SetSite(site string) { e.edit(func(d *Draft) { d.Site = site }) }

// Draft returns the in-memory content.
func (e *Editor) Draft() Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m.Draft()
}

// State returns the session phase.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m.State()
}

// ActiveTyping returns the typing time accumulated in this session.
func (e *Editor) ActiveTyping() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m.ActiveTyping()
}

func (e *Editor) edit(mutate func(*Draft)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.m.Edit(e.clock.Now(), mutate) {
		return
	}
	e.gen++
	gen := e.gen

	stop(e.debounce)
	e.debounce = e.clock.AfterFunc(e.settings.Debounce, func() { e.debounceFired(gen) })

	stop(e.inactivity)
	e.inactivity = e.clock.AfterFunc(e.settings.Inactivity, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.m.Inactive(e.clock.Now())
	})
}

func (e *Editor) debounceFired(gen int) {
	e.mu.Lock()
	stale := gen != e.gen
	e.mu.Unlock()
	if stale {
		return
	}
	if err := e.save(context.Background(), false); err != nil {
		e.logger.Warn("autosave: save failed", "id", e.id, "error", err)
		if e.onError != nil {
			e.onError(err)
		}
	}
}

// Flush writes the draft now if a write is due, without waiting for the
// debounce.
func (e *Editor) Flush(ctx context.Context) error {
	return e.save(ctx, false)
}

// Close stops the timers, writes the draft if the threshold was crossed and
// it has unsaved changes, and ends the session. The write is bounded by
// ctx.
func (e *Editor) Close(ctx context.Context) error {
	return e.save(ctx, true)
}

// Cancel ends the session without writing. Pending timers are stopped and
// no later write can happen. A write already in flight completes before
// Cancel returns, so a delete issued afterwards is final.
func (e *Editor) Cancel() {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
}

func (e *Editor) cancelLocked() {
	stop(e.debounce)
	stop(e.inactivity)
	e.debounce, e.inactivity = nil, nil
	e.m.Cancel()
}

// save runs one write cycle. With final set, the session is closed in the
// same step that takes the draft, so no edit can slip in between.
func (e *Editor) save(ctx context.Context, final bool) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	var (
		d  Draft
		ok bool
	)
	if final {
		stop(e.debounce)
		stop(e.inactivity)
		e.debounce, e.inactivity = nil, nil
		d, ok = e.m.Close()
	} else {
		d, ok = e.m.DebounceFired()
	}
	mustExist := e.m.Exists()
	created := e.created
	e.mu.Unlock()

	if !ok {
		return nil
	}

	if mustExist {
		_, found, err := e.store.Get(ctx, types.KindText, e.id)
		if err != nil {
			return err
		}
		if !found {
			e.logger.Info("autosave: note deleted elsewhere, session cancelled", "id", e.id)
			e.mu.Lock()
			e.cancelLocked()
			e.mu.Unlock()
			return nil
		}
	}

	if created.IsZero() {
		created = e.clock.Now().UTC()
	}
	note := &types.TextNote{
		Meta: types.Meta{ID: e.id, Title: d.Title, Site: d.Site, Created: created},
		Body: d.Body,
	}
	if err := e.store.Put(ctx, note); err != nil {
		return fmt.Errorf("autosave %s: %w", e.id, err)
	}

	e.mu.Lock()
	e.created = created
	e.m.Persisted(d.Sum())
	e.mu.Unlock()
	e.logger.Debug("autosave: saved", "id", e.id, "final", final)
	return nil
}

func stop(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
