// Package app wires the store, media binding, query service, navigation
// stack and autosave editors into the operations a presentation layer
// drives.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mesh-intelligence/sitenotes/internal/autosave"
	"github.com/mesh-intelligence/sitenotes/internal/clock"
	"github.com/mesh-intelligence/sitenotes/internal/media"
	"github.com/mesh-intelligence/sitenotes/internal/nav"
	"github.com/mesh-intelligence/sitenotes/internal/query"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// Screen identifies a kind of view.
type Screen string

const (
	ScreenHome   Screen = "home"
	ScreenSite   Screen = "site"
	ScreenNote   Screen = "note"
	ScreenEditor Screen = "editor"
)

// View is one entry of the navigation stack.
type View struct {
	Screen Screen
	Site   string
	Kind   types.Kind
	NoteID string
}

// Home is the root view.
var Home = View{Screen: ScreenHome}

// Notification is a transient message for the user. Err is set for
// failures.
type Notification struct {
	Message string
	Err     error
}

// Shell is the application core. At most one editor is open at a time and
// it always belongs to the editor view on top of the stack. Any change that
// takes that view off the stack closes the editor.
type Shell struct {
	store  types.Store
	media  *media.Binding
	query  *query.Service
	nav    *nav.Stack[View]
	config types.Config
	clock  clock.Clock
	logger *slog.Logger
	notify func(Notification)

	mu     sync.Mutex
	editor *autosave.Editor
}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Shell) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used by editors.
func WithClock(c clock.Clock) Option {
	return func(s *Shell) { s.clock = c }
}

// WithNotifier receives transient notifications.
func WithNotifier(fn func(Notification)) Option {
	return func(s *Shell) { s.notify = fn }
}

// New returns a shell over store showing the home view.
func New(store types.Store, config types.Config, opts ...Option) *Shell {
	s := &Shell{
		store:  store,
		query:  query.NewService(store),
		nav:    nav.New(Home),
		config: config.WithDefaults(),
		clock:  clock.Real(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		notify: func(Notification) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.media = media.New(store, media.WithLogger(s.logger), media.WithClock(s.clock.Now))
	s.nav.Subscribe(s.stackChanged)
	return s
}

// Nav returns the navigation stack.
func (s *Shell) Nav() *nav.Stack[View] { return s.nav }

// Query returns the query service.
func (s *Shell) Query() *query.Service { return s.query }

// Media returns the media binding.
func (s *Shell) Media() *media.Binding { return s.media }

// Current returns the top view.
func (s *Shell) Current() View { return s.nav.Current() }

// Editor returns the open editor, or nil.
func (s *Shell) Editor() *autosave.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor
}

// OpenSite shows the notes of one site. Leaving an editor closes it first.
func (s *Shell) OpenSite(ctx context.Context, site string) {
	s.leaveEditor(ctx)
	s.nav.Push(View{Screen: ScreenSite, Site: site})
}

// OpenNote shows one note. Leaving an editor closes it first.
func (s *Shell) OpenNote(ctx context.Context, kind types.Kind, id string) {
	s.leaveEditor(ctx)
	s.nav.Push(View{Screen: ScreenNote, Kind: kind, NoteID: id})
}

// NewTextNote opens an editor for a new note at site. Nothing is stored
// until the typing threshold is crossed.
func (s *Shell) NewTextNote(ctx context.Context, site string) *autosave.Editor {
	return s.NewTextNoteFrom(ctx, autosave.Draft{Site: site})
}

// NewTextNoteFrom opens an editor for a new note starting with d. The
// starting content does not count as typing.
func (s *Shell) NewTextNoteFrom(ctx context.Context, d autosave.Draft) *autosave.Editor {
	s.leaveEditor(ctx)

	e := autosave.NewEditor(s.store, append(s.editorOptions(), autosave.WithDraft(d))...)
	s.startEditor(e, d.Site)
	return e
}

// EditTextNote opens an editor for an existing text note.
func (s *Shell) EditTextNote(ctx context.Context, id string) (*autosave.Editor, error) {
	s.leaveEditor(ctx)

	e, err := autosave.OpenEditor(ctx, s.store, id, s.editorOptions()...)
	if err != nil {
		return nil, err
	}
	s.startEditor(e, e.Draft().Site)
	return e, nil
}

func (s *Shell) editorOptions() []autosave.Option {
	return []autosave.Option{
		autosave.WithClock(s.clock),
		autosave.WithLogger(s.logger),
		autosave.WithSettings(autosave.SettingsFromConfig(s.config.Autosave)),
		autosave.WithErrorHandler(func(err error) {
			s.notify(Notification{Message: "Autosave failed; keep editing to retry", Err: err})
		}),
	}
}

func (s *Shell) startEditor(e *autosave.Editor, site string) {
	s.mu.Lock()
	s.editor = e
	s.mu.Unlock()
	s.nav.Push(View{Screen: ScreenEditor, Site: site, Kind: types.KindText, NoteID: e.ID()})
}

// finishEditor closes the open editor with a bounded final save.
func (s *Shell) finishEditor(ctx context.Context) {
	s.mu.Lock()
	e := s.editor
	s.editor = nil
	s.mu.Unlock()
	s.closeEditor(ctx, e)
}

func (s *Shell) closeEditor(ctx context.Context, e *autosave.Editor) {
	if e == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.FinalSaveTimeout)
	defer cancel()
	if err := e.Close(ctx); err != nil {
		s.logger.Warn("app: final save failed", "id", e.ID(), "error", err)
		s.notify(Notification{Message: "Could not save note", Err: err})
	}
}

// leaveEditor closes the open editor and drops its view from the top of
// the stack.
func (s *Shell) leaveEditor(ctx context.Context) {
	s.finishEditor(ctx)
	if s.nav.Current().Screen == ScreenEditor {
		s.nav.Pop()
	}
}

// stackChanged closes an editor whose view is no longer on the stack, so
// no timer can write for a screen that is gone.
func (s *Shell) stackChanged(nav.Change[View]) {
	s.mu.Lock()
	e := s.editor
	s.mu.Unlock()
	if e == nil {
		return
	}
	for _, v := range s.nav.Entries() {
		if v.Screen == ScreenEditor && v.NoteID == e.ID() {
			return
		}
	}

	s.mu.Lock()
	if s.editor != e {
		s.mu.Unlock()
		return
	}
	s.editor = nil
	s.mu.Unlock()
	s.closeEditor(context.Background(), e)
}

// Back leaves the current view. Leaving an editor first makes its final
// save, bounded by the configured timeout, so the write is issued before
// the stack changes. It returns false when only the root view is left.
func (s *Shell) Back(ctx context.Context) bool {
	if s.nav.Current().Screen == ScreenEditor {
		s.finishEditor(ctx)
	}
	_, ok := s.nav.Pop()
	return ok
}

// DeleteNote deletes a note and returns to the home view. An editor open
// on the note is cancelled first so no pending save can bring it back; an
// editor open on another note makes its final save before the stack is
// reset.
func (s *Shell) DeleteNote(ctx context.Context, kind types.Kind, id string) error {
	s.mu.Lock()
	e := s.editor
	s.editor = nil
	s.mu.Unlock()
	if e != nil {
		if kind == types.KindText && e.ID() == id {
			e.Cancel()
		} else {
			s.closeEditor(ctx, e)
		}
	}

	var err error
	if kind.IsMedia() {
		err = s.media.DeleteMedia(ctx, kind, id)
	} else {
		err = s.store.Delete(ctx, kind, id)
	}
	if err != nil {
		if s.nav.Current().Screen == ScreenEditor {
			s.nav.Pop()
		}
		s.notify(Notification{Message: "Could not delete note", Err: err})
		return fmt.Errorf("deleting %s/%s: %w", kind, id, err)
	}

	s.nav.Replace(Home)
	s.notify(Notification{Message: "Note deleted"})
	return nil
}

// Close finishes any open editor. Call it on shutdown.
func (s *Shell) Close(ctx context.Context) {
	s.finishEditor(ctx)
}
