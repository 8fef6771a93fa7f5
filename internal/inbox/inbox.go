// Package inbox imports media files dropped into a watched directory.
//
// A file is imported once it has stopped changing for the settle window:
// it is classified by extension, saved as a media note for the configured
// site and moved into the imported/ subdirectory. Files of other types are
// left alone.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// ImportedDir is the subdirectory imported files are moved to.
const ImportedDir = "imported"

// DefaultSettle is how long a file must be quiet before it is imported.
const DefaultSettle = 500 * time.Millisecond

// ErrUnsupported is returned for files that are neither audio nor image.
var ErrUnsupported = errors.New("unsupported media file")

var extKinds = map[string]types.Kind{
	".jpg":  types.KindImage,
	".jpeg": types.KindImage,
	".png":  types.KindImage,
	".gif":  types.KindImage,
	".webp": types.KindImage,
	".heic": types.KindImage,
	".mp3":  types.KindAudio,
	".m4a":  types.KindAudio,
	".aac":  types.KindAudio,
	".ogg":  types.KindAudio,
	".oga":  types.KindAudio,
	".opus": types.KindAudio,
	".wav":  types.KindAudio,
	".webm": types.KindAudio,
	".flac": types.KindAudio,
}

var extTypes = map[string]string{
	".heic": "image/heic",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".flac": "audio/flac",
}

// Classify returns the note kind for a file name.
func Classify(name string) (types.Kind, bool) {
	k, ok := extKinds[strings.ToLower(filepath.Ext(name))]
	return k, ok
}

// ContentType sniffs data, falling back to the file extension when the
// content is not recognised.
func ContentType(name string, data []byte) string {
	ct := http.DetectContentType(data)
	if ct != "application/octet-stream" {
		return ct
	}
	ext := strings.ToLower(filepath.Ext(name))
	if byExt, ok := extTypes[ext]; ok {
		return byExt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return ct
}

// Saver stores media notes. *media.Binding implements it.
type Saver interface {
	SaveMedia(ctx context.Context, kind types.Kind, data []byte, contentType, site, title string) (types.Record, error)
}

// Inbox watches one directory.
type Inbox struct {
	dir      string
	site     string
	saver    Saver
	settle   time.Duration
	logger   *slog.Logger
	onImport func(types.Record)
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithSettle sets the quiet period before a file is imported.
func WithSettle(d time.Duration) Option {
	return func(in *Inbox) { in.settle = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Inbox) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithImportHandler is called after each successful import.
func WithImportHandler(fn func(types.Record)) Option {
	return func(in *Inbox) { in.onImport = fn }
}

// New returns an inbox that imports files from dir as notes at site.
func New(dir, site string, saver Saver, opts ...Option) *Inbox {
	in := &Inbox{
		dir:    dir,
		site:   site,
		saver:  saver,
		settle: DefaultSettle,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// ImportFile saves one file and moves it to the imported directory.
func (in *Inbox) ImportFile(ctx context.Context, path string) (types.Record, error) {
	kind, ok := Classify(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	name := filepath.Base(path)
	title := strings.TrimSuffix(name, filepath.Ext(name))
	rec, err := in.saver.SaveMedia(ctx, kind, data, ContentType(name, data), in.site, title)
	if err != nil {
		return nil, err
	}

	doneDir := filepath.Join(in.dir, ImportedDir)
	if err := os.MkdirAll(doneDir, 0o755); err != nil {
		return rec, fmt.Errorf("creating %s: %w", doneDir, err)
	}
	if err := os.Rename(path, filepath.Join(doneDir, name)); err != nil {
		return rec, fmt.Errorf("moving %s: %w", name, err)
	}

	in.logger.Info("inbox: imported", "file", name, "kind", string(kind), "id", rec.Common().ID)
	if in.onImport != nil {
		in.onImport(rec)
	}
	return rec, nil
}

// Scan imports the supported files already in the directory.
func (in *Inbox) Scan(ctx context.Context) ([]types.Record, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", in.dir, err)
	}
	var out []types.Record
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := Classify(e.Name()); !ok {
			continue
		}
		rec, err := in.ImportFile(ctx, filepath.Join(in.dir, e.Name()))
		if err != nil {
			in.logger.Warn("inbox: import failed", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Run watches the directory until ctx is done. Files present at start are
// imported first.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", in.dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(in.dir); err != nil {
		return fmt.Errorf("watching %s: %w", in.dir, err)
	}

	if _, err := in.Scan(ctx); err != nil {
		return err
	}

	ready := make(chan string, 32)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if _, ok := Classify(event.Name); !ok {
				continue
			}
			path := event.Name
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(in.settle, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			delete(timers, path)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if _, err := in.ImportFile(ctx, path); err != nil {
				in.logger.Warn("inbox: import failed", "file", filepath.Base(path), "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.logger.Warn("inbox: watcher error", "error", err)
		}
	}
}
