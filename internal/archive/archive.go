// Package archive exports a note store to a directory of JSONL files and
// imports it back.
//
// An archive holds textNotes.jsonl, audioNotes.jsonl and imageNotes.jsonl
// with one record per line in the record JSON shape, plus blobs.jsonl
// describing the files under blobs/. Every file is written atomically.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/sitenotes/internal/query"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// File and directory names inside an archive.
const (
	BlobManifest = "blobs.jsonl"
	BlobDir      = "blobs"
)

// blobEntry is one line of the blob manifest.
type blobEntry struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType"`
	File        string `json:"file"`
	Size        int64  `json:"size"`
}

// Report counts what an export or import touched.
type Report struct {
	Records map[types.Kind]int `json:"records"`
	Blobs   int                `json:"blobs"`
	Orphans int                `json:"orphans"` // media records with no blob
	Skipped int                `json:"skipped"` // malformed lines on import
}

// ErrNotArchive is returned by Import when dir is not a directory.
var ErrNotArchive = errors.New("not an archive directory")

func newReport() Report {
	return Report{Records: make(map[types.Kind]int, len(types.Kinds()))}
}

// Option configures Export and Import.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func fileFor(kind types.Kind) string {
	return kind.StoreName() + ".jsonl"
}

// Export writes every record and blob in store to dir, creating it if
// needed. Records are written oldest first.
func Export(ctx context.Context, store types.Store, dir string, opts ...Option) (Report, error) {
	o := buildOptions(opts)
	report := newReport()

	if err := os.MkdirAll(filepath.Join(dir, BlobDir), 0o755); err != nil {
		return report, fmt.Errorf("creating archive dir: %w", err)
	}

	var manifest []blobEntry
	for _, kind := range types.Kinds() {
		recs, err := store.GetAll(ctx, kind)
		if err != nil {
			return report, err
		}
		query.SortByCreated(recs, false)

		if err := writeJSONL(filepath.Join(dir, fileFor(kind)), recs); err != nil {
			return report, fmt.Errorf("writing %s: %w", fileFor(kind), err)
		}
		report.Records[kind] = len(recs)

		if !kind.IsMedia() {
			continue
		}
		for _, r := range recs {
			blob, ok, err := store.GetBlob(ctx, types.Payload(r))
			if err != nil {
				return report, err
			}
			if !ok {
				o.logger.Warn("archive: media record has no blob", "kind", string(kind), "id", r.Common().ID)
				report.Orphans++
				continue
			}
			entry := blobEntry{
				ID:          blob.ID,
				ContentType: blob.ContentType,
				File:        fmt.Sprintf("%06d.bin", len(manifest)),
				Size:        blob.Size(),
			}
			path := filepath.Join(dir, BlobDir, entry.File)
			err = writeAtomic(path, func(w io.Writer) error {
				_, err := w.Write(blob.Data)
				return err
			})
			if err != nil {
				return report, fmt.Errorf("writing blob %s: %w", blob.ID, err)
			}
			manifest = append(manifest, entry)
		}
	}

	if err := writeJSONL(filepath.Join(dir, BlobManifest), manifest); err != nil {
		return report, fmt.Errorf("writing %s: %w", BlobManifest, err)
	}
	report.Blobs = len(manifest)
	o.logger.Info("archive: exported", "dir", dir, "blobs", report.Blobs)
	return report, nil
}

// Import loads an archive from dir into store. Lines that are not valid
// JSON or do not match the schema are skipped and counted. Blobs are
// restored before records so no imported media record points at a missing
// blob. Existing records with the same ID are replaced.
func Import(ctx context.Context, store types.Store, dir string, opts ...Option) (Report, error) {
	o := buildOptions(opts)
	report := newReport()

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return report, fmt.Errorf("%w: %s", ErrNotArchive, dir)
	}

	v, err := newValidator()
	if err != nil {
		return report, fmt.Errorf("compiling archive schema: %w", err)
	}

	lines, err := readJSONL(filepath.Join(dir, BlobManifest))
	if err != nil {
		return report, err
	}
	for i, line := range lines {
		if err := validate(v.blob, line); err != nil {
			o.logger.Warn("archive: skipping blob entry", "line", i+1, "error", err)
			report.Skipped++
			continue
		}
		var entry blobEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			report.Skipped++
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, BlobDir, entry.File))
		if err != nil {
			o.logger.Warn("archive: skipping unreadable blob", "id", entry.ID, "error", err)
			report.Skipped++
			continue
		}
		if err := store.PutBlob(ctx, &types.Blob{ID: entry.ID, ContentType: entry.ContentType, Data: data}); err != nil {
			return report, err
		}
		report.Blobs++
	}

	for _, kind := range types.Kinds() {
		lines, err := readJSONL(filepath.Join(dir, fileFor(kind)))
		if err != nil {
			return report, err
		}
		for i, line := range lines {
			if err := validate(v.record, line); err != nil {
				o.logger.Warn("archive: skipping record", "file", fileFor(kind), "line", i+1, "error", err)
				report.Skipped++
				continue
			}
			r, err := types.DecodeRecord(line)
			if err != nil || r.Kind() != kind {
				o.logger.Warn("archive: skipping record", "file", fileFor(kind), "line", i+1, "error", err)
				report.Skipped++
				continue
			}
			if err := types.ValidateRecord(r); err != nil {
				o.logger.Warn("archive: skipping record", "file", fileFor(kind), "line", i+1, "error", err)
				report.Skipped++
				continue
			}
			if err := store.Put(ctx, r); err != nil {
				if !errors.Is(err, types.ErrIDInUse) {
					return report, err
				}
				o.logger.Warn("archive: skipping record", "file", fileFor(kind), "line", i+1, "error", err)
				report.Skipped++
				continue
			}
			report.Records[kind]++
		}
	}

	o.logger.Info("archive: imported", "dir", dir, "skipped", report.Skipped)
	return report, nil
}
