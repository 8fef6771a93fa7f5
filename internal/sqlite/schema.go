package sqlite

import "github.com/mesh-intelligence/sitenotes/pkg/types"

// Schema DDL. Statements are idempotent so an existing database keeps its
// data across opens.
const (
	createTextNotes = `CREATE TABLE IF NOT EXISTS text_notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    site TEXT NOT NULL,
    created TEXT NOT NULL
);`

	createAudioNotes = `CREATE TABLE IF NOT EXISTS audio_notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    uri TEXT NOT NULL,
    site TEXT NOT NULL,
    created TEXT NOT NULL
);`

	createImageNotes = `CREATE TABLE IF NOT EXISTS image_notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    uri TEXT NOT NULL,
    site TEXT NOT NULL,
    created TEXT NOT NULL
);`

	createMediaBlobs = `CREATE TABLE IF NOT EXISTS media_blobs (
    id TEXT PRIMARY KEY,
    content_type TEXT NOT NULL,
    size INTEGER NOT NULL,
    data BLOB NOT NULL,
    stored_at TEXT NOT NULL
);`
)

// Index DDL. Each record table carries the by-site index.
const (
	idxTextNotesSite  = `CREATE INDEX IF NOT EXISTS idx_text_notes_site ON text_notes(site);`
	idxAudioNotesSite = `CREATE INDEX IF NOT EXISTS idx_audio_notes_site ON audio_notes(site);`
	idxImageNotesSite = `CREATE INDEX IF NOT EXISTS idx_image_notes_site ON image_notes(site);`
)

// pragmas run on every new connection pool before the schema.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createTextNotes,
	createAudioNotes,
	createImageNotes,
	createMediaBlobs,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxTextNotesSite,
	idxAudioNotesSite,
	idxImageNotesSite,
}

// kindTable maps a note kind to its SQL table and payload column.
type kindTable struct {
	name    string // SQL table name
	payload string // body for text notes, uri for media notes
}

var kindTables = map[types.Kind]kindTable{
	types.KindText:  {name: "text_notes", payload: "body"},
	types.KindAudio: {name: "audio_notes", payload: "uri"},
	types.KindImage: {name: "image_notes", payload: "uri"},
}

// tableFor returns the table layout for kind.
func tableFor(kind types.Kind) (kindTable, error) {
	t, ok := kindTables[kind]
	if !ok {
		return kindTable{}, types.ErrInvalidKind
	}
	return t, nil
}
