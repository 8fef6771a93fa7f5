package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// createdLayout is ISO-8601 in UTC with millisecond precision.
const createdLayout = "2006-01-02T15:04:05.000Z07:00"

// easyLayout is the human-readable M/D/YYYY date shown in lists.
const easyLayout = "1/2/2006"

// FormatCreated renders a creation timestamp for persistence.
func FormatCreated(t time.Time) string {
	return t.UTC().Format(createdLayout)
}

// ParseCreated parses a persisted creation timestamp. Any RFC 3339 value is
// accepted, with or without fractional seconds.
func ParseCreated(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created %q: %w", s, err)
	}
	return t.UTC(), nil
}

// EasyDate derives the display date of a creation timestamp in the process
// local time zone. It is never stored independently of created.
func EasyDate(created time.Time) string {
	if created.IsZero() {
		return ""
	}
	return created.Local().Format(easyLayout)
}

// Meta holds the fields every note kind shares.
type Meta struct {
	ID      string    // Opaque unique ID, shared with the blob for media kinds.
	Title   string    // May be empty.
	Site    string    // Point-of-interest name; a weak reference.
	Created time.Time // Immutable after first write.
}

// Common returns the shared fields. Embedding Meta gives every variant this
// method.
func (m *Meta) Common() *Meta { return m }

// EasyCreatedTime returns the derived display date.
func (m *Meta) EasyCreatedTime() string { return EasyDate(m.Created) }

// Record is one persisted note. The concrete type is one of *TextNote,
// *AudioNote or *ImageNote.
type Record interface {
	Kind() Kind
	Common() *Meta
	Clone() Record
}

// TextNote is a note whose payload is rich-text markup.
type TextNote struct {
	Meta
	Body string
}

// AudioNote is a note whose payload is an audio blob keyed by URI.
type AudioNote struct {
	Meta
	URI string // Equal to ID; the blob-store key, not a path.
}

// ImageNote is a note whose payload is an image blob keyed by URI.
type ImageNote struct {
	Meta
	URI string // Equal to ID; the blob-store key, not a path.
}

func (n *TextNote) Kind() Kind  { return KindText }
func (n *AudioNote) Kind() Kind { return KindAudio }
func (n *ImageNote) Kind() Kind { return KindImage }

func (n *TextNote) Clone() Record  { c := *n; return &c }
func (n *AudioNote) Clone() Record { c := *n; return &c }
func (n *ImageNote) Clone() Record { c := *n; return &c }

// NewRecord returns an empty record of the given kind.
func NewRecord(kind Kind) (Record, error) {
	switch kind {
	case KindText:
		return &TextNote{}, nil
	case KindAudio:
		return &AudioNote{}, nil
	case KindImage:
		return &ImageNote{}, nil
	default:
		return nil, ErrInvalidKind
	}
}

// NewMediaNote builds an audio or image record whose URI equals its ID.
func NewMediaNote(kind Kind, meta Meta) (Record, error) {
	switch kind {
	case KindAudio:
		return &AudioNote{Meta: meta, URI: meta.ID}, nil
	case KindImage:
		return &ImageNote{Meta: meta, URI: meta.ID}, nil
	default:
		return nil, ErrInvalidKind
	}
}

// Payload returns the kind-specific field: the body of a text note or the
// URI of a media note.
func Payload(r Record) string {
	switch n := r.(type) {
	case *TextNote:
		return n.Body
	case *AudioNote:
		return n.URI
	case *ImageNote:
		return n.URI
	default:
		return ""
	}
}

// SetPayload sets the kind-specific field.
func SetPayload(r Record, payload string) {
	switch n := r.(type) {
	case *TextNote:
		n.Body = payload
	case *AudioNote:
		n.URI = payload
	case *ImageNote:
		n.URI = payload
	}
}

// ValidateRecord checks the structural invariants a store enforces on write.
func ValidateRecord(r Record) error {
	if r == nil {
		return ErrInvalidRecord
	}
	if !r.Kind().Valid() {
		return ErrInvalidKind
	}
	m := r.Common()
	if m.ID == "" {
		return ErrInvalidID
	}
	if m.Created.IsZero() {
		return fmt.Errorf("%w: created is not set", ErrInvalidRecord)
	}
	if r.Kind().IsMedia() && Payload(r) != m.ID {
		return fmt.Errorf("%w: uri must equal id", ErrInvalidRecord)
	}
	return nil
}

// recordJSON is the wire shape shared by every kind. Exactly one of Body and
// URI is emitted, chosen by Kind.
type recordJSON struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Body            *string `json:"body,omitempty"`
	URI             *string `json:"uri,omitempty"`
	Site            string  `json:"site"`
	Created         string  `json:"created"`
	EasyCreatedTime string  `json:"easyCreatedTime"`
	Kind            Kind    `json:"kind"`
}

func marshalRecord(r Record) ([]byte, error) {
	m := r.Common()
	payload := Payload(r)
	out := recordJSON{
		ID:              m.ID,
		Title:           m.Title,
		Site:            m.Site,
		Created:         FormatCreated(m.Created),
		EasyCreatedTime: EasyDate(m.Created),
		Kind:            r.Kind(),
	}
	if r.Kind() == KindText {
		out.Body = &payload
	} else {
		out.URI = &payload
	}
	// Bodies are markup; keep it readable in exported files.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func unmarshalRecord(data []byte, r Record) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Kind != "" && in.Kind != r.Kind() {
		return fmt.Errorf("%w: kind %q decoded as %q", ErrInvalidRecord, in.Kind, r.Kind())
	}
	created, err := ParseCreated(in.Created)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	m := r.Common()
	m.ID = in.ID
	m.Title = in.Title
	m.Site = in.Site
	m.Created = created
	// easyCreatedTime is derived from created; the incoming value is ignored.
	switch {
	case r.Kind() == KindText && in.Body != nil:
		SetPayload(r, *in.Body)
	case r.Kind() != KindText && in.URI != nil:
		SetPayload(r, *in.URI)
	}
	return nil
}

func (n *TextNote) MarshalJSON() ([]byte, error)  { return marshalRecord(n) }
func (n *AudioNote) MarshalJSON() ([]byte, error) { return marshalRecord(n) }
func (n *ImageNote) MarshalJSON() ([]byte, error) { return marshalRecord(n) }

func (n *TextNote) UnmarshalJSON(data []byte) error  { return unmarshalRecord(data, n) }
func (n *AudioNote) UnmarshalJSON(data []byte) error { return unmarshalRecord(data, n) }
func (n *ImageNote) UnmarshalJSON(data []byte) error { return unmarshalRecord(data, n) }

// DecodeRecord decodes a record of any kind, dispatching on its kind field.
func DecodeRecord(data []byte) (Record, error) {
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	r, err := NewRecord(head.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}
