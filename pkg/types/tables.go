package types

// Note kinds. A kind selects one of the three record stores.
const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// Logical store names, matching the persisted layout.
const (
	TextNotesStore  = "textNotes"
	AudioNotesStore = "audioNotes"
	ImageNotesStore = "imageNotes"
	MediaBlobsStore = "mediaBlobs"
)

// SiteIndex is the name of the secondary index every record store keeps on
// the site field.
const SiteIndex = "by-site"

// Kind identifies a note record variant.
type Kind string

// kindStores maps each kind to its logical store name.
var kindStores = map[Kind]string{
	KindText:  TextNotesStore,
	KindAudio: AudioNotesStore,
	KindImage: ImageNotesStore,
}

// Kinds lists every kind in display order.
func Kinds() []Kind {
	return []Kind{KindText, KindAudio, KindImage}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindStores[k]
	return ok
}

// IsMedia reports whether records of this kind are paired with a blob.
func (k Kind) IsMedia() bool {
	return k == KindAudio || k == KindImage
}

// StoreName returns the logical store name for the kind, or "" if unknown.
func (k Kind) StoreName() string {
	return kindStores[k]
}

func (k Kind) String() string { return string(k) }

// ParseKind converts a user-supplied string to a Kind.
// Returns ErrInvalidKind for anything else.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}
