package types

// Blob is the binary payload of an audio or image note. It shares its ID
// with the note record it belongs to.
type Blob struct {
	ID          string
	ContentType string
	Data        []byte
}

// Size returns the payload length in bytes.
func (b *Blob) Size() int64 {
	return int64(len(b.Data))
}
