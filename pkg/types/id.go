package types

import "github.com/google/uuid"

// NewID returns a fresh note ID. IDs are UUID v7 strings so they sort by
// creation time; v4 is used if v7 generation fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
