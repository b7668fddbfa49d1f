package util

import "github.com/google/uuid"

// NewID returns a random document id.
func NewID() string {
	return uuid.NewString()
}
