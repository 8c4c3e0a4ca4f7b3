package utils

import "github.com/google/uuid"

// NewRequestID returns a unique identifier for one inbound request.
// Traces and persisted messages share this ID.
func NewRequestID() string {
	return uuid.NewString()
}
