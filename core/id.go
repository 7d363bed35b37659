package core

import "github.com/google/uuid"

// NewID generates a unique identifier for traces, observations and runs.
func NewID() string {
	return uuid.New().String()
}
