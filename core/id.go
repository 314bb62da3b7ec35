package core

import "github.com/google/uuid"

// NewID generates a random UUID string used for messages, actions and tool
// call identifiers.
func NewID() string { return uuid.NewString() }
