package core

import "github.com/google/uuid"

// NewRunID generates the identifier of one invocation. It is a UUIDv7 so run
// records sort by start time.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
