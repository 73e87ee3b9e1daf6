// Package uuidutil generates identifiers that correlate log lines and audit
// records of one verification run.
package uuidutil

import "github.com/google/uuid"

// NewRunID returns a random (version 4) UUID string.
func NewRunID() string {
	return uuid.NewString()
}

// IsRunID reports whether s is a well-formed run identifier.
func IsRunID(s string) bool {
	u, err := uuid.Parse(s)
	return err == nil && u.Version() == 4 && len(s) == 36
}
