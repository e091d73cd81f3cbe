// Package id provides unique identifier generation for runs.
package id

import "github.com/google/uuid"

// Generate creates a new unique run ID, a random (version 4) UUID.
// Example: 3f1c2a9e-7b4d-4f7e-9a51-0c2d6b8e1f00
func Generate() string {
	return uuid.NewString()
}
