// Package storage provides temporary clip files and artifact publication.
// It defines the Storage interface (port) and implementations for local
// disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for temporary files and run artifacts.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// SaveArtifact stores a named output of a run and returns its local path.
	SaveArtifact(ctx context.Context, runID, name string, data io.Reader) (path string, err error)

	// OpenArtifact opens a stored artifact.
	// Returns ErrArtifactNotFound if it does not exist.
	OpenArtifact(ctx context.Context, runID, name string) (io.ReadCloser, error)

	// DeleteArtifacts removes every stored artifact of a run. Removing a run
	// without artifacts is not an error.
	DeleteArtifacts(ctx context.Context, runID string) error

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}

// ArtifactKey returns the object key of a run artifact.
func ArtifactKey(runID, name string) string {
	return "runs/" + runID + "/" + name
}
