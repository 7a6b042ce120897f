package buildanalysisapi

import (
	"context"
	"errors"
)

// ArtifactKind names one of the files stored for a sub-build.
type ArtifactKind string

const (
	ArtifactConsoleText ArtifactKind = "consoleText"
	ArtifactTestReport  ArtifactKind = "testReport"
)

// ErrArtifactNotFound is returned when no artifact of the requested kind was
// stored for a sub-build. It is an expected state and not a failure.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactReader provides read access to stored artifacts, keyed by sub-build
// url.
type ArtifactReader interface {
	// HasArtifact reports whether an artifact was stored.
	HasArtifact(url string, kind ArtifactKind) (bool, error)
	// ReadArtifact returns the content and the storage location of an artifact.
	// ErrArtifactNotFound is returned when it is absent.
	ReadArtifact(url string, kind ArtifactKind) ([]byte, string, error)
}

// ArtifactWriter persists artifacts, keyed by sub-build url.
type ArtifactWriter interface {
	WriteArtifact(url string, kind ArtifactKind, data []byte) (string, error)
}

// BuildDataClient fetches raw data from the CI server.
type BuildDataClient interface {
	// GetSnapshot returns the raw build tree document.
	GetSnapshot(ctx context.Context) ([]byte, error)
	// GetArtifact returns the artifact for a sub-build. found is false when the
	// server does not have it, which is not an error.
	GetArtifact(ctx context.Context, url string, kind ArtifactKind) (data []byte, found bool, err error)
}
