package buildanalysislib

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
	"github.com/openshift/jenkins-build-analyzer/pkg/results"
)

const (
	snapshotPrefix     = "api."
	snapshotSuffix     = ".json"
	snapshotTimeFormat = "20060102T150405Z"
	logsDir            = "logs"
)

// ErrNoSnapshot means the data directory does not hold any snapshot.
var ErrNoSnapshot = errors.New("haven't downloaded any data yet")

// Store lays out snapshots and artifacts below a data directory:
//
//	<root>/api.<UTC timestamp>.json
//	<root>/logs/<sub-build url path>/consoleText
//	<root>/logs/<sub-build url path>/testReport
type Store struct {
	fs   afero.Fs
	root string
}

var _ buildanalysisapi.ArtifactReader = &Store{}
var _ buildanalysisapi.ArtifactWriter = &Store{}

func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// NewOSStore returns a Store on the local disk.
func NewOSStore(root string) *Store {
	return NewStore(afero.NewOsFs(), root)
}

func (s *Store) Root() string {
	return s.root
}

// Fs exposes the filesystem the store writes to.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// SnapshotPath returns the path a snapshot captured at the given time is
// stored at. Names sort in capture order.
func (s *Store) SnapshotPath(capturedAt time.Time) string {
	return filepath.Join(s.root, snapshotPrefix+capturedAt.UTC().Format(snapshotTimeFormat)+snapshotSuffix)
}

// WriteSnapshot stores a raw snapshot document.
func (s *Store) WriteSnapshot(data []byte, capturedAt time.Time) (string, error) {
	if err := s.fs.MkdirAll(s.root, 0755); err != nil {
		return "", results.ForReason(results.ReasonWritingArtifact).WithError(err).Errorf("failed to create data directory %s: %v", s.root, err)
	}
	path := s.SnapshotPath(capturedAt)
	if err := afero.WriteFile(s.fs, path, data, 0644); err != nil {
		return "", results.ForReason(results.ReasonWritingArtifact).WithError(err).Errorf("failed to write snapshot %s: %v", path, err)
	}
	return path, nil
}

// LatestSnapshotPath returns the most recent snapshot file.
func (s *Store) LatestSnapshotPath() (string, error) {
	matches, err := afero.Glob(s.fs, filepath.Join(s.root, snapshotPrefix+"*"+snapshotSuffix))
	if err != nil {
		return "", results.ForReason(results.ReasonLoadingSnapshot).WithError(err).Errorf("failed to list snapshots in %s: %v", s.root, err)
	}
	if len(matches) == 0 {
		return "", results.ForReason(results.ReasonNoSnapshot).WithError(ErrNoSnapshot).Errorf("no snapshot found in %s: %v", s.root, ErrNoSnapshot)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// LoadLatestSnapshot reads and decodes the most recent snapshot.
func (s *Store) LoadLatestSnapshot() (*buildanalysisapi.Snapshot, string, error) {
	path, err := s.LatestSnapshotPath()
	if err != nil {
		return nil, "", err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, path, results.ForReason(results.ReasonLoadingSnapshot).WithError(err).Errorf("failed to read snapshot %s: %v", path, err)
	}
	snapshot, err := buildanalysisapi.ParseSnapshot(data)
	if err != nil {
		return nil, path, results.ForReason(results.ReasonLoadingSnapshot).WithError(err).Errorf("failed to load snapshot %s: %v", path, err)
	}
	return snapshot, path, nil
}

// ArtifactDir maps a sub-build url onto the directory holding its artifacts.
// Absolute urls contribute only their path.
func (s *Store) ArtifactDir(rawURL string) (string, error) {
	segments, err := urlPathSegments(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{s.root, logsDir}, segments...)...), nil
}

func urlPathSegments(rawURL string) ([]string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q as url: %w", rawURL, err)
	}
	var segments []string
	for _, segment := range strings.Split(parsed.Path, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("improper url %q containing backward reference", rawURL)
		}
		segments = append(segments, segment)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("url %q does not identify a build", rawURL)
	}
	return segments, nil
}

// ArtifactPath returns where the artifact of the given kind is stored.
func (s *Store) ArtifactPath(rawURL string, kind buildanalysisapi.ArtifactKind) (string, error) {
	dir, err := s.ArtifactDir(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, string(kind)), nil
}

func (s *Store) HasArtifact(rawURL string, kind buildanalysisapi.ArtifactKind) (bool, error) {
	path, err := s.ArtifactPath(rawURL, kind)
	if err != nil {
		return false, err
	}
	info, err := s.fs.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, results.ForReason(results.ReasonReadingArtifact).WithError(err).Errorf("failed to stat %s: %v", path, err)
	}
	return !info.IsDir(), nil
}

func (s *Store) ReadArtifact(rawURL string, kind buildanalysisapi.ArtifactKind) ([]byte, string, error) {
	path, err := s.ArtifactPath(rawURL, kind)
	if err != nil {
		return nil, "", err
	}
	data, err := afero.ReadFile(s.fs, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, path, fmt.Errorf("%s for %s: %w", kind, rawURL, buildanalysisapi.ErrArtifactNotFound)
	case err != nil:
		return nil, path, results.ForReason(results.ReasonReadingArtifact).WithError(err).Errorf("failed to read %s: %v", path, err)
	}
	return data, path, nil
}

func (s *Store) WriteArtifact(rawURL string, kind buildanalysisapi.ArtifactKind, data []byte) (string, error) {
	path, err := s.ArtifactPath(rawURL, kind)
	if err != nil {
		return "", results.ForReason(results.ReasonWritingArtifact).ForError(err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", results.ForReason(results.ReasonWritingArtifact).WithError(err).Errorf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(s.fs, path, data, 0644); err != nil {
		// attempt to remove the file so we don't leave half the content behind
		_ = s.fs.Remove(path)
		return "", results.ForReason(results.ReasonWritingArtifact).WithError(err).Errorf("failed to write %s: %v", path, err)
	}
	return path, nil
}
