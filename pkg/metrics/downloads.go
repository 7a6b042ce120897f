package metrics

import (
	"time"
)

// ArtifactOutcome is what happened when an artifact was requested.
type ArtifactOutcome string

const (
	// ArtifactFetched means the artifact was downloaded and stored.
	ArtifactFetched ArtifactOutcome = "fetched"
	// ArtifactAbsent means the server does not have the artifact.
	ArtifactAbsent ArtifactOutcome = "absent"
	// ArtifactSkipped means the artifact was stored by an earlier run.
	ArtifactSkipped ArtifactOutcome = "skipped"
	// ArtifactError means fetching or storing the artifact failed.
	ArtifactError ArtifactOutcome = "error"
)

// ArtifactEvent describes the download of one artifact of a sub-build.
type ArtifactEvent struct {
	URL             string          `json:"url"`
	Kind            string          `json:"kind"`
	Outcome         ArtifactOutcome `json:"outcome"`
	Bytes           int             `json:"bytes,omitempty"`
	DurationSeconds float64         `json:"duration_seconds"`
	Error           string          `json:"error,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

func (ae ArtifactEvent) Store(mc *MetricsAgent) {
	mc.artifacts = append(mc.artifacts, ae)
	mc.artifactCount.WithLabelValues(ae.Kind, string(ae.Outcome)).Inc()
	if ae.Outcome == ArtifactFetched {
		mc.artifactBytes.WithLabelValues(ae.Kind).Add(float64(ae.Bytes))
	}
}

func (ae ArtifactEvent) Category() string {
	return "artifacts"
}

func (ae *ArtifactEvent) SetTimestamp(t time.Time) {
	ae.Timestamp = t
}

// RecordArtifact records the outcome of one artifact download.
func (mc *MetricsAgent) RecordArtifact(url, kind string, outcome ArtifactOutcome, size int, duration time.Duration, err error) {
	ae := &ArtifactEvent{
		URL:             url,
		Kind:            kind,
		Outcome:         outcome,
		Bytes:           size,
		DurationSeconds: duration.Seconds(),
	}
	if err != nil {
		ae.Error = err.Error()
	}
	mc.Record(ae)
}

// SnapshotEvent describes a downloaded snapshot.
type SnapshotEvent struct {
	Path            string    `json:"path"`
	Builds          int       `json:"builds"`
	SubBuilds       int       `json:"sub_builds"`
	FailedSubBuilds int       `json:"failed_sub_builds"`
	Bytes           int       `json:"bytes"`
	Timestamp       time.Time `json:"timestamp"`
}

func (se SnapshotEvent) Store(mc *MetricsAgent) {
	mc.snapshots = append(mc.snapshots, se)
	mc.snapshotBuilds.Set(float64(se.Builds))
}

func (se SnapshotEvent) Category() string {
	return "snapshots"
}

func (se *SnapshotEvent) SetTimestamp(t time.Time) {
	se.Timestamp = t
}

// RecordSnapshot records a stored snapshot.
func (mc *MetricsAgent) RecordSnapshot(path string, builds, subBuilds, failed, size int) {
	mc.Record(&SnapshotEvent{
		Path:            path,
		Builds:          builds,
		SubBuilds:       subBuilds,
		FailedSubBuilds: failed,
		Bytes:           size,
	})
}
