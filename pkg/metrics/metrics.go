package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"k8s.io/utils/clock"
)

// MetricsEvent is the interface that every metric event must implement.
type MetricsEvent interface {
	// Store appends the event to the appropriate slice in the MetricsAgent.
	Store(mc *MetricsAgent)
	// Category returns the event's category.
	Category() string

	SetTimestamp(time.Time)
}

const DownloadMetricsJSON = "download-metrics.json"

// MetricsAgent collects the events of a download run. Once stopped, it writes
// a JSON summary of all events and, if configured, a Prometheus text file.
type MetricsAgent struct {
	events chan MetricsEvent
	wg     sync.WaitGroup
	mu     sync.Mutex

	clock        clock.PassiveClock
	fs           afero.Fs
	dataDir      string
	textfilePath string

	registry       *prometheus.Registry
	artifactCount  *prometheus.CounterVec
	artifactBytes  *prometheus.CounterVec
	snapshotBuilds prometheus.Gauge

	snapshots []SnapshotEvent
	artifacts []ArtifactEvent
}

// NewMetricsAgent creates and returns a new MetricsAgent. The JSON summary is
// written into dataDir. An empty textfilePath disables the Prometheus output.
func NewMetricsAgent(clock clock.PassiveClock, fs afero.Fs, dataDir, textfilePath string) *MetricsAgent {
	mc := &MetricsAgent{
		events:       make(chan MetricsEvent),
		clock:        clock,
		fs:           fs,
		dataDir:      dataDir,
		textfilePath: textfilePath,
		registry:     prometheus.NewRegistry(),
		artifactCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jenkins_build_analyzer_artifact_fetches_total",
			Help: "Artifact fetches by kind and outcome.",
		}, []string{"kind", "outcome"}),
		artifactBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jenkins_build_analyzer_artifact_bytes_total",
			Help: "Bytes of artifacts written to the data directory.",
		}, []string{"kind"}),
		snapshotBuilds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jenkins_build_analyzer_snapshot_builds",
			Help: "Number of builds in the last downloaded snapshot.",
		}),
	}
	mc.registry.MustRegister(mc.artifactCount, mc.artifactBytes, mc.snapshotBuilds)
	mc.wg.Add(1)
	return mc
}

// Run listens for events on the events channel until the channel is closed.
// Once the events channel is closed, we flush the collected events.
func (mc *MetricsAgent) Run() {
	defer mc.wg.Done()
	for ev := range mc.events {
		logrus.WithField("category", ev.Category()).Trace("Recording event")
		mc.mu.Lock()
		ev.Store(mc)
		mc.mu.Unlock()
	}
	mc.flush()
}

// Record records an event to the MetricsAgent.
func (mc *MetricsAgent) Record(ev MetricsEvent) {
	ev.SetTimestamp(mc.clock.Now())
	mc.events <- ev
}

// Stop closes the events channel and blocks until flush completes.
func (mc *MetricsAgent) Stop() {
	close(mc.events)
	mc.wg.Wait()
}

// Artifacts returns the artifact events stored so far.
func (mc *MetricsAgent) Artifacts() []ArtifactEvent {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return append([]ArtifactEvent(nil), mc.artifacts...)
}

// flush writes the accumulated events to the data directory.
func (mc *MetricsAgent) flush() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	logrus.Infof("Flushing %d artifact events", len(mc.artifacts))

	output := map[string]any{
		"snapshots": mc.snapshots,
		"artifacts": mc.artifacts,
	}
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal download metrics")
		return
	}
	if err := mc.fs.MkdirAll(mc.dataDir, 0755); err != nil {
		logrus.WithError(err).Error("Failed to create data directory")
		return
	}
	path := filepath.Join(mc.dataDir, DownloadMetricsJSON)
	if err := afero.WriteFile(mc.fs, path, data, 0644); err != nil {
		logrus.WithError(err).Error("Failed to save download metrics")
	}

	if mc.textfilePath == "" {
		return
	}
	families, err := mc.registry.Gather()
	if err != nil {
		logrus.WithError(err).Error("Failed to gather download metrics")
		return
	}
	buf := &bytes.Buffer{}
	if err := writeTextfile(buf, families); err != nil {
		logrus.WithError(err).Error("Failed to encode download metrics")
		return
	}
	if err := afero.WriteFile(mc.fs, mc.textfilePath, buf.Bytes(), 0644); err != nil {
		logrus.WithError(err).WithField("path", mc.textfilePath).Error("Failed to save download metrics")
	}
}

func writeTextfile(w io.Writer, families []*dto.MetricFamily) error {
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return fmt.Errorf("failed to encode %s: %w", family.GetName(), err)
		}
	}
	return nil
}
