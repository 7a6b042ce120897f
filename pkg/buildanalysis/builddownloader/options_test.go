package builddownloader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysislib"
	"github.com/openshift/jenkins-build-analyzer/pkg/metrics"
)

type fakeClient struct {
	snapshot    []byte
	snapshotErr error
	artifacts   map[string]string
	failing     sets.Set[string]
	delay       time.Duration

	lock        sync.Mutex
	requested   []string
	inFlight    int
	maxInFlight int
}

func artifactKey(url string, kind buildanalysisapi.ArtifactKind) string {
	return url + string(kind)
}

func (c *fakeClient) GetSnapshot(context.Context) ([]byte, error) {
	return c.snapshot, c.snapshotErr
}

func (c *fakeClient) GetArtifact(_ context.Context, url string, kind buildanalysisapi.ArtifactKind) ([]byte, bool, error) {
	key := artifactKey(url, kind)
	c.lock.Lock()
	c.requested = append(c.requested, key)
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	c.lock.Unlock()

	time.Sleep(c.delay)

	c.lock.Lock()
	defer c.lock.Unlock()
	c.inFlight--
	if c.failing.Has(key) {
		return nil, false, errors.New("connection reset by peer")
	}
	content, ok := c.artifacts[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(content), true, nil
}

func (c *fakeClient) requests() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	requested := append([]string(nil), c.requested...)
	sort.Strings(requested)
	return requested
}

const snapshot = `{"builds": [
  {"number": 2, "timestamp": 1456790400000, "duration": 600000, "subBuilds": [
    {"buildNumber": 11, "jobName": "run_trial", "result": "FAILURE", "url": "job/run_trial/11/", "duration": "4 min 2 sec"},
    {"buildNumber": 7, "jobName": "run_lint", "result": "FAILURE", "url": "job/run_lint/7/", "duration": 1000},
    {"buildNumber": 3, "jobName": "run_sphinx", "result": "SUCCESS", "url": "job/run_sphinx/3/", "duration": 2000},
    {"buildNumber": 4, "jobName": "run_acceptance", "result": null, "url": "job/run_acceptance/4/", "duration": null}
  ]},
  {"number": 1, "timestamp": 1456704000000, "duration": "bogus", "subBuilds": [
    {"buildNumber": 10, "jobName": "run_trial", "result": "FAILURE", "url": "job/run_trial/10/", "duration": 3000}
  ]},
  {"number": 0, "timestamp": 1456617600000}
]}`

func newOptions(t *testing.T, client *fakeClient, fs afero.Fs, maxConcurrent int) *BuildDownloaderOptions {
	now := time.Date(2016, time.March, 1, 12, 30, 0, 0, time.UTC)
	clock := clocktesting.NewFakePassiveClock(now)
	store := buildanalysislib.NewStore(fs, "/data")
	return &BuildDownloaderOptions{
		Client:                client,
		Store:                 store,
		Clock:                 clock,
		Metrics:               metrics.NewMetricsAgent(clock, fs, store.Root(), ""),
		MaxConcurrentRequests: maxConcurrent,
	}
}

func TestRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	client := &fakeClient{
		snapshot: []byte(snapshot),
		artifacts: map[string]string{
			artifactKey("job/run_trial/11/", buildanalysisapi.ArtifactConsoleText): "FAILED (failures=1)",
			artifactKey("job/run_trial/11/", buildanalysisapi.ArtifactTestReport):  `{"suites": []}`,
			artifactKey("job/run_lint/7/", buildanalysisapi.ArtifactConsoleText):   "ERROR:   lint: commands failed",
		},
		failing: sets.New[string](artifactKey("job/run_trial/10/", buildanalysisapi.ArtifactTestReport)),
	}
	o := newOptions(t, client, fs, 2)

	store := buildanalysislib.NewStore(fs, "/data")
	_, err := store.WriteArtifact("job/run_trial/10/", buildanalysisapi.ArtifactConsoleText, []byte("already here"))
	require.NoError(t, err)

	require.NoError(t, o.Run(context.Background()))

	snapshotPath, err := store.LatestSnapshotPath()
	require.NoError(t, err)
	assert.Equal(t, "/data/api.20160301T123000Z.json", snapshotPath)
	stored, err := afero.ReadFile(fs, snapshotPath)
	require.NoError(t, err)
	assert.Equal(t, snapshot, string(stored))

	expectedRequests := []string{
		"job/run_lint/7/consoleText",
		"job/run_lint/7/testReport",
		"job/run_trial/10/testReport",
		"job/run_trial/11/consoleText",
		"job/run_trial/11/testReport",
	}
	if diff := cmp.Diff(expectedRequests, client.requests()); diff != "" {
		t.Errorf("unexpected requests (-want +got):\n%s", diff)
	}

	var testCases = []struct {
		url      string
		kind     buildanalysisapi.ArtifactKind
		expected string
		exists   bool
	}{
		{url: "job/run_trial/11/", kind: buildanalysisapi.ArtifactConsoleText, expected: "FAILED (failures=1)", exists: true},
		{url: "job/run_trial/11/", kind: buildanalysisapi.ArtifactTestReport, expected: `{"suites": []}`, exists: true},
		{url: "job/run_lint/7/", kind: buildanalysisapi.ArtifactConsoleText, expected: "ERROR:   lint: commands failed", exists: true},
		{url: "job/run_lint/7/", kind: buildanalysisapi.ArtifactTestReport},
		{url: "job/run_trial/10/", kind: buildanalysisapi.ArtifactConsoleText, expected: "already here", exists: true},
		{url: "job/run_trial/10/", kind: buildanalysisapi.ArtifactTestReport},
		{url: "job/run_sphinx/3/", kind: buildanalysisapi.ArtifactConsoleText},
		{url: "job/run_acceptance/4/", kind: buildanalysisapi.ArtifactConsoleText},
	}
	for _, testCase := range testCases {
		t.Run(fmt.Sprintf("%s%s", testCase.url, testCase.kind), func(t *testing.T) {
			data, _, err := store.ReadArtifact(testCase.url, testCase.kind)
			if !testCase.exists {
				assert.ErrorIs(t, err, buildanalysisapi.ErrArtifactNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, string(data))
		})
	}

	outcomes := map[string]metrics.ArtifactOutcome{}
	for _, event := range o.Metrics.Artifacts() {
		outcomes[event.URL+event.Kind] = event.Outcome
	}
	expectedOutcomes := map[string]metrics.ArtifactOutcome{
		"job/run_trial/11/consoleText": metrics.ArtifactFetched,
		"job/run_trial/11/testReport":  metrics.ArtifactFetched,
		"job/run_lint/7/consoleText":   metrics.ArtifactFetched,
		"job/run_lint/7/testReport":    metrics.ArtifactAbsent,
		"job/run_trial/10/consoleText": metrics.ArtifactSkipped,
		"job/run_trial/10/testReport":  metrics.ArtifactError,
	}
	if diff := cmp.Diff(expectedOutcomes, outcomes); diff != "" {
		t.Errorf("unexpected outcomes (-want +got):\n%s", diff)
	}

	exists, err := afero.Exists(fs, "/data/"+metrics.DownloadMetricsJSON)
	require.NoError(t, err)
	assert.True(t, exists, "expected the metrics summary to be written")
}

func TestRunSnapshotFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	client := &fakeClient{snapshotErr: errors.New("503 Service Unavailable")}
	o := newOptions(t, client, fs, 1)

	require.Error(t, o.Run(context.Background()))
	_, err := buildanalysislib.NewStore(fs, "/data").LatestSnapshotPath()
	assert.ErrorIs(t, err, buildanalysislib.ErrNoSnapshot)
	assert.Empty(t, client.requests())
}

func TestRunRejectsInvalidSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := newOptions(t, &fakeClient{snapshot: []byte("<html>login</html>")}, fs, 1)

	require.Error(t, o.Run(context.Background()))
	_, err := buildanalysislib.NewStore(fs, "/data").LatestSnapshotPath()
	assert.ErrorIs(t, err, buildanalysislib.ErrNoSnapshot, "an invalid snapshot must not be stored")
}

func TestDownloadArtifactsConcurrency(t *testing.T) {
	var rows []buildanalysisapi.FlatSubBuild
	artifacts := map[string]string{}
	for i := 0; i < 12; i++ {
		url := fmt.Sprintf("job/run_trial/%d/", i)
		rows = append(rows, buildanalysisapi.FlatSubBuild{Number: i, JobName: "run_trial", Result: buildanalysisapi.ResultFailure, URL: url})
		artifacts[artifactKey(url, buildanalysisapi.ArtifactConsoleText)] = "log"
	}
	client := &fakeClient{artifacts: artifacts, delay: 5 * time.Millisecond}
	o := newOptions(t, client, afero.NewMemMapFs(), 3)
	go o.Metrics.Run()
	defer o.Metrics.Stop()

	require.NoError(t, o.downloadArtifacts(context.Background(), rows))
	assert.Len(t, client.requests(), 24)
	assert.LessOrEqual(t, client.maxInFlight, 3)
	assert.Greater(t, client.maxInFlight, 0)
}

func TestValidate(t *testing.T) {
	var testCases = []struct {
		name          string
		modify        func(*BuildDownloaderFlags)
		expectedError string
	}{
		{
			name:   "defaults",
			modify: func(*BuildDownloaderFlags) {},
		},
		{
			name:          "no concurrency",
			modify:        func(f *BuildDownloaderFlags) { f.MaxConcurrentRequests = 0 },
			expectedError: "--max-concurrent-requests must be at least 1, got 0",
		},
		{
			name:          "no data dir",
			modify:        func(f *BuildDownloaderFlags) { f.DataDirectory.DataDir = "" },
			expectedError: "missing --data-dir: like data",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			f := NewBuildDownloaderFlags()
			testCase.modify(f)
			err := f.Validate()
			if testCase.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, testCase.expectedError)
		})
	}
}
