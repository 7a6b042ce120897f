package buildanalyzer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysislib"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildresultaggregator"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/failureclassifier"
	"github.com/openshift/jenkins-build-analyzer/pkg/results"
)

// Builds 1 and 2 ran on 2016-03-01, builds 3 and 4 on 2016-03-03.
const snapshot = `{"builds": [
  {"number": 4, "timestamp": 1457002800000, "duration": 1800000, "subBuilds": [
    {"buildNumber": 4, "jobName": "run_trial", "result": "FAILURE", "url": "job/run_trial/4/", "duration": 900000},
    {"buildNumber": 4, "jobName": "run_lint", "result": "SUCCESS", "url": "job/run_lint/4/", "duration": 60000}
  ]},
  {"number": 3, "timestamp": 1456999200000, "duration": 1800000, "subBuilds": [
    {"buildNumber": 3, "jobName": "run_trial", "result": "SUCCESS", "url": "job/run_trial/3/", "duration": 900000},
    {"buildNumber": 3, "jobName": "run_lint", "result": "SUCCESS", "url": "job/run_lint/3/", "duration": 60000}
  ]},
  {"number": 2, "timestamp": 1456833600000, "duration": "1 hr 30 min", "subBuilds": [
    {"buildNumber": 2, "jobName": "run_trial", "result": "SUCCESS", "url": "job/run_trial/2/", "duration": "20 min"},
    {"buildNumber": 2, "jobName": "run_lint", "result": "FAILURE", "url": "job/run_lint/2/", "duration": 60000}
  ]},
  {"number": 1, "timestamp": 1456826400000, "duration": 3600000, "subBuilds": [
    {"buildNumber": 1, "jobName": "run_trial", "result": "FAILURE", "url": "job/run_trial/1/", "duration": 600000},
    {"buildNumber": 1, "jobName": "run_lint", "result": "SUCCESS", "url": "job/run_lint/1/", "duration": 60000}
  ]}
]}`

const testReport = `{"suites": [{"cases": [
  {"className": "flocker.node.test.test_deploy.DeployTests", "name": "test_deploy", "status": "FAILED"},
  {"className": "flocker.node.test.test_deploy.DeployTests", "name": "test_other", "status": "PASSED"}
]}]}`

func newStore(t *testing.T) *buildanalysislib.Store {
	t.Helper()
	store := buildanalysislib.NewStore(afero.NewMemMapFs(), "/data")
	_, err := store.WriteSnapshot([]byte(`{"builds": []}`), time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = store.WriteSnapshot([]byte(snapshot), time.Date(2016, time.March, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = store.WriteArtifact("job/run_trial/1/", buildanalysisapi.ArtifactTestReport, []byte(testReport))
	require.NoError(t, err)
	_, err = store.WriteArtifact("job/run_trial/1/", buildanalysisapi.ArtifactConsoleText, []byte("FAILED (failures=1)"))
	require.NoError(t, err)
	_, err = store.WriteArtifact("job/run_lint/2/", buildanalysisapi.ArtifactConsoleText, []byte("ERROR:   lint: commands failed"))
	require.NoError(t, err)
	return store
}

func newOptions(store *buildanalysislib.Store, out *bytes.Buffer, since *time.Time, format OutputFormat) *BuildAnalyzerOptions {
	return &BuildAnalyzerOptions{
		Store:        store,
		Classifier:   failureclassifier.New(store, failureclassifier.WithTriageOutput(out)),
		Since:        since,
		Location:     time.UTC,
		Top:          20,
		OutputFormat: format,
		Out:          out,
	}
}

func TestAnalyze(t *testing.T) {
	store := newStore(t)
	loaded, _, err := store.LoadLatestSnapshot()
	require.NoError(t, err)

	report, err := newOptions(store, &bytes.Buffer{}, nil, OutputFormatText).Analyze(loaded.Builds)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Builds)
	assert.Equal(t, map[buildanalysisapi.Result]int{buildanalysisapi.ResultSuccess: 1, buildanalysisapi.ResultFailure: 3}, report.Results)
	expectedJobs := []buildresultaggregator.Count{{Name: "run_trial", Count: 2}, {Name: "run_lint", Count: 1}}
	if diff := cmp.Diff(expectedJobs, report.TopFailingJobs); diff != "" {
		t.Errorf("unexpected failing jobs (-want +got):\n%s", diff)
	}
	expectedClassifications := []buildresultaggregator.Count{
		{Name: "Missing log", Count: 1},
		{Name: "Lint failures", Count: 1},
		{Name: "Failed Test", Count: 1},
	}
	if diff := cmp.Diff(expectedClassifications, report.Classifications); diff != "" {
		t.Errorf("unexpected classifications (-want +got):\n%s", diff)
	}
	expectedTests := []buildresultaggregator.Count{{Name: "flocker.node.test.test_deploy.DeployTests.test_deploy", Count: 1}}
	if diff := cmp.Diff(expectedTests, report.TopFailingTests); diff != "" {
		t.Errorf("unexpected failing tests (-want +got):\n%s", diff)
	}

	require.Len(t, report.DailyTimeToMerge, 3)
	// build 1: 60 min + 20 min for the run_trial retry, build 2: 90 min + 1 min for the run_lint retry
	assert.Equal(t, 85*time.Minute+30*time.Second, *report.DailyTimeToMerge[0].Mean)
	assert.True(t, report.DailyTimeToMerge[1].NoData())
	assert.Nil(t, report.DailyTimeToMerge[2].Mean, "the last run of run_trial failed")
}

func TestAnalyzeKeepsFailuresWithoutURL(t *testing.T) {
	store := newStore(t)
	loaded, _, err := store.LoadLatestSnapshot()
	require.NoError(t, err)
	builds := append(loaded.Builds, buildanalysisapi.BuildRecord{
		Number:    5,
		Timestamp: 1457006400000,
		SubBuilds: []buildanalysisapi.SubBuildRecord{{BuildNumber: 5, JobName: "run_trial", Result: buildanalysisapi.ResultFailure}},
	})

	report, err := newOptions(store, &bytes.Buffer{}, nil, OutputFormatText).Analyze(builds)
	require.NoError(t, err)
	require.NotNil(t, report)

	missing := 0
	for _, count := range report.Classifications {
		if count.Name == failureclassifier.LabelMissingLog {
			missing = count.Count
		}
	}
	assert.Equal(t, 2, missing, "the failure without a url should count as a missing log")
}

func TestRun(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, newOptions(newStore(t), out, nil, OutputFormatText).Run(context.Background()))
	output := out.String()

	assert.Contains(t, output, "Analyzed 4 builds from /data/api.20160304T000000Z.json")
	titles := []string{
		"Top-level build results",
		"Success percentage by week",
		"Jobs with the most failures",
		"Classification of failures",
		"Failure classifications by day",
		"Tests with the most failures",
		"Time to merge by day",
	}
	last := -1
	for _, title := range titles {
		index := strings.Index(output, title)
		if index <= last {
			t.Errorf("expected %q to follow the previous section", title)
		}
		last = index
	}
	for _, expected := range []string{"Lint failures", "Missing log", "flocker.node.test.test_deploy.DeployTests.test_deploy", "2016-03-02", noData, unknown, "1h25m30s"} {
		assert.Contains(t, output, expected)
	}
}

func TestRunSince(t *testing.T) {
	out := &bytes.Buffer{}
	since := time.Date(2016, time.March, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, newOptions(newStore(t), out, &since, OutputFormatMarkdown).Run(context.Background()))
	output := out.String()

	assert.Contains(t, output, "Analyzed 2 builds")
	assert.Contains(t, output, "| run_trial")
	assert.NotContains(t, output, "run_lint |", "run_lint did not fail since 2016-03-02")
	assert.NotContains(t, output, "Lint failures")
}

func TestRunWithoutSnapshot(t *testing.T) {
	store := buildanalysislib.NewStore(afero.NewMemMapFs(), "/data")
	err := newOptions(store, &bytes.Buffer{}, nil, OutputFormatText).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, buildanalysislib.ErrNoSnapshot))
	assert.Equal(t, string(results.ReasonNoSnapshot), results.FullReason(err))
	assert.Contains(t, err.Error(), "haven't downloaded any data yet")
}
