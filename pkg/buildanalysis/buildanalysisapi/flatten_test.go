package buildanalysisapi

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

func int64Ptr(i int64) *int64 {
	return &i
}

func TestFlattenBuilds(t *testing.T) {
	snapshot, err := ParseSnapshot([]byte(`{"builds": [
		{
			"number": 12,
			"timestamp": 1456790400000,
			"duration": 5400000,
			"subBuilds": [
				{"buildNumber": 3, "jobName": "run_lint", "result": "SUCCESS", "url": "job/run_lint/3/", "duration": "45 sec"},
				{"buildNumber": 7, "jobName": "run_trial", "result": "FAILURE", "url": "job/run_trial/7/", "timestamp": 1456791000000, "duration": "1 hr 2 min"}
			]
		},
		{
			"number": 13,
			"timestamp": 1456794000000,
			"duration": "1 hr"
		},
		{
			"number": 14,
			"timestamp": 1456797600000,
			"subBuilds": [
				{"buildNumber": 8, "jobName": "run_trial", "result": null, "url": "job/run_trial/8/", "duration": "eventually"}
			]
		}
	]}`))
	if err != nil {
		t.Fatalf("failed to parse snapshot: %v", err)
	}

	rows, err := FlattenBuilds(snapshot.Builds, time.UTC)
	if !errors.Is(err, ErrUnparseableDuration) {
		t.Errorf("expected the bad duration to be reported, got %v", err)
	}

	expected := []FlatSubBuild{
		{
			Number:        12,
			SubNumber:     3,
			JobName:       "run_lint",
			Result:        ResultSuccess,
			URL:           "job/run_lint/3/",
			Timestamp:     1456790400000,
			Datetime:      time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC),
			BuildDuration: durationPtr(90 * time.Minute),
			Duration:      durationPtr(45 * time.Second),
		},
		{
			Number:        12,
			SubNumber:     7,
			JobName:       "run_trial",
			Result:        ResultFailure,
			URL:           "job/run_trial/7/",
			Timestamp:     1456790400000,
			Datetime:      time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC),
			SubTimestamp:  int64Ptr(1456791000000),
			BuildDuration: durationPtr(90 * time.Minute),
			Duration:      durationPtr(62 * time.Minute),
		},
		{
			Number:    14,
			SubNumber: 8,
			JobName:   "run_trial",
			Result:    ResultNone,
			URL:       "job/run_trial/8/",
			Timestamp: 1456797600000,
			Datetime:  time.Date(2016, time.March, 1, 2, 0, 0, 0, time.UTC),
		},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Errorf("unexpected rows (-want +got):\n%s", diff)
	}
}

func TestFlattenBuildWithoutSubBuilds(t *testing.T) {
	rows, err := FlattenBuild(BuildRecord{Number: 1, Duration: NewHumanDuration("not a duration")}, time.UTC)
	if err != nil {
		t.Errorf("a build without sub-builds should not be inspected, got %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestBuildsSince(t *testing.T) {
	builds := []BuildRecord{
		{Number: 1, Timestamp: time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()},
		{Number: 2, Timestamp: time.Date(2016, time.February, 1, 0, 0, 0, 0, time.UTC).UnixMilli()},
		{Number: 3, Timestamp: time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC).UnixMilli()},
	}
	filtered := BuildsSince(builds, time.Date(2016, time.February, 1, 0, 0, 0, 0, time.UTC))
	if len(filtered) != 1 || filtered[0].Number != 3 {
		t.Errorf("expected only build 3 to be strictly newer, got %v", filtered)
	}
}

func TestFailingCases(t *testing.T) {
	report, err := ParseTestReport([]byte(`{"suites": [
		{"cases": [
			{"className": "flocker.node.test", "name": "test_ok", "status": "PASSED"},
			{"className": "flocker.node.test", "name": "test_broken", "status": "FAILED"},
			{"className": "flocker.node.test", "name": "test_skip", "status": "SKIPPED"}
		]},
		{"cases": [
			{"className": "flocker.acceptance", "name": "test_fixed", "status": "FIXED"},
			{"className": "flocker.acceptance", "name": "test_regressed", "status": "REGRESSION"},
			{"className": "flocker.acceptance", "name": "test_new", "status": "SOMETHING_NEW"}
		]}
	]}`))
	if err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}
	var names []string
	for _, testCase := range report.FailingCases() {
		names = append(names, testCase.TestCaseName())
	}
	expected := []string{"flocker.node.test.test_broken", "flocker.acceptance.test_regressed", "flocker.acceptance.test_new"}
	if diff := cmp.Diff(expected, names); diff != "" {
		t.Errorf("unexpected failing cases (-want +got):\n%s", diff)
	}
}
