package buildresultaggregator

import (
	"errors"
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
)

// FailingTest is a failed test case together with the sub-build it ran in.
type FailingTest struct {
	buildanalysisapi.TestCaseResult
	// TestCaseName is the class name and the test name joined by a dot.
	TestCaseName string
	JobName      string
	URL          string
}

// ExtractFailingTests lists the failing cases of every failed sub-build that
// has a test report. Reports that can not be read or decoded are skipped and
// reported in the returned aggregate error.
func ExtractFailingTests(artifacts buildanalysisapi.ArtifactReader, rows []buildanalysisapi.FlatSubBuild) ([]FailingTest, error) {
	var failing []FailingTest
	var errs []error
	for _, row := range buildanalysisapi.FailedSubBuilds(rows) {
		data, _, err := artifacts.ReadArtifact(row.URL, buildanalysisapi.ArtifactTestReport)
		if errors.Is(err, buildanalysisapi.ErrArtifactNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		report, err := buildanalysisapi.ParseTestReport(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", row.URL, err))
			continue
		}
		for _, testCase := range report.FailingCases() {
			failing = append(failing, FailingTest{
				TestCaseResult: testCase,
				TestCaseName:   testCase.TestCaseName(),
				JobName:        row.JobName,
				URL:            row.URL,
			})
		}
	}
	return failing, utilerrors.NewAggregate(errs)
}

// GroupByTestName counts failures per test case name, most common first.
func GroupByTestName(failing []FailingTest) []Count {
	names := make([]string, 0, len(failing))
	for _, test := range failing {
		names = append(names, test.TestCaseName)
	}
	return rank(countByName(names))
}
