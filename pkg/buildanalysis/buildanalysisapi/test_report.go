package buildanalysisapi

import (
	"encoding/json"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Test case statuses that do not count as a failure. Everything else,
// including statuses Jenkins may add in the future, is treated as failing.
const (
	TestStatusPassed  = "PASSED"
	TestStatusSkipped = "SKIPPED"
	TestStatusFixed   = "FIXED"
)

var passingTestStatuses = sets.New[string](TestStatusPassed, TestStatusSkipped, TestStatusFixed)

// TestReport is the JSON test report Jenkins publishes for a build.
type TestReport struct {
	Suites []TestSuite `json:"suites"`
}

type TestSuite struct {
	Name  string           `json:"name,omitempty"`
	Cases []TestCaseResult `json:"cases"`
}

type TestCaseResult struct {
	ClassName string `json:"className"`
	Name      string `json:"name"`
	Status    string `json:"status"`
}

// TestCaseName is the fully qualified name used to group test failures.
func (c TestCaseResult) TestCaseName() string {
	return c.ClassName + "." + c.Name
}

// Failed returns true for any status that is not known to be passing.
func (c TestCaseResult) Failed() bool {
	return !passingTestStatuses.Has(c.Status)
}

// FailingCases lists the failed cases of every suite, in report order.
func (r TestReport) FailingCases() []TestCaseResult {
	var failing []TestCaseResult
	for _, suite := range r.Suites {
		for _, testCase := range suite.Cases {
			if testCase.Failed() {
				failing = append(failing, testCase)
			}
		}
	}
	return failing
}

// ParseTestReport decodes a test report artifact.
func ParseTestReport(data []byte) (*TestReport, error) {
	report := &TestReport{}
	if err := json.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal test report: %w", err)
	}
	return report, nil
}

// ParseSnapshot decodes a snapshot file.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	snapshot := &Snapshot{}
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snapshot, nil
}
