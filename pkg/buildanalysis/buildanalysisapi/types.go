package buildanalysisapi

import (
	"time"
)

// Result is the outcome Jenkins reports for a build. The zero value stands for
// a JSON null, which Jenkins uses for builds that are still running or were
// never started.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultFailure Result = "FAILURE"
	ResultNone    Result = ""
)

// IsSet returns false for null results.
func (r Result) IsSet() bool {
	return r != ResultNone
}

// Snapshot is one captured copy of the build tree API response.
type Snapshot struct {
	Builds []BuildRecord `json:"builds"`
}

// BuildRecord is a single run of the top-level orchestrating job.
type BuildRecord struct {
	Number    int              `json:"number"`
	Timestamp int64            `json:"timestamp"`
	Duration  Duration         `json:"duration,omitempty"`
	Result    Result           `json:"result,omitempty"`
	SubBuilds []SubBuildRecord `json:"subBuilds,omitempty"`
}

// SubBuildRecord is one child job invocation triggered by a build.
type SubBuildRecord struct {
	BuildNumber int      `json:"buildNumber"`
	JobName     string   `json:"jobName"`
	Result      Result   `json:"result,omitempty"`
	URL         string   `json:"url"`
	Timestamp   *int64   `json:"timestamp,omitempty"`
	Duration    Duration `json:"duration,omitempty"`
}

// FlatSubBuild joins a sub-build with the fields of the build that owns it.
// It is the unit every aggregation works on.
type FlatSubBuild struct {
	Number    int
	SubNumber int
	JobName   string
	Result    Result
	URL       string

	// Timestamp is the owning build's start time in epoch milliseconds and
	// Datetime is the same instant in the location the rows were flattened in.
	Timestamp int64
	Datetime  time.Time

	// SubTimestamp is the sub-build's own start time in epoch milliseconds,
	// nil when Jenkins did not report one.
	SubTimestamp *int64

	// BuildDuration and Duration are nil when the respective value was absent
	// or could not be parsed.
	BuildDuration *time.Duration
	Duration      *time.Duration
}

// Failed returns true for sub-builds Jenkins marked as failed.
func (f FlatSubBuild) Failed() bool {
	return f.Result == ResultFailure
}

// ClassifiedFailure is a failed sub-build together with the label the
// classifier assigned to it.
type ClassifiedFailure struct {
	FlatSubBuild
	Classification string
}

// TimestampToTime converts a Jenkins epoch millisecond timestamp.
func TimestampToTime(timestamp int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(timestamp).In(loc)
}
