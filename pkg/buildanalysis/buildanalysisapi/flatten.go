package buildanalysisapi

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// FlattenBuilds produces one row per sub-build across all builds, in build
// order and then sub-build order. Datetimes are computed in loc.
//
// Rows are always returned. Durations that could not be decoded are left nil on
// the row and reported through the returned aggregate error so callers can
// decide whether to warn or abort.
func FlattenBuilds(builds []BuildRecord, loc *time.Location) ([]FlatSubBuild, error) {
	var rows []FlatSubBuild
	var errs []error
	for _, build := range builds {
		buildRows, err := FlattenBuild(build, loc)
		if err != nil {
			errs = append(errs, err)
		}
		rows = append(rows, buildRows...)
	}
	return rows, utilerrors.NewAggregate(errs)
}

// FlattenBuild flattens a single build. A build without sub-builds yields no
// rows.
func FlattenBuild(build BuildRecord, loc *time.Location) ([]FlatSubBuild, error) {
	if len(build.SubBuilds) == 0 {
		return nil, nil
	}

	var errs []error
	buildDuration, err := build.Duration.Value()
	if err != nil {
		errs = append(errs, fmt.Errorf("build %d: %w", build.Number, err))
	}
	datetime := TimestampToTime(build.Timestamp, loc)

	rows := make([]FlatSubBuild, 0, len(build.SubBuilds))
	for _, sub := range build.SubBuilds {
		duration, err := sub.Duration.Value()
		if err != nil {
			errs = append(errs, fmt.Errorf("build %d: sub-build %s#%d: %w", build.Number, sub.JobName, sub.BuildNumber, err))
		}
		rows = append(rows, FlatSubBuild{
			Number:        build.Number,
			SubNumber:     sub.BuildNumber,
			JobName:       sub.JobName,
			Result:        sub.Result,
			URL:           sub.URL,
			Timestamp:     build.Timestamp,
			Datetime:      datetime,
			SubTimestamp:  sub.Timestamp,
			BuildDuration: buildDuration,
			Duration:      duration,
		})
	}
	return rows, utilerrors.NewAggregate(errs)
}

// BuildsSince returns the builds that started strictly after since.
func BuildsSince(builds []BuildRecord, since time.Time) []BuildRecord {
	var filtered []BuildRecord
	for _, build := range builds {
		if TimestampToTime(build.Timestamp, time.UTC).After(since) {
			filtered = append(filtered, build)
		}
	}
	return filtered
}

// FailedSubBuilds returns the rows Jenkins marked as failed.
func FailedSubBuilds(rows []FlatSubBuild) []FlatSubBuild {
	var failed []FlatSubBuild
	for _, row := range rows {
		if row.Failed() {
			failed = append(failed, row)
		}
	}
	return failed
}
