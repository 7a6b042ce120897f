package buildresultaggregator

import (
	"sort"
	"time"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
)

// TimeToMerge estimates, for one sub-build, how long it took until the job
// passed, assuming every failed job was retried right away.
type TimeToMerge struct {
	buildanalysisapi.FlatSubBuild
	// TimeToSuccess is the time spent in this job until it passed. It is nil
	// when the job did not pass in any later build or a duration is unknown.
	TimeToSuccess *time.Duration
	// DurationUntilMergable is the time from the start of this build until
	// the job passed, under the same conditions as TimeToSuccess.
	DurationUntilMergable *time.Duration
}

func addDurations(a, b *time.Duration) *time.Duration {
	if a == nil || b == nil {
		return nil
	}
	sum := *a + *b
	return &sum
}

// EstimateTimeToMerge computes the estimate for every row. The result has one
// entry per row, in input order.
//
// Each job is walked from its most recent run to its oldest. A successful run
// needs its own duration, a failed one needs its own duration plus whatever
// the next more recent run of the same job needed.
func EstimateTimeToMerge(rows []buildanalysisapi.FlatSubBuild) []TimeToMerge {
	estimates := make([]TimeToMerge, len(rows))
	byJob := map[string][]int{}
	for i, row := range rows {
		estimates[i].FlatSubBuild = row
		byJob[row.JobName] = append(byJob[row.JobName], i)
	}

	for _, indices := range byJob {
		sort.SliceStable(indices, func(i, j int) bool {
			a, b := rows[indices[i]], rows[indices[j]]
			if !a.Datetime.Equal(b.Datetime) {
				return a.Datetime.After(b.Datetime)
			}
			return a.Number > b.Number
		})

		var next *TimeToMerge
		for _, i := range indices {
			estimate := &estimates[i]
			switch {
			case estimate.Result == buildanalysisapi.ResultSuccess:
				estimate.TimeToSuccess = estimate.Duration
				estimate.DurationUntilMergable = estimate.BuildDuration
			case next != nil:
				estimate.TimeToSuccess = addDurations(estimate.Duration, next.TimeToSuccess)
				estimate.DurationUntilMergable = addDurations(estimate.BuildDuration, next.TimeToSuccess)
			}
			next = estimate
		}
	}
	return estimates
}

// DayTimeToMerge is the average time until builds of one day were mergable.
type DayTimeToMerge struct {
	Day time.Time
	// Builds is the number of builds started on Day.
	Builds int
	// Mean is nil when there were no builds, or when for any of the builds
	// the time is not known.
	Mean *time.Duration
}

// NoData is true for days without any builds.
func (d DayTimeToMerge) NoData() bool {
	return d.Builds == 0
}

type buildTimeToMerge struct {
	number   int
	day      time.Time
	duration *time.Duration
}

// perBuildTimeToMerge takes the longest time until mergable of the sub-builds
// of every build. A single unknown time makes the build's time unknown.
func perBuildTimeToMerge(estimates []TimeToMerge) []buildTimeToMerge {
	index := map[int]int{}
	var builds []buildTimeToMerge
	known := map[int][]time.Duration{}
	unknown := map[int]bool{}
	for _, estimate := range estimates {
		if _, ok := index[estimate.Number]; !ok {
			index[estimate.Number] = len(builds)
			builds = append(builds, buildTimeToMerge{number: estimate.Number, day: Day(estimate.Datetime)})
		}
		if estimate.DurationUntilMergable == nil {
			unknown[estimate.Number] = true
			continue
		}
		known[estimate.Number] = append(known[estimate.Number], *estimate.DurationUntilMergable)
	}
	for i, build := range builds {
		if unknown[build.number] {
			continue
		}
		if longest, err := maxDuration(known[build.number]); err == nil {
			builds[i].duration = &longest
		}
	}
	return builds
}

// DailyTimeToMerge averages the time until builds were mergable per calendar
// day of the build start. Every day between the first and the last build is
// reported, days without builds have no data.
func DailyTimeToMerge(rows []buildanalysisapi.FlatSubBuild) []DayTimeToMerge {
	builds := perBuildTimeToMerge(EstimateTimeToMerge(rows))
	if len(builds) == 0 {
		return nil
	}

	perDay := map[time.Time][]buildTimeToMerge{}
	first, last := builds[0].day, builds[0].day
	for _, build := range builds {
		perDay[build.day] = append(perDay[build.day], build)
		if build.day.Before(first) {
			first = build.day
		}
		if build.day.After(last) {
			last = build.day
		}
	}

	var daily []DayTimeToMerge
	for day := first; !day.After(last); day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location()) {
		summary := DayTimeToMerge{Day: day, Builds: len(perDay[day])}
		var durations []time.Duration
		complete := true
		for _, build := range perDay[day] {
			if build.duration == nil {
				complete = false
				break
			}
			durations = append(durations, *build.duration)
		}
		if complete {
			if mean, err := meanDuration(durations); err == nil {
				summary.Mean = &mean
			}
		}
		daily = append(daily, summary)
	}
	return daily
}
