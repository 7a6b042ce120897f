package buildresultaggregator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
)

// AggregateBuildResult returns SUCCESS if the only non-null result of any
// sub-build is SUCCESS. Everything else, a build without results included, is
// a FAILURE.
func AggregateBuildResult(build buildanalysisapi.BuildRecord) buildanalysisapi.Result {
	results := sets.New[buildanalysisapi.Result]()
	for _, sub := range build.SubBuilds {
		if sub.Result.IsSet() {
			results.Insert(sub.Result)
		}
	}
	if results.Equal(sets.New(buildanalysisapi.ResultSuccess)) {
		return buildanalysisapi.ResultSuccess
	}
	return buildanalysisapi.ResultFailure
}

// SummarizeResults counts builds per overall result.
func SummarizeResults(builds []buildanalysisapi.BuildRecord) map[buildanalysisapi.Result]int {
	summary := map[buildanalysisapi.Result]int{}
	for _, build := range builds {
		summary[AggregateBuildResult(build)]++
	}
	return summary
}

// WeekStats summarizes the sub-builds that ran in one ISO week.
type WeekStats struct {
	// Week is the ISO year times 100 plus the ISO week number.
	Week int
	// Count is the number of sub-builds.
	Count int
	// Builds is the number of distinct builds the sub-builds belong to.
	Builds int
	// SuccessPercentage is the share of successful sub-builds, from 0 to 100.
	SuccessPercentage float64
}

// WeekKey combines the ISO year and week so that weeks of different years
// never collide. The ISO year is used, so the days around new year are
// attributed to the week they belong to.
func WeekKey(t time.Time) int {
	year, week := t.ISOWeek()
	return year*100 + week
}

func numericResult(result buildanalysisapi.Result) float64 {
	if result == buildanalysisapi.ResultSuccess {
		return 100
	}
	return 0
}

// WeeklyStats groups rows by the week of their datetime, ordered by week.
func WeeklyStats(rows []buildanalysisapi.FlatSubBuild) ([]WeekStats, error) {
	type week struct {
		results stats.Float64Data
		builds  sets.Set[int]
	}
	weeks := map[int]*week{}
	for _, row := range rows {
		key := WeekKey(row.Datetime)
		w, ok := weeks[key]
		if !ok {
			w = &week{builds: sets.New[int]()}
			weeks[key] = w
		}
		w.results = append(w.results, numericResult(row.Result))
		w.builds.Insert(row.Number)
	}

	var summary []WeekStats
	for key, w := range weeks {
		mean, err := stats.Mean(w.results)
		if err != nil {
			return nil, fmt.Errorf("failed to compute success percentage of week %d: %w", key, err)
		}
		summary = append(summary, WeekStats{
			Week:              key,
			Count:             len(w.results),
			Builds:            w.builds.Len(),
			SuccessPercentage: mean,
		})
	}
	sort.Slice(summary, func(i, j int) bool {
		return summary[i].Week < summary[j].Week
	})
	return summary, nil
}

func meanDuration(durations []time.Duration) (time.Duration, error) {
	data := make(stats.Float64Data, 0, len(durations))
	for _, d := range durations {
		data = append(data, float64(d))
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return 0, err
	}
	return time.Duration(math.Round(mean)), nil
}

func maxDuration(durations []time.Duration) (time.Duration, error) {
	data := make(stats.Float64Data, 0, len(durations))
	for _, d := range durations {
		data = append(data, float64(d))
	}
	longest, err := stats.Max(data)
	if err != nil {
		return 0, err
	}
	return time.Duration(longest), nil
}
