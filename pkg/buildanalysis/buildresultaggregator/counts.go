package buildresultaggregator

import (
	"sort"
	"time"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
)

// Count is the number of occurrences of a name, like a job name, a
// classification label or a test case name.
type Count struct {
	Name  string
	Count int
}

// countByName counts names and keeps the order in which they were first seen.
func countByName(names []string) []Count {
	index := map[string]int{}
	var counts []Count
	for _, name := range names {
		i, ok := index[name]
		if !ok {
			i = len(counts)
			index[name] = i
			counts = append(counts, Count{Name: name})
		}
		counts[i].Count++
	}
	return counts
}

// rank orders counts by descending count. Equal counts keep their order.
func rank(counts []Count) []Count {
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

// Top returns at most n counts. Non-positive n returns all of them.
func Top(counts []Count, n int) []Count {
	if n <= 0 || len(counts) <= n {
		return counts
	}
	return counts[:n]
}

// TopFailingJobs counts failed sub-builds per job, most failures first. Jobs
// with the same number of failures are ordered by name.
func TopFailingJobs(rows []buildanalysisapi.FlatSubBuild) []Count {
	var jobs []string
	for _, row := range buildanalysisapi.FailedSubBuilds(rows) {
		jobs = append(jobs, row.JobName)
	}
	counts := countByName(jobs)
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Name < counts[j].Name
	})
	return rank(counts)
}

// GroupByClassification counts failures per label, most common first. Labels
// with the same count keep the order they were first seen in.
func GroupByClassification(classified []buildanalysisapi.ClassifiedFailure) []Count {
	labels := make([]string, 0, len(classified))
	for _, failure := range classified {
		labels = append(labels, failure.Classification)
	}
	return rank(countByName(labels))
}

// ClassificationPivot counts failures per label and calendar day.
type ClassificationPivot struct {
	// Days holds every day a failure was observed on, in ascending order.
	Days []time.Time
	// Rows holds one row per label, ordered by label. Every row has one count
	// per entry of Days.
	Rows []PivotRow
}

type PivotRow struct {
	Label  string
	Counts []int
}

// Day truncates t to the start of its calendar day in its own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DailyClassificationPivot builds the label by day table. Combinations without
// failures are zero.
func DailyClassificationPivot(classified []buildanalysisapi.ClassifiedFailure) ClassificationPivot {
	counts := map[string]map[time.Time]int{}
	days := map[time.Time]bool{}
	for _, failure := range classified {
		day := Day(failure.Datetime)
		days[day] = true
		if counts[failure.Classification] == nil {
			counts[failure.Classification] = map[time.Time]int{}
		}
		counts[failure.Classification][day]++
	}

	pivot := ClassificationPivot{}
	for day := range days {
		pivot.Days = append(pivot.Days, day)
	}
	sort.Slice(pivot.Days, func(i, j int) bool {
		return pivot.Days[i].Before(pivot.Days[j])
	})
	var labels []string
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		row := PivotRow{Label: label, Counts: make([]int, len(pivot.Days))}
		for i, day := range pivot.Days {
			row.Counts[i] = counts[label][day]
		}
		pivot.Rows = append(pivot.Rows, row)
	}
	return pivot
}
