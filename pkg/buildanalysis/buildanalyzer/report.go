package buildanalyzer

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildresultaggregator"
)

// OutputFormat selects how report tables are rendered.
type OutputFormat string

const (
	OutputFormatText     OutputFormat = "text"
	OutputFormatMarkdown OutputFormat = "markdown"
)

const (
	dayFormat = "2006-01-02"
	noData    = "no data"
	unknown   = "unknown"
)

type section struct {
	title  string
	header table.Row
	rows   []table.Row
	// rightAligned are the 1-based numbers of numeric columns
	rightAligned []int
}

func (s section) render(out io.Writer, format OutputFormat) error {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(s.header)
	w.AppendRows(s.rows)
	var configs []table.ColumnConfig
	for _, number := range s.rightAligned {
		configs = append(configs, table.ColumnConfig{Number: number, Align: text.AlignRight})
	}
	w.SetColumnConfigs(configs)

	rendered := w.Render()
	if format == OutputFormatMarkdown {
		rendered = w.RenderMarkdown()
	}
	_, err := fmt.Fprintf(out, "%s\n%s\n\n", s.title, rendered)
	return err
}

func countRows(counts []buildresultaggregator.Count) []table.Row {
	rows := make([]table.Row, 0, len(counts))
	for _, count := range counts {
		rows = append(rows, table.Row{count.Name, count.Count})
	}
	return rows
}

func formatDuration(d *time.Duration) string {
	if d == nil {
		return unknown
	}
	return d.Round(time.Second).String()
}

func resultsSection(results map[buildanalysisapi.Result]int) section {
	var names []string
	for result := range results {
		names = append(names, string(result))
	}
	sort.Strings(names)
	s := section{title: "Top-level build results", header: table.Row{"Result", "Builds"}, rightAligned: []int{2}}
	for _, name := range names {
		s.rows = append(s.rows, table.Row{name, results[buildanalysisapi.Result(name)]})
	}
	return s
}

func weeklySection(weeks []buildresultaggregator.WeekStats) section {
	s := section{title: "Success percentage by week", header: table.Row{"Week", "Sub-builds", "Builds", "Success %"}, rightAligned: []int{2, 3, 4}}
	for _, week := range weeks {
		s.rows = append(s.rows, table.Row{week.Week, week.Count, week.Builds, fmt.Sprintf("%.1f", week.SuccessPercentage)})
	}
	return s
}

func pivotSection(pivot buildresultaggregator.ClassificationPivot) section {
	s := section{title: "Failure classifications by day", header: table.Row{"Classification"}}
	for i, day := range pivot.Days {
		s.header = append(s.header, day.Format(dayFormat))
		s.rightAligned = append(s.rightAligned, i+2)
	}
	for _, pivotRow := range pivot.Rows {
		row := table.Row{pivotRow.Label}
		for _, count := range pivotRow.Counts {
			row = append(row, count)
		}
		s.rows = append(s.rows, row)
	}
	return s
}

func timeToMergeSection(days []buildresultaggregator.DayTimeToMerge) section {
	s := section{title: "Time to merge by day", header: table.Row{"Day", "Builds", "Mean time to merge"}, rightAligned: []int{2, 3}}
	for _, day := range days {
		mean := formatDuration(day.Mean)
		if day.NoData() {
			mean = noData
		}
		s.rows = append(s.rows, table.Row{day.Day.Format(dayFormat), day.Builds, mean})
	}
	return s
}

func renderReport(out io.Writer, format OutputFormat, report *Report) error {
	if _, err := fmt.Fprintf(out, "Analyzed %d builds from %s\n\n", report.Builds, report.Snapshot); err != nil {
		return err
	}
	sections := []section{
		resultsSection(report.Results),
		weeklySection(report.Weekly),
		{title: "Jobs with the most failures", header: table.Row{"Job", "Failures"}, rows: countRows(report.TopFailingJobs), rightAligned: []int{2}},
		{title: "Classification of failures", header: table.Row{"Classification", "Failures"}, rows: countRows(report.Classifications), rightAligned: []int{2}},
		pivotSection(report.DailyPivot),
		{title: "Tests with the most failures", header: table.Row{"Test", "Failures"}, rows: countRows(report.TopFailingTests), rightAligned: []int{2}},
		timeToMergeSection(report.DailyTimeToMerge),
	}
	for _, s := range sections {
		if err := s.render(out, format); err != nil {
			return err
		}
	}
	return nil
}
