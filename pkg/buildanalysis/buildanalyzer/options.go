package buildanalyzer

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysislib"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildresultaggregator"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/failureclassifier"
	"github.com/openshift/jenkins-build-analyzer/pkg/results"
)

// BuildAnalyzerOptions reports on the most recent snapshot in the data
// directory.
type BuildAnalyzerOptions struct {
	Store      *buildanalysislib.Store
	Classifier *failureclassifier.Classifier

	// Since drops builds that did not start after it, if set.
	Since    *time.Time
	Location *time.Location
	Top      int

	OutputFormat OutputFormat
	Out          io.Writer
}

// Report holds every summary the analyze command prints, in print order.
type Report struct {
	Snapshot         string
	Builds           int
	Results          map[buildanalysisapi.Result]int
	Weekly           []buildresultaggregator.WeekStats
	TopFailingJobs   []buildresultaggregator.Count
	Classifications  []buildresultaggregator.Count
	DailyPivot       buildresultaggregator.ClassificationPivot
	TopFailingTests  []buildresultaggregator.Count
	DailyTimeToMerge []buildresultaggregator.DayTimeToMerge
}

func (o *BuildAnalyzerOptions) Run(ctx context.Context) error {
	snapshot, path, err := o.Store.LoadLatestSnapshot()
	if err != nil {
		return err
	}
	logrus.WithField("path", path).Info("Loaded snapshot")

	builds := snapshot.Builds
	if o.Since != nil {
		builds = buildanalysisapi.BuildsSince(builds, *o.Since)
		logrus.WithField("since", o.Since.Format(time.RFC3339)).Infof("Considering %d of %d builds", len(builds), len(snapshot.Builds))
	}

	report, err := o.Analyze(builds)
	if err != nil {
		return err
	}
	report.Snapshot = path
	return renderReport(o.Out, o.OutputFormat, report)
}

// Analyze computes the report for the given builds. Values that can not be
// decoded are logged and left out of the affected summaries.
func (o *BuildAnalyzerOptions) Analyze(builds []buildanalysisapi.BuildRecord) (*Report, error) {
	rows, err := buildanalysisapi.FlattenBuilds(builds, o.Location)
	if err != nil {
		logrus.WithError(results.ForReason(results.ReasonParsingDuration).ForError(err)).Warn("Some durations could not be parsed, time to merge will be incomplete.")
	}

	weekly, err := buildresultaggregator.WeeklyStats(rows)
	if err != nil {
		return nil, err
	}

	classified, err := o.Classifier.ClassifyFailures(rows)
	if err != nil {
		logrus.WithError(err).Warn("Some failures could not be classified, they are counted as missing logs.")
	}

	failingTests, err := buildresultaggregator.ExtractFailingTests(o.Store, rows)
	if err != nil {
		logrus.WithError(err).Warn("Some test reports could not be read.")
	}

	return &Report{
		Builds:           len(builds),
		Results:          buildresultaggregator.SummarizeResults(builds),
		Weekly:           weekly,
		TopFailingJobs:   buildresultaggregator.Top(buildresultaggregator.TopFailingJobs(rows), o.Top),
		Classifications:  buildresultaggregator.GroupByClassification(classified),
		DailyPivot:       buildresultaggregator.DailyClassificationPivot(classified),
		TopFailingTests:  buildresultaggregator.Top(buildresultaggregator.GroupByTestName(failingTests), o.Top),
		DailyTimeToMerge: buildresultaggregator.DailyTimeToMerge(rows),
	}, nil
}
