package failureclassifier

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
)

// Classifier labels failed sub-builds from their stored artifacts.
type Classifier struct {
	artifacts buildanalysisapi.ArtifactReader
	rules     []Rule
	triage    io.Writer
}

type Option func(*Classifier)

// WithRules appends rules after the ones already configured. Existing rules
// keep their priority.
func WithRules(rules ...Rule) Option {
	return func(c *Classifier) {
		c.rules = append(c.rules, rules...)
	}
}

// WithTriageOutput sets where logs no rule matched are printed for manual
// triage. Nothing is printed by default.
func WithTriageOutput(w io.Writer) Option {
	return func(c *Classifier) {
		c.triage = w
	}
}

// New returns a Classifier using the built-in rule table followed by any
// rules passed through options.
func New(artifacts buildanalysisapi.ArtifactReader, opts ...Option) *Classifier {
	c := &Classifier{
		artifacts: artifacts,
		rules:     DefaultRules(),
		triage:    io.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rules returns the rules in evaluation order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// ClassifyLog returns the label of the first rule matching the log. matched is
// false and the label is LabelUnknown if there is none.
func (c *Classifier) ClassifyLog(log, path string) (label string, matched bool) {
	for _, rule := range c.rules {
		if rule.Matches(log, path) {
			return rule.Label, true
		}
	}
	return LabelUnknown, false
}

// Classify labels the sub-build identified by url. A test report wins over the
// console log, and a sub-build with neither is LabelMissingLog. Errors are
// returned when the url does not map to an artifact path or an artifact exists
// but can not be read.
func (c *Classifier) Classify(url string) (string, error) {
	hasReport, err := c.artifacts.HasArtifact(url, buildanalysisapi.ArtifactTestReport)
	if err != nil {
		return "", err
	}
	if hasReport {
		return LabelFailedTest, nil
	}

	log, path, err := c.artifacts.ReadArtifact(url, buildanalysisapi.ArtifactConsoleText)
	if errors.Is(err, buildanalysisapi.ErrArtifactNotFound) {
		return LabelMissingLog, nil
	}
	if err != nil {
		return "", err
	}

	label, matched := c.ClassifyLog(string(log), path)
	if !matched {
		c.reportUnknown(path, string(log))
	}
	return label, nil
}

func (c *Classifier) reportUnknown(path, log string) {
	logrus.WithField("path", path).Warn("Unknown failure reason.")
	_, _ = fmt.Fprintf(c.triage, "=====\nUnknown failure reason:\n%s\n%s\n\n", path, strings.TrimRight(log, "\n"))
}

// ClassifyFailures labels every failed row, keeping input order. Rows that did
// not fail are skipped. A row whose artifacts can not be located or read is
// kept as LabelMissingLog and its error is part of the returned aggregate.
func (c *Classifier) ClassifyFailures(rows []buildanalysisapi.FlatSubBuild) ([]buildanalysisapi.ClassifiedFailure, error) {
	var classified []buildanalysisapi.ClassifiedFailure
	var errs []error
	for _, row := range rows {
		if !row.Failed() {
			continue
		}
		label, err := c.Classify(row.URL)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"job": row.JobName, "number": row.Number}).Warn("Could not classify failure.")
			errs = append(errs, fmt.Errorf("failed to classify %q: %w", row.URL, err))
			label = LabelMissingLog
		}
		classified = append(classified, buildanalysisapi.ClassifiedFailure{FlatSubBuild: row, Classification: label})
	}
	return classified, utilerrors.NewAggregate(errs)
}
