package buildanalyzer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysislib"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/failureclassifier"
)

type BuildAnalyzerFlags struct {
	DataDirectory *buildanalysislib.DataDirectoryFlags

	Since        string
	Timezone     string
	Top          int
	RulesFile    string
	OutputFormat string
}

func NewBuildAnalyzerFlags() *BuildAnalyzerFlags {
	return &BuildAnalyzerFlags{
		DataDirectory: buildanalysislib.NewDataDirectoryFlags(),
		Timezone:      "Local",
		Top:           20,
		OutputFormat:  string(OutputFormatText),
	}
}

func (f *BuildAnalyzerFlags) BindFlags(fs *pflag.FlagSet) {
	f.DataDirectory.BindFlags(fs)
	fs.StringVar(&f.Since, "since", f.Since, "Only consider builds started after this date, like 2016-03-01 or 2016-03-01T12:00:00Z.")
	fs.StringVar(&f.Timezone, "timezone", f.Timezone, "The timezone days and weeks are computed in, like UTC or Europe/London.")
	fs.IntVar(&f.Top, "top", f.Top, "How many of the most failing jobs and tests to report.")
	fs.StringVar(&f.RulesFile, "rules-file", f.RulesFile, "A YAML file with classification rules to evaluate after the built-in ones.")
	fs.StringVar(&f.OutputFormat, "output-format", f.OutputFormat, fmt.Sprintf("How to render the report, one of %s or %s.", OutputFormatText, OutputFormatMarkdown))
}

func NewBuildAnalyzerCommand() *cobra.Command {
	f := NewBuildAnalyzerFlags()

	cmd := &cobra.Command{
		Use:  "analyze",
		Long: `Summarize the most recently downloaded snapshot: build results, failing jobs, failure causes, failing tests and time to merge`,
		Example: `jenkins-build-analyzer analyze
jenkins-build-analyzer analyze --since 2016-03-01 --timezone UTC --rules-file extra-rules.yaml`,
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if err := f.Validate(); err != nil {
				logrus.WithError(err).Fatal("Flags are invalid")
			}
			o, err := f.ToOptions(ctx)
			if err != nil {
				logrus.WithError(err).Fatal("Failed to build runtime options")
			}

			if err := o.Run(ctx); err != nil {
				logrus.WithError(err).Fatal("Command failed")
			}

			return nil
		},

		Args: buildanalysislib.NoArgs,
	}

	f.BindFlags(cmd.Flags())

	return cmd
}

// Validate checks to see if the user-input is likely to produce functional runtime options
func (f *BuildAnalyzerFlags) Validate() error {
	if err := f.DataDirectory.Validate(); err != nil {
		return err
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return fmt.Errorf("invalid --timezone %q: %w", f.Timezone, err)
	}
	if _, err := parseSince(f.Since, loc); err != nil {
		return err
	}
	if f.Top < 1 {
		return fmt.Errorf("--top must be at least 1, got %d", f.Top)
	}
	switch OutputFormat(f.OutputFormat) {
	case OutputFormatText, OutputFormatMarkdown:
	default:
		return fmt.Errorf("--output-format must be %s or %s, got %q", OutputFormatText, OutputFormatMarkdown, f.OutputFormat)
	}
	return nil
}

// ToOptions goes from the user input to the runtime values need to run the command.
func (f *BuildAnalyzerFlags) ToOptions(ctx context.Context) (*BuildAnalyzerOptions, error) {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, err
	}
	since, err := parseSince(f.Since, loc)
	if err != nil {
		return nil, err
	}

	var rules []failureclassifier.Rule
	if f.RulesFile != "" {
		rules, err = failureclassifier.LoadRules(f.RulesFile)
		if err != nil {
			return nil, err
		}
		logrus.WithField("rules", len(rules)).Infof("Loaded classification rules from %s", f.RulesFile)
	}

	store := f.DataDirectory.NewStore()
	return &BuildAnalyzerOptions{
		Store: store,
		Classifier: failureclassifier.New(store,
			failureclassifier.WithRules(rules...),
			failureclassifier.WithTriageOutput(os.Stdout),
		),
		Since:        since,
		Location:     loc,
		Top:          f.Top,
		OutputFormat: OutputFormat(f.OutputFormat),
		Out:          os.Stdout,
	}, nil
}

var sinceLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// parseSince accepts a date with an optional time of day. Values without an
// offset are interpreted in loc. An empty value disables the filter.
func parseSince(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range sinceLayouts {
		if since, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &since, nil
		}
	}
	return nil, fmt.Errorf("invalid --since %q: like 2016-03-01 or 2016-03-01T12:00:00Z", value)
}
