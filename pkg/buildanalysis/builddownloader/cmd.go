package builddownloader

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/utils/clock"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysislib"
	"github.com/openshift/jenkins-build-analyzer/pkg/metrics"
)

type BuildDownloaderFlags struct {
	DataDirectory *buildanalysislib.DataDirectoryFlags
	Jenkins       *buildanalysislib.JenkinsFlags

	MaxConcurrentRequests int
	MetricsFile           string
}

func NewBuildDownloaderFlags() *BuildDownloaderFlags {
	return &BuildDownloaderFlags{
		DataDirectory:         buildanalysislib.NewDataDirectoryFlags(),
		Jenkins:               buildanalysislib.NewJenkinsFlags(),
		MaxConcurrentRequests: 5,
	}
}

func (f *BuildDownloaderFlags) BindFlags(fs *pflag.FlagSet) {
	f.DataDirectory.BindFlags(fs)
	f.Jenkins.BindFlags(fs)
	fs.IntVar(&f.MaxConcurrentRequests, "max-concurrent-requests", f.MaxConcurrentRequests, "Maximum number of sub-builds whose logs are downloaded at the same time.")
	fs.StringVar(&f.MetricsFile, "metrics-file", f.MetricsFile, "If set, write download metrics in the Prometheus text format to this file.")
}

func NewBuildDownloaderCommand() *cobra.Command {
	f := NewBuildDownloaderFlags()

	cmd := &cobra.Command{
		Use:  "download",
		Long: `Download the build tree of the multijob and the logs of every failed sub-build into the data directory`,
		Example: `jenkins-build-analyzer download --data-dir data
jenkins-build-analyzer download --username robot --token-file /etc/jenkins/token --max-concurrent-requests 10`,
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
func (f *BuildDownloaderFlags) Validate() error {
	if err := f.DataDirectory.Validate(); err != nil {
		return err
	}
	if err := f.Jenkins.Validate(); err != nil {
		return err
	}
	if f.MaxConcurrentRequests < 1 {
		return fmt.Errorf("--max-concurrent-requests must be at least 1, got %d", f.MaxConcurrentRequests)
	}
	return nil
}

// ToOptions goes from the user input to the runtime values need to run the command.
func (f *BuildDownloaderFlags) ToOptions(ctx context.Context) (*BuildDownloaderOptions, error) {
	client, err := f.Jenkins.NewClient()
	if err != nil {
		return nil, err
	}
	store := f.DataDirectory.NewStore()
	clock := clock.RealClock{}

	return &BuildDownloaderOptions{
		Client:                client,
		Store:                 store,
		Clock:                 clock,
		Metrics:               metrics.NewMetricsAgent(clock, store.Fs(), store.Root(), f.MetricsFile),
		MaxConcurrentRequests: f.MaxConcurrentRequests,
	}, nil
}
