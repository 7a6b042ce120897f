package buildanalysis

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalyzer"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/builddownloader"
)

// Overall usage
// 1. download stores a snapshot of the build tree of the multijob, and the console log and test report of
//    every sub-build that failed in it, below the data directory. Artifacts are only ever downloaded once.
// 2. analyze reads the most recent snapshot, classifies every failed sub-build from its stored artifacts and
//    prints result counts, failing jobs, failure causes, failing tests and the time it took until builds were
//    mergable.
//
// Classification is recomputed on every analyze run, so changing the rules changes the labels of old failures.

func NewJenkinsBuildAnalyzerCommand() *cobra.Command {
	logLevel := logrus.InfoLevel.String()

	cmd := &cobra.Command{
		Use:  "jenkins-build-analyzer",
		Long: `Commands to download and analyze the build history of a Jenkins multijob`,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			logrus.SetLevel(level)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Level at which to log output.")

	cmd.AddCommand(builddownloader.NewBuildDownloaderCommand())
	cmd.AddCommand(buildanalyzer.NewBuildAnalyzerCommand())

	return cmd
}
