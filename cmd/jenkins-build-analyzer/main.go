// The purpose of this tool is to download the build history of a Jenkins
// multijob and report on why and how often its jobs fail.
package main

import (
	goflag "flag"
	"os"

	"github.com/spf13/pflag"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis"
)

func main() {
	cmd := buildanalysis.NewJenkinsBuildAnalyzerCommand()
	pflag.CommandLine.AddGoFlagSet(goflag.CommandLine)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
