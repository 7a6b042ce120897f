package buildanalysislib

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
)

const (
	defaultJenkinsURL = "https://build.clusterhq.com/"
	defaultJobPath    = "job/ClusterHQ-flocker/job/master/job/__main_multijob/"
)

// DataDirectoryFlags locates the directory snapshots and artifacts live in.
type DataDirectoryFlags struct {
	DataDir string
}

func NewDataDirectoryFlags() *DataDirectoryFlags {
	return &DataDirectoryFlags{
		DataDir: "data",
	}
}

func (f *DataDirectoryFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.DataDir, "data-dir", f.DataDir, "The directory holding downloaded snapshots and logs.")
}

func (f *DataDirectoryFlags) Validate() error {
	if len(f.DataDir) == 0 {
		return fmt.Errorf("missing --data-dir: like data")
	}
	return nil
}

// NewStore returns the Store for this invocation.
func (f *DataDirectoryFlags) NewStore() *Store {
	return NewOSStore(f.DataDir)
}

// JenkinsFlags holds the connection settings for the Jenkins server.
type JenkinsFlags struct {
	URL               string
	JobPath           string
	Username          string
	TokenFile         string
	RequestsPerSecond float64
	RetryMax          int
}

func NewJenkinsFlags() *JenkinsFlags {
	return &JenkinsFlags{
		URL:      defaultJenkinsURL,
		JobPath:  defaultJobPath,
		RetryMax: 3,
	}
}

func (f *JenkinsFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.URL, "jenkins-url", f.URL, "Base URL of the Jenkins server.")
	fs.StringVar(&f.JobPath, "job-path", f.JobPath, "Path of the top-level multijob below the Jenkins URL.")
	fs.StringVar(&f.Username, "username", f.Username, "Username for the Jenkins server.")
	fs.StringVar(&f.TokenFile, "token-file", f.TokenFile, "File holding the API token for the Jenkins server.")
	fs.Float64Var(&f.RequestsPerSecond, "requests-per-second", f.RequestsPerSecond, "Maximum rate of requests sent to Jenkins, 0 means unlimited.")
	fs.IntVar(&f.RetryMax, "retry-max", f.RetryMax, "How often a failed request to Jenkins is retried.")
}

// Validate ensures that options are set correctly
func (f *JenkinsFlags) Validate() error {
	if _, err := url.ParseRequestURI(f.URL); err != nil {
		return fmt.Errorf("invalid --jenkins-url %q: %w", f.URL, err)
	}
	if len(strings.Trim(f.JobPath, "/")) == 0 {
		return fmt.Errorf("missing --job-path: like %s", defaultJobPath)
	}
	if (f.Username == "") != (f.TokenFile == "") {
		return errors.New("--username and --token-file must be set together or not at all")
	}
	if f.RequestsPerSecond < 0 {
		return fmt.Errorf("--requests-per-second must not be negative, got %v", f.RequestsPerSecond)
	}
	if f.RetryMax < 0 {
		return fmt.Errorf("--retry-max must not be negative, got %d", f.RetryMax)
	}
	return nil
}

// NewClient builds the Jenkins client, reading the token from disk.
func (f *JenkinsFlags) NewClient() (buildanalysisapi.BuildDataClient, error) {
	var token string
	if f.TokenFile != "" {
		raw, err := os.ReadFile(f.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %q: %w", f.TokenFile, err)
		}
		token = strings.TrimSpace(string(raw))
	}
	return NewJenkinsClient(JenkinsClientOptions{
		BaseURL:           f.URL,
		JobPath:           f.JobPath,
		Username:          f.Username,
		Token:             token,
		RequestsPerSecond: f.RequestsPerSecond,
		RetryMax:          f.RetryMax,
		RetryWaitMin:      time.Second,
	})
}
