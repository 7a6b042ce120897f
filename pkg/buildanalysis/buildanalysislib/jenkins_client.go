package buildanalysislib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
	"github.com/openshift/jenkins-build-analyzer/pkg/results"
)

// snapshotTree selects the build tree fields the analysis needs. Jenkins
// returns the full object graph without it.
const snapshotTree = "builds[number,timestamp,duration,result,subBuilds[result,buildNumber,jobName,url,timestamp,duration]]"

type jenkinsClient struct {
	baseURL  *url.URL
	jobPath  string
	username string
	token    string

	client  *retryablehttp.Client
	limiter *rate.Limiter
}

var _ buildanalysisapi.BuildDataClient = &jenkinsClient{}

// JenkinsClientOptions configures NewJenkinsClient.
type JenkinsClientOptions struct {
	BaseURL  string
	JobPath  string
	Username string
	Token    string

	// RequestsPerSecond limits the request rate, zero or less means unlimited.
	RequestsPerSecond float64
	RetryMax          int
	RetryWaitMin      time.Duration
}

func NewJenkinsClient(o JenkinsClientOptions) (buildanalysisapi.BuildDataClient, error) {
	baseURL, err := url.Parse(o.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s as url: %w", o.BaseURL, err)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = o.RetryMax
	if o.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = o.RetryWaitMin
	}
	retryClient.Logger = adapter{}
	// hand the last response back instead of an error so that callers can
	// treat a missing artifact as absent
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limit := rate.Inf
	if o.RequestsPerSecond > 0 {
		limit = rate.Limit(o.RequestsPerSecond)
	}

	jobPath := strings.Trim(o.JobPath, "/")
	if jobPath != "" {
		jobPath += "/"
	}

	return &jenkinsClient{
		baseURL:  baseURL,
		jobPath:  jobPath,
		username: o.Username,
		token:    o.Token,
		client:   retryClient,
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

func (c *jenkinsClient) snapshotURL() string {
	ref := &url.URL{
		Path:     c.jobPath + "api/json",
		RawQuery: url.Values{"tree": []string{snapshotTree}}.Encode(),
	}
	return c.baseURL.ResolveReference(ref).String()
}

func (c *jenkinsClient) artifactURL(subBuildURL string, kind buildanalysisapi.ArtifactKind) (string, error) {
	ref, err := url.Parse(subBuildURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s as url: %w", subBuildURL, err)
	}
	if !strings.HasSuffix(ref.Path, "/") {
		ref.Path += "/"
	}
	switch kind {
	case buildanalysisapi.ArtifactConsoleText:
		ref.Path += "consoleText"
	case buildanalysisapi.ArtifactTestReport:
		ref.Path += "testReport/api/json"
	default:
		return "", fmt.Errorf("unknown artifact kind %q", kind)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

func (c *jenkinsClient) GetSnapshot(ctx context.Context) ([]byte, error) {
	target := c.snapshotURL()
	body, status, err := c.get(ctx, target)
	if err != nil {
		return nil, results.ForReason(results.ReasonFetchingSnapshot).ForError(err)
	}
	if status != http.StatusOK {
		return nil, results.ForReason(results.ReasonFetchingSnapshot).Errorf("got unexpected http status code %d for url %s. Response body:\n%s", status, target, string(body))
	}
	return body, nil
}

func (c *jenkinsClient) GetArtifact(ctx context.Context, subBuildURL string, kind buildanalysisapi.ArtifactKind) ([]byte, bool, error) {
	target, err := c.artifactURL(subBuildURL, kind)
	if err != nil {
		return nil, false, err
	}
	body, status, err := c.get(ctx, target)
	if err != nil {
		return nil, false, err
	}
	if status != http.StatusOK {
		logrus.WithFields(logrus.Fields{"url": target, "status": status}).Debug("Artifact is not available.")
		return nil, false, nil
	}
	return body, true, nil
}

func (c *jenkinsClient) get(ctx context.Context, target string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("could not create request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to GET %s: %w", target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body for request to %s: %w", target, err)
	}
	return body, resp.StatusCode, nil
}

type adapter struct{}

func (a adapter) format(s string, i ...interface{}) string {
	builder := strings.Builder{}
	builder.WriteString(s)
	for _, x := range i {
		builder.WriteString(" ")
		builder.WriteString(fmt.Sprintf("%v", x))
	}
	return builder.String()
}

func (a adapter) Error(s string, i ...interface{}) {
	logrus.Error(a.format(s, i...))
}

func (a adapter) Info(s string, i ...interface{}) {
	logrus.Debug(a.format(s, i...))
}

func (a adapter) Debug(s string, i ...interface{}) {
	logrus.Trace(a.format(s, i...))
}

func (a adapter) Warn(s string, i ...interface{}) {
	logrus.Warn(a.format(s, i...))
}

var _ retryablehttp.LeveledLogger = adapter{}
