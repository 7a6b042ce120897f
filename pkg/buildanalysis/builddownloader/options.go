package builddownloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/utils/clock"

	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysisapi"
	"github.com/openshift/jenkins-build-analyzer/pkg/buildanalysis/buildanalysislib"
	"github.com/openshift/jenkins-build-analyzer/pkg/metrics"
	"github.com/openshift/jenkins-build-analyzer/pkg/results"
)

var artifactKinds = []buildanalysisapi.ArtifactKind{
	buildanalysisapi.ArtifactConsoleText,
	buildanalysisapi.ArtifactTestReport,
}

// BuildDownloaderOptions stores a new snapshot of the build tree and the
// artifacts of every sub-build that failed in it.
type BuildDownloaderOptions struct {
	Client  buildanalysisapi.BuildDataClient
	Store   *buildanalysislib.Store
	Clock   clock.PassiveClock
	Metrics *metrics.MetricsAgent

	MaxConcurrentRequests int
}

func (o *BuildDownloaderOptions) Run(ctx context.Context) error {
	go o.Metrics.Run()
	defer o.Metrics.Stop()

	logrus.Info("Fetching build tree")
	data, err := o.Client.GetSnapshot(ctx)
	if err != nil {
		return err
	}
	snapshot, err := buildanalysisapi.ParseSnapshot(data)
	if err != nil {
		return results.ForReason(results.ReasonLoadingSnapshot).ForError(err)
	}
	path, err := o.Store.WriteSnapshot(data, o.Clock.Now())
	if err != nil {
		return err
	}

	rows, err := buildanalysisapi.FlattenBuilds(snapshot.Builds, time.UTC)
	if err != nil {
		logrus.WithError(err).Warn("Some durations could not be parsed.")
	}
	failed := buildanalysisapi.FailedSubBuilds(rows)
	logrus.WithFields(logrus.Fields{
		"path":       path,
		"builds":     len(snapshot.Builds),
		"sub-builds": len(rows),
		"failed":     len(failed),
	}).Info("Stored snapshot")
	o.Metrics.RecordSnapshot(path, len(snapshot.Builds), len(rows), len(failed), len(data))

	return o.downloadArtifacts(ctx, failed)
}

// downloadArtifacts fetches the artifacts of every row, at most
// MaxConcurrentRequests sub-builds at a time. Artifacts the server can not
// provide are skipped, only failures to store them are returned.
func (o *BuildDownloaderOptions) downloadArtifacts(ctx context.Context, rows []buildanalysisapi.FlatSubBuild) error {
	sem := semaphore.NewWeighted(int64(o.MaxConcurrentRequests))
	g := errgroup.Group{}
	lock := sync.Mutex{}
	var errs []error

	for _, row := range rows {
		if row.URL == "" {
			logrus.WithField("job", row.JobName).WithField("build", row.Number).Debug("Skipping sub-build without url.")
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			lock.Lock()
			errs = append(errs, fmt.Errorf("stopped downloading artifacts: %w", err))
			lock.Unlock()
			break
		}
		url := row.URL
		g.Go(func() error {
			defer sem.Release(1)
			for _, kind := range artifactKinds {
				if err := o.downloadArtifact(ctx, url, kind); err != nil {
					lock.Lock()
					errs = append(errs, err)
					lock.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return utilerrors.NewAggregate(errs)
}

func (o *BuildDownloaderOptions) downloadArtifact(ctx context.Context, url string, kind buildanalysisapi.ArtifactKind) error {
	logger := logrus.WithField("url", url).WithField("kind", kind)
	start := o.Clock.Now()

	exists, err := o.Store.HasArtifact(url, kind)
	if err != nil {
		o.Metrics.RecordArtifact(url, string(kind), metrics.ArtifactError, 0, o.Clock.Since(start), err)
		return err
	}
	if exists {
		logger.Debug("Artifact already downloaded.")
		o.Metrics.RecordArtifact(url, string(kind), metrics.ArtifactSkipped, 0, o.Clock.Since(start), nil)
		return nil
	}

	data, found, err := o.Client.GetArtifact(ctx, url, kind)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch artifact.")
		o.Metrics.RecordArtifact(url, string(kind), metrics.ArtifactError, 0, o.Clock.Since(start), err)
		return nil
	}
	if !found {
		logger.Debug("Artifact is not available.")
		o.Metrics.RecordArtifact(url, string(kind), metrics.ArtifactAbsent, 0, o.Clock.Since(start), nil)
		return nil
	}

	path, err := o.Store.WriteArtifact(url, kind, data)
	if err != nil {
		o.Metrics.RecordArtifact(url, string(kind), metrics.ArtifactError, 0, o.Clock.Since(start), err)
		return err
	}
	logger.WithField("path", path).Debug("Stored artifact.")
	o.Metrics.RecordArtifact(url, string(kind), metrics.ArtifactFetched, len(data), o.Clock.Since(start), nil)
	return nil
}
