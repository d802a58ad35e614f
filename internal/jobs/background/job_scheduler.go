// Package background runs the periodic jobs of the server.
package background

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"swimdesk/internal/lib/sl"
	"swimdesk/internal/metrics"
)

const (
	JobDirectoryRefresh    = "directory-cache-refresh"
	JobNotificationBacklog = "notification-backlog"
)

// DirectoryRefresher reloads the cached business directory.
type DirectoryRefresher interface {
	RefreshCache(ctx context.Context) (int, error)
}

// BacklogReporter reports the outbound notification queue length.
type BacklogReporter interface {
	Backlog(ctx context.Context) (int64, error)
}

type Config struct {
	DirectoryRefreshInterval time.Duration
	BacklogInterval          time.Duration
	JobTimeout               time.Duration
}

// JobScheduler manages background jobs. Every job runs in singleton mode so
// a slow run is never overlapped by the next tick.
type JobScheduler struct {
	scheduler     gocron.Scheduler
	directory     DirectoryRefresher
	notifications BacklogReporter
	cfg           Config
	log           *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	jobs map[string]gocron.Job
	mu   sync.RWMutex
}

func NewJobScheduler(directory DirectoryRefresher, notifications BacklogReporter, cfg Config, log *slog.Logger) (*JobScheduler, error) {
	const op = "background.NewJobScheduler"

	if cfg.DirectoryRefreshInterval <= 0 {
		cfg.DirectoryRefreshInterval = 4 * time.Minute
	}
	if cfg.BacklogInterval <= 0 {
		cfg.BacklogInterval = time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	log = log.With(slog.String("component", "scheduler"))
	scheduler, err := gocron.NewScheduler(gocron.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobScheduler{
		scheduler:     scheduler,
		directory:     directory,
		notifications: notifications,
		cfg:           cfg,
		log:           log,
		ctx:           ctx,
		cancel:        cancel,
		jobs:          make(map[string]gocron.Job),
	}

	if err := js.registerJobs(); err != nil {
		cancel()
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.log.Info("starting background job scheduler", slog.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

// Stop cancels running jobs and waits for them to return.
func (js *JobScheduler) Stop() error {
	js.log.Info("stopping background job scheduler")
	js.cancel()
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	// The directory cache is warmed as soon as the scheduler starts.
	if err := js.addJob(JobDirectoryRefresh, js.cfg.DirectoryRefreshInterval, js.refreshDirectory,
		gocron.WithStartAt(gocron.WithStartImmediately())); err != nil {
		return err
	}
	if js.notifications != nil {
		if err := js.addJob(JobNotificationBacklog, js.cfg.BacklogInterval, js.reportBacklog); err != nil {
			return err
		}
	}
	return nil
}

func (js *JobScheduler) addJob(name string, interval time.Duration, run func(context.Context) error, opts ...gocron.JobOption) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	task := func() {
		ctx, cancel := context.WithTimeout(js.ctx, js.cfg.JobTimeout)
		defer cancel()

		if err := run(ctx); err != nil {
			metrics.JobRunsTotal.WithLabelValues(name, "error").Inc()
			js.log.Error("background job failed", slog.String("job", name), sl.Err(err))
			return
		}
		metrics.JobRunsTotal.WithLabelValues(name, "success").Inc()
	}

	opts = append([]gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}, opts...)

	job, err := js.scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(task), opts...)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", name, err)
	}
	js.jobs[name] = job
	return nil
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

// refreshDirectory reloads the business directory into the cache.
func (js *JobScheduler) refreshDirectory(ctx context.Context) error {
	start := time.Now()
	n, err := js.directory.RefreshCache(ctx)
	if err != nil {
		return err
	}
	js.log.Info("directory cache refreshed",
		slog.Int("businesses", n),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

func (js *JobScheduler) reportBacklog(ctx context.Context) error {
	n, err := js.notifications.Backlog(ctx)
	if err != nil {
		return err
	}
	metrics.NotificationBacklog.Set(float64(n))
	if n > 0 {
		js.log.Debug("notifications waiting for delivery", slog.Int64("backlog", n))
	}
	return nil
}
