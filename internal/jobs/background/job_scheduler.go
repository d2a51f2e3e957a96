package background

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docarchive/internal/jobs"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const (
	OccupancyReportJob = "folder-occupancy-report"
	IntegrityCheckJob  = "storage-integrity-check"
)

// JobScheduler runs the storage monitor on a fixed interval
type JobScheduler struct {
	scheduler gocron.Scheduler
	monitor   *jobs.StorageMonitor
	interval  time.Duration
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
	logger    *zap.Logger
}

func NewJobScheduler(monitor *jobs.StorageMonitor, interval time.Duration, logger *zap.Logger) (*JobScheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("monitor interval must be positive, got %s", interval)
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLogger(zapLogger{logger.Sugar()}))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		monitor:   monitor,
		interval:  interval,
		jobs:      make(map[string]gocron.Job),
		logger:    logger,
	}

	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler", zap.Duration("interval", js.interval))
	js.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	if err := js.AddJob(OccupancyReportJob, js.interval, js.monitor.RunOccupancyReport); err != nil {
		return err
	}
	if err := js.AddJob(IntegrityCheckJob, js.interval, js.monitor.RunIntegrityCheck); err != nil {
		return err
	}
	js.logger.Info("registered background jobs", zap.Int("count", len(js.jobs)))
	return nil
}

// AddJob schedules task every interval. gocron passes the job context to
// task and cancels it on shutdown. Overlapping runs are skipped.
func (js *JobScheduler) AddJob(name string, interval time.Duration, task func(ctx context.Context) error) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if _, exists := js.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", name, err)
	}

	js.jobs[name] = job
	return nil
}

// RemoveJob removes a job from the scheduler
func (js *JobScheduler) RemoveJob(name string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[name]
	if !exists {
		return nil
	}
	delete(js.jobs, name)
	return js.scheduler.RemoveJob(job.ID())
}

// RunNow triggers a registered job outside its schedule
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, exists := js.jobs[name]
	js.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %q not registered", name)
	}
	return job.RunNow()
}

// JobNames lists the registered jobs in name order
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// zapLogger adapts a sugared zap logger to gocron.Logger.
type zapLogger struct {
	l *zap.SugaredLogger
}

func (z zapLogger) Debug(msg string, args ...any) { z.l.Debugw(msg, args...) }
func (z zapLogger) Error(msg string, args ...any) { z.l.Errorw(msg, args...) }
func (z zapLogger) Info(msg string, args ...any)  { z.l.Infow(msg, args...) }
func (z zapLogger) Warn(msg string, args ...any)  { z.l.Warnw(msg, args...) }
