// Package cron runs recurring background jobs on cron schedules.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	robfig "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of recurring work.
type Job func(ctx context.Context) error

// Runner manages scheduled job execution
type Runner struct {
	cron    *robfig.Cron
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]robfig.EntryID
	running bool
	mu      sync.RWMutex
}

// NewRunner creates a new cron runner. Specs accept the standard five
// fields and descriptors such as "@every 15m" or "@daily".
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}

	return &Runner{
		cron: robfig.New(
			robfig.WithLogger(cl),
			robfig.WithChain(robfig.Recover(cl), robfig.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]robfig.EntryID),
	}
}

// Add registers job under name. Adding a name twice replaces the job.
func (r *Runner) Add(name, spec string, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.cron.AddFunc(spec, func() {
		r.execute(name, job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	if old, exists := r.entries[name]; exists {
		r.cron.Remove(old)
	}
	r.entries[name] = id

	r.logger.Info("Job scheduled", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

// Start starts the cron runner
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("cron runner already running")
	}
	r.running = true
	r.cron.Start()
	return nil
}

// Stop stops the runner and waits for running jobs to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	<-r.cron.Stop().Done()
	r.logger.Info("Cron runner stopped")
}

// Next returns the next run time of the job called name.
func (r *Runner) Next(name string) (time.Time, bool) {
	r.mu.RLock()
	id, exists := r.entries[name]
	r.mu.RUnlock()
	if !exists {
		return time.Time{}, false
	}
	next := r.cron.Entry(id).Next
	return next, !next.IsZero()
}

func (r *Runner) execute(name string, job Job) {
	start := time.Now()
	if err := job(r.ctx); err != nil {
		r.logger.Error("Scheduled job failed",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("Scheduled job completed",
		zap.String("job", name),
		zap.Duration("duration", time.Since(start)),
	)
}

// cronLogger routes robfig/cron's own logging to zap.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
