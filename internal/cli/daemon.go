package cli

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/alan/citascrit-cli/internal/api"
	"github.com/alan/citascrit-cli/internal/app"
	"github.com/alan/citascrit-cli/internal/cron"
	"github.com/alan/citascrit-cli/internal/documents"
	"github.com/alan/citascrit-cli/internal/metrics"
	"github.com/alan/citascrit-cli/internal/reminders"
)

const rearmJob = "rearm"

// Daemon delivers reminders for the stored agenda until its context ends.
// It re-arms alarms on a cron schedule, imports documents dropped in the
// inbox and serves the HTTP API when an address is configured.
type Daemon struct {
	App       *app.App
	Scheduler *reminders.TimerScheduler
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.App.Config
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defer d.Scheduler.Stop()

	alarms, err := d.App.Rearm(ctx)
	if err != nil {
		return fmt.Errorf("failed to arm alarms: %w", err)
	}
	logger.Info("Alarms armed", zap.Int("count", len(alarms)))

	runner := cron.NewRunner(logger)
	if err := runner.Add(rearmJob, cfg.Daemon.RefreshSchedule, func(ctx context.Context) error {
		_, err := d.App.Rearm(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := runner.Start(); err != nil {
		return err
	}
	defer runner.Stop()

	// Stays nil, and never ready, without an inbox.
	var watchErr chan error
	if dir := cfg.Documents.InboxDir; dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create inbox: %w", err)
		}
		w := documents.NewWatcher(dir, func(ctx context.Context, path string) error {
			_, err := d.App.ImportDocument(ctx, path)
			return err
		}, logger)
		watchErr = make(chan error, 1)
		go func() { watchErr <- w.Run(ctx) }()
	}

	var srv *api.Server
	if addr := cfg.Server.Address; addr != "" {
		srv = api.New(d.App, d.Scheduler, d.Metrics, logger)
		go func() {
			logger.Info("Serving API", zap.String("addr", addr))
			if err := srv.Start(addr); err != nil {
				logger.Error("API server error", zap.Error(err))
			}
		}()
	}

	if next, ok := runner.Next(rearmJob); ok {
		logger.Info("Daemon started", zap.Time("next_refresh", next))
	}

	select {
	case <-ctx.Done():
		if watchErr != nil {
			<-watchErr
		}
	case err := <-watchErr:
		if err != nil {
			logger.Error("Inbox watcher stopped", zap.Error(err))
		}
		<-ctx.Done()
	}

	snap := d.Metrics.Snapshot()
	logger.Info("Shutting down...",
		zap.Int64("imports_accepted", snap.ImportsAccepted),
		zap.Int64("alarms_fired", snap.AlarmsFired),
	)
	if srv != nil {
		if err := srv.Shutdown(); err != nil {
			logger.Error("API server shutdown error", zap.Error(err))
		}
	}
	return nil
}
