package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan/citascrit-cli/internal/agenda"
	"github.com/alan/citascrit-cli/internal/metrics"
	"github.com/alan/citascrit-cli/internal/reminders"
)

// futureAgenda renders a two-appointment agenda starting a few days from now.
func futureAgenda(now time.Time) string {
	first := now.AddDate(0, 0, 3)
	first = time.Date(first.Year(), first.Month(), first.Day(), 10, 0, 0, 0, time.UTC)
	second := first.AddDate(0, 0, 1)

	return fmt.Sprintf(`Carnet 20456789
%s %s Dr. Juan Pérez 5
TF Terapia Física
%s %s Lic. Ana López 12
PS Psicología
`, agenda.FormatDate(first), agenda.FormatTime(first), agenda.FormatDate(second), agenda.FormatTime(second))
}

func TestDaemon_ImportsInboxAndArmsAlarms(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	sched := reminders.NewTimerScheduler(reminders.NotifierFunc(func(ctx context.Context, p reminders.Payload) error {
		return nil
	}), nil, m)

	env := newTestEnvWithMetrics(t, sched, m)
	env.cfg.Documents.InboxDir = filepath.Join(env.dir, "inbox")
	env.setProfile(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	d := &Daemon{App: env.app, Scheduler: sched, Metrics: m}
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(env.cfg.Documents.InboxDir)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(env.cfg.Documents.InboxDir, "agenda.txt")
	require.NoError(t, os.WriteFile(path, []byte(futureAgenda(time.Now().UTC())), 0644))

	// Two reminders and two day-before alerts.
	assert.Eventually(t, func() bool {
		return len(sched.Pending()) == 4
	}, 5*time.Second, 50*time.Millisecond)

	entries, err := env.app.List(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	snap := env.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.ImportsAccepted)
	assert.Equal(t, int64(4), snap.AlarmsPending)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Empty(t, sched.Pending())
}

func TestDaemon_InvalidSchedule(t *testing.T) {
	sched := reminders.NewTimerScheduler(nil, nil, nil)
	env := newTestEnv(t, sched)
	env.cfg.Daemon.RefreshSchedule = "whenever"
	env.cfg.Documents.InboxDir = ""

	d := &Daemon{App: env.app, Scheduler: sched}
	assert.Error(t, d.Run(context.Background()))
}
