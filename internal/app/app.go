// Package app ties the agenda core to storage, extraction and reminders.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alan/citascrit-cli/internal/agenda"
	"github.com/alan/citascrit-cli/internal/config"
	"github.com/alan/citascrit-cli/internal/documents"
	apperrors "github.com/alan/citascrit-cli/internal/errors"
	"github.com/alan/citascrit-cli/internal/metrics"
	"github.com/alan/citascrit-cli/internal/reminders"
	"github.com/alan/citascrit-cli/internal/store"
)

// Repository is the persistence the service needs. *store.Store implements it.
type Repository interface {
	ReplaceAgenda(ctx context.Context, imp *store.Import, records []agenda.Appointment) error
	LoadRecords(ctx context.Context) ([]agenda.Appointment, error)
	SetCancelled(ctx context.Context, position int, cancelled bool) error
	LastImport(ctx context.Context) (*store.Import, error)

	SaveCarnet(ctx context.Context, carnet string) error
	LoadCarnet(ctx context.Context) (string, bool, error)
	SaveProfile(ctx context.Context, p agenda.Profile) error
	LoadProfile(ctx context.Context) (*agenda.Profile, error)

	LogAlarm(ctx context.Context, description string) error
	AlarmLog(ctx context.Context) ([]string, error)
	ClearAlarmLog(ctx context.Context) error
}

var _ Repository = (*store.Store)(nil)

type nopScheduler struct{}

func (nopScheduler) Arm(time.Time, reminders.Payload) error { return nil }
func (nopScheduler) Cancel(string) {}

// App is the agenda service used by the CLI and the daemon.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Version string

	repo       Repository
	extractor  documents.Extractor
	scheduler  reminders.Scheduler
	metrics    *metrics.Metrics
	parser     *agenda.Parser
	classifier *agenda.Classifier
	policy     *reminders.Policy
	now        func() time.Time

	// importMu serializes imports and re-arms between the CLI, the inbox
	// watcher and cron.
	importMu sync.Mutex
}

// New wires an App from cfg. A nil scheduler plans alarms and logs them
// without arming anything, which is what one-shot CLI commands want.
func New(cfg *config.Config, repo Repository, ex documents.Extractor, sched reminders.Scheduler, m *metrics.Metrics, logger *zap.Logger, version string) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sched == nil {
		sched = nopScheduler{}
	}

	normalizer := agenda.NewNormalizer(cfg.Location())
	durations := agenda.NewDurationTable(agenda.DefaultServiceDurations(), cfg.Agenda.DefaultDuration)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Version:    version,
		repo:       repo,
		extractor:  ex,
		scheduler:  sched,
		metrics:    m,
		parser:     agenda.NewParser(cfg.Parser.ExtraBoilerplate...),
		classifier: agenda.NewClassifier(normalizer, durations),
		policy:     reminders.NewPolicy(normalizer, policyOptions(cfg)),
		now:        time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (app *App) SetClock(now func() time.Time) {
	app.now = now
}

// Now returns the service clock.
func (app *App) Now() time.Time {
	return app.now()
}

// ArmsAlarms reports whether alarms are armed on a real scheduler rather
// than only planned and logged.
func (app *App) ArmsAlarms() bool {
	_, nop := app.scheduler.(nopScheduler)
	return !nop
}

// Classifier exposes the state classifier built from the configuration.
func (app *App) Classifier() *agenda.Classifier {
	return app.classifier
}

func policyOptions(cfg *config.Config) reminders.Options {
	return reminders.Options{
		Lead:             cfg.ReminderLead(),
		DayBeforeEnabled: cfg.Reminders.DayBeforeEnabled,
		DayBeforeHour:    cfg.Reminders.DayBeforeHour,
		DayBeforeMinute:  cfg.Reminders.DayBeforeMinute,
	}
}

// ImportResult summarizes an accepted document.
type ImportResult struct {
	Import   *store.Import
	Replaced int
	Alarms   []reminders.Alarm
}

// ImportDocument extracts, validates and stores the agenda in path,
// replacing the stored one. The document is accepted only when it carries
// a carnet and that carnet matches the profile. Old alarms are cancelled
// and new ones armed only after acceptance.
func (app *App) ImportDocument(ctx context.Context, path string) (*ImportResult, error) {
	app.importMu.Lock()
	defer app.importMu.Unlock()

	start := time.Now()
	res, err := app.importDocument(ctx, path)
	switch {
	case err == nil:
		app.metrics.RecordImport(metrics.ImportAccepted, time.Since(start))
		app.Logger.Info("Agenda imported",
			zap.String("file", path),
			zap.String("import_id", res.Import.ID),
			zap.Int("appointments", res.Import.Appointments),
			zap.Int("alarms", len(res.Alarms)),
		)
	case isRejection(err):
		app.metrics.RecordImport(metrics.ImportRejected, time.Since(start))
		app.Logger.Warn("Agenda rejected", zap.String("file", path), zap.Error(err))
	default:
		app.metrics.RecordImport(metrics.ImportFailed, time.Since(start))
		app.Logger.Error("Agenda import failed", zap.String("file", path), zap.Error(err))
	}
	return res, err
}

func (app *App) importDocument(ctx context.Context, path string) (*ImportResult, error) {
	profile, err := app.repo.LoadProfile(ctx)
	if err != nil {
		return nil, err
	}
	hasProfileCarnet := profile != nil && profile.Carnet != ""
	if !hasProfileCarnet && app.Config.Import.RequireProfile {
		return nil, apperrors.New(apperrors.ErrProfileRequired.Code, "complete the profile carnet before importing an agenda")
	}

	text, err := app.extractor.ExtractText(ctx, path)
	if err != nil {
		return nil, err
	}

	carnet, ok := agenda.ExtractCarnet(text)
	if !ok {
		return nil, apperrors.New(apperrors.ErrNoCarnet.Code, fmt.Sprintf("%s has no carnet", filepath.Base(path)))
	}
	if hasProfileCarnet && carnet != profile.Carnet {
		return nil, apperrors.New(apperrors.ErrCarnetMismatch.Code,
			fmt.Sprintf("document carnet %s does not match profile carnet %s", carnet, profile.Carnet))
	}

	parsed := app.parser.ParseDetailed(text)
	app.metrics.RecordParse(len(parsed.Appointments), parsed.Skipped, parsed.Duplicates)

	old, err := app.repo.LoadRecords(ctx)
	if err != nil {
		return nil, err
	}

	imp := &store.Import{
		ID:           uuid.New().String(),
		FileName:     filepath.Base(path),
		Carnet:       carnet,
		Appointments: len(parsed.Appointments),
		Skipped:      parsed.Skipped,
		Duplicates:   parsed.Duplicates,
		CreatedAt:    app.now(),
	}
	// The old agenda keeps its alarms until the new one is stored.
	if err := app.repo.ReplaceAgenda(ctx, imp, parsed.Appointments); err != nil {
		return nil, err
	}
	app.disarm(old)
	if err := app.repo.ClearAlarmLog(ctx); err != nil {
		app.Logger.Warn("Failed to clear alarm log", zap.Error(err))
	}
	alarms := app.arm(ctx, parsed.Appointments)

	if err := app.repo.SaveCarnet(ctx, carnet); err != nil {
		return nil, err
	}
	return &ImportResult{Import: imp, Replaced: len(old), Alarms: alarms}, nil
}

func isRejection(err error) bool {
	switch apperrors.GetCode(err) {
	case apperrors.ErrNoCarnet.Code, apperrors.ErrCarnetMismatch.Code,
		apperrors.ErrProfileRequired.Code, apperrors.ErrNotPDF.Code:
		return true
	}
	return false
}

// Rearm cancels and re-arms every alarm for the stored agenda. Called at
// daemon start and periodically so alarms survive restarts and drift.
func (app *App) Rearm(ctx context.Context) ([]reminders.Alarm, error) {
	app.importMu.Lock()
	defer app.importMu.Unlock()

	records, err := app.repo.LoadRecords(ctx)
	if err != nil {
		return nil, err
	}
	app.disarm(records)
	alarms := app.arm(ctx, records)

	app.Logger.Debug("Alarms re-armed", zap.Int("records", len(records)), zap.Int("alarms", len(alarms)))
	return alarms, nil
}

func (app *App) disarm(records []agenda.Appointment) {
	for _, key := range reminders.Keys(records) {
		app.scheduler.Cancel(key)
	}
}

// arm plans and arms alarms for records. Alarms the scheduler refuses are
// logged and left out of the result.
func (app *App) arm(ctx context.Context, records []agenda.Appointment) []reminders.Alarm {
	planned := app.policy.Plan(records, app.now())
	armed := make([]reminders.Alarm, 0, len(planned))
	for _, a := range planned {
		if err := app.scheduler.Arm(a.At, a.Payload); err != nil {
			app.Logger.Warn("Failed to arm alarm", zap.String("key", a.Payload.Key), zap.Error(err))
			continue
		}
		armed = append(armed, a)
		if err := app.repo.LogAlarm(ctx, reminders.Describe(a)); err != nil {
			app.Logger.Warn("Failed to log alarm", zap.String("key", a.Payload.Key), zap.Error(err))
		}
	}
	return armed
}

// CancelAppointment marks the record at position as cancelled and disarms
// its reminder. Past and already cancelled records cannot be cancelled.
func (app *App) CancelAppointment(ctx context.Context, position int) (agenda.Appointment, error) {
	app.importMu.Lock()
	defer app.importMu.Unlock()

	records, err := app.repo.LoadRecords(ctx)
	if err != nil {
		return agenda.Appointment{}, err
	}
	if position < 0 || position >= len(records) {
		return agenda.Appointment{}, apperrors.New(apperrors.ErrAppointmentNotFound.Code,
			fmt.Sprintf("no appointment number %d", position+1))
	}

	a := records[position]
	if !app.classifier.Cancellable(a, app.now()) {
		return a, apperrors.New(apperrors.ErrBadRequest.Code,
			fmt.Sprintf("appointment %d is cancelled or already happened", position+1))
	}

	if err := app.repo.SetCancelled(ctx, position, true); err != nil {
		return a, err
	}
	app.scheduler.Cancel(a.ReminderKey())
	a.Cancelled = true

	app.Logger.Info("Appointment cancelled",
		zap.String("fecha", a.Date),
		zap.String("hora", a.Time),
		zap.String("servicio", a.Service),
	)
	return a, nil
}

// Entry is one row of the agenda view.
type Entry struct {
	Number      int
	Appointment agenda.Appointment
	State       agenda.State
	Category    agenda.Category
	Duration    time.Duration
	Cancellable bool
}

// List returns the agenda view at the current time. Without all, only
// visible records are returned. Numbers stay those of the full agenda so
// they can be passed to CancelAppointment.
func (app *App) List(ctx context.Context, all bool) ([]Entry, error) {
	records, err := app.repo.LoadRecords(ctx)
	if err != nil {
		return nil, err
	}

	now := app.now()
	entries := make([]Entry, 0, len(records))
	for i, r := range records {
		if !all && !app.classifier.Visible(r, now) {
			continue
		}
		entries = append(entries, Entry{
			Number:      i + 1,
			Appointment: r,
			State:       app.classifier.Classify(r, now),
			Category:    agenda.CategoryOf(r.Service),
			Duration:    app.classifier.Duration(r),
			Cancellable: app.classifier.Cancellable(r, now),
		})
	}
	return entries, nil
}

// Status is a summary of the stored agenda.
type Status struct {
	Profile    *agenda.Profile
	Carnet     string
	HasCarnet  bool
	LastImport *store.Import
	Total      int
	Visible    int
	Cancelled  int
	InProgress *Entry
	Next       *Entry
}

// Status summarizes the stored agenda at the current time.
func (app *App) Status(ctx context.Context) (*Status, error) {
	profile, err := app.repo.LoadProfile(ctx)
	if err != nil {
		return nil, err
	}
	carnet, hasCarnet, err := app.repo.LoadCarnet(ctx)
	if err != nil {
		return nil, err
	}
	last, err := app.repo.LastImport(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := app.List(ctx, true)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Profile:    profile,
		Carnet:     carnet,
		HasCarnet:  hasCarnet,
		LastImport: last,
		Total:      len(entries),
	}

	now := app.now()
	var nextStart time.Time
	for i := range entries {
		e := &entries[i]
		if app.classifier.Visible(e.Appointment, now) {
			st.Visible++
		}
		switch e.State.Kind {
		case agenda.StateCancelled:
			st.Cancelled++
		case agenda.StateInProgress:
			if st.InProgress == nil {
				st.InProgress = e
			}
		case agenda.StateUpcoming:
			start, err := app.classifier.Start(e.Appointment)
			if err != nil || !start.After(now) {
				continue
			}
			if st.Next == nil || start.Before(nextStart) {
				st.Next, nextStart = e, start
			}
		}
	}
	return st, nil
}

// Profile returns the stored profile, or nil.
func (app *App) Profile(ctx context.Context) (*agenda.Profile, error) {
	return app.repo.LoadProfile(ctx)
}

// SaveProfile validates and stores p. The carnet is mandatory and the
// birth date, when given, must be an ISO date.
func (app *App) SaveProfile(ctx context.Context, p agenda.Profile) error {
	if p.Carnet == "" {
		return apperrors.New(apperrors.ErrBadRequest.Code, "carnet is required")
	}
	if p.BirthDate != "" {
		if _, ok := p.Age(app.now()); !ok {
			return apperrors.New(apperrors.ErrBadRequest.Code,
				fmt.Sprintf("birth date %q is not YYYY-MM-DD", p.BirthDate))
		}
	}
	if err := app.repo.SaveProfile(ctx, p); err != nil {
		return err
	}
	app.Logger.Info("Profile saved", zap.String("name", p.FullName()), zap.String("carnet", p.Carnet))
	return nil
}

// AlarmLog returns the descriptions of every alarm armed so far.
func (app *App) AlarmLog(ctx context.Context) ([]string, error) {
	return app.repo.AlarmLog(ctx)
}

// ClearAlarmLog empties the alarm log. Armed alarms are not affected.
func (app *App) ClearAlarmLog(ctx context.Context) error {
	return app.repo.ClearAlarmLog(ctx)
}
