package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan/citascrit-cli/internal/app"
	"github.com/alan/citascrit-cli/internal/config"
	"github.com/alan/citascrit-cli/internal/documents"
	apperrors "github.com/alan/citascrit-cli/internal/errors"
	"github.com/alan/citascrit-cli/internal/metrics"
	"github.com/alan/citascrit-cli/internal/reminders"
	"github.com/alan/citascrit-cli/internal/store"
)

const agendaText = `Citas del Paciente
Paciente: Sofía Hernández Ruiz   Carnet 20456789
jueves, 12 de junio de 2025 10:00 a.m. Dr. Juan Pérez
5
TF Terapia Física
viernes, 13 de junio de 2025 11:00 a.m. Lic. Ana López 12
TO Terapia Ocupacional
lunes, 16 de junio de 2025 09:30 a.m. Dra. Rosa Díaz 3
HI Tina Hubbard
jueves, 19 de junio de 2025 08:00 a.m. Lic. Pablo Gómez 4
TL Terapia de Lenguaje
`

var june12 = time.Date(2025, time.June, 12, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	app     *app.App
	cfg     *config.Config
	metrics *metrics.Metrics
	dir     string
	agenda  string
}

func newTestEnv(t *testing.T, sched reminders.Scheduler) *testEnv {
	t.Helper()
	return newTestEnvWithMetrics(t, sched, metrics.New(prometheus.NewRegistry()))
}

// newTestEnvWithMetrics shares m between the app and a scheduler built by
// the caller.
func newTestEnvWithMetrics(t *testing.T, sched reminders.Scheduler, m *metrics.Metrics) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults(dir)
	cfg.Agenda.Timezone = "UTC"

	st, err := store.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	application := app.New(cfg, st, documents.NewFileExtractor(""), sched, m, nil, "test")

	path := filepath.Join(dir, "agenda.txt")
	require.NoError(t, os.WriteFile(path, []byte(agendaText), 0644))

	return &testEnv{app: application, cfg: cfg, metrics: m, dir: dir, agenda: path}
}

func (e *testEnv) at(now time.Time) *testEnv {
	e.app.SetClock(func() time.Time { return now })
	return e
}

func newConsole(input string, interactive bool) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Console{In: strings.NewReader(input), Out: out, Interactive: interactive}, out
}

func (e *testEnv) setProfile(t *testing.T) {
	t.Helper()
	con, _ := newConsole("", false)
	require.NoError(t, HandleProfileCommand(context.Background(), e.app, con, []string{
		"set", "--nombre", "Sofía", "--apellido-paterno", "Hernández", "--carnet", "20456789", "--nacimiento", "2015-05-12",
	}))
}

func TestHandleProfileCommand(t *testing.T) {
	env := newTestEnv(t, nil).at(june12)
	ctx := context.Background()

	con, out := newConsole("", false)
	require.NoError(t, HandleProfileCommand(ctx, env.app, con, nil))
	assert.Contains(t, out.String(), "No profile saved")

	env.setProfile(t)

	con, out = newConsole("", false)
	require.NoError(t, HandleProfileCommand(ctx, env.app, con, []string{"show"}))
	assert.Contains(t, out.String(), "Sofía Hernández")
	assert.Contains(t, out.String(), "20456789")
	assert.Contains(t, out.String(), "10")

	// Partial updates keep the other fields.
	con, _ = newConsole("", false)
	require.NoError(t, HandleProfileCommand(ctx, env.app, con, []string{"set", "--apellido-materno", "Ruiz"}))
	p, err := env.app.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sofía Hernández Ruiz", p.FullName())
	assert.Equal(t, "20456789", p.Carnet)

	con, _ = newConsole("", false)
	err = HandleProfileCommand(ctx, env.app, con, []string{"set", "--nacimiento", "ayer"})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	con, _ = newConsole("", false)
	err = HandleProfileCommand(ctx, env.app, con, []string{"delete"})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestHandleImportCommand(t *testing.T) {
	env := newTestEnv(t, nil).at(june12)
	ctx := context.Background()

	con, _ := newConsole("", false)
	err := HandleImportCommand(ctx, env.app, con, []string{env.agenda})
	require.ErrorIs(t, err, apperrors.ErrProfileRequired)

	env.setProfile(t)

	con, out := newConsole("", false)
	require.NoError(t, HandleImportCommand(ctx, env.app, con, []string{env.agenda}))
	assert.Contains(t, out.String(), "Agenda loaded: 4 appointments")
	assert.Contains(t, out.String(), "Carnet: 20456789")
	assert.Contains(t, out.String(), "Alarms: 7")
	assert.Contains(t, out.String(), "citascrit daemon")

	// A loaded agenda is only replaced on request.
	con, _ = newConsole("", false)
	err = HandleImportCommand(ctx, env.app, con, []string{env.agenda})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	con, out = newConsole("n\n", true)
	require.NoError(t, HandleImportCommand(ctx, env.app, con, []string{env.agenda}))
	assert.Contains(t, out.String(), "Cancelled")

	con, out = newConsole("y\n", true)
	require.NoError(t, HandleImportCommand(ctx, env.app, con, []string{env.agenda}))
	assert.Contains(t, out.String(), "Agenda loaded")

	con, out = newConsole("", false)
	require.NoError(t, HandleImportCommand(ctx, env.app, con, []string{"--yes", env.agenda}))
	assert.Contains(t, out.String(), "Agenda loaded")
}

func TestHandleImportCommand_Usage(t *testing.T) {
	env := newTestEnv(t, nil).at(june12)
	ctx := context.Background()

	con, out := newConsole("", false)
	assert.ErrorIs(t, HandleImportCommand(ctx, env.app, con, nil), apperrors.ErrBadRequest)
	assert.Contains(t, out.String(), "Usage: citascrit import")

	con, _ = newConsole("", false)
	assert.ErrorIs(t, HandleImportCommand(ctx, env.app, con, []string{"a.pdf", "b.pdf"}), apperrors.ErrBadRequest)

	env.setProfile(t)
	photo := filepath.Join(env.dir, "foto.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0644))
	con, _ = newConsole("", false)
	assert.ErrorIs(t, HandleImportCommand(ctx, env.app, con, []string{photo}), apperrors.ErrNotPDF)
}

func importAgenda(t *testing.T, env *testEnv) {
	t.Helper()
	env.setProfile(t)
	con, _ := newConsole("", false)
	require.NoError(t, HandleImportCommand(context.Background(), env.app, con, []string{"--yes", env.agenda}))
}

func TestHandleListAndCancel(t *testing.T) {
	env := newTestEnv(t, nil).at(june12)
	ctx := context.Background()

	con, out := newConsole("", false)
	require.NoError(t, HandleListCommand(ctx, env.app, con, nil))
	assert.Contains(t, out.String(), "No appointments")

	importAgenda(t, env)

	con, out = newConsole("", false)
	require.NoError(t, HandleCancelCommand(ctx, env.app, con, []string{"2"}))
	assert.Contains(t, out.String(), "Cancelled Terapia Ocupacional")

	con, out = newConsole("", false)
	require.NoError(t, HandleListCommand(ctx, env.app, con, nil))
	assert.Contains(t, out.String(), "Terapia Física")
	assert.Contains(t, out.String(), "cubículo 5")
	assert.Contains(t, out.String(), "45 min")
	assert.NotContains(t, out.String(), "Terapia Ocupacional")

	con, out = newConsole("", false)
	require.NoError(t, HandleListCommand(ctx, env.app, con, []string{"--all"}))
	assert.Contains(t, out.String(), "Terapia Ocupacional")
	assert.Contains(t, out.String(), "no se realizará")

	con, _ = newConsole("", false)
	assert.ErrorIs(t, HandleCancelCommand(ctx, env.app, con, []string{"2"}), apperrors.ErrBadRequest)
	assert.ErrorIs(t, HandleCancelCommand(ctx, env.app, con, []string{"9"}), apperrors.ErrAppointmentNotFound)
	assert.ErrorIs(t, HandleCancelCommand(ctx, env.app, con, []string{"dos"}), apperrors.ErrBadRequest)
	assert.ErrorIs(t, HandleCancelCommand(ctx, env.app, con, nil), apperrors.ErrBadRequest)
	assert.Error(t, HandleListCommand(ctx, env.app, con, []string{"--bogus"}))
}

func TestHandleStatusCommand(t *testing.T) {
	env := newTestEnv(t, nil).at(june12)
	ctx := context.Background()

	con, out := newConsole("", false)
	require.NoError(t, HandleStatusCommand(ctx, env.app, con))
	assert.Contains(t, out.String(), "no profile")
	assert.Contains(t, out.String(), "Carnet:   --")

	importAgenda(t, env)

	con, out = newConsole("", false)
	require.NoError(t, HandleStatusCommand(ctx, env.app, con))
	assert.Contains(t, out.String(), "Patient:  Sofía Hernández")
	assert.Contains(t, out.String(), "Carnet:   20456789")
	assert.Contains(t, out.String(), "agenda.txt")
	assert.Contains(t, out.String(), "Appointments: 4 total, 4 visible, 0 cancelled")
	assert.Contains(t, out.String(), "Next: Terapia Física")
}

func TestHandleAlarmsCommand(t *testing.T) {
	env := newTestEnv(t, nil).at(june12)
	ctx := context.Background()
	importAgenda(t, env)

	con, out := newConsole("", false)
	require.NoError(t, HandleAlarmsCommand(ctx, env.app, con, nil))
	assert.Contains(t, out.String(), "Cita: Terapia Física - jueves, 12 de junio de 2025 10:00 a.m.")
	assert.Contains(t, out.String(), "Mañana: viernes, 13 de junio de 2025")

	con, out = newConsole("", false)
	require.NoError(t, HandleAlarmsCommand(ctx, env.app, con, []string{"clear"}))
	assert.Contains(t, out.String(), "cleared")

	con, out = newConsole("", false)
	require.NoError(t, HandleAlarmsCommand(ctx, env.app, con, nil))
	assert.Contains(t, out.String(), "No alarms")

	con, _ = newConsole("", false)
	assert.ErrorIs(t, HandleAlarmsCommand(ctx, env.app, con, []string{"purge"}), apperrors.ErrBadRequest)
}

func TestHandleConfigCommand(t *testing.T) {
	env := newTestEnv(t, nil)
	path := config.ConfigPath(env.dir)

	con, out := newConsole("", false)
	require.NoError(t, HandleConfigCommand(env.cfg, con, []string{"path"}))
	assert.Equal(t, path+"\n", out.String())

	con, _ = newConsole("", false)
	require.NoError(t, HandleConfigCommand(env.cfg, con, []string{"init"}))
	assert.FileExists(t, path)

	con, _ = newConsole("", false)
	assert.Error(t, HandleConfigCommand(env.cfg, con, []string{"init"}))
	require.NoError(t, HandleConfigCommand(env.cfg, con, []string{"init", "--force"}))

	loaded, err := config.Load(path, env.dir)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.Reminders.LeadMinutes)

	con, out = newConsole("", false)
	require.NoError(t, HandleConfigCommand(env.cfg, con, []string{"show"}))
	assert.Contains(t, out.String(), "timezone: UTC")
	assert.Contains(t, out.String(), "refresh_schedule:")

	env.cfg.Server.JWTSecret = "0123456789abcdef"
	con, out = newConsole("", false)
	require.NoError(t, HandleConfigCommand(env.cfg, con, []string{"show"}))
	assert.NotContains(t, out.String(), "0123456789abcdef")
	assert.Contains(t, out.String(), "********")

	con, out = newConsole("", false)
	require.NoError(t, HandleConfigCommand(env.cfg, con, nil))
	assert.Contains(t, out.String(), "Usage: citascrit config")
	assert.ErrorIs(t, HandleConfigCommand(env.cfg, con, []string{"edit"}), apperrors.ErrBadRequest)
}

func TestHandleStoreLocked(t *testing.T) {
	env := newTestEnv(t, nil)
	lockErr := apperrors.New(apperrors.ErrStoreLocked.Code, "badger is in use by another citascrit process")

	con, _ := newConsole("", false)
	err := HandleStoreLocked(env.cfg, con, []string{"list"}, lockErr)
	require.ErrorIs(t, err, apperrors.ErrStoreLocked)
	assert.Contains(t, err.Error(), "the daemon is running")

	// Without an inbox an import cannot be handed over either.
	err = HandleStoreLocked(env.cfg, con, []string{"import", env.agenda}, lockErr)
	assert.ErrorIs(t, err, apperrors.ErrStoreLocked)

	inbox := filepath.Join(env.dir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0755))
	env.cfg.Documents.InboxDir = inbox

	con, out := newConsole("", false)
	require.NoError(t, HandleStoreLocked(env.cfg, con, []string{"import", env.agenda, "--yes"}, lockErr))
	assert.Contains(t, out.String(), "queued")

	data, err := os.ReadFile(filepath.Join(inbox, "agenda.txt"))
	require.NoError(t, err)
	assert.Equal(t, agendaText, string(data))

	entries, err := os.ReadDir(inbox)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	con, _ = newConsole("", false)
	err = HandleStoreLocked(env.cfg, con, []string{"import", filepath.Join(env.dir, "foto.jpg")}, lockErr)
	assert.ErrorIs(t, err, apperrors.ErrNotPDF)
}

func TestHandleTokenCommand(t *testing.T) {
	env := newTestEnv(t, nil)

	con, _ := newConsole("", false)
	assert.ErrorIs(t, HandleTokenCommand(env.cfg, con, nil), apperrors.ErrBadRequest)

	env.cfg.Server.JWTSecret = "0123456789abcdef"
	con, out := newConsole("", false)
	require.NoError(t, HandleTokenCommand(env.cfg, con, []string{"--ttl", "1h"}))
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "."), 3)

	con, _ = newConsole("", false)
	assert.ErrorIs(t, HandleTokenCommand(env.cfg, con, []string{"--ttl", "-1h"}), apperrors.ErrBadRequest)
}

func TestPrintFunctions(t *testing.T) {
	var out bytes.Buffer
	PrintExtendedHelp(&out)
	PrintImportHelp(&out)
	PrintProfileHelp(&out)
	PrintConfigHelp(&out)
	assert.Contains(t, out.String(), "import <file> [--yes]")
}
