package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/alan/citascrit-cli/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join(dir, "citascrit.db"), cfg.Storage.SQLitePath)
	assert.Equal(t, filepath.Join(dir, "badger"), cfg.Storage.BadgerPath)
	assert.Equal(t, filepath.Join(dir, "inbox"), cfg.Documents.InboxDir)
	assert.Equal(t, "America/Mexico_City", cfg.Agenda.Timezone)
	assert.Equal(t, 30, cfg.Agenda.DefaultDuration)
	assert.Equal(t, 10, cfg.Reminders.LeadMinutes)
	assert.True(t, cfg.Reminders.DayBeforeEnabled)
	assert.Equal(t, 10, cfg.Reminders.DayBeforeHour)
	assert.Equal(t, 1, cfg.Reminders.DayBeforeMinute)
	assert.True(t, cfg.Import.RequireProfile)
	assert.Equal(t, "pdftotext", cfg.Documents.PdftotextPath)
	assert.Equal(t, "@every 15m", cfg.Daemon.RefreshSchedule)
	assert.Empty(t, cfg.Server.Address)
	assert.Empty(t, cfg.Server.JWTSecret)
	assert.Equal(t, 10*time.Minute, cfg.ReminderLead())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CITASCRIT_REMINDERS_DAY_BEFORE_HOUR", "20")
	t.Setenv("CITASCRIT_REMINDERS_LEAD_MINUTES", "15")
	t.Setenv("CITASCRIT_AGENDA_TIMEZONE", "UTC")
	t.Setenv("CITASCRIT_IMPORT_REQUIRE_PROFILE", "false")

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Reminders.DayBeforeHour)
	assert.Equal(t, 15, cfg.Reminders.LeadMinutes)
	assert.False(t, cfg.Import.RequireProfile)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_AliasOverride(t *testing.T) {
	t.Setenv("CITASCRIT_ALERT_HOUR", "21")

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 21, cfg.Reminders.DayBeforeHour)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `agenda:
  timezone: UTC
parser:
  extra_boilerplate:
    - Aviso de privacidad
reminders:
  day_before_hour: 20
  day_before_minute: 0
`
	require.NoError(t, os.WriteFile(ConfigPath(dir), []byte(content), 0644))

	cfg, err := Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Agenda.Timezone)
	assert.Equal(t, []string{"Aviso de privacidad"}, cfg.Parser.ExtraBoilerplate)
	assert.Equal(t, 20, cfg.Reminders.DayBeforeHour)
	assert.Equal(t, 0, cfg.Reminders.DayBeforeMinute)
	assert.Equal(t, 10, cfg.Reminders.LeadMinutes)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"hour out of range", "reminders:\n  day_before_hour: 24\n"},
		{"minute out of range", "reminders:\n  day_before_minute: 60\n"},
		{"negative lead", "reminders:\n  lead_minutes: -1\n"},
		{"zero duration", "agenda:\n  default_duration: 0\n"},
		{"unknown timezone", "agenda:\n  timezone: Mars/Olympus\n"},
		{"empty schedule", "daemon:\n  refresh_schedule: \" \"\n"},
		{"short jwt secret", "server:\n  jwt_secret: abc\n"},
		{"broken yaml", "reminders: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(ConfigPath(dir), []byte(tt.content), 0644))

			_, err := Load("", dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	def := Defaults(dir)
	def.Reminders.DayBeforeHour = 20
	def.Parser.ExtraBoilerplate = []string{"Aviso"}
	require.NoError(t, def.WriteYAML(path, false))

	assert.Error(t, def.WriteYAML(path, false), "refuses to overwrite")
	assert.NoError(t, def.WriteYAML(path, true))

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Reminders.DayBeforeHour)
	assert.Equal(t, []string{"Aviso"}, cfg.Parser.ExtraBoilerplate)
	assert.Equal(t, def.Storage, cfg.Storage)
}

func TestRedacted(t *testing.T) {
	cfg := Defaults(t.TempDir())
	assert.Empty(t, cfg.Redacted().Server.JWTSecret)

	cfg.Server.JWTSecret = "0123456789abcdef"
	r := cfg.Redacted()
	assert.Equal(t, "********", r.Server.JWTSecret)
	assert.Equal(t, "0123456789abcdef", cfg.Server.JWTSecret)
	assert.Equal(t, cfg.Agenda, r.Agenda)
}

func TestDefaultDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "citascrit"), DefaultDataDir())
}
