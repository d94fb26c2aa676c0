package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // America/Mexico_City must load on hosts without zoneinfo

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	apperrors "github.com/alan/citascrit-cli/internal/errors"
)

const (
	envPrefix      = "CITASCRIT"
	configFileName = "citascrit.yaml"
)

// Config holds all configuration for citascrit
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Agenda    AgendaConfig    `mapstructure:"agenda" yaml:"agenda"`
	Parser    ParserConfig    `mapstructure:"parser" yaml:"parser"`
	Reminders RemindersConfig `mapstructure:"reminders" yaml:"reminders"`
	Import    ImportConfig    `mapstructure:"import" yaml:"import"`
	Documents DocumentsConfig `mapstructure:"documents" yaml:"documents"`
	Daemon    DaemonConfig    `mapstructure:"daemon" yaml:"daemon"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir" yaml:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path"`
}

// AgendaConfig controls how appointment times are interpreted
type AgendaConfig struct {
	Timezone        string `mapstructure:"timezone" yaml:"timezone"`
	DefaultDuration int    `mapstructure:"default_duration" yaml:"default_duration"`
}

// ParserConfig holds extra noise phrases to skip in agenda documents
type ParserConfig struct {
	ExtraBoilerplate []string `mapstructure:"extra_boilerplate" yaml:"extra_boilerplate"`
}

// RemindersConfig holds alert policy settings
type RemindersConfig struct {
	LeadMinutes      int  `mapstructure:"lead_minutes" yaml:"lead_minutes"`
	DayBeforeEnabled bool `mapstructure:"day_before_enabled" yaml:"day_before_enabled"`
	DayBeforeHour    int  `mapstructure:"day_before_hour" yaml:"day_before_hour"`
	DayBeforeMinute  int  `mapstructure:"day_before_minute" yaml:"day_before_minute"`
}

// ImportConfig holds document acceptance rules
type ImportConfig struct {
	RequireProfile bool `mapstructure:"require_profile" yaml:"require_profile"`
}

// DocumentsConfig holds text extraction settings
type DocumentsConfig struct {
	PdftotextPath string `mapstructure:"pdftotext_path" yaml:"pdftotext_path"`
	InboxDir      string `mapstructure:"inbox_dir" yaml:"inbox_dir"`
}

// DaemonConfig holds background job settings
type DaemonConfig struct {
	RefreshSchedule string `mapstructure:"refresh_schedule" yaml:"refresh_schedule"`
}

// ServerConfig holds the daemon's HTTP API settings. An empty address
// disables the API; an empty secret makes it read-only.
type ServerConfig struct {
	Address   string `mapstructure:"address" yaml:"address"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = envOr(envPrefix+"_STORAGE_DATA_DIR", getDefaultDataDir())
	}
	dataDir = expandPath(dataDir)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "citascrit.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))
	v.SetDefault("documents.inbox_dir", filepath.Join(dataDir, "inbox"))

	if configPath == "" {
		configPath = ConfigPath(dataDir)
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrConfigInvalid.Code, "failed to read config "+configPath)
		}
	}

	// Environment variables (CITASCRIT_AGENDA_TIMEZONE, CITASCRIT_LOG_LEVEL, etc.)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults(dataDir string) *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:    dataDir,
			SQLitePath: filepath.Join(dataDir, "citascrit.db"),
			BadgerPath: filepath.Join(dataDir, "badger"),
		},
		Agenda: AgendaConfig{
			Timezone:        "America/Mexico_City",
			DefaultDuration: 30,
		},
		Parser: ParserConfig{ExtraBoilerplate: []string{}},
		Reminders: RemindersConfig{
			LeadMinutes:      10,
			DayBeforeEnabled: true,
			DayBeforeHour:    10,
			DayBeforeMinute:  1,
		},
		Import: ImportConfig{RequireProfile: true},
		Documents: DocumentsConfig{
			PdftotextPath: "pdftotext",
			InboxDir:      filepath.Join(dataDir, "inbox"),
		},
		Daemon: DaemonConfig{RefreshSchedule: "@every 15m"},
		Log:    LogConfig{Level: "info", Development: true},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults("")

	v.SetDefault("agenda.timezone", d.Agenda.Timezone)
	v.SetDefault("agenda.default_duration", d.Agenda.DefaultDuration)

	v.SetDefault("parser.extra_boilerplate", d.Parser.ExtraBoilerplate)

	v.SetDefault("reminders.lead_minutes", d.Reminders.LeadMinutes)
	v.SetDefault("reminders.day_before_enabled", d.Reminders.DayBeforeEnabled)
	v.SetDefault("reminders.day_before_hour", d.Reminders.DayBeforeHour)
	v.SetDefault("reminders.day_before_minute", d.Reminders.DayBeforeMinute)

	v.SetDefault("import.require_profile", d.Import.RequireProfile)

	v.SetDefault("documents.pdftotext_path", d.Documents.PdftotextPath)

	v.SetDefault("daemon.refresh_schedule", d.Daemon.RefreshSchedule)

	v.SetDefault("server.address", "")
	v.SetDefault("server.jwt_secret", "")

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// ConfigPath returns the default config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// DefaultDataDir returns the data directory used when none is given.
func DefaultDataDir() string {
	return getDefaultDataDir()
}

func getDefaultDataDir() string {
	// Try XDG_DATA_HOME first
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "citascrit")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "citascrit")
}

// loadEnvOverrides applies the short env aliases viper does not know about
func loadEnvOverrides(cfg *Config) {
	if tz := ResolveEnvWithAliases(envPrefix + "_AGENDA_TIMEZONE"); tz != "" {
		cfg.Agenda.Timezone = tz
	}
	if p := ResolveEnvWithAliases(envPrefix + "_DOCUMENTS_PDFTOTEXT_PATH"); p != "" {
		cfg.Documents.PdftotextPath = p
	}
	if secret := ResolveEnvWithAliases(envPrefix + "_SERVER_JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}
	if lvl := ResolveEnvWithAliases(envPrefix + "_LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if hour := ResolveEnvWithAliases(envPrefix + "_REMINDERS_DAY_BEFORE_HOUR"); hour != "" {
		if h, err := strconv.Atoi(hour); err == nil {
			cfg.Reminders.DayBeforeHour = h
		}
	}

	cfg.Storage.SQLitePath = expandPath(cfg.Storage.SQLitePath)
	cfg.Storage.BadgerPath = expandPath(cfg.Storage.BadgerPath)
	cfg.Documents.InboxDir = expandPath(cfg.Documents.InboxDir)
}

func validate(cfg *Config) error {
	invalid := func(format string, args ...interface{}) error {
		return apperrors.New(apperrors.ErrConfigInvalid.Code, fmt.Sprintf(format, args...))
	}

	if cfg.Reminders.LeadMinutes < 0 {
		return invalid("reminders.lead_minutes must be >= 0, got %d", cfg.Reminders.LeadMinutes)
	}
	if cfg.Reminders.DayBeforeHour < 0 || cfg.Reminders.DayBeforeHour > 23 {
		return invalid("reminders.day_before_hour must be 0-23, got %d", cfg.Reminders.DayBeforeHour)
	}
	if cfg.Reminders.DayBeforeMinute < 0 || cfg.Reminders.DayBeforeMinute > 59 {
		return invalid("reminders.day_before_minute must be 0-59, got %d", cfg.Reminders.DayBeforeMinute)
	}
	if cfg.Agenda.DefaultDuration <= 0 {
		return invalid("agenda.default_duration must be > 0, got %d", cfg.Agenda.DefaultDuration)
	}
	if _, err := time.LoadLocation(cfg.Agenda.Timezone); err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfigInvalid.Code, "agenda.timezone is not a known location")
	}
	if strings.TrimSpace(cfg.Daemon.RefreshSchedule) == "" {
		return invalid("daemon.refresh_schedule is required")
	}
	if cfg.Server.JWTSecret != "" && len(cfg.Server.JWTSecret) < 16 {
		return invalid("server.jwt_secret must be at least 16 characters")
	}
	return nil
}

// Location returns the agenda time zone. Load already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Agenda.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ReminderLead returns the reminder lead time.
func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.Reminders.LeadMinutes) * time.Minute
}

const redacted = "********"

// Redacted returns a copy of c that is safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Server.JWTSecret != "" {
		out.Server.JWTSecret = redacted
	}
	return &out
}

// WriteYAML writes c to path, creating parent directories. An existing file
// is only replaced when overwrite is set.
func (c *Config) WriteYAML(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
