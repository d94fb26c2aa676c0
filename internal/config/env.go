package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// envFiles lists the .env files read at start-up, most specific first.
func envFiles() []string {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".citascrit", ".env"),
			filepath.Join(home, ".config", "citascrit", ".env"),
		)
	}
	return paths
}

// LoadEnvFiles loads the .env files that exist. Variables already set in
// the environment win, and so do earlier files over later ones.
func LoadEnvFiles() error {
	return loadEnvFiles(envFiles()...)
}

func loadEnvFiles(paths ...string) error {
	var existing []string
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

var envAliases = map[string][]string{
	"CITASCRIT_AGENDA_TIMEZONE":           {"CITASCRIT_TZ"},
	"CITASCRIT_DOCUMENTS_PDFTOTEXT_PATH":  {"PDFTOTEXT"},
	"CITASCRIT_LOG_LEVEL":                 {"LOG_LEVEL"},
	"CITASCRIT_REMINDERS_DAY_BEFORE_HOUR": {"CITASCRIT_ALERT_HOUR"},
}

// ResolveEnvWithAliases returns the first non-empty value among the
// canonical key and its aliases.
func ResolveEnvWithAliases(canonicalKey string) string {
	for _, key := range append([]string{canonicalKey}, envAliases[canonicalKey]...) {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// expandPath resolves a leading "~/" against the user's home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
