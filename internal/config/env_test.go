package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadEnvFiles(t *testing.T) {
	path := writeEnv(t, t.TempDir(), `# citascrit
CITASCRIT_TEST_TZ=America/Mexico_City
CITASCRIT_TEST_SECRET="quoted secret value"
export CITASCRIT_TEST_LEVEL='debug'
`)
	for _, key := range []string{"CITASCRIT_TEST_TZ", "CITASCRIT_TEST_SECRET", "CITASCRIT_TEST_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	require.NoError(t, loadEnvFiles(path))
	assert.Equal(t, "America/Mexico_City", os.Getenv("CITASCRIT_TEST_TZ"))
	assert.Equal(t, "quoted secret value", os.Getenv("CITASCRIT_TEST_SECRET"))
	assert.Equal(t, "debug", os.Getenv("CITASCRIT_TEST_LEVEL"))
}

func TestLoadEnvFiles_Precedence(t *testing.T) {
	first := writeEnv(t, t.TempDir(), "CITASCRIT_TEST_A=first\nCITASCRIT_TEST_B=first\n")
	second := writeEnv(t, t.TempDir(), "CITASCRIT_TEST_A=second\nCITASCRIT_TEST_C=second\n")

	t.Setenv("CITASCRIT_TEST_B", "environment")
	t.Setenv("CITASCRIT_TEST_A", "")
	os.Unsetenv("CITASCRIT_TEST_A")
	t.Setenv("CITASCRIT_TEST_C", "")
	os.Unsetenv("CITASCRIT_TEST_C")

	require.NoError(t, loadEnvFiles(first, second))
	assert.Equal(t, "first", os.Getenv("CITASCRIT_TEST_A"))
	assert.Equal(t, "environment", os.Getenv("CITASCRIT_TEST_B"))
	assert.Equal(t, "second", os.Getenv("CITASCRIT_TEST_C"))
}

func TestLoadEnvFiles_SkipsMissing(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, loadEnvFiles(filepath.Join(dir, ".env"), dir))
}

func TestResolveEnvWithAliases(t *testing.T) {
	t.Setenv("CITASCRIT_DOCUMENTS_PDFTOTEXT_PATH", "")
	t.Setenv("PDFTOTEXT", "")
	assert.Empty(t, ResolveEnvWithAliases("CITASCRIT_DOCUMENTS_PDFTOTEXT_PATH"))

	t.Setenv("PDFTOTEXT", "/opt/poppler/bin/pdftotext")
	assert.Equal(t, "/opt/poppler/bin/pdftotext", ResolveEnvWithAliases("CITASCRIT_DOCUMENTS_PDFTOTEXT_PATH"))

	t.Setenv("CITASCRIT_DOCUMENTS_PDFTOTEXT_PATH", "/usr/bin/pdftotext")
	assert.Equal(t, "/usr/bin/pdftotext", ResolveEnvWithAliases("CITASCRIT_DOCUMENTS_PDFTOTEXT_PATH"))

	assert.Empty(t, ResolveEnvWithAliases("CITASCRIT_UNKNOWN_KEY"))
}

func TestEnvOr(t *testing.T) {
	t.Setenv("CITASCRIT_TEST_DEFAULT", "")
	assert.Equal(t, "fallback", envOr("CITASCRIT_TEST_DEFAULT", "fallback"))

	t.Setenv("CITASCRIT_TEST_DEFAULT", "actual")
	assert.Equal(t, "actual", envOr("CITASCRIT_TEST_DEFAULT", "fallback"))
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/citas", filepath.Join(home, "citas")},
		{"/var/lib/citascrit", "/var/lib/citascrit"},
		{"relative/inbox", "relative/inbox"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, expandPath(tt.input), tt.input)
	}
}
