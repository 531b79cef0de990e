package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the config directory.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "troubleshootd")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_YAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `
server:
  http_port: 8088
  feedback_rate: 2.5
storage:
  data_dir: ":memory:"
suggestions:
  tier_timeout: 150ms
  max_kb_matches: 5
feedback:
  threshold: 4
  smoothing_factor: 0.25
logging:
  format: console
telemetry:
  token: s3cret
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.InDelta(t, 2.5, cfg.Server.FeedbackRate, 1e-9)
	assert.Equal(t, ":memory:", cfg.Storage.DataDir)
	assert.Equal(t, 150*time.Millisecond, cfg.Suggestions.TierTimeout.Duration())
	assert.Equal(t, 5, cfg.Suggestions.MaxKBMatches)
	assert.Equal(t, 4, cfg.Feedback.Threshold)
	assert.InDelta(t, 0.25, cfg.Feedback.SmoothingFactor, 1e-9)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "s3cret", cfg.Telemetry.Token.Value())

	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Suggestions.PrefixLength)
	assert.InDelta(t, 1.75, cfg.Feedback.MaxWeight, 1e-9)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "suggestions:\n  tier_timeout: 150ms\n", 0o600)

	t.Setenv("SUGGESTIONS_TIER_TIMEOUT", "750ms")
	t.Setenv("FEEDBACK_SMOOTHING_FACTOR", "0.75")
	t.Setenv("SERVER_HTTP_PORT", "7001")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.Suggestions.TierTimeout.Duration())
	assert.InDelta(t, 0.75, cfg.Feedback.SmoothingFactor, 1e-9)
	assert.Equal(t, 7001, cfg.Server.Port)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := setupTestHome(t)

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)

	home, _ := os.UserHomeDir()
	assert.True(t, strings.HasPrefix(cfg.Storage.DataDir, home), "data dir %q not expanded", cfg.Storage.DataDir)
}

func TestLoad_RejectsWritableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 8088\n", 0o666)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_AcceptsReadOnlyFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 8088\n", 0o444)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestLoad_RejectsOversizedFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "# "+strings.Repeat("x", maxConfigFileSize)+"\n", 0o600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "suggestions:\n  floor_score: 2\n", 0o600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floor_score")
}

func TestValidateConfigPath(t *testing.T) {
	dir := setupTestHome(t)

	allowed := []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "nested", "config.yaml"),
		"/etc/troubleshootd/config.yaml",
	}
	for _, p := range allowed {
		assert.NoError(t, validateConfigPath(p), p)
	}

	rejected := []string{
		"/tmp/config.yaml",
		"/etc/troubleshootd../passwd",
		filepath.Join(dir, "..", "..", "config.yaml"),
		"/etc/troubleshootd",
	}
	for _, p := range rejected {
		assert.Error(t, validateConfigPath(p), p)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SUGGESTIONS_TIER_TIMEOUT":  "suggestions.tier_timeout",
		"FEEDBACK_SMOOTHING_FACTOR": "feedback.smoothing_factor",
		"SERVER_HTTP_PORT":          "server.http_port",
		"PATH":                      "",
		"HOME_DIR":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandHome("~/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), got)

	got, err = ExpandHome(":memory:")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", got)
}
