package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh temp directory so the default config file lookup
// never picks up a real codaio-exporter.yaml.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

// TestLoad_Defaults verifies the built-in defaults when no other source is
// present.
func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.APIToken)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, 8.0, cfg.RateLimit.RPS)
	assert.Equal(t, 16, cfg.RateLimit.Burst)
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, 10*time.Second, cfg.BackoffInterval)
}

// TestLoad_ConfigFile verifies explicit config file loading, including
// duration parsing.
func TestLoad_ConfigFile(t *testing.T) {
	dir := chdir(t)
	cfgFile := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
api_token: file-token
concurrency: 4
rate_limit:
  rps: 2.5
  burst: 5
backoff_interval: 30s
`), 0o644))

	cfg, err := Load(cfgFile, nil)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.APIToken)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 30*time.Second, cfg.BackoffInterval)
	// Unset keys keep their defaults.
	assert.Equal(t, 5, cfg.Retries)
}

// TestLoad_DefaultConfigFile verifies that codaio-exporter.yaml in the
// working directory is picked up without --config.
func TestLoad_DefaultConfigFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("concurrency: 3\n"), 0o644))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Concurrency)
}

// TestLoad_ExplicitFileMissing verifies that a missing --config file is an
// error while the missing default file is not.
func TestLoad_ExplicitFileMissing(t *testing.T) {
	chdir(t)

	_, err := Load("does-not-exist.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.yaml")

	_, err = Load("", nil)
	assert.NoError(t, err)
}

// TestLoad_Environment verifies environment overrides, including the
// double-underscore nesting convention.
func TestLoad_Environment(t *testing.T) {
	chdir(t)
	t.Setenv("CODAIO_API_TOKEN", "env-token")
	t.Setenv("CODAIO_CONCURRENCY", "7")
	t.Setenv("CODAIO_RATE_LIMIT__RPS", "3")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.APIToken)
	assert.Equal(t, 7, cfg.Concurrency)
	assert.Equal(t, 3.0, cfg.RateLimit.RPS)
}

// TestLoad_Precedence verifies flags > environment > file > defaults.
func TestLoad_Precedence(t *testing.T) {
	dir := chdir(t)
	cfgFile := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("api_token: file-token\nconcurrency: 2\n"), 0o644))

	t.Setenv("CODAIO_CONCURRENCY", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api-token", "", "")
	flags.Int("concurrency", 10, "")
	require.NoError(t, flags.Parse([]string{"--concurrency=4"}))

	cfg, err := Load(cfgFile, flags)
	require.NoError(t, err)

	// The flag was set, so it wins over the environment and the file.
	assert.Equal(t, 4, cfg.Concurrency)
	// The api-token flag was not set; the file value survives.
	assert.Equal(t, "file-token", cfg.APIToken)
}

// TestLoad_UnchangedFlagsIgnored verifies that flag defaults do not shadow
// lower-precedence sources.
func TestLoad_UnchangedFlagsIgnored(t *testing.T) {
	dir := chdir(t)
	cfgFile := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("concurrency: 2\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("concurrency", 10, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(cfgFile, flags)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Concurrency)
}

// TestLoad_Invalid verifies validation of out-of-range values.
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		errSubstr string
	}{
		{"zero concurrency", "concurrency: 0\n", "concurrency must be positive"},
		{"negative rps", "rate_limit:\n  rps: -1\n", "rate_limit.rps must be positive"},
		{"zero burst", "rate_limit:\n  burst: 0\n", "rate_limit.burst must be positive"},
		{"zero retries", "retries: 0\n", "retries must be positive"},
		{"zero backoff", "backoff_interval: 0s\n", "backoff_interval must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdir(t)
			cfgFile := filepath.Join(dir, "custom.yaml")
			require.NoError(t, os.WriteFile(cfgFile, []byte(tt.yaml), 0o644))

			_, err := Load(cfgFile, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

// TestRequireToken verifies the dedicated missing-token error.
func TestRequireToken(t *testing.T) {
	cfg := &Config{}
	err := cfg.RequireToken()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--api-token")

	cfg.APIToken = "x"
	assert.NoError(t, cfg.RequireToken())
}
