package config

import (
	"bytes"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	t.Setenv("USER", "alice")
	cfg := Default()

	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, DefaultFont, cfg.Font)
	assert.Empty(t, cfg.FontFallback, "a missing font is fatal unless a fallback is configured")
	assert.Equal(t, "*", cfg.PassChar)
	assert.Equal(t, "#C3BFB0", cfg.Background)
	assert.Equal(t, "#423638", cfg.Foreground)
	assert.Equal(t, "#F80009", cfg.Wrong)
	assert.True(t, cfg.DPMS)
	assert.Equal(t, 10*time.Second, cfg.DPMSTimeout)
	assert.Equal(t, 1000, cfg.GrabAttempts)
	assert.Equal(t, 50*time.Microsecond, cfg.GrabBackoff)
	assert.Equal(t, 256, cfg.Capacity)
	assert.True(t, cfg.LockConsole)
	assert.False(t, cfg.HideLength)
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
passchar: "•"
hide_length: true
dpms: false
dpms_timeout: 30s
keyrings: [default, login]
grab_backoff: 1ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "•", cfg.PassChar)
	assert.True(t, cfg.HideLength)
	assert.False(t, cfg.DPMS)
	assert.Equal(t, 30*time.Second, cfg.DPMSTimeout)
	assert.Equal(t, []string{"default", "login"}, cfg.Keyrings)
	assert.Equal(t, time.Millisecond, cfg.GrabBackoff)
	assert.Equal(t, DefaultFont, cfg.Font, "unset keys keep their default")
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "dpms_timeout: [1, 2]\n"))
	assert.Error(t, err)
}

func TestBindFlags(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("lockscreen", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	err := fs.Parse([]string{"-l", "-d", "-p", "#", "--no-console-lock", "--keyring", "default", "-u", "bob"})
	require.NoError(t, err)

	assert.True(t, cfg.HideLength)
	assert.False(t, cfg.DPMS)
	assert.Equal(t, "#", cfg.PassChar)
	assert.False(t, cfg.LockConsole)
	assert.True(t, cfg.LockedHint)
	assert.Equal(t, []string{"default"}, cfg.Keyrings)
	assert.Equal(t, "bob", cfg.Username)
}

func TestBindFlags_OverrideFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "dpms: false\nusername: carol\n"))
	require.NoError(t, err)

	fs := pflag.NewFlagSet("lockscreen", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--nodpms=false"}))

	assert.True(t, cfg.DPMS)
	assert.Equal(t, "carol", cfg.Username)
}

func TestBindWatchFlags(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	cfg.BindWatchFlags(fs)

	require.NoError(t, fs.Parse([]string{"--idle", "5m", "--no-sleep-lock"}))
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.False(t, cfg.LockOnSleep)
}

func TestNormalize_EmptyPassChar(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	cfg := Default()
	cfg.PassChar = ""
	cfg.Normalize(logger)

	assert.Equal(t, DefaultPassChar, cfg.PassChar)
	assert.Contains(t, out.String(), "passchar")
}

func TestNormalize_Limits(t *testing.T) {
	cfg := Default()
	cfg.Capacity = 1
	cfg.GrabAttempts = 0
	cfg.DPMSTimeout = 0
	cfg.Normalize(nil)

	assert.Equal(t, DefaultCapacity, cfg.Capacity)
	assert.Equal(t, 1000, cfg.GrabAttempts)
	assert.Equal(t, 10*time.Second, cfg.DPMSTimeout)
}

func TestLevel(t *testing.T) {
	cfg := Default()

	cfg.LogLevel = "debug"
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	cfg.LogLevel = "loud"
	_, err = cfg.Level()
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/lockscreen/config.yaml", path)
}
