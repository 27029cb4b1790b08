package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-konference/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
conference:
  interval: 20ms
  max_queue: 50
  drop_threshold: 20
  drop_time_limit: 500ms
  repeat_budget: 2
  default_max_users: 10
  disconnect_on_spy_failure: true
vad:
  mode: 2
sounds:
  directory: /var/lib/konference/sounds
metrics:
  enabled: true
  listen_address: 127.0.0.1:9100
simulation:
  enabled: true
  conferences: 2
  formats: [ulaw, alaw]
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 20*time.Millisecond, cfg.Conference.Interval)
	assert.Equal(t, 50, cfg.Conference.MaxQueue)
	assert.Equal(t, 20, cfg.Conference.DropThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Conference.DropTimeLimit)
	assert.Equal(t, 2, cfg.Conference.RepeatBudget)
	assert.Equal(t, 10, cfg.Conference.DefaultMaxUsers)
	assert.True(t, cfg.Conference.DisconnectOnSpyFailure)
	assert.Equal(t, 2, cfg.VAD.Mode)
	assert.Equal(t, "/var/lib/konference/sounds", cfg.Sounds.Directory)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.ListenAddress)
	assert.Equal(t, []string{"ulaw", "alaw"}, cfg.Simulation.Formats)

	// Defaults fill whatever the file left out.
	assert.Equal(t, 40*time.Millisecond, cfg.Conference.WaitForLatency)
	assert.Equal(t, 199, cfg.Conference.ConferenceTableSize)
	assert.Equal(t, "konference", cfg.Conference.DefaultType)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 3, cfg.Simulation.MembersPerConference)
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 20*time.Millisecond, cfg.Conference.Interval)
	assert.Equal(t, 100, cfg.Conference.MaxQueue)
	assert.Equal(t, 40, cfg.Conference.DropThreshold)
	assert.Equal(t, time.Second, cfg.Conference.DropTimeLimit)
	assert.Zero(t, cfg.Conference.RepeatBudget)
	assert.Zero(t, cfg.Conference.DefaultMaxUsers)
	assert.Equal(t, 50, cfg.Conference.FrameRateCheckTicks)
	assert.Equal(t, 20, cfg.VAD.IgnoreFrames)
	assert.Zero(t, cfg.VAD.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, `
conference:
  max_queue: 10
  drop_threshold: 40
`)
	_, err := config.LoadConfig(path)
	assert.ErrorContains(t, err, "drop_threshold")
}

func TestLoadConfig_InvalidVADMode(t *testing.T) {
	path := writeConfig(t, `
vad:
  mode: 4
`)
	_, err := config.LoadConfig(path)
	assert.ErrorContains(t, err, "vad.mode")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
