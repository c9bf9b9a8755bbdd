package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, cfg.Poll.Interval)
}

func TestLoad_ValidFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `backend:
  base_url: https://robots.example.com
  timeout: 3s
poll:
  interval: 2s
  source: robots
  discard_stale: false
  min_move_meters: 1.5
server:
  port: 9000
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://robots.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, SourceRobots, cfg.Poll.Source)
	assert.False(t, cfg.Poll.DiscardStale)
	assert.Equal(t, 1.5, cfg.Poll.MinMoveMeters)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched fields keep defaults
	assert.Equal(t, DefaultFetchTimeout, cfg.Poll.FetchTimeout)
	assert.Equal(t, DefaultStaticDir, cfg.Server.StaticDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "poll: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"bad url", "backend:\n  base_url: ftp://x\n", "backend.base_url"},
		{"zero interval", "poll:\n  interval: 0s\n", "poll.interval"},
		{"unknown source", "poll:\n  source: mqtt\n", "poll.source"},
		{"gtfsrt without url", "poll:\n  source: gtfsrt\n", "poll.gtfsrt_url"},
		{"negative jitter", "poll:\n  min_move_meters: -1\n", "poll.min_move_meters"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidate_GtfsRt(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Poll.Source = SourceGtfsRt
	cfg.Poll.GtfsRtURL = "http://feeds.example.com/vehicles.pb"
	assert.NoError(t, Validate(&cfg))
}
