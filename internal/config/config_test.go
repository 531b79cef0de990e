package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 300*time.Millisecond, cfg.Suggestions.TierTimeout.Duration())
	assert.Equal(t, 3, cfg.Suggestions.MaxKBMatches)
	assert.InDelta(t, 0.1, cfg.Suggestions.FloorScore, 1e-9)
	assert.Equal(t, 100, cfg.Suggestions.PrefixLength)
	assert.InDelta(t, 0.5, cfg.Feedback.SmoothingFactor, 1e-9)
	assert.Equal(t, 3, cfg.Feedback.Threshold)
	assert.InDelta(t, 0.25, cfg.Feedback.MinWeight, 1e-9)
	assert.InDelta(t, 1.75, cfg.Feedback.MaxWeight, 1e-9)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"negative feedback rate", func(c *Config) { c.Server.FeedbackRate = -1 }, "feedback rate"},
		{"empty data dir", func(c *Config) { c.Storage.DataDir = " " }, "data_dir"},
		{"floor above one", func(c *Config) { c.Suggestions.FloorScore = 1.5 }, "floor_score"},
		{"zero prefix", func(c *Config) { c.Suggestions.PrefixLength = -1 }, "prefix_length"},
		{"weight bounds widened", func(c *Config) { c.Feedback.MaxWeight = 3 }, "weight bounds"},
		{"weight bounds inverted", func(c *Config) {
			c.Feedback.MinWeight = 1.5
			c.Feedback.MaxWeight = 1.0
		}, "weight bounds"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
		{"bad telemetry protocol", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Protocol = "udp"
		}, "telemetry protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	out, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"2s"`, string(out))
}

func TestSecret(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())
	assert.Equal(t, "[REDACTED]", s.String())
	assert.NotContains(t, fmt.Sprintf("%v %+v %#v", s, s, s), "hunter2")

	out, err := json.Marshal(struct {
		Token Secret `json:"token"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"[REDACTED]"}`, string(out))

	assert.False(t, Secret("").IsSet())
	assert.Equal(t, "", Secret("").String())
}
