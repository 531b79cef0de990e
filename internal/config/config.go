// Package config loads troubleshootd configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/troubleshootd/internal/feedback"
)

// Config holds the complete troubleshootd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Storage     StorageConfig     `koanf:"storage"`
	Suggestions SuggestionsConfig `koanf:"suggestions"`
	Feedback    feedback.Config   `koanf:"feedback"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`

	// FeedbackRate is the sustained feedback submissions per second allowed
	// per client address. Zero disables throttling.
	FeedbackRate  float64 `koanf:"feedback_rate"`
	FeedbackBurst int     `koanf:"feedback_burst"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	// DataDir holds troubleshootd.db. ":memory:" keeps everything in memory.
	DataDir string `koanf:"data_dir"`
}

// SuggestionsConfig tunes retrieval and ranking.
type SuggestionsConfig struct {
	TierTimeout   Duration `koanf:"tier_timeout"`
	MaxKBMatches  int      `koanf:"max_kb_matches"`
	FloorScore    float64  `koanf:"floor_score"`
	PrefixLength  int      `koanf:"prefix_length"`
	MaxSimilar    int      `koanf:"max_similar"`
	SeedOnStartup bool     `koanf:"seed_on_startup"`
}

// LoggingConfig is the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	OTEL     bool   `koanf:"otel"`
	Sampling bool   `koanf:"sampling"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Enabled      bool     `koanf:"enabled"`
	Endpoint     string   `koanf:"endpoint"`
	Protocol     string   `koanf:"protocol"`
	Insecure     bool     `koanf:"insecure"`
	Token        Secret   `koanf:"token"`
	ServiceName  string   `koanf:"service_name"`
	SamplingRate float64  `koanf:"sampling_rate"`
	Interval     Duration `koanf:"export_interval"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.FeedbackBurst == 0 {
		cfg.Server.FeedbackBurst = 10
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "~/.local/share/troubleshootd"
	}

	if cfg.Suggestions.TierTimeout == 0 {
		cfg.Suggestions.TierTimeout = Duration(300 * time.Millisecond)
	}
	if cfg.Suggestions.MaxKBMatches == 0 {
		cfg.Suggestions.MaxKBMatches = 3
	}
	if cfg.Suggestions.FloorScore == 0 {
		cfg.Suggestions.FloorScore = 0.1
	}
	if cfg.Suggestions.PrefixLength == 0 {
		cfg.Suggestions.PrefixLength = 100
	}
	if cfg.Suggestions.MaxSimilar == 0 {
		cfg.Suggestions.MaxSimilar = 5
	}

	def := feedback.DefaultConfig()
	if cfg.Feedback.SmoothingFactor == 0 {
		cfg.Feedback.SmoothingFactor = def.SmoothingFactor
	}
	if cfg.Feedback.Threshold == 0 {
		cfg.Feedback.Threshold = def.Threshold
	}
	if cfg.Feedback.MinWeight == 0 {
		cfg.Feedback.MinWeight = def.MinWeight
	}
	if cfg.Feedback.MaxWeight == 0 {
		cfg.Feedback.MaxWeight = def.MaxWeight
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "troubleshootd"
	}
	if cfg.Telemetry.SamplingRate == 0 {
		cfg.Telemetry.SamplingRate = 1.0
	}
	if cfg.Telemetry.Interval == 0 {
		cfg.Telemetry.Interval = Duration(15 * time.Second)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.FeedbackRate < 0 {
		return fmt.Errorf("feedback rate must be >= 0, got %v", c.Server.FeedbackRate)
	}
	if c.Server.FeedbackBurst < 1 {
		return fmt.Errorf("feedback burst must be >= 1, got %d", c.Server.FeedbackBurst)
	}

	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return errors.New("storage data_dir is required")
	}

	s := c.Suggestions
	if s.TierTimeout.Duration() <= 0 {
		return errors.New("suggestions tier_timeout must be positive")
	}
	if s.MaxKBMatches < 1 || s.MaxSimilar < 1 {
		return errors.New("suggestions max_kb_matches and max_similar must be >= 1")
	}
	if s.FloorScore < 0 || s.FloorScore > 1 {
		return fmt.Errorf("suggestions floor_score must be between 0 and 1, got %v", s.FloorScore)
	}
	if s.PrefixLength < 1 {
		return fmt.Errorf("suggestions prefix_length must be >= 1, got %d", s.PrefixLength)
	}

	f := c.Feedback
	if f.SmoothingFactor <= 0 {
		return fmt.Errorf("feedback smoothing_factor must be positive, got %v", f.SmoothingFactor)
	}
	if f.Threshold < 1 {
		return fmt.Errorf("feedback threshold must be >= 1, got %d", f.Threshold)
	}
	if f.MinWeight < feedback.MinWeight || f.MaxWeight > feedback.MaxWeight || f.MinWeight > f.MaxWeight {
		return fmt.Errorf("feedback weight bounds [%v, %v] must lie within [%v, %v]",
			f.MinWeight, f.MaxWeight, feedback.MinWeight, feedback.MaxWeight)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("telemetry protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			return fmt.Errorf("telemetry sampling_rate must be between 0 and 1, got %v", c.Telemetry.SamplingRate)
		}
	}

	return nil
}
