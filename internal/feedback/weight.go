package feedback

import "github.com/fyrsmithlabs/troubleshootd/internal/support"

// Bounds every weight must stay within. Configuration may narrow them.
const (
	MinWeight = 0.25
	MaxWeight = 1.75
)

// Defaults for Config.
const (
	DefaultSmoothingFactor = 0.5
	DefaultThreshold       = 3
	NeutralWeight          = 1.0
)

// Config tunes weight recomputation.
type Config struct {
	// SmoothingFactor scales how far net feedback moves a weight from 1.0.
	SmoothingFactor float64 `koanf:"smoothing_factor"`

	// Threshold is the number of feedback events a single reference needs
	// before it gets its own weight.
	Threshold int `koanf:"threshold"`

	MinWeight float64 `koanf:"min_weight"`
	MaxWeight float64 `koanf:"max_weight"`
}

// DefaultConfig returns the default recomputation settings.
func DefaultConfig() Config {
	return Config{
		SmoothingFactor: DefaultSmoothingFactor,
		Threshold:       DefaultThreshold,
		MinWeight:       MinWeight,
		MaxWeight:       MaxWeight,
	}
}

// normalized fills zero values with defaults and keeps the bounds inside
// [MinWeight, MaxWeight].
func (c Config) normalized() Config {
	if c.SmoothingFactor <= 0 {
		c.SmoothingFactor = DefaultSmoothingFactor
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.MinWeight < MinWeight || c.MinWeight > NeutralWeight {
		c.MinWeight = MinWeight
	}
	if c.MaxWeight > MaxWeight || c.MaxWeight < NeutralWeight {
		c.MaxWeight = MaxWeight
	}
	return c
}

// ComputeWeight derives a weight from feedback counts:
//
//	clamp(1 + smoothing*(helpful-unhelpful)/total, min, max)
//
// No feedback yields the neutral weight.
func ComputeWeight(c support.FeedbackCounts, cfg Config) float64 {
	cfg = cfg.normalized()
	total := c.Total()
	if total <= 0 {
		return NeutralWeight
	}
	w := NeutralWeight + cfg.SmoothingFactor*float64(c.Helpful-c.Unhelpful)/float64(total)
	return min(max(w, cfg.MinWeight), cfg.MaxWeight)
}
