// Package similarity finds previously resolved errors whose messages are
// close to a given error by normalized edit distance.
package similarity

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

const instrumentationName = "github.com/fyrsmithlabs/troubleshootd/internal/similarity"

// DefaultMaxResults caps the number of similar errors returned.
const DefaultMaxResults = 5

// Match is a resolved error similar to the queried one.
type Match struct {
	Error      support.ErrorRecord `json:"error"`
	Similarity float64             `json:"similarity"`
}

// Config tunes the scorer.
type Config struct {
	PrefixLength int
	MaxResults   int
}

// Scorer ranks resolved errors of the same classification.
type Scorer struct {
	repo   support.ErrorRepository
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewScorer creates a scorer reading from repo. Zero config values fall
// back to the defaults.
func NewScorer(repo support.ErrorRepository, cfg Config, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PrefixLength <= 0 {
		cfg.PrefixLength = DefaultPrefixLength
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	return &Scorer{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}
}

// FindSimilar returns up to MaxResults resolved errors with resolution
// notes and the same classification as rec, never rec itself. Results are
// ordered by similarity desc, then most recently resolved, then id.
func (s *Scorer) FindSimilar(ctx context.Context, rec *support.ErrorRecord) ([]Match, error) {
	ctx, span := s.tracer.Start(ctx, "similarity.find")
	defer span.End()
	span.SetAttributes(
		attribute.String("error.id", rec.ID),
		attribute.String("error.classification", rec.Classification),
	)

	candidates, err := s.repo.ListResolved(ctx, rec.Classification)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list resolved errors failed")
		return nil, fmt.Errorf("listing resolved errors: %w", err)
	}

	query := Prefix(rec.Message, s.cfg.PrefixLength)
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == rec.ID || c.Classification != rec.Classification || !c.HasResolution() {
			continue
		}
		matches = append(matches, Match{
			Error:      c,
			Similarity: Score(query, Prefix(c.Message, s.cfg.PrefixLength)),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Error.ResolvedAt.Equal(b.Error.ResolvedAt) {
			return a.Error.ResolvedAt.After(b.Error.ResolvedAt)
		}
		return a.Error.ID < b.Error.ID
	})
	if len(matches) > s.cfg.MaxResults {
		matches = matches[:s.cfg.MaxResults]
	}

	span.SetAttributes(
		attribute.Int("candidates.count", len(candidates)),
		attribute.Int("results.count", len(matches)),
	)
	s.logger.Debug("similar errors found",
		zap.String("error_id", rec.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(matches)),
	)
	return matches, nil
}
