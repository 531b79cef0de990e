// Package textmatch finds knowledge-base articles for an error message.
//
// Matching is tiered. The pattern tier looks for an article's related-error
// patterns inside the message. Only when it finds nothing does the content
// tier score the article text against the message and classification.
package textmatch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

const instrumentationName = "github.com/fyrsmithlabs/troubleshootd/internal/textmatch"

const (
	// DefaultMaxMatches caps the number of articles returned.
	DefaultMaxMatches = 3

	// PatternScore is the fixed raw score of a pattern-tier match.
	PatternScore = 0.9

	// DefaultFloorScore is the raw score given to articles surfaced for an
	// empty message, where no relevance can be computed.
	DefaultFloorScore = 0.1
)

// Match reasons.
const (
	ReasonPattern = "pattern match"
	ReasonContent = "content similarity"
)

// Tier names which lookup produced a result.
type Tier string

const (
	TierPattern Tier = "pattern"
	TierContent Tier = "content"
)

// Match is a scored article.
type Match struct {
	Article  support.Article `json:"article"`
	RawScore float64         `json:"raw_score"`
	Reason   string          `json:"reason"`
	Tier     Tier            `json:"tier"`
}

// Result is the outcome of Match. Failed lists tiers whose lookup failed
// but whose failure did not prevent a later tier from answering.
type Result struct {
	Matches []Match
	Tier    Tier
	Failed  []Tier
}

// Config tunes the matcher.
type Config struct {
	MaxMatches int
	FloorScore float64
}

// Matcher runs the tiered lookup against an article repository.
type Matcher struct {
	repo   support.ArticleRepository
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewMatcher creates a matcher. Zero config values fall back to defaults.
func NewMatcher(repo support.ArticleRepository, cfg Config, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = DefaultMaxMatches
	}
	if cfg.FloorScore <= 0 || cfg.FloorScore > 1 {
		cfg.FloorScore = DefaultFloorScore
	}
	return &Matcher{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}
}

// Match returns up to MaxMatches articles for rec.
//
// A failed pattern tier falls through to the content tier and is recorded
// in Result.Failed. An error is returned only when the content tier was
// needed and failed as well.
func (m *Matcher) Match(ctx context.Context, rec *support.ErrorRecord) (*Result, error) {
	ctx, span := m.tracer.Start(ctx, "textmatch.match")
	defer span.End()
	span.SetAttributes(attribute.String("error.id", rec.ID))

	res := &Result{}

	if strings.TrimSpace(rec.Message) != "" {
		matches, err := m.byPattern(ctx, rec.Message)
		if err != nil {
			span.RecordError(err)
			m.logger.Warn("pattern tier failed, falling back to content",
				zap.String("error_id", rec.ID),
				zap.Error(err),
			)
			res.Failed = append(res.Failed, TierPattern)
		} else if len(matches) > 0 {
			res.Matches = matches
			res.Tier = TierPattern
			span.SetAttributes(
				attribute.String("tier", string(TierPattern)),
				attribute.Int("results.count", len(matches)),
			)
			return res, nil
		}
	}

	matches, err := m.byContent(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "content tier failed")
		res.Failed = append(res.Failed, TierContent)
		return res, fmt.Errorf("content tier: %w", err)
	}

	res.Matches = matches
	res.Tier = TierContent
	span.SetAttributes(
		attribute.String("tier", string(TierContent)),
		attribute.Int("results.count", len(matches)),
	)
	return res, nil
}

func (m *Matcher) byPattern(ctx context.Context, message string) ([]Match, error) {
	articles, err := m.repo.FindByPattern(ctx, message, m.cfg.MaxMatches)
	if err != nil {
		return nil, err
	}

	// Repositories are asked for this order; enforce it regardless.
	sort.SliceStable(articles, func(i, j int) bool {
		return byViews(articles[i], articles[j])
	})
	if len(articles) > m.cfg.MaxMatches {
		articles = articles[:m.cfg.MaxMatches]
	}

	matches := make([]Match, len(articles))
	for i, a := range articles {
		matches[i] = Match{Article: a, RawScore: PatternScore, Reason: ReasonPattern, Tier: TierPattern}
	}
	return matches, nil
}

func (m *Matcher) byContent(ctx context.Context, rec *support.ErrorRecord) ([]Match, error) {
	articles, err := m.repo.ListArticles(ctx)
	if err != nil {
		return nil, err
	}

	query := uniqueTerms(tokenize(rec.Classification + " " + rec.Message))
	emptyMessage := strings.TrimSpace(rec.Message) == ""

	scored := make([]Match, 0, len(articles))
	for _, a := range articles {
		score := relevance(query, tokenize(a.Title+" "+a.Problem+" "+a.Solution))
		if emptyMessage {
			score = max(score, m.cfg.FloorScore)
		} else if score == 0 {
			continue
		}
		scored = append(scored, Match{Article: a, RawScore: score, Reason: ReasonContent, Tier: TierContent})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if emptyMessage {
			return byViews(scored[i].Article, scored[j].Article)
		}
		if scored[i].RawScore != scored[j].RawScore {
			return scored[i].RawScore > scored[j].RawScore
		}
		return byViews(scored[i].Article, scored[j].Article)
	})
	if len(scored) > m.cfg.MaxMatches {
		scored = scored[:m.cfg.MaxMatches]
	}
	return scored, nil
}

// byViews orders by view count desc, then id asc.
func byViews(a, b support.Article) bool {
	if a.ViewCount != b.ViewCount {
		return a.ViewCount > b.ViewCount
	}
	return a.ID < b.ID
}
