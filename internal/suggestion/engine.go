// Package suggestion assembles troubleshooting suggestions for a captured
// error.
//
// The knowledge-base matcher and the similar-error scorer run concurrently
// with the diagnostic rules, each retrieval tier bounded by its own timeout.
// A tier that fails or times out contributes an empty list and marks the
// result partial. KB and similar-error candidates are multiplied by their
// feedback-derived weight and sorted with explicit tie-breaks; diagnostic
// steps keep rule order.
package suggestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/troubleshootd/internal/diagnostics"
	"github.com/fyrsmithlabs/troubleshootd/internal/similarity"
	"github.com/fyrsmithlabs/troubleshootd/internal/support"
	"github.com/fyrsmithlabs/troubleshootd/internal/textmatch"
)

const instrumentationName = "github.com/fyrsmithlabs/troubleshootd/internal/suggestion"

// DefaultTierTimeout bounds each retrieval tier.
const DefaultTierTimeout = 300 * time.Millisecond

const similarReason = "similar resolved error"

// KBMatcher finds knowledge-base articles for an error.
type KBMatcher interface {
	Match(ctx context.Context, rec *support.ErrorRecord) (*textmatch.Result, error)
}

// SimilarFinder finds resolved errors similar to an error.
type SimilarFinder interface {
	FindSimilar(ctx context.Context, rec *support.ErrorRecord) ([]similarity.Match, error)
}

// Diagnoser derives diagnostic steps. It must not block.
type Diagnoser interface {
	Evaluate(rec *support.ErrorRecord) []diagnostics.Step
}

// WeightSource resolves the multiplier for a suggestion.
type WeightSource interface {
	Weight(ctx context.Context, source support.SourceKind, ref string) (float64, error)
}

// Config tunes the engine.
type Config struct {
	TierTimeout time.Duration
}

// Engine orchestrates retrieval and ranking.
type Engine struct {
	records   support.ErrorRepository
	matcher   KBMatcher
	similar   SimilarFinder
	diagnoser Diagnoser
	weights   WeightSource
	cfg       Config
	logger    *zap.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// NewEngine creates an engine. weights may be nil, in which case every
// candidate keeps its raw score.
func NewEngine(
	errs support.ErrorRepository,
	matcher KBMatcher,
	similar SimilarFinder,
	diagnoser Diagnoser,
	weights WeightSource,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TierTimeout <= 0 {
		cfg.TierTimeout = DefaultTierTimeout
	}
	return &Engine{
		records:   errs,
		matcher:   matcher,
		similar:   similar,
		diagnoser: diagnoser,
		weights:   weights,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
	}
}

// SetMetrics enables Prometheus metrics for this engine.
func (e *Engine) SetMetrics(m *Metrics) {
	e.metrics = m
}

// GetSuggestions returns ranked suggestions for the error with errorID.
//
// It fails with support.ErrNotFound when the error does not exist and with
// the context's error when ctx ends before the tiers join. Tier failures do
// not fail the call; see Result.Partial.
func (e *Engine) GetSuggestions(ctx context.Context, errorID string) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "suggestion.get")
	defer span.End()
	span.SetAttributes(attribute.String("error.id", errorID))

	rec, err := e.records.GetError(ctx, errorID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, support.ErrNotFound) {
			e.metrics.RecordRequest("not_found")
			return nil, fmt.Errorf("error %s: %w", errorID, support.ErrNotFound)
		}
		span.SetStatus(codes.Error, "load error record failed")
		e.metrics.RecordRequest("error")
		return nil, fmt.Errorf("loading error %s: %w", errorID, err)
	}

	res := &Result{
		ErrorID:         rec.ID,
		KBMatches:       []Suggestion{},
		SimilarErrors:   []Suggestion{},
		DiagnosticSteps: []diagnostics.Step{},
		FailedTiers:     []string{},
	}

	var (
		kb      *textmatch.Result
		kbErr   error
		similar []similarity.Match
		simErr  error
		steps   []diagnostics.Step
		g       errgroup.Group
	)
	tierStart := time.Now()

	// Tasks never return an error so that one failing tier cannot cancel
	// or hide the others.
	g.Go(func() error {
		kb, kbErr = runTier(ctx, e.cfg.TierTimeout, func(tctx context.Context) (*textmatch.Result, error) {
			return e.matcher.Match(tctx, rec)
		})
		e.observeTier(TierKBArticles, tierStart, kbErr)
		return nil
	})
	g.Go(func() error {
		similar, simErr = runTier(ctx, e.cfg.TierTimeout, func(tctx context.Context) ([]similarity.Match, error) {
			return e.similar.FindSimilar(tctx, rec)
		})
		e.observeTier(TierSimilarErrors, tierStart, simErr)
		return nil
	})
	g.Go(func() error {
		steps = e.diagnoser.Evaluate(rec)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		e.metrics.RecordRequest("error")
		return nil, err
	}

	if kbErr != nil {
		res.markFailed(TierKBArticles)
		e.logger.Warn("kb tier failed", zap.String("error_id", rec.ID), zap.Error(kbErr))
	}
	if kb != nil {
		if len(kb.Failed) > 0 {
			res.markFailed(TierKBArticles)
			e.logger.Warn("kb lookup degraded",
				zap.String("error_id", rec.ID),
				zap.Any("failed", kb.Failed),
			)
		}
		res.KBMatches = e.rankKB(ctx, kb.Matches)
	}

	if simErr != nil {
		res.markFailed(TierSimilarErrors)
		e.logger.Warn("similar error tier failed", zap.String("error_id", rec.ID), zap.Error(simErr))
	} else {
		res.SimilarErrors = e.rankSimilar(ctx, similar)
	}

	if steps != nil {
		res.DiagnosticSteps = steps
	}

	span.SetAttributes(
		attribute.Int("kb.count", len(res.KBMatches)),
		attribute.Int("similar.count", len(res.SimilarErrors)),
		attribute.Int("steps.count", len(res.DiagnosticSteps)),
		attribute.Bool("partial", res.Partial),
	)
	e.metrics.RecordServed(string(support.SourceKBArticle), len(res.KBMatches))
	e.metrics.RecordServed(string(support.SourceSimilarError), len(res.SimilarErrors))
	e.metrics.RecordServed(string(support.SourceDiagnosticStep), len(res.DiagnosticSteps))
	if res.Partial {
		e.metrics.RecordRequest("partial")
	} else {
		e.metrics.RecordRequest("ok")
	}

	e.logger.Debug("suggestions assembled",
		zap.String("error_id", rec.ID),
		zap.Int("kb_matches", len(res.KBMatches)),
		zap.Int("similar_errors", len(res.SimilarErrors)),
		zap.Int("diagnostic_steps", len(res.DiagnosticSteps)),
		zap.Bool("partial", res.Partial),
	)
	return res, nil
}

// runTier calls fn with a context bounded by timeout. It returns when fn
// returns or the deadline passes, whichever is first, so a tier that
// ignores its context cannot hold up the response.
func runTier[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(tctx)
		done <- outcome{val: v, err: err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-tctx.Done():
		var zero T
		return zero, tctx.Err()
	}
}

func (e *Engine) observeTier(tier string, start time.Time, err error) {
	e.metrics.RecordTier(tier, time.Since(start).Seconds(), err != nil, errors.Is(err, context.DeadlineExceeded))
}

func (e *Engine) rankKB(ctx context.Context, matches []textmatch.Match) []Suggestion {
	out := make([]Suggestion, 0, len(matches))
	for i, m := range matches {
		out = append(out, Suggestion{
			Source:      support.SourceKBArticle,
			ReferenceID: m.Article.ID,
			Title:       m.Article.Title,
			Summary:     m.Article.Solution,
			RawScore:    m.RawScore,
			Reason:      m.Reason,
			Rank:        i,
		})
	}
	return e.weigh(ctx, out)
}

func (e *Engine) rankSimilar(ctx context.Context, matches []similarity.Match) []Suggestion {
	out := make([]Suggestion, 0, len(matches))
	for i, m := range matches {
		out = append(out, Suggestion{
			Source:      support.SourceSimilarError,
			ReferenceID: m.Error.ID,
			Title:       m.Error.Message,
			Summary:     m.Error.ResolutionNotes,
			RawScore:    m.Similarity,
			Reason:      similarReason,
			Rank:        i,
		})
	}
	return e.weigh(ctx, out)
}

// weigh applies weights and sorts by score desc, tier rank asc, then
// reference id asc.
func (e *Engine) weigh(ctx context.Context, list []Suggestion) []Suggestion {
	for i := range list {
		w := e.weightFor(ctx, list[i].Source, list[i].ReferenceID)
		list[i].Weight = w
		list[i].Score = list[i].RawScore * w
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.ReferenceID < b.ReferenceID
	})
	return list
}

// weightFor returns the neutral weight when no source is configured or the
// lookup fails.
func (e *Engine) weightFor(ctx context.Context, source support.SourceKind, ref string) float64 {
	if e.weights == nil {
		return 1.0
	}
	w, err := e.weights.Weight(ctx, source, ref)
	if err != nil {
		e.logger.Warn("weight lookup failed, using neutral weight",
			zap.String("source", string(source)),
			zap.String("reference_id", ref),
			zap.Error(err),
		)
		return 1.0
	}
	return w
}
