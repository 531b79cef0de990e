package services

import (
	"errors"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/troubleshootd/internal/config"
	"github.com/fyrsmithlabs/troubleshootd/internal/diagnostics"
	"github.com/fyrsmithlabs/troubleshootd/internal/feedback"
	"github.com/fyrsmithlabs/troubleshootd/internal/similarity"
	"github.com/fyrsmithlabs/troubleshootd/internal/storage"
	"github.com/fyrsmithlabs/troubleshootd/internal/suggestion"
	"github.com/fyrsmithlabs/troubleshootd/internal/textmatch"
)

// Registry provides access to the wired services.
type Registry interface {
	Store() *storage.Store
	Matcher() *textmatch.Matcher
	Similarity() *similarity.Scorer
	Diagnostics() *diagnostics.Engine
	Feedback() *feedback.Service
	Suggestions() *suggestion.Engine
}

// Options configures New.
type Options struct {
	Store  *storage.Store
	Config *config.Config
	Logger *zap.Logger

	// Metrics registers Prometheus collectors for the engine and feedback
	// service.
	Metrics bool

	// ExtraRules are diagnostic rules evaluated before the final
	// contact-user step.
	ExtraRules []diagnostics.Rule
}

type registry struct {
	store       *storage.Store
	matcher     *textmatch.Matcher
	similarity  *similarity.Scorer
	diagnostics *diagnostics.Engine
	feedback    *feedback.Service
	suggestions *suggestion.Engine
}

// New wires every component to opts.Store. A nil Config means defaults.
func New(opts Options) (Registry, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := cfg.Suggestions
	r := &registry{store: opts.Store}

	r.matcher = textmatch.NewMatcher(opts.Store, textmatch.Config{
		MaxMatches: s.MaxKBMatches,
		FloorScore: s.FloorScore,
	}, logger.Named("textmatch"))

	r.similarity = similarity.NewScorer(opts.Store, similarity.Config{
		PrefixLength: s.PrefixLength,
		MaxResults:   s.MaxSimilar,
	}, logger.Named("similarity"))

	r.diagnostics = diagnostics.NewEngine(opts.ExtraRules...)

	r.feedback = feedback.NewService(opts.Store, opts.Store, cfg.Feedback, logger.Named("feedback"))

	r.suggestions = suggestion.NewEngine(
		opts.Store,
		r.matcher,
		r.similarity,
		r.diagnostics,
		r.feedback,
		suggestion.Config{TierTimeout: s.TierTimeout.Duration()},
		logger.Named("suggestion"),
	)

	if opts.Metrics {
		r.feedback.SetMetrics(feedback.NewMetrics())
		r.suggestions.SetMetrics(suggestion.NewMetrics())
	}

	return r, nil
}

func (r *registry) Store() *storage.Store            { return r.store }
func (r *registry) Matcher() *textmatch.Matcher      { return r.matcher }
func (r *registry) Similarity() *similarity.Scorer   { return r.similarity }
func (r *registry) Diagnostics() *diagnostics.Engine { return r.diagnostics }
func (r *registry) Feedback() *feedback.Service      { return r.feedback }
func (r *registry) Suggestions() *suggestion.Engine  { return r.suggestions }
