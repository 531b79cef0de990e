// Package feedback records helpful/not-helpful signals on suggestions and
// maintains the relevance weights derived from them.
//
// The feedback log is the source of truth. A weight is always recomputed
// from the full log for its key, never incremented, so it can be rebuilt
// from the log alone. Recomputation is serialized per key.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moby/locker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

const instrumentationName = "github.com/fyrsmithlabs/troubleshootd/internal/feedback"

// SubmitRequest is a single feedback signal.
type SubmitRequest struct {
	ErrorID     string             `json:"error_id"`
	Source      support.SourceKind `json:"source"`
	ReferenceID string             `json:"reference_id"`
	Helpful     *bool              `json:"helpful"`
	ActorID     string             `json:"actor_id,omitempty"`
}

// Verdict returns a pointer to v for SubmitRequest.Helpful.
func Verdict(v bool) *bool {
	return &v
}

// Validate checks the request shape.
func (r *SubmitRequest) Validate() error {
	if strings.TrimSpace(r.ErrorID) == "" {
		return fmt.Errorf("%w: error_id is required", support.ErrValidation)
	}
	if !r.Source.Valid() {
		return fmt.Errorf("%w: unknown source kind %q", support.ErrValidation, r.Source)
	}
	if strings.TrimSpace(r.ReferenceID) == "" {
		return fmt.Errorf("%w: reference_id is required", support.ErrValidation)
	}
	if r.Helpful == nil {
		return fmt.Errorf("%w: helpful is required", support.ErrValidation)
	}
	return nil
}

// Ack confirms a recorded feedback event. Weights holds the weights that
// were recomputed successfully; it may be empty.
type Ack struct {
	FeedbackID string           `json:"feedback_id"`
	Weights    []support.Weight `json:"weights"`
}

// Service ingests feedback and resolves relevance weights.
type Service struct {
	store   support.FeedbackRepository
	records support.ErrorRepository
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
	locks   *locker.Locker
	now     func() time.Time
}

// NewService creates a feedback service.
func NewService(store support.FeedbackRepository, errs support.ErrorRepository, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		records: errs,
		cfg:     cfg.normalized(),
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		locks:   locker.New(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetMetrics enables Prometheus metrics for this service.
func (s *Service) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Config returns the effective recomputation settings.
func (s *Service) Config() Config {
	return s.cfg
}

// Submit validates req, appends it to the feedback log, and recomputes the
// source weight and, once the reference has enough events, the reference
// weight. Only a failed append is reported as an error; failed
// recomputation is logged and left for lazy repair on read.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Ack, error) {
	ctx, span := s.tracer.Start(ctx, "feedback.submit")
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("error.id", req.ErrorID),
		attribute.String("source", string(req.Source)),
		attribute.String("reference.id", req.ReferenceID),
		attribute.Bool("helpful", *req.Helpful),
	)

	if _, err := s.records.GetError(ctx, req.ErrorID); err != nil {
		span.RecordError(err)
		if errors.Is(err, support.ErrNotFound) {
			return nil, fmt.Errorf("error %s: %w", req.ErrorID, support.ErrNotFound)
		}
		return nil, fmt.Errorf("loading error %s: %w", req.ErrorID, err)
	}

	fb := &support.Feedback{
		ID:          uuid.NewString(),
		ErrorID:     req.ErrorID,
		Source:      req.Source,
		ReferenceID: req.ReferenceID,
		Helpful:     *req.Helpful,
		ActorID:     req.ActorID,
		CreatedAt:   s.now(),
	}
	if err := s.store.AppendFeedback(ctx, fb); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append feedback failed")
		return nil, fmt.Errorf("%w: appending feedback: %w", support.ErrPersistence, err)
	}
	if s.metrics != nil {
		s.metrics.FeedbackTotal.WithLabelValues(string(req.Source), strconv.FormatBool(*req.Helpful)).Inc()
	}

	ack := &Ack{FeedbackID: fb.ID, Weights: []support.Weight{}}
	for _, key := range []support.WeightKey{
		support.SourceKey(req.Source),
		support.ReferenceKey(req.Source, req.ReferenceID),
	} {
		w, ok, err := s.recompute(ctx, key)
		if err != nil {
			s.recomputeFailed(key, err)
			continue
		}
		if ok {
			ack.Weights = append(ack.Weights, w)
		}
	}

	s.logger.Info("feedback recorded",
		zap.String("feedback_id", fb.ID),
		zap.String("error_id", fb.ErrorID),
		zap.String("source", string(fb.Source)),
		zap.String("reference_id", fb.ReferenceID),
		zap.Bool("helpful", fb.Helpful),
		zap.Int("weights_updated", len(ack.Weights)),
	)
	return ack, nil
}

// recompute rebuilds the weight for key from the log while holding the
// key's lock. ok is false when a reference key is below the threshold.
func (s *Service) recompute(ctx context.Context, key support.WeightKey) (support.Weight, bool, error) {
	name := key.String()
	s.locks.Lock(name)
	defer func() { _ = s.locks.Unlock(name) }()

	counts, err := s.store.CountFeedback(ctx, key)
	if err != nil {
		return support.Weight{}, false, fmt.Errorf("counting feedback for %s: %w", key, err)
	}
	if !s.eligible(key, counts) {
		return support.Weight{}, false, nil
	}

	w := support.Weight{
		Key:       key,
		Value:     ComputeWeight(counts, s.cfg),
		Helpful:   counts.Helpful,
		Unhelpful: counts.Unhelpful,
		UpdatedAt: s.now(),
	}
	if err := s.store.SaveWeight(ctx, w); err != nil {
		return support.Weight{}, false, fmt.Errorf("saving weight for %s: %w", key, err)
	}

	if s.metrics != nil {
		if key.Coarse() {
			s.metrics.SourceWeight.WithLabelValues(string(key.Source)).Set(w.Value)
		} else {
			s.metrics.ReferenceWeightUpdates.Inc()
		}
	}
	s.logger.Debug("weight recomputed",
		zap.String("key", key.String()),
		zap.Float64("weight", w.Value),
		zap.Int("helpful", w.Helpful),
		zap.Int("unhelpful", w.Unhelpful),
	)
	return w, true, nil
}

func (s *Service) eligible(key support.WeightKey, counts support.FeedbackCounts) bool {
	if counts.Total() == 0 {
		return false
	}
	return key.Coarse() || counts.Total() >= s.cfg.Threshold
}

func (s *Service) recomputeFailed(key support.WeightKey, err error) {
	if s.metrics != nil {
		s.metrics.RecomputeFailures.WithLabelValues(scopeLabel(key.Coarse())).Inc()
	}
	s.logger.Warn("weight recompute failed",
		zap.String("key", key.String()),
		zap.Error(err),
	)
}

// Weight returns the multiplier for a suggestion from source with id ref.
// The reference weight applies once ref has reached the threshold;
// otherwise the source weight applies. Keys without feedback are neutral.
func (s *Service) Weight(ctx context.Context, source support.SourceKind, ref string) (float64, error) {
	if ref != "" {
		w, ok, err := s.Resolve(ctx, support.ReferenceKey(source, ref))
		if err != nil {
			return NeutralWeight, err
		}
		if ok {
			return w.Value, nil
		}
	}
	w, ok, err := s.Resolve(ctx, support.SourceKey(source))
	if err != nil {
		return NeutralWeight, err
	}
	if !ok {
		return NeutralWeight, nil
	}
	return w.Value, nil
}

// Resolve returns the current weight for key. A stored weight whose counts
// disagree with the feedback log is recomputed; saving the repaired value is
// best effort. ok is false when the key has no applicable weight.
func (s *Service) Resolve(ctx context.Context, key support.WeightKey) (support.Weight, bool, error) {
	counts, err := s.store.CountFeedback(ctx, key)
	if err != nil {
		return support.Weight{}, false, fmt.Errorf("counting feedback for %s: %w", key, err)
	}
	if !s.eligible(key, counts) {
		return support.Weight{}, false, nil
	}

	stored, found, err := s.store.GetWeight(ctx, key)
	if err != nil {
		return support.Weight{}, false, fmt.Errorf("loading weight for %s: %w", key, err)
	}
	if found && stored.Counts() == counts {
		return stored, true, nil
	}

	w, ok, err := s.recompute(ctx, key)
	if err != nil {
		s.recomputeFailed(key, err)
		return support.Weight{
			Key:       key,
			Value:     ComputeWeight(counts, s.cfg),
			Helpful:   counts.Helpful,
			Unhelpful: counts.Unhelpful,
			UpdatedAt: s.now(),
		}, true, nil
	}
	return w, ok, nil
}

// Weights lists every stored weight.
func (s *Service) Weights(ctx context.Context) ([]support.Weight, error) {
	weights, err := s.store.ListWeights(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing weights: %w", err)
	}
	return weights, nil
}

// Rebuild recomputes every weight key present in the feedback log and
// returns the resulting weights.
func (s *Service) Rebuild(ctx context.Context) ([]support.Weight, error) {
	keys := make([]support.WeightKey, 0, len(support.SourceKinds()))
	for _, k := range support.SourceKinds() {
		keys = append(keys, support.SourceKey(k))
	}
	refs, err := s.store.FeedbackKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing feedback keys: %w", err)
	}
	keys = append(keys, refs...)

	var out []support.Weight
	for _, key := range keys {
		w, ok, err := s.recompute(ctx, key)
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, w)
		}
	}
	s.logger.Info("weights rebuilt", zap.Int("count", len(out)))
	return out, nil
}
