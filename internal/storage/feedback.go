package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

// AppendFeedback inserts a feedback row. Rows cannot be updated or deleted.
func (s *Store) AppendFeedback(ctx context.Context, fb *support.Feedback) error {
	helpful := 0
	if fb.Helpful {
		helpful = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suggestion_feedback (id, error_id, source, reference_id, helpful, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.ErrorID, string(fb.Source), fb.ReferenceID, helpful, fb.ActorID, formatTime(fb.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting feedback %s: %w", fb.ID, err)
	}
	return nil
}

// CountFeedback aggregates helpful and unhelpful rows for key.
func (s *Store) CountFeedback(ctx context.Context, key support.WeightKey) (support.FeedbackCounts, error) {
	query := `
		SELECT COALESCE(SUM(helpful), 0), COALESCE(SUM(1 - helpful), 0)
		FROM suggestion_feedback
		WHERE source = ?`
	args := []any{string(key.Source)}
	if !key.Coarse() {
		query += ` AND reference_id = ?`
		args = append(args, key.ReferenceID)
	}

	var c support.FeedbackCounts
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&c.Helpful, &c.Unhelpful); err != nil {
		return support.FeedbackCounts{}, fmt.Errorf("counting feedback for %s: %w", key, err)
	}
	return c, nil
}

// ListFeedback returns the feedback log for an error, oldest first.
func (s *Store) ListFeedback(ctx context.Context, errorID string) ([]support.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, error_id, source, reference_id, helpful, actor_id, created_at
		FROM suggestion_feedback
		WHERE error_id = ?
		ORDER BY created_at ASC, id ASC`, errorID)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	var out []support.Feedback
	for rows.Next() {
		var (
			fb        support.Feedback
			source    string
			helpful   int
			createdAt string
		)
		if err := rows.Scan(&fb.ID, &fb.ErrorID, &source, &fb.ReferenceID, &helpful, &fb.ActorID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		fb.Source = support.SourceKind(source)
		fb.Helpful = helpful == 1
		if fb.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// FeedbackKeys returns the distinct (source, reference) pairs in the log.
func (s *Store) FeedbackKeys(ctx context.Context) ([]support.WeightKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT source, reference_id
		FROM suggestion_feedback
		ORDER BY source ASC, reference_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying feedback keys: %w", err)
	}
	defer rows.Close()

	var out []support.WeightKey
	for rows.Next() {
		var source, ref string
		if err := rows.Scan(&source, &ref); err != nil {
			return nil, fmt.Errorf("scanning feedback key: %w", err)
		}
		out = append(out, support.ReferenceKey(support.SourceKind(source), ref))
	}
	return out, rows.Err()
}

// GetWeight returns the stored weight for key.
func (s *Store) GetWeight(ctx context.Context, key support.WeightKey) (support.Weight, bool, error) {
	var (
		w         = support.Weight{Key: key}
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT value, helpful, unhelpful, updated_at
		FROM relevance_weights
		WHERE source = ? AND reference_id = ?`,
		string(key.Source), key.ReferenceID,
	).Scan(&w.Value, &w.Helpful, &w.Unhelpful, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return support.Weight{}, false, nil
	}
	if err != nil {
		return support.Weight{}, false, fmt.Errorf("loading weight for %s: %w", key, err)
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return support.Weight{}, false, err
	}
	return w, true, nil
}

// SaveWeight upserts w.
func (s *Store) SaveWeight(ctx context.Context, w support.Weight) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relevance_weights (source, reference_id, value, helpful, unhelpful, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, reference_id) DO UPDATE SET
			value = excluded.value,
			helpful = excluded.helpful,
			unhelpful = excluded.unhelpful,
			updated_at = excluded.updated_at`,
		string(w.Key.Source), w.Key.ReferenceID, w.Value, w.Helpful, w.Unhelpful, formatTime(w.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving weight for %s: %w", w.Key, err)
	}
	return nil
}

// ListWeights returns every stored weight ordered by source then reference.
func (s *Store) ListWeights(ctx context.Context) ([]support.Weight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, reference_id, value, helpful, unhelpful, updated_at
		FROM relevance_weights
		ORDER BY source ASC, reference_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying weights: %w", err)
	}
	defer rows.Close()

	var out []support.Weight
	for rows.Next() {
		var (
			w                 support.Weight
			source, updatedAt string
		)
		if err := rows.Scan(&source, &w.Key.ReferenceID, &w.Value, &w.Helpful, &w.Unhelpful, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning weight: %w", err)
		}
		w.Key.Source = support.SourceKind(source)
		if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
