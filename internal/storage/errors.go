package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

const errorColumns = `id, classification, message, resolution_notes, status, severity, source,
	occurrence_count, created_at, updated_at, resolved_at`

// NewError describes a captured error to record.
type NewError struct {
	Classification string
	Message        string
	Severity       support.Severity
	Source         string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanError(row rowScanner) (support.ErrorRecord, error) {
	var (
		rec                  support.ErrorRecord
		status, severity     string
		createdAt, updatedAt string
		resolvedAt           sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Classification, &rec.Message, &rec.ResolutionNotes,
		&status, &severity, &rec.Source, &rec.OccurrenceCount,
		&createdAt, &updatedAt, &resolvedAt); err != nil {
		return support.ErrorRecord{}, err
	}
	rec.Status = support.ErrorStatus(status)
	rec.Severity = support.Severity(severity)

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return support.ErrorRecord{}, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return support.ErrorRecord{}, err
	}
	if resolvedAt.Valid {
		if rec.ResolvedAt, err = parseTime(resolvedAt.String); err != nil {
			return support.ErrorRecord{}, err
		}
	}
	return rec, nil
}

// GetError returns the error record with id.
func (s *Store) GetError(ctx context.Context, id string) (*support.ErrorRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+errorColumns+` FROM error_records WHERE id = ?`, id)
	rec, err := scanError(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error record %s: %w", id, support.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading error record %s: %w", id, err)
	}
	return &rec, nil
}

// ListResolved returns resolved errors with resolution notes in
// classification, most recently resolved first.
func (s *Store) ListResolved(ctx context.Context, classification string) ([]support.ErrorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+errorColumns+`
		FROM error_records
		WHERE classification = ? AND status = 'resolved' AND trim(resolution_notes) <> ''
		ORDER BY resolved_at DESC, id ASC`, classification)
	if err != nil {
		return nil, fmt.Errorf("querying resolved errors: %w", err)
	}
	defer rows.Close()

	var out []support.ErrorRecord
	for rows.Next() {
		rec, err := scanError(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning error record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordError stores a captured error. An open (new or investigating)
// error with the same classification and message has its occurrence count
// incremented instead.
func (s *Store) RecordError(ctx context.Context, in NewError) (*support.ErrorRecord, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", support.ErrValidation)
	}
	if strings.TrimSpace(in.Classification) == "" {
		return nil, fmt.Errorf("%w: classification is required", support.ErrValidation)
	}
	if in.Severity == "" {
		in.Severity = support.SeverityMedium
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(s.now())
	var id string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM error_records
		WHERE classification = ? AND message = ? AND status IN ('new', 'investigating')
		ORDER BY created_at ASC, id ASC LIMIT 1`, in.Classification, in.Message).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO error_records (id, classification, message, status, severity, source, created_at, updated_at)
			VALUES (?, ?, ?, 'new', ?, ?, ?, ?)`,
			id, in.Classification, in.Message, string(in.Severity), in.Source, now, now); err != nil {
			return nil, fmt.Errorf("inserting error record: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("looking up open error: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE error_records SET occurrence_count = occurrence_count + 1, updated_at = ?
			WHERE id = ?`, now, id); err != nil {
			return nil, fmt.Errorf("incrementing occurrence count: %w", err)
		}
	}

	rec, err := scanError(tx.QueryRowContext(ctx, `SELECT `+errorColumns+` FROM error_records WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reloading error record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing error record: %w", err)
	}

	s.logger.Debug("error recorded",
		zap.String("error_id", rec.ID),
		zap.Int("occurrences", rec.OccurrenceCount),
	)
	return &rec, nil
}

// UpdateErrorStatus moves an error through its lifecycle. Resolving sets
// resolved_at; notes replace the current resolution notes when non-empty.
func (s *Store) UpdateErrorStatus(ctx context.Context, id string, status support.ErrorStatus, notes string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", support.ErrValidation, status)
	}

	now := s.now()
	resolvedAt := sql.NullString{}
	if status == support.StatusResolved {
		resolvedAt = nullableTime(now)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE error_records
		SET status = ?,
		    resolution_notes = CASE WHEN ? <> '' THEN ? ELSE resolution_notes END,
		    resolved_at = ?,
		    updated_at = ?
		WHERE id = ?`,
		string(status), notes, notes, resolvedAt, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("updating error status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("error record %s: %w", id, support.ErrNotFound)
	}
	return nil
}
