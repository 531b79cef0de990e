package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

const articleColumns = `id, title, problem, cause, solution, patterns, tags, view_count, created_at, updated_at`

func scanArticle(row rowScanner) (support.Article, error) {
	var (
		a                    support.Article
		patterns, tags       string
		createdAt, updatedAt string
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Problem, &a.Cause, &a.Solution,
		&patterns, &tags, &a.ViewCount, &createdAt, &updatedAt); err != nil {
		return support.Article{}, err
	}
	if err := json.Unmarshal([]byte(patterns), &a.Patterns); err != nil {
		return support.Article{}, fmt.Errorf("decoding patterns of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		return support.Article{}, fmt.Errorf("decoding tags of %s: %w", a.ID, err)
	}

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return support.Article{}, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return support.Article{}, err
	}
	return a, nil
}

func (s *Store) queryArticles(ctx context.Context, query string, args ...any) ([]support.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var out []support.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindByPattern returns articles with a pattern contained in message,
// ignoring case with Unicode folding, ordered by view count desc then id asc.
func (s *Store) FindByPattern(ctx context.Context, message string, limit int) ([]support.Article, error) {
	if strings.TrimSpace(message) == "" {
		return nil, nil
	}
	articles, err := s.ListArticles(ctx)
	if err != nil {
		return nil, err
	}

	msg := strings.ToLower(message)
	var out []support.Article
	for _, a := range articles {
		if !matchesAnyPattern(msg, a.Patterns) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// matchesAnyPattern reports whether a non-blank pattern occurs in the
// lowercased message.
func matchesAnyPattern(msg string, patterns []string) bool {
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// ListArticles returns every article ordered by view count desc then id asc.
func (s *Store) ListArticles(ctx context.Context) ([]support.Article, error) {
	return s.queryArticles(ctx, `
		SELECT `+articleColumns+`
		FROM kb_articles
		ORDER BY view_count DESC, id ASC`)
}

// GetArticle returns the article with id.
func (s *Store) GetArticle(ctx context.Context, id string) (*support.Article, error) {
	a, err := scanArticle(s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM kb_articles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %s: %w", id, support.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading article %s: %w", id, err)
	}
	return &a, nil
}

// SaveArticle inserts or replaces an article. View counts of existing
// articles are preserved. An empty ID is assigned.
func (s *Store) SaveArticle(ctx context.Context, a *support.Article) error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: article title is required", support.ErrValidation)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Patterns == nil {
		a.Patterns = []string{}
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	patterns, err := json.Marshal(a.Patterns)
	if err != nil {
		return fmt.Errorf("encoding patterns: %w", err)
	}
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kb_articles (id, title, problem, cause, solution, patterns, tags, view_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			problem = excluded.problem,
			cause = excluded.cause,
			solution = excluded.solution,
			patterns = excluded.patterns,
			tags = excluded.tags,
			updated_at = excluded.updated_at`,
		a.ID, a.Title, a.Problem, a.Cause, a.Solution, string(patterns), string(tags),
		a.ViewCount, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving article %s: %w", a.ID, err)
	}
	return nil
}

// IncrementArticleView bumps the view counter of an article.
func (s *Store) IncrementArticleView(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE kb_articles SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("incrementing views of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("article %s: %w", id, support.ErrNotFound)
	}
	return nil
}
