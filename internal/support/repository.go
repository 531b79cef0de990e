package support

import "context"

// ArticleRepository is the read side of the knowledge base.
type ArticleRepository interface {
	// FindByPattern returns articles whose patterns appear as a
	// case-insensitive substring of message, ordered by view count desc
	// then id asc. limit <= 0 means no limit.
	FindByPattern(ctx context.Context, message string, limit int) ([]Article, error)

	// ListArticles returns every article, ordered by view count desc then id asc.
	ListArticles(ctx context.Context) ([]Article, error)

	// GetArticle returns the article with id, or ErrNotFound.
	GetArticle(ctx context.Context, id string) (*Article, error)
}

// ErrorRepository is the read side of captured errors.
type ErrorRepository interface {
	// GetError returns the error with id, or ErrNotFound.
	GetError(ctx context.Context, id string) (*ErrorRecord, error)

	// ListResolved returns resolved errors of the given classification.
	ListResolved(ctx context.Context, classification string) ([]ErrorRecord, error)
}

// FeedbackRepository persists the feedback log and derived weights.
type FeedbackRepository interface {
	// AppendFeedback stores a new feedback row. Rows are never updated.
	AppendFeedback(ctx context.Context, fb *Feedback) error

	// CountFeedback aggregates the log for key. A coarse key counts every
	// row of its source kind.
	CountFeedback(ctx context.Context, key WeightKey) (FeedbackCounts, error)

	// GetWeight returns the stored weight for key. The bool is false when
	// no weight has been stored yet.
	GetWeight(ctx context.Context, key WeightKey) (Weight, bool, error)

	// SaveWeight inserts or replaces the weight for w.Key.
	SaveWeight(ctx context.Context, w Weight) error

	// ListWeights returns every stored weight ordered by source then reference.
	ListWeights(ctx context.Context) ([]Weight, error)

	// FeedbackKeys returns the distinct per-reference keys present in the log.
	FeedbackKeys(ctx context.Context) ([]WeightKey, error)
}
