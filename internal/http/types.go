package http

import (
	"context"

	"github.com/fyrsmithlabs/troubleshootd/internal/feedback"
	"github.com/fyrsmithlabs/troubleshootd/internal/suggestion"
	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

// Suggester produces suggestions for a captured error.
type Suggester interface {
	GetSuggestions(ctx context.Context, errorID string) (*suggestion.Result, error)
}

// FeedbackService records feedback and exposes current weights.
type FeedbackService interface {
	Submit(ctx context.Context, req feedback.SubmitRequest) (*feedback.Ack, error)
	Weights(ctx context.Context) ([]support.Weight, error)
}

// ArticleStore serves knowledge-base articles and counts views.
type ArticleStore interface {
	GetArticle(ctx context.Context, id string) (*support.Article, error)
	IncrementArticleView(ctx context.Context, id string) error
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WeightsResponse is the response body for GET /api/v1/weights.
type WeightsResponse struct {
	Weights []support.Weight `json:"weights"`
}
