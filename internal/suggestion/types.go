package suggestion

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/troubleshootd/internal/diagnostics"
	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

// Retrieval tier names reported in Result.FailedTiers.
const (
	TierKBArticles    = "kb_articles"
	TierSimilarErrors = "similar_errors"
)

// Suggestion is a weighted candidate remediation.
type Suggestion struct {
	Source      support.SourceKind `json:"source"`
	ReferenceID string             `json:"reference_id"`
	Title       string             `json:"title"`
	Summary     string             `json:"summary"`

	// RawScore is the tier's relevance in [0, 1].
	RawScore float64 `json:"raw_score"`
	// Weight is the feedback-derived multiplier applied to RawScore.
	Weight float64 `json:"weight"`
	// Score is RawScore * Weight.
	Score float64 `json:"score"`

	Reason string `json:"reason"`

	// Rank is the position the tier returned the candidate in. It breaks
	// score ties.
	Rank int `json:"-"`
}

// Result holds the three suggestion lists for an error.
type Result struct {
	ErrorID         string             `json:"error_id"`
	KBMatches       []Suggestion       `json:"kb_matches"`
	SimilarErrors   []Suggestion       `json:"similar_errors"`
	DiagnosticSteps []diagnostics.Step `json:"diagnostic_steps"`

	// Partial is set when a retrieval tier failed or timed out; its list
	// is then empty or incomplete.
	Partial     bool     `json:"partial"`
	FailedTiers []string `json:"failed_tiers"`
}

// PartialError returns an error wrapping support.ErrPartialRetrieval when
// the result is partial, nil otherwise.
func (r *Result) PartialError() error {
	if !r.Partial {
		return nil
	}
	return fmt.Errorf("%w: %s", support.ErrPartialRetrieval, strings.Join(r.FailedTiers, ", "))
}

func (r *Result) markFailed(tier string) {
	for _, t := range r.FailedTiers {
		if t == tier {
			return
		}
	}
	r.Partial = true
	r.FailedTiers = append(r.FailedTiers, tier)
}
