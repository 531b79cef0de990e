package support

import (
	"fmt"
	"strings"
	"time"
)

// ErrorStatus is the lifecycle state of a captured error.
type ErrorStatus string

const (
	// StatusNew is a captured error nobody has looked at yet.
	StatusNew ErrorStatus = "new"
	// StatusInvestigating is an error under investigation.
	StatusInvestigating ErrorStatus = "investigating"
	// StatusResolved is an error that has been fixed.
	StatusResolved ErrorStatus = "resolved"
	// StatusDismissed is an error judged not actionable.
	StatusDismissed ErrorStatus = "dismissed"
)

// Valid reports whether s is a known lifecycle state.
func (s ErrorStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInvestigating, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// Severity is the captured severity of an error.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorRecord is a captured runtime error. It is immutable once captured;
// only the external error-management collaborator changes its status.
type ErrorRecord struct {
	ID string `json:"id"`

	// Classification is the error-type tag used to scope similarity search.
	Classification string `json:"classification"`

	Message         string      `json:"message"`
	ResolutionNotes string      `json:"resolution_notes,omitempty"`
	Status          ErrorStatus `json:"status"`
	Severity        Severity    `json:"severity"`

	// Source names the subsystem that raised the error (frontend, backend, ...).
	Source string `json:"source,omitempty"`

	OccurrenceCount int `json:"occurrence_count"`

	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// HasResolution reports whether the record is resolved with usable notes.
func (r *ErrorRecord) HasResolution() bool {
	return r.Status == StatusResolved && strings.TrimSpace(r.ResolutionNotes) != ""
}

// Article is a knowledge-base troubleshooting document.
type Article struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Problem  string `json:"problem"`
	Cause    string `json:"cause"`
	Solution string `json:"solution"`

	// Patterns are keyword fragments of related error messages.
	Patterns []string `json:"patterns"`
	Tags     []string `json:"tags,omitempty"`

	// ViewCount is incremented by the KB collaborator on each view.
	ViewCount int64 `json:"view_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceKind identifies where a suggestion came from.
type SourceKind string

const (
	// SourceKBArticle is a knowledge-base article suggestion.
	SourceKBArticle SourceKind = "kb_article"
	// SourceSimilarError is a previously resolved similar error.
	SourceSimilarError SourceKind = "similar_error"
	// SourceDiagnosticStep is a rule-generated diagnostic step.
	SourceDiagnosticStep SourceKind = "diagnostic_step"
)

// SourceKinds lists every valid source kind in a fixed order.
func SourceKinds() []SourceKind {
	return []SourceKind{SourceKBArticle, SourceSimilarError, SourceDiagnosticStep}
}

// Valid reports whether k is one of the enumerated source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceKBArticle, SourceSimilarError, SourceDiagnosticStep:
		return true
	}
	return false
}

// ParseSourceKind converts s to a SourceKind, failing with ErrValidation.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(strings.TrimSpace(s))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown source kind %q", ErrValidation, s)
	}
	return k, nil
}

// Feedback is one helpful/not-helpful signal on a suggestion.
// Rows are append-only; a reversal is a new row.
type Feedback struct {
	ID          string     `json:"id"`
	ErrorID     string     `json:"error_id"`
	Source      SourceKind `json:"source"`
	ReferenceID string     `json:"reference_id"`
	Helpful     bool       `json:"helpful"`
	ActorID     string     `json:"actor_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// WeightKey addresses a relevance weight. An empty ReferenceID is the
// coarse, source-level key.
type WeightKey struct {
	Source      SourceKind `json:"source"`
	ReferenceID string     `json:"reference_id,omitempty"`
}

// SourceKey returns the coarse key for source.
func SourceKey(source SourceKind) WeightKey {
	return WeightKey{Source: source}
}

// ReferenceKey returns the per-reference key for source and ref.
func ReferenceKey(source SourceKind, ref string) WeightKey {
	return WeightKey{Source: source, ReferenceID: ref}
}

// Coarse reports whether the key is source-level.
func (k WeightKey) Coarse() bool {
	return k.ReferenceID == ""
}

// String renders the key for logs and lock names.
func (k WeightKey) String() string {
	if k.Coarse() {
		return string(k.Source)
	}
	return string(k.Source) + "/" + k.ReferenceID
}

// FeedbackCounts aggregates the feedback log for one weight key.
type FeedbackCounts struct {
	Helpful   int `json:"helpful"`
	Unhelpful int `json:"unhelpful"`
}

// Total returns the number of feedback events counted.
func (c FeedbackCounts) Total() int {
	return c.Helpful + c.Unhelpful
}

// Weight is the persisted relevance adjustment for a key, together with the
// counts it was computed from.
type Weight struct {
	Key       WeightKey `json:"key"`
	Value     float64   `json:"value"`
	Helpful   int       `json:"helpful"`
	Unhelpful int       `json:"unhelpful"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Counts returns the feedback counts the weight was derived from.
func (w *Weight) Counts() FeedbackCounts {
	return FeedbackCounts{Helpful: w.Helpful, Unhelpful: w.Unhelpful}
}
