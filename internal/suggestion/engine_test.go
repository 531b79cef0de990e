package suggestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/troubleshootd/internal/diagnostics"
	"github.com/fyrsmithlabs/troubleshootd/internal/similarity"
	"github.com/fyrsmithlabs/troubleshootd/internal/support"
	"github.com/fyrsmithlabs/troubleshootd/internal/textmatch"
)

type fakeRepo struct {
	errs     map[string]support.ErrorRecord
	articles []support.Article
	getErr   error

	mu            sync.Mutex
	contentCalls  int
	resolvedDelay time.Duration
	resolvedErr   error
}

func (f *fakeRepo) GetError(_ context.Context, id string) (*support.ErrorRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.errs[id]
	if !ok {
		return nil, support.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeRepo) ListResolved(ctx context.Context, classification string) ([]support.ErrorRecord, error) {
	if f.resolvedDelay > 0 {
		select {
		case <-time.After(f.resolvedDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.resolvedErr != nil {
		return nil, f.resolvedErr
	}
	var out []support.ErrorRecord
	for _, r := range f.errs {
		if r.Status == support.StatusResolved && r.Classification == classification {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindByPattern(_ context.Context, message string, _ int) ([]support.Article, error) {
	msg := strings.ToLower(message)
	var out []support.Article
	for _, a := range f.articles {
		for _, p := range a.Patterns {
			if strings.Contains(msg, strings.ToLower(p)) {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListArticles(context.Context) ([]support.Article, error) {
	f.mu.Lock()
	f.contentCalls++
	f.mu.Unlock()
	return f.articles, nil
}

func (f *fakeRepo) GetArticle(context.Context, string) (*support.Article, error) {
	return nil, support.ErrNotFound
}

type fakeWeights map[string]float64

func (w fakeWeights) Weight(_ context.Context, source support.SourceKind, ref string) (float64, error) {
	if v, ok := w[string(source)+"/"+ref]; ok {
		return v, nil
	}
	if v, ok := w[string(source)]; ok {
		return v, nil
	}
	return 1.0, nil
}

type failingWeights struct{}

func (failingWeights) Weight(context.Context, support.SourceKind, string) (float64, error) {
	return 0, errors.New("weights unavailable")
}

type blockingMatcher struct{}

func (blockingMatcher) Match(ctx context.Context, _ *support.ErrorRecord) (*textmatch.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// stubbornMatcher ignores its context entirely.
type stubbornMatcher struct{ release chan struct{} }

func (m stubbornMatcher) Match(context.Context, *support.ErrorRecord) (*textmatch.Result, error) {
	<-m.release
	return &textmatch.Result{}, nil
}

var resolvedAt = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func resolvedRecord(id, class, msg, notes string, at time.Time) support.ErrorRecord {
	return support.ErrorRecord{
		ID:              id,
		Classification:  class,
		Message:         msg,
		ResolutionNotes: notes,
		Status:          support.StatusResolved,
		ResolvedAt:      at,
	}
}

func fixture() *fakeRepo {
	records := []support.ErrorRecord{
		{ID: "e-net", Classification: "network", Message: "Network request failed: fetch error", Status: support.StatusNew},
		{ID: "e-auth", Classification: "auth", Message: "Jira call returned 401 Unauthorized", Status: support.StatusNew},
		resolvedRecord("r-1", "network", "Network request failed: fetch error", "VPN was down", resolvedAt),
		resolvedRecord("r-2", "network", "Network request failed: DNS error", "Fixed DNS", resolvedAt.Add(time.Hour)),
		resolvedRecord("r-3", "auth", "Network request failed: fetch error", "other class", resolvedAt),
	}
	repo := &fakeRepo{
		errs: make(map[string]support.ErrorRecord, len(records)),
		articles: []support.Article{
			{ID: "kb-jira", Title: "Jira OAuth Token Expired", Solution: "Reconnect Jira", Patterns: []string{"401 Unauthorized"}, ViewCount: 4},
			{ID: "kb-net", Title: "Network Request Troubleshooting", Problem: "Requests fail to fetch", Solution: "Check network", ViewCount: 9},
			{ID: "kb-net-2", Title: "Fetch Failures", Problem: "Network fetch request failed", Solution: "Retry", ViewCount: 1},
		},
	}
	for _, r := range records {
		repo.errs[r.ID] = r
	}
	return repo
}

func newEngine(repo *fakeRepo, weights WeightSource, cfg Config) *Engine {
	return NewEngine(
		repo,
		textmatch.NewMatcher(repo, textmatch.Config{}, nil),
		similarity.NewScorer(repo, similarity.Config{}, nil),
		diagnostics.NewEngine(),
		weights,
		cfg,
		nil,
	)
}

func TestGetSuggestions_NetworkScenario(t *testing.T) {
	repo := fixture()
	res, err := newEngine(repo, nil, Config{}).GetSuggestions(context.Background(), "e-net")
	require.NoError(t, err)
	require.NoError(t, res.PartialError())

	keys := make([]string, len(res.DiagnosticSteps))
	for i, s := range res.DiagnosticSteps {
		keys[i] = s.Key
		assert.Equal(t, i+1, s.Number)
	}
	assert.Equal(t, []string{"review_context", "integration_diagnostics", "contact_user"}, keys)

	require.Len(t, res.SimilarErrors, 2)
	assert.Equal(t, "r-1", res.SimilarErrors[0].ReferenceID)
	assert.Equal(t, 1.0, res.SimilarErrors[0].RawScore)
	for _, s := range res.SimilarErrors {
		assert.NotEqual(t, "e-net", s.ReferenceID)
		assert.NotEqual(t, "r-3", s.ReferenceID)
	}

	require.NotEmpty(t, res.KBMatches)
	for _, m := range res.KBMatches {
		assert.Equal(t, textmatch.ReasonContent, m.Reason)
	}
}

func TestGetSuggestions_ExactPatternScenario(t *testing.T) {
	repo := fixture()
	res, err := newEngine(repo, nil, Config{}).GetSuggestions(context.Background(), "e-auth")
	require.NoError(t, err)

	require.Len(t, res.KBMatches, 1)
	assert.Equal(t, "kb-jira", res.KBMatches[0].ReferenceID)
	assert.Equal(t, 0.9, res.KBMatches[0].RawScore)
	assert.Equal(t, "pattern match", res.KBMatches[0].Reason)
	assert.Equal(t, 0, repo.contentCalls, "full-text tier must not run")
}

func TestGetSuggestions_NotFound(t *testing.T) {
	_, err := newEngine(fixture(), nil, Config{}).GetSuggestions(context.Background(), "missing")
	assert.ErrorIs(t, err, support.ErrNotFound)
}

func TestGetSuggestions_RepositoryFailure(t *testing.T) {
	repo := fixture()
	repo.getErr = errors.New("connection reset")
	_, err := newEngine(repo, nil, Config{}).GetSuggestions(context.Background(), "e-net")
	require.Error(t, err)
	assert.NotErrorIs(t, err, support.ErrNotFound)
}

func TestGetSuggestions_AppliesWeights(t *testing.T) {
	repo := fixture()
	weights := fakeWeights{
		"similar_error":     0.5,
		"similar_error/r-2": 1.75,
	}
	res, err := newEngine(repo, weights, Config{}).GetSuggestions(context.Background(), "e-net")
	require.NoError(t, err)

	require.Len(t, res.SimilarErrors, 2)
	top, second := res.SimilarErrors[0], res.SimilarErrors[1]
	assert.Equal(t, "r-2", top.ReferenceID, "boosted reference overtakes the exact match")
	assert.Equal(t, 1.75, top.Weight)
	assert.InDelta(t, top.RawScore*1.75, top.Score, 1e-9)
	assert.Equal(t, 0.5, second.Weight)
	assert.InDelta(t, 0.5, second.Score, 1e-9)
}

func TestGetSuggestions_WeightLookupFailureIsNeutral(t *testing.T) {
	res, err := newEngine(fixture(), failingWeights{}, Config{}).GetSuggestions(context.Background(), "e-auth")
	require.NoError(t, err)
	require.Len(t, res.KBMatches, 1)
	assert.Equal(t, 1.0, res.KBMatches[0].Weight)
	assert.False(t, res.Partial)
}

func TestGetSuggestions_Deterministic(t *testing.T) {
	repo := fixture()
	// Equal scores must fall back to tier rank, then reference id.
	repo.errs["r-4"] = resolvedRecord("r-4", "network", "Network request failed: fetch error", "dup", resolvedAt)
	engine := newEngine(repo, fakeWeights{"kb_article": 1.2}, Config{})

	first, err := engine.GetSuggestions(context.Background(), "e-net")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := engine.GetSuggestions(context.Background(), "e-net")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "r-1", first.SimilarErrors[0].ReferenceID)
	assert.Equal(t, "r-4", first.SimilarErrors[1].ReferenceID)
}

func TestGetSuggestions_TierTimeoutDegrades(t *testing.T) {
	repo := fixture()
	repo.resolvedDelay = time.Second

	start := time.Now()
	res, err := newEngine(repo, nil, Config{TierTimeout: 50 * time.Millisecond}).
		GetSuggestions(context.Background(), "e-auth")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.True(t, res.Partial)
	assert.Equal(t, []string{TierSimilarErrors}, res.FailedTiers)
	assert.Empty(t, res.SimilarErrors)
	assert.Len(t, res.KBMatches, 1, "other tiers are unaffected")
	assert.NotEmpty(t, res.DiagnosticSteps)

	err = res.PartialError()
	assert.ErrorIs(t, err, support.ErrPartialRetrieval)
}

func TestGetSuggestions_TierIgnoringContextIsBounded(t *testing.T) {
	repo := fixture()
	release := make(chan struct{})
	defer close(release)

	engine := NewEngine(repo, stubbornMatcher{release: release},
		similarity.NewScorer(repo, similarity.Config{}, nil),
		diagnostics.NewEngine(), nil, Config{TierTimeout: 30 * time.Millisecond}, nil)

	res, err := engine.GetSuggestions(context.Background(), "e-net")
	require.NoError(t, err)
	assert.Equal(t, []string{TierKBArticles}, res.FailedTiers)
	assert.NotEmpty(t, res.SimilarErrors)
}

func TestGetSuggestions_TierFailure(t *testing.T) {
	repo := fixture()
	repo.resolvedErr = errors.New("disk I/O error")

	res, err := newEngine(repo, nil, Config{}).GetSuggestions(context.Background(), "e-net")
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, []string{TierSimilarErrors}, res.FailedTiers)
	assert.Empty(t, res.SimilarErrors)
	assert.NotNil(t, res.SimilarErrors)
}

func TestGetSuggestions_BothTiersTimeOut(t *testing.T) {
	repo := fixture()
	repo.resolvedDelay = time.Second
	engine := NewEngine(repo, blockingMatcher{},
		similarity.NewScorer(repo, similarity.Config{}, nil),
		diagnostics.NewEngine(), nil, Config{TierTimeout: 20 * time.Millisecond}, nil)

	res, err := engine.GetSuggestions(context.Background(), "e-net")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{TierKBArticles, TierSimilarErrors}, res.FailedTiers)
	assert.Len(t, res.DiagnosticSteps, 3)
}

func TestGetSuggestions_CancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(fixture(), nil, Config{}).GetSuggestions(ctx, "e-net")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResult_PartialError(t *testing.T) {
	r := &Result{}
	assert.NoError(t, r.PartialError())

	r.markFailed(TierKBArticles)
	r.markFailed(TierKBArticles)
	assert.Equal(t, []string{TierKBArticles}, r.FailedTiers)
	assert.ErrorIs(t, r.PartialError(), support.ErrPartialRetrieval)
}
