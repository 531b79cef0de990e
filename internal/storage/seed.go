package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

// articleNamespace derives stable ids for seeded articles so that seeding
// twice yields the same rows.
var articleNamespace = uuid.MustParse("6f1c3f0e-9d7a-4c1b-8a55-2d0c4b7e9a11")

// SeededArticleID returns the id a default article with title is stored under.
func SeededArticleID(title string) string {
	return uuid.NewSHA1(articleNamespace, []byte(title)).String()
}

// DefaultArticles returns the built-in troubleshooting articles.
func DefaultArticles() []support.Article {
	articles := []support.Article{
		{
			Title:    "Jira OAuth Token Expired",
			Problem:  "Jira API calls fail with 401 Unauthorized after some time",
			Cause:    "OAuth access tokens expire after about an hour. The refresh token also expires when the app is unused for 90 days.",
			Solution: "Open Settings > Integrations > Jira and click Reconnect. Complete the OAuth flow to obtain new tokens. If the refresh still fails, revoke and re-authorize the app in Jira.",
			Patterns: []string{"401", "unauthorized", "token expired", "invalid_grant"},
			Tags:     []string{"jira", "oauth", "authentication"},
		},
		{
			Title:    "Postman API Key Invalid",
			Problem:  "Postman API calls fail with authentication errors",
			Cause:    "The Postman API key was revoked, expired or entered incorrectly.",
			Solution: "Log into Postman, open Account Settings > API Keys and generate a new key. Update it under Settings > Integrations > Postman.",
			Patterns: []string{"401", "invalid api key", "postman"},
			Tags:     []string{"postman", "api-key", "authentication"},
		},
		{
			Title:    "Database Connection Timeout",
			Problem:  "Application fails to connect to the database with timeout errors",
			Cause:    "Network problems, database overload or wrong connection settings.",
			Solution: "Check the DATABASE_URL setting and that the database server is running. Verify connectivity to the database host, review the connection pool settings and check the server load.",
			Patterns: []string{"connection timeout", "database", "postgres", "pool"},
			Tags:     []string{"database", "connection", "timeout"},
		},
		{
			Title:    "Rate Limit Exceeded",
			Problem:  "API calls fail with 429 Too Many Requests",
			Cause:    "Too many requests were sent to an external API within its rate limit window.",
			Solution: "Wait for the rate limit window to reset, usually 1 to 15 minutes. Reduce the call frequency, batch requests where possible, or move to a higher API tier.",
			Patterns: []string{"429", "rate limit", "too many requests"},
			Tags:     []string{"rate-limit", "api"},
		},
		{
			Title:    "Testmo API Connection Failed",
			Problem:  "Cannot connect to the Testmo API or sync test results",
			Cause:    "Incorrect Testmo URL, invalid API key or network issues.",
			Solution: "Verify the Testmo URL (https://your-org.testmo.net) and that the API key is valid in Testmo settings. Make sure outbound HTTPS to Testmo is allowed, then run the integration diagnostics.",
			Patterns: []string{"testmo", "connection failed", "api error"},
			Tags:     []string{"testmo", "connection", "api"},
		},
	}
	for i := range articles {
		articles[i].ID = SeededArticleID(articles[i].Title)
	}
	return articles
}

// SeedDefaults stores DefaultArticles, leaving existing rows untouched.
// It returns the number of articles inserted.
func (s *Store) SeedDefaults(ctx context.Context) (int, error) {
	inserted := 0
	for _, a := range DefaultArticles() {
		_, err := s.GetArticle(ctx, a.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, support.ErrNotFound) {
			return inserted, err
		}
		if err := s.SaveArticle(ctx, &a); err != nil {
			return inserted, fmt.Errorf("seeding %q: %w", a.Title, err)
		}
		inserted++
	}
	s.logger.Info("knowledge base seeded", zap.Int("inserted", inserted))
	return inserted, nil
}
