package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/troubleshootd/internal/storage"
	"github.com/fyrsmithlabs/troubleshootd/internal/suggestion"
	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

// cli runs commands against a throwaway home and data directory.
type cli struct {
	t       *testing.T
	dataDir string
	envFile string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return &cli{t: t, dataDir: filepath.Join(home, "data")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--env-file", c.envFile, "--data-dir", c.dataDir}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "troubleshootd %s", strings.Join(args, " "))
	return out
}

func (c *cli) suggest(errorID string) suggestion.Result {
	c.t.Helper()
	var res suggestion.Result
	require.NoError(c.t, json.Unmarshal([]byte(c.mustRun("suggest", errorID, "-o", "json")), &res))
	return res
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	want := []string{"serve", "suggest", "feedback", "record", "resolve", "seed", "reweight", "version"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	for _, flag := range []string{"config", "env-file", "data-dir"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCmd(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("version")
	assert.Contains(t, out, "troubleshootd dev")
	assert.Contains(t, out, "commit: unknown")
}

func TestSeedCmd_Idempotent(t *testing.T) {
	c := newCLI(t)
	total := len(storage.DefaultArticles())

	assert.Equal(t, fmt.Sprintf("seeded %d of %d articles\n", total, total), c.mustRun("seed"))
	assert.Equal(t, fmt.Sprintf("seeded 0 of %d articles\n", total), c.mustRun("seed"))
}

func TestSuggestAndFeedbackFlow(t *testing.T) {
	c := newCLI(t)
	c.mustRun("seed")

	errorID := strings.TrimSpace(c.mustRun("record", "Jira sync failed: 401 Unauthorized", "-c", "integration", "--severity", "high"))
	require.NotEmpty(t, errorID)

	// Recording the same open error again increments it in place.
	assert.Equal(t, errorID, strings.TrimSpace(c.mustRun("record", "Jira sync failed: 401 Unauthorized", "-c", "integration")))

	jira := storage.SeededArticleID("Jira OAuth Token Expired")

	res := c.suggest(errorID)
	assert.Equal(t, errorID, res.ErrorID)
	assert.False(t, res.Partial)
	require.NotEmpty(t, res.KBMatches)
	refs := make([]string, 0, len(res.KBMatches))
	for _, s := range res.KBMatches {
		refs = append(refs, s.ReferenceID)
	}
	assert.Contains(t, refs, jira)
	require.NotEmpty(t, res.DiagnosticSteps)
	assert.Equal(t, "contact_user", res.DiagnosticSteps[len(res.DiagnosticSteps)-1].Key)

	text := c.mustRun("suggest", errorID)
	assert.Contains(t, text, "Knowledge base (")
	assert.Contains(t, text, "Jira OAuth Token Expired")
	assert.Contains(t, text, "Diagnostic steps (")

	out := c.mustRun("feedback", errorID, "kb_article", jira, "--helpful", "--actor", "qa-1")
	assert.Contains(t, out, "recorded feedback ")
	assert.Contains(t, out, "kb_article")

	out = c.mustRun("reweight")
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "kb_article")

	out = c.mustRun("resolve", errorID, "--notes", "reconnected the Jira integration")
	assert.Equal(t, errorID+" is now resolved\n", out)
}

func TestFeedbackCmd_Errors(t *testing.T) {
	c := newCLI(t)
	errorID := strings.TrimSpace(c.mustRun("record", "database connection timeout", "-c", "database"))

	tests := []struct {
		name    string
		args    []string
		wantErr error
		msg     string
	}{
		{
			name: "needs a verdict",
			args: []string{"feedback", errorID, "kb_article", "a1"},
			msg:  "at least one of the flags",
		},
		{
			name: "verdicts are exclusive",
			args: []string{"feedback", errorID, "kb_article", "a1", "--helpful", "--not-helpful"},
			msg:  "none of the others can be",
		},
		{
			name:    "unknown source",
			args:    []string{"feedback", errorID, "blog_post", "a1", "--helpful"},
			wantErr: support.ErrValidation,
		},
		{
			name:    "unknown error",
			args:    []string{"feedback", "missing", "kb_article", "a1", "--not-helpful"},
			wantErr: support.ErrNotFound,
		},
		{
			name: "wrong arg count",
			args: []string{"feedback", errorID, "kb_article", "--helpful"},
			msg:  "accepts 3 arg(s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.run(tt.args...)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestSuggestCmd_Errors(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("suggest", "missing")
	assert.ErrorIs(t, err, support.ErrNotFound)

	_, err = c.run("suggest", "missing", "-o", "yaml")
	assert.ErrorIs(t, err, support.ErrValidation)
}

func TestResolveCmd_InvalidStatus(t *testing.T) {
	c := newCLI(t)
	errorID := strings.TrimSpace(c.mustRun("record", "validation failed", "-c", "validation"))

	_, err := c.run("resolve", errorID, "--status", "closed")
	assert.ErrorIs(t, err, support.ErrValidation)
}

func TestReweightCmd_EmptyLog(t *testing.T) {
	c := newCLI(t)
	assert.Equal(t, "no weights\n", c.mustRun("reweight"))
}

func TestEnvFileOverridesDefaults(t *testing.T) {
	c := newCLI(t)
	c.envFile = filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(c.envFile, []byte("SUGGESTIONS_MAX_KB_MATCHES=1\n"), 0o600))

	// Restored to its original state on cleanup; godotenv never overrides a
	// variable that is already set.
	t.Setenv("SUGGESTIONS_MAX_KB_MATCHES", "")
	require.NoError(t, os.Unsetenv("SUGGESTIONS_MAX_KB_MATCHES"))

	c.mustRun("seed")
	errorID := strings.TrimSpace(c.mustRun("record", "Jira sync failed: 401 Unauthorized", "-c", "integration"))

	res := c.suggest(errorID)
	assert.Len(t, res.KBMatches, 1)
}

func TestLoadConfig_MissingEnvFileIgnored(t *testing.T) {
	newCLI(t)
	opts := &rootOptions{envFile: filepath.Join(t.TempDir(), "absent.env"), dataDir: "~/data"}

	cfg, err := opts.loadConfig()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), cfg.Storage.DataDir)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is long", 8, "this ..."},
		{"abcdef", 2, "ab"},
		{"ünïcödé", 5, "ün..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.maxLen), tt.in)
	}
}
