package diagnostics

import "strings"

// Predicate decides whether a rule fires for a lowercased error message.
type Predicate func(message string) bool

// Always fires for every error.
func Always() Predicate {
	return func(string) bool { return true }
}

// AnyKeyword fires when message contains any of the keywords.
// Keywords are matched case-insensitively as substrings, so "connect" also
// matches "disconnected".
func AnyKeyword(keywords ...string) Predicate {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return func(message string) bool {
		for _, k := range lowered {
			if strings.Contains(message, k) {
				return true
			}
		}
		return false
	}
}

// Template is the step a rule contributes when it fires.
type Template struct {
	Key         string
	Title       string
	Description string
}

// Rule pairs a predicate with the step it emits.
type Rule struct {
	Name  string
	When  Predicate
	Emits Template
}

// Rule names for the built-in set.
const (
	RuleReviewContext = "review_context"
	RuleNetwork       = "network"
	RuleAuth          = "auth"
	RuleTimeout       = "timeout"
	RuleRateLimit     = "rate_limit"
	RuleDatabase      = "database"
	RuleValidation    = "validation"
	RuleNotFound      = "not_found"
	RuleContactUser   = "contact_user"
)

var (
	networkKeywords = []string{
		"network", "connection", "connect", "fetch", "econnrefused",
		"econnreset", "dns", "socket", "unreachable",
	}
	authKeywords = []string{
		"unauthorized", "401", "authentication", "token", "credential",
		"forbidden", "403", "permission", "access denied",
	}
	timeoutKeywords = []string{
		"timeout", "timed out", "deadline exceeded", "etimedout",
		"latency", "slow",
	}
	rateLimitKeywords  = []string{"rate limit", "429", "too many requests"}
	databaseKeywords   = []string{"database", "sql", "query", "postgres"}
	validationKeywords = []string{"validation", "invalid", "required"}
	notFoundKeywords   = []string{"not found", "404", "does not exist"}
)

func reviewContextRule() Rule {
	return Rule{
		Name: RuleReviewContext,
		When: Always(),
		Emits: Template{
			Key:         "review_context",
			Title:       "Review Error Context",
			Description: "Read the full error message, the page or endpoint involved, and what the user was doing when it occurred.",
		},
	}
}

func contactUserRule() Rule {
	return Rule{
		Name: RuleContactUser,
		When: Always(),
		Emits: Template{
			Key:         "contact_user",
			Title:       "Contact Affected User",
			Description: "Reach out to the affected user to confirm the impact and share the workaround or fix.",
		},
	}
}

// contextRules are the keyword-triggered rules, in priority order.
func contextRules() []Rule {
	return []Rule{
		{
			Name: RuleNetwork,
			When: AnyKeyword(networkKeywords...),
			Emits: Template{
				Key:         "integration_diagnostics",
				Title:       "Run Integration Diagnostics",
				Description: "Verify network connectivity, check that the target service is reachable, and run the integration diagnostics.",
			},
		},
		{
			Name: RuleAuth,
			When: AnyKeyword(authKeywords...),
			Emits: Template{
				Key:         "credential_check",
				Title:       "Check Credentials",
				Description: "Check whether OAuth tokens or API keys have expired or lost scopes, then re-authenticate with the integration.",
			},
		},
		{
			Name: RuleTimeout,
			When: AnyKeyword(timeoutKeywords...),
			Emits: Template{
				Key:         "latency_check",
				Title:       "Check Latency",
				Description: "Measure response times of the upstream service and look for overload or slow queries.",
			},
		},
		{
			Name: RuleRateLimit,
			When: AnyKeyword(rateLimitKeywords...),
			Emits: Template{
				Key:         "rate_limit_check",
				Title:       "Rate Limit Exceeded",
				Description: "Wait before retrying and reduce the frequency of API calls. Consider a higher API plan if limits are hit regularly.",
			},
		},
		{
			Name: RuleDatabase,
			When: AnyKeyword(databaseKeywords...),
			Emits: Template{
				Key:         "database_check",
				Title:       "Check Database",
				Description: "Check the database connection status and load, look for pending migrations, and review recent schema changes.",
			},
		},
		{
			Name: RuleValidation,
			When: AnyKeyword(validationKeywords...),
			Emits: Template{
				Key:         "input_validation",
				Title:       "Check Input Data",
				Description: "Check the input data format and verify that all required fields are provided.",
			},
		},
		{
			Name: RuleNotFound,
			When: AnyKeyword(notFoundKeywords...),
			Emits: Template{
				Key:         "resource_check",
				Title:       "Verify Resource Exists",
				Description: "Verify the resource id is correct, that the resource was not deleted, and that the user can access it.",
			},
		},
	}
}

// DefaultRules returns the built-in rule set in priority order.
func DefaultRules() []Rule {
	rules := []Rule{reviewContextRule()}
	rules = append(rules, contextRules()...)
	return append(rules, contactUserRule())
}
