// Package diagnostics derives ordered troubleshooting steps from an error
// message using declarative keyword rules.
//
// Every matching rule fires, in fixed priority order. The first and last
// steps are always "review error context" and "contact affected user".
// Evaluation performs no I/O.
package diagnostics

import (
	"strings"

	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

// Step is one numbered diagnostic step.
type Step struct {
	Number      int    `json:"number"`
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Rule        string `json:"rule"`
}

// Engine evaluates an ordered rule list. It is safe for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the built-in rules. Extra rules are
// evaluated after the built-in keyword rules and before the final
// "contact affected user" step.
func NewEngine(extra ...Rule) *Engine {
	builtin := DefaultRules()
	last := len(builtin) - 1

	rules := make([]Rule, 0, len(builtin)+len(extra))
	rules = append(rules, builtin[:last]...)
	for _, r := range extra {
		if r.When == nil {
			continue
		}
		rules = append(rules, r)
	}
	rules = append(rules, builtin[last])
	return &Engine{rules: rules}
}

// Rules returns the evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate returns the steps for rec, numbered from 1 without gaps.
func (e *Engine) Evaluate(rec *support.ErrorRecord) []Step {
	message := ""
	if rec != nil {
		message = strings.ToLower(rec.Message)
	}

	steps := make([]Step, 0, len(e.rules))
	for _, r := range e.rules {
		if !r.When(message) {
			continue
		}
		steps = append(steps, Step{
			Key:         r.Emits.Key,
			Title:       r.Emits.Title,
			Description: r.Emits.Description,
			Rule:        r.Name,
		})
	}
	for i := range steps {
		steps[i].Number = i + 1
	}
	return steps
}
