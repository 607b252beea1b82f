package alerts

import (
	"fmt"

	"github.com/talentmanager/talentmanager/pkg/types"
	"github.com/talentmanager/talentmanager/server/internal/config"
)

// Rule is one compiled alert rule.
type Rule struct {
	Name      string
	Condition string

	cond condition
}

// Matches reports whether rec satisfies the rule.
func (r *Rule) Matches(rec types.Record) bool {
	return r.cond.eval(rec)
}

// Evaluator holds the compiled rule set. It is immutable and safe for
// concurrent use.
type Evaluator struct {
	rules []*Rule
}

// NewEvaluator compiles rules. An empty rule set is valid and never matches.
func NewEvaluator(rules []config.AlertRule) (*Evaluator, error) {
	e := &Evaluator{rules: make([]*Rule, 0, len(rules))}
	for _, r := range rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		e.rules = append(e.rules, &Rule{Name: r.Name, Condition: r.Condition, cond: c})
	}
	return e, nil
}

// Default returns an Evaluator over config.DefaultAlertRules.
func Default() *Evaluator {
	e, err := NewEvaluator(config.DefaultAlertRules())
	if err != nil {
		panic(err)
	}
	return e
}

// Rules returns the compiled rules in declaration order.
func (e *Evaluator) Rules() []*Rule {
	out := make([]*Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Match returns the names of the rules rec satisfies, in declaration order.
func (e *Evaluator) Match(rec types.Record) []string {
	var names []string
	for _, r := range e.rules {
		if r.Matches(rec) {
			names = append(names, r.Name)
		}
	}
	return names
}
