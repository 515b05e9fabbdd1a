// SPDX-License-Identifier: GPL-3.0-or-later
package rules

import (
	"time"

	"github.com/mvollmer/go-mail-rules/domain"
)

// Evaluation is the outcome of running the full rule set against one
// message. Actions are the flattened action lists of every matching rule in
// declaration order; duplicates are preserved, the executor tolerates
// repeated identical actions.
type Evaluation struct {
	Matched []string
	Actions []domain.Action
}

// Evaluate checks every rule against the message. A message that matches no
// rule yields an empty evaluation; that is a valid terminal outcome, not a
// failure.
func Evaluate(ruleSet []domain.Rule, message *domain.Message, now time.Time) Evaluation {
	evaluation := Evaluation{}
	for i := range ruleSet {
		rule := &ruleSet[i]
		if ruleMatches(rule, message, now) {
			evaluation.Matched = append(evaluation.Matched, rule.Description)
			evaluation.Actions = append(evaluation.Actions, rule.Actions...)
		}
	}

	return evaluation
}

func ruleMatches(rule *domain.Rule, message *domain.Message, now time.Time) bool {
	switch rule.Predicate {
	case domain.PredicateAll:
		for _, condition := range rule.Conditions {
			if !Matches(message, condition, now) {
				return false
			}
		}
		return true
	case domain.PredicateAny:
		for _, condition := range rule.Conditions {
			if Matches(message, condition, now) {
				return true
			}
		}
		return false
	}

	return false
}
