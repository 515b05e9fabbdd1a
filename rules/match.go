// SPDX-License-Identifier: GPL-3.0-or-later
package rules

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mvollmer/go-mail-rules/domain"
	"github.com/mvollmer/go-mail-rules/log"

	"github.com/sirupsen/logrus"
)

// Matches evaluates a single condition against one message at the given
// reference time. Unparseable values never abort evaluation, they make the
// condition evaluate false and are logged.
func Matches(message *domain.Message, condition domain.Condition, now time.Time) bool {
	if condition.Field == domain.FieldReceived {
		return matchesDate(message.ReceivedAt, condition, now)
	}

	return matchesText(fieldValues(message, condition.Field), condition)
}

// fieldValues returns the text values a condition can target. Empty values
// are dropped so that absent fields never satisfy positive operators.
func fieldValues(message *domain.Message, field domain.Field) []string {
	candidates := []string{}
	switch field {
	case domain.FieldFrom:
		candidates = []string{message.From}
	case domain.FieldTo:
		candidates = message.To
	case domain.FieldSubject:
		candidates = []string{message.Subject}
	case domain.FieldMessage:
		candidates = []string{message.Snippet}
	case domain.FieldLabels:
		candidates = message.Labels
	}

	values := []string{}
	for _, v := range candidates {
		if len(strings.TrimSpace(v)) > 0 {
			values = append(values, v)
		}
	}

	return values
}

func matchesText(values []string, condition domain.Condition) bool {
	switch condition.Operator {
	case domain.OpContains:
		return anyValue(values, condition, contains)
	case domain.OpNotContains:
		return !anyValue(values, condition, contains)
	case domain.OpEquals:
		return anyValue(values, condition, equals)
	case domain.OpNotEquals:
		return !anyValue(values, condition, equals)
	case domain.OpMatches:
		return anyValue(values, condition, patternMatches)
	}

	return false
}

func anyValue(values []string, condition domain.Condition, match func(value string, condition domain.Condition) bool) bool {
	for _, v := range values {
		if match(v, condition) {
			return true
		}
	}
	return false
}

func contains(value string, condition domain.Condition) bool {
	if condition.CaseSensitive {
		return strings.Contains(value, condition.Value)
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(condition.Value))
}

func equals(value string, condition domain.Condition) bool {
	if condition.CaseSensitive {
		return value == condition.Value
	}
	return strings.EqualFold(value, condition.Value)
}

func patternMatches(value string, condition domain.Condition) bool {
	pattern := condition.Value
	if !condition.CaseSensitive {
		pattern = "(?i)" + pattern
	}

	// Patterns are validated at load, a compile failure can only happen for
	// hand-built conditions and evaluates false like any unparseable value.
	re, err := regexp.Compile(pattern)
	if err != nil {
		log.Logger(log.LOG_RULES).WithFields(logrus.Fields{"pattern": condition.Value, "error": err}).Warn("Unparseable pattern, condition evaluates false")
		return false
	}

	return re.MatchString(value)
}

func matchesDate(received time.Time, condition domain.Condition, now time.Time) bool {
	if received.IsZero() {
		log.Logger(log.LOG_RULES).WithField("operator", condition.Operator).Debug("Message has no received time, condition evaluates false")
		return false
	}

	magnitude, err := strconv.Atoi(strings.TrimSpace(condition.Value))
	if err != nil || magnitude <= 0 {
		log.Logger(log.LOG_RULES).WithFields(logrus.Fields{"operator": condition.Operator, "value": condition.Value}).Warn("Unparseable comparison value, condition evaluates false")
		return false
	}

	var threshold time.Duration
	switch condition.Operator {
	case domain.OpLessThanDays, domain.OpGreaterThanDays:
		threshold = time.Duration(magnitude) * 24 * time.Hour
	case domain.OpLessThanMonths, domain.OpGreaterThanMonths:
		// Months approximate to 30 days
		threshold = time.Duration(magnitude) * 30 * 24 * time.Hour
	default:
		return false
	}

	age := now.Sub(received)
	switch condition.Operator {
	case domain.OpLessThanDays, domain.OpLessThanMonths:
		return age < threshold
	default:
		return age > threshold
	}
}
