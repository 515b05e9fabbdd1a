// SPDX-License-Identifier: GPL-3.0-or-later
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mvollmer/go-mail-rules/domain"

	"gopkg.in/yaml.v3"
)

// rawRule mirrors the on-disk rule shape. It is only a decoding vehicle;
// everything is mapped onto the strict domain model before use.
type rawRule struct {
	Description string         `json:"description" yaml:"description"`
	Predicate   string         `json:"predicate" yaml:"predicate"`
	Conditions  []rawCondition `json:"conditions" yaml:"conditions"`
	Actions     []rawAction    `json:"actions" yaml:"actions"`
}

type rawCondition struct {
	Field         string `json:"field" yaml:"field"`
	Operator      string `json:"operator" yaml:"operator"`
	Value         string `json:"value" yaml:"value"`
	CaseSensitive bool   `json:"case_sensitive" yaml:"case_sensitive"`
}

type rawAction struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// Load reads and validates the full rule set from filename. YAML files are
// recognized by extension, everything else is decoded as JSON. Any invalid
// rule fails the whole load; a half-valid rule set is never returned.
func Load(filename string) ([]domain.Rule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read rules file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

func ParseJSON(data []byte) ([]domain.Rule, error) {
	raw := []rawRule{}
	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("could not decode rules: %w", err)
	}

	return convert(raw)
}

func ParseYAML(data []byte) ([]domain.Rule, error) {
	raw := []rawRule{}
	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("could not decode rules: %w", err)
	}

	return convert(raw)
}

var (
	fields = map[string]domain.Field{
		string(domain.FieldFrom):     domain.FieldFrom,
		string(domain.FieldTo):       domain.FieldTo,
		string(domain.FieldSubject):  domain.FieldSubject,
		string(domain.FieldMessage):  domain.FieldMessage,
		string(domain.FieldLabels):   domain.FieldLabels,
		string(domain.FieldReceived): domain.FieldReceived,
	}

	operators = map[string]domain.Operator{
		string(domain.OpContains):          domain.OpContains,
		string(domain.OpNotContains):       domain.OpNotContains,
		string(domain.OpEquals):            domain.OpEquals,
		string(domain.OpNotEquals):         domain.OpNotEquals,
		string(domain.OpMatches):           domain.OpMatches,
		string(domain.OpLessThanDays):      domain.OpLessThanDays,
		string(domain.OpGreaterThanDays):   domain.OpGreaterThanDays,
		string(domain.OpLessThanMonths):    domain.OpLessThanMonths,
		string(domain.OpGreaterThanMonths): domain.OpGreaterThanMonths,
	}

	actionKinds = map[string]domain.ActionKind{
		string(domain.MarkRead):    domain.MarkRead,
		string(domain.MarkUnread):  domain.MarkUnread,
		string(domain.MoveMessage): domain.MoveMessage,
	}
)

func convert(raw []rawRule) ([]domain.Rule, error) {
	ruleSet := []domain.Rule{}
	for i, r := range raw {
		rule, err := convertRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i+1, r.Description, err)
		}

		ruleSet = append(ruleSet, *rule)
	}

	return ruleSet, nil
}

func convertRule(raw rawRule) (*domain.Rule, error) {
	var predicate domain.Predicate
	switch strings.ToLower(strings.TrimSpace(raw.Predicate)) {
	case string(domain.PredicateAll):
		predicate = domain.PredicateAll
	case string(domain.PredicateAny):
		predicate = domain.PredicateAny
	default:
		return nil, fmt.Errorf("unknown predicate %q", raw.Predicate)
	}

	if len(raw.Conditions) == 0 {
		return nil, fmt.Errorf("rule has no conditions")
	}
	if len(raw.Actions) == 0 {
		return nil, fmt.Errorf("rule has no actions")
	}

	conditions := []domain.Condition{}
	for _, c := range raw.Conditions {
		condition, err := convertCondition(c)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, *condition)
	}

	actions := []domain.Action{}
	for _, a := range raw.Actions {
		action, err := convertAction(a)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *action)
	}

	return &domain.Rule{
		Description: raw.Description,
		Predicate:   predicate,
		Conditions:  conditions,
		Actions:     actions,
	}, nil
}

func convertCondition(raw rawCondition) (*domain.Condition, error) {
	field, ok := fields[strings.ToLower(strings.TrimSpace(raw.Field))]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", raw.Field)
	}

	operator, ok := operators[strings.ToLower(strings.TrimSpace(raw.Operator))]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", raw.Operator)
	}

	if operator.DateOperator() != (field == domain.FieldReceived) {
		return nil, fmt.Errorf("operator %q cannot be used on field %q", operator, field)
	}

	if operator.DateOperator() {
		magnitude, err := strconv.Atoi(strings.TrimSpace(raw.Value))
		if err != nil || magnitude <= 0 {
			return nil, fmt.Errorf("operator %q needs a positive whole number, got %q", operator, raw.Value)
		}
	}

	if operator == domain.OpMatches {
		_, err := regexp.Compile(raw.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", raw.Value, err)
		}
	}

	return &domain.Condition{
		Field:         field,
		Operator:      operator,
		Value:         raw.Value,
		CaseSensitive: raw.CaseSensitive,
	}, nil
}

func convertAction(raw rawAction) (*domain.Action, error) {
	kind, ok := actionKinds[strings.ToLower(strings.TrimSpace(raw.Type))]
	if !ok {
		return nil, fmt.Errorf("unknown action type %q", raw.Type)
	}

	if kind == domain.MoveMessage && len(strings.TrimSpace(raw.Value)) == 0 {
		return nil, fmt.Errorf("action %q needs a destination", kind)
	}

	return &domain.Action{
		Kind:  kind,
		Value: raw.Value,
	}, nil
}
