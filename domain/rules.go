// SPDX-License-Identifier: GPL-3.0-or-later
package domain

type Predicate string

const (
	PredicateAll = Predicate("all")
	PredicateAny = Predicate("any")
)

type Field string

const (
	FieldFrom     = Field("from")
	FieldTo       = Field("to")
	FieldSubject  = Field("subject")
	FieldMessage  = Field("message")
	FieldLabels   = Field("labels")
	FieldReceived = Field("received date/time")
)

type Operator string

const (
	OpContains          = Operator("contains")
	OpNotContains       = Operator("does not contain")
	OpEquals            = Operator("equals")
	OpNotEquals         = Operator("does not equal")
	OpMatches           = Operator("matches")
	OpLessThanDays      = Operator("less than (days)")
	OpGreaterThanDays   = Operator("greater than (days)")
	OpLessThanMonths    = Operator("less than (months)")
	OpGreaterThanMonths = Operator("greater than (months)")
)

// DateOperator reports whether the operator compares message age, which is
// only valid on the received date/time field.
func (o Operator) DateOperator() bool {
	switch o {
	case OpLessThanDays, OpGreaterThanDays, OpLessThanMonths, OpGreaterThanMonths:
		return true
	}
	return false
}

type ActionKind string

const (
	MarkRead    = ActionKind("mark as read")
	MarkUnread  = ActionKind("mark as unread")
	MoveMessage = ActionKind("move message")
)

// Condition is a pure predicate over one message field. Text comparisons are
// case-insensitive unless CaseSensitive is set.
type Condition struct {
	Field         Field
	Operator      Operator
	Value         string
	CaseSensitive bool
}

// Action is one remote-service mutation to apply when a rule matches. Value
// carries the destination label for move actions.
type Action struct {
	Kind  ActionKind
	Value string
}

// Rule combines conditions under a predicate and names the actions to apply
// on a match. Rules are immutable once loaded for a run.
type Rule struct {
	Description string
	Predicate   Predicate
	Conditions  []Condition
	Actions     []Action
}
