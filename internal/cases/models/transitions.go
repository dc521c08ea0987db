package models

import (
	"fmt"

	dErrors "kycreview/pkg/domain-errors"
)

// Transitions is a closed state machine table: every known state maps to the
// states it may move to. A state with no outgoing edges is terminal. All four
// review entities (case, document, bank statement, occupation form) validate
// through this one lookup.
type Transitions[S ~string] struct {
	entity  string
	allowed map[S][]S
}

// NewTransitions builds a table for the named entity.
func NewTransitions[S ~string](entity string, allowed map[S][]S) Transitions[S] {
	return Transitions[S]{entity: entity, allowed: allowed}
}

// Known reports whether s is a state of this machine.
func (t Transitions[S]) Known(s S) bool {
	_, ok := t.allowed[s]
	return ok
}

// IsTerminal reports whether s has no outgoing transitions.
func (t Transitions[S]) IsTerminal(s S) bool {
	next, ok := t.allowed[s]
	return ok && len(next) == 0
}

// Allowed reports whether from -> to is a legal edge.
func (t Transitions[S]) Allowed(from, to S) bool {
	for _, candidate := range t.allowed[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Check returns an invalid_state error when from -> to is not a legal edge.
func (t Transitions[S]) Check(from, to S) error {
	if t.IsTerminal(from) {
		return dErrors.Newf(dErrors.CodeInvalidState, "%s is already %s", t.entity, from)
	}
	if !t.Allowed(from, to) {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("%s cannot move from %s to %s", t.entity, from, to))
	}
	return nil
}

// Next returns the legal targets from s.
func (t Transitions[S]) Next(s S) []S {
	return append([]S(nil), t.allowed[s]...)
}
