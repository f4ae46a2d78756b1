package domain

import (
	"fmt"
	"strings"
)

// IntentParseError indicates the question could not be turned into a valid
// intent: the model failed or timed out, the output was malformed, a field
// reference is not in the catalog, or the model asked for clarification.
type IntentParseError struct {
	Message  string
	Question string
	// Unknown lists field references that do not resolve against the catalog.
	Unknown []string
	// Clarifications carries the model's follow-up questions when it could
	// not read the question unambiguously.
	Clarifications []string
}

func (e *IntentParseError) Error() string {
	msg := e.Message
	if len(e.Unknown) > 0 {
		msg += ": unknown fields " + strings.Join(e.Unknown, ", ")
	}
	return msg
}

// AmbiguousStrategyError indicates the intent references both stores but no
// dependency direction can be established. Refs lists the conflicting field
// references so the caller can rephrase.
type AmbiguousStrategyError struct {
	Refs   []FieldRef
	Reason string
}

func (e *AmbiguousStrategyError) Error() string {
	if len(e.Refs) == 0 {
		return "ambiguous strategy: " + e.Reason
	}
	return fmt.Sprintf("ambiguous strategy: %s (conflicting fields: %s)", e.Reason, JoinRefs(e.Refs))
}

// PlanValidationError indicates a structural plan invariant was violated.
// It surfaces extraction/catalog mismatches as hard failures; nothing ever
// degrades to a partial or guessed plan.
type PlanValidationError struct {
	Message string
}

func (e *PlanValidationError) Error() string { return e.Message }

// ErrorKind classifies a store failure for retry decisions.
type ErrorKind string

const (
	// ErrorTransient marks failures worth retrying: timeouts, connection
	// drops, server overload.
	ErrorTransient ErrorKind = "transient"
	// ErrorPermanent marks failures retries cannot fix: bad syntax, auth,
	// unknown database.
	ErrorPermanent ErrorKind = "permanent"
)

// StoreError wraps a failure from one of the federated stores with its
// retry classification. Classification happens in the store adapters, which
// know their drivers' failure modes.
type StoreError struct {
	Store StoreID
	Kind  ErrorKind
	Query string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store: %s failure: %v", e.Store, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Transient reports whether the wrapped failure is retryable.
func (e *StoreError) Transient() bool { return e.Kind == ErrorTransient }

// ErrIntentParse creates an IntentParseError with a formatted message.
func ErrIntentParse(format string, args ...interface{}) *IntentParseError {
	return &IntentParseError{Message: fmt.Sprintf(format, args...)}
}

// ErrAmbiguousStrategy creates an AmbiguousStrategyError for the given
// conflicting references.
func ErrAmbiguousStrategy(reason string, refs []FieldRef) *AmbiguousStrategyError {
	return &AmbiguousStrategyError{Reason: reason, Refs: refs}
}

// ErrPlanValidation creates a PlanValidationError with a formatted message.
func ErrPlanValidation(format string, args ...interface{}) *PlanValidationError {
	return &PlanValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrStore wraps a store failure with its classification.
func ErrStore(store StoreID, kind ErrorKind, query string, err error) *StoreError {
	return &StoreError{Store: store, Kind: kind, Query: query, Err: err}
}
