// Package faults defines the tagged error kinds produced by workflow orchestration.
// Callers branch on Kind, never on message text.
package faults

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Kind discriminates orchestration failures.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindInvalidStepOrder Kind = "invalid_step_order"
	KindGateBlocked      Kind = "gate_blocked"
	KindRaceCondition    Kind = "race_condition"
	KindInvalidState     Kind = "invalid_state"
	KindTransient        Kind = "transient_service"
	KindDatastore        Kind = "datastore"
	KindNotFound         Kind = "not_found"
)

// Code returns the client-visible error code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindInvalidStepOrder:
		return "INVALID_STEP_ORDER"
	case KindGateBlocked:
		return "GATE_BLOCKED"
	case KindRaceCondition:
		return "RACE_CONDITION"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindTransient:
		return "TRANSIENT_SERVICE_FAILURE"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "DATASTORE_ERROR"
	}
}

// Status maps the kind to an HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInvalidStepOrder:
		return http.StatusBadRequest
	case KindGateBlocked:
		return http.StatusLocked
	case KindRaceCondition, KindInvalidState:
		return http.StatusConflict
	case KindTransient:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is an orchestration failure tagged with its Kind at the point of construction.
type Error struct {
	Kind       Kind
	Message    string
	WorkflowID uuid.UUID
	// Detail is surfaced to the caller verbatim in place of the default body.
	Detail any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the kind of err, or the empty Kind when err is not tagged.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Validation reports malformed input rejected before any state read.
func Validation(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

// InvalidStepOrder reports that the workflow is not positioned at required.
// position is the 1-based step number used in the client message.
func InvalidStepOrder(required, actual string, position int) *Error {
	return &Error{
		Kind:    KindInvalidStepOrder,
		Message: fmt.Sprintf("must be at step %d", position),
		Detail: map[string]any{
			"error":         KindInvalidStepOrder.Code(),
			"message":       fmt.Sprintf("must be at step %d", position),
			"required_step": required,
			"current_step":  actual,
		},
	}
}

// GateBlocked wraps a structured gate response for direct surfacing.
func GateBlocked(workflowID uuid.UUID, message string, response any) *Error {
	return &Error{
		Kind:       KindGateBlocked,
		Message:    message,
		WorkflowID: workflowID,
		Detail:     response,
	}
}

// RaceCondition reports that a concurrent request advanced the workflow first.
func RaceCondition(workflowID uuid.UUID) *Error {
	return &Error{
		Kind:       KindRaceCondition,
		Message:    "workflow state changed by a concurrent request",
		WorkflowID: workflowID,
	}
}

// InvalidState reports a workflow that is in no state from which the step can run or replay.
func InvalidState(workflowID uuid.UUID, message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message, WorkflowID: workflowID}
}

// Transient reports an external service failure after retries were exhausted.
func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// Datastore reports a failed state write.
func Datastore(message string, err error) *Error {
	return &Error{Kind: KindDatastore, Message: message, Err: err}
}

// NotFound reports a missing workflow or related record.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}
