package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrNotFound indicates a missing or foreign-tenant entity.
	ErrNotFound = errors.New("accounting: not found")
	// ErrInvalidState indicates the entity status forbids the operation.
	ErrInvalidState = errors.New("accounting: invalid state")
	// ErrRateNotFound indicates no GST rate covers the HSN/SAC on the date.
	ErrRateNotFound = errors.New("accounting: gst rate not found")
	// ErrRateOverlap indicates more than one GST rate covers the same date.
	ErrRateOverlap = errors.New("accounting: overlapping gst rates")
	// ErrUnbalanced indicates debit != credit after entry generation.
	ErrUnbalanced = errors.New("accounting: voucher entries must balance")
	// ErrOverAllocation indicates allocations would exceed the bill amount.
	ErrOverAllocation = errors.New("accounting: allocation exceeds bill amount")
	// ErrCycle indicates a group would become its own ancestor.
	ErrCycle = errors.New("accounting: group hierarchy cycle")
	// ErrMappingNotFound indicates a tax ledger mapping is missing.
	ErrMappingNotFound = errors.New("accounting: ledger mapping not found")
)

// Error carries a kind sentinel plus a machine readable reason.
type Error struct {
	Kind   error
	Reason string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Reason, e.Detail)
}

// Unwrap exposes the kind for errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, reason, format string, args ...any) error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Reason: reason, Detail: detail}
}

// Validation builds an ErrValidation error.
func Validation(reason, format string, args ...any) error {
	return newError(ErrValidation, reason, format, args...)
}

// NotFound builds an ErrNotFound error for the named entity.
func NotFound(entity string, id int64) error {
	return &Error{Kind: ErrNotFound, Reason: entity + "_not_found", Detail: fmt.Sprintf("%s %d", entity, id)}
}

// InvalidState builds an ErrInvalidState error.
func InvalidState(reason, format string, args ...any) error {
	return newError(ErrInvalidState, reason, format, args...)
}

// Unbalanced reports the mismatching totals.
func Unbalanced(debit, credit fmt.Stringer) error {
	return &Error{Kind: ErrUnbalanced, Reason: "unbalanced_entries", Detail: fmt.Sprintf("debit %s credit %s", debit, credit)}
}

// OverAllocation reports the allocation that would overflow the bill.
func OverAllocation(billID int64, remaining, requested fmt.Stringer) error {
	return &Error{Kind: ErrOverAllocation, Reason: "over_allocation", Detail: fmt.Sprintf("bill %d remaining %s requested %s", billID, remaining, requested)}
}

// Cycle reports a re-parent that would make groupID its own ancestor.
func Cycle(groupID, parentID int64) error {
	return &Error{Kind: ErrCycle, Reason: "hierarchy_cycle", Detail: fmt.Sprintf("group %d cannot move under %d", groupID, parentID)}
}

// RateNotFound reports the HSN/SAC and date lacking a rate.
func RateNotFound(hsnSac, date string) error {
	return &Error{Kind: ErrRateNotFound, Reason: "rate_not_found", Detail: fmt.Sprintf("hsn %s on %s", hsnSac, date)}
}

// Reason extracts the machine readable reason of err, or "".
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
