package core

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed input. It is always raised before any
// persistence happens.
type ValidationError struct {
	Field string
	Err   error
}

// Invalid builds a ValidationError for field.
func Invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Err.Error()
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CapExceededError is returned when the line items of a month would be
// budgeted above the month's revenue.
type CapExceededError struct {
	BudgetMonthID int64
	Revenue       Money
	Committed     Money // total budgeted excluding the item being written
	Requested     Money
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("budget month %d: committed %d + requested %d exceeds revenue %d (cents)",
		e.BudgetMonthID, e.Committed.Cents, e.Requested.Cents, e.Revenue.Cents)
}

// Excess is how far over the revenue the proposed total would be.
func (e *CapExceededError) Excess() Money {
	return e.Committed.Add(e.Requested).Sub(e.Revenue)
}

// NotFoundError reports a missing entity, or one owned by somebody else.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Leg names one step of a multi-step transfer operation.
type Leg string

const (
	LegRecord      Leg = "record"
	LegSource      Leg = "source"
	LegDestination Leg = "destination"
)

// PartialFailureError is returned when a transfer operation applied some of
// its steps but not all. The ledger may be unbalanced until someone checks
// the balances of both sources.
type PartialFailureError struct {
	OperationID   string
	Operation     string // "create_transfer" or "delete_transfer"
	TransferID    int64
	SourceID      int64
	DestinationID int64
	Amount        Money
	FailedLeg     Leg
	Compensated   bool
	Err           error
	CompensateErr error
}

func (e *PartialFailureError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s transfer %d: %s leg failed: %v", e.Operation, e.TransferID, e.FailedLeg, e.Err)
	if e.Compensated {
		b.WriteString(" (compensated)")
	} else if e.CompensateErr != nil {
		fmt.Fprintf(&b, " (compensation failed: %v; please verify balances of sources %d and %d)",
			e.CompensateErr, e.SourceID, e.DestinationID)
	}
	return b.String()
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// DriftCorrected records that a stored balance was stale and has been
// replaced with the recomputed one. It is informational, never an error.
type DriftCorrected struct {
	SourceID      int64
	OwnerID       string
	Stored        Money
	Authoritative Money
}

// Delta is authoritative minus stored.
func (d DriftCorrected) Delta() Money {
	return d.Authoritative.Sub(d.Stored)
}
