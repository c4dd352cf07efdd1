// Package repository declares the persistence ports the ledger services
// depend on. Every call is scoped by owner: rows of another owner behave as
// if they did not exist. No port offers transactions spanning several calls.
package repository

import (
	"context"
	"errors"
	"time"

	"recettes/internal/core"
)

var (
	// ErrNotFound is returned when a row does not exist for the owner.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("record already exists")
)

type (
	ExpenseFilter struct {
		SourceID int64 // 0 means any source
		From     time.Time
		To       time.Time
		Category string
	}

	TransferFilter struct {
		SourceID int64 // matches either side of the transfer; 0 means any
	}

	MovementFilter struct {
		LineItemID    int64
		BudgetMonthID int64
	}
)

// Ports for outbound adapters.
type (
	IncomeSourceStore interface {
		ListIncomeSources(ctx context.Context, ownerID string) ([]core.IncomeSource, error)
		GetIncomeSource(ctx context.Context, ownerID string, id int64) (core.IncomeSource, error)
		CreateIncomeSource(ctx context.Context, s core.IncomeSource) (core.IncomeSource, error)
		// UpdateIncomeSource writes label, initial amount and status. The
		// available balance is left untouched.
		UpdateIncomeSource(ctx context.Context, s core.IncomeSource) error
		DeleteIncomeSource(ctx context.Context, ownerID string, id int64) error

		// SetAvailableBalance overwrites the stored projection.
		SetAvailableBalance(ctx context.Context, ownerID string, id int64, balance core.Money) error
		// IncrementBalance and DecrementBalance apply a delta in one statement
		// instead of a read-modify-write.
		IncrementBalance(ctx context.Context, ownerID string, id int64, amount core.Money) error
		DecrementBalance(ctx context.Context, ownerID string, id int64, amount core.Money) error
	}

	ExpenseStore interface {
		ListExpenses(ctx context.Context, ownerID string, filter ExpenseFilter) ([]core.Expense, error)
		GetExpense(ctx context.Context, ownerID string, id int64) (core.Expense, error)
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, ownerID string, id int64) error
	}

	TransferStore interface {
		ListTransfers(ctx context.Context, ownerID string, filter TransferFilter) ([]core.Transfer, error)
		GetTransfer(ctx context.Context, ownerID string, id int64) (core.Transfer, error)
		CreateTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error)
		DeleteTransfer(ctx context.Context, ownerID string, id int64) error
	}

	EnvelopeStore interface {
		GetBudgetMonth(ctx context.Context, ownerID string, year, month int) (core.BudgetMonth, error)
		GetBudgetMonthByID(ctx context.Context, ownerID string, id int64) (core.BudgetMonth, error)
		ListBudgetMonths(ctx context.Context, ownerID string) ([]core.BudgetMonth, error)
		// CreateBudgetMonth returns ErrConflict when (owner, year, month) exists.
		CreateBudgetMonth(ctx context.Context, b core.BudgetMonth) (core.BudgetMonth, error)

		ListLineItems(ctx context.Context, ownerID string, budgetMonthID int64) ([]core.LineItem, error)
		GetLineItem(ctx context.Context, ownerID string, id int64) (core.LineItem, error)
		CreateLineItem(ctx context.Context, li core.LineItem) (core.LineItem, error)
		UpdateLineItem(ctx context.Context, li core.LineItem) error
		DeleteLineItem(ctx context.Context, ownerID string, id int64) error

		ListMovements(ctx context.Context, ownerID string, filter MovementFilter) ([]core.Movement, error)
		GetMovement(ctx context.Context, ownerID string, id int64) (core.Movement, error)
		CreateMovement(ctx context.Context, m core.Movement) (core.Movement, error)
		UpdateMovement(ctx context.Context, m core.Movement) error
		DeleteMovement(ctx context.Context, ownerID string, id int64) error
	}

	// Repository is the full persistence surface.
	Repository interface {
		IncomeSourceStore
		ExpenseStore
		TransferStore
		EnvelopeStore
	}
)

// Matches reports whether e passes the filter.
func (f ExpenseFilter) Matches(e core.Expense) bool {
	if f.SourceID != 0 && e.SourceID != f.SourceID {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	return true
}

// Matches reports whether t touches the filtered source.
func (f TransferFilter) Matches(t core.Transfer) bool {
	return f.SourceID == 0 || t.SourceID == f.SourceID || t.DestinationID == f.SourceID
}
