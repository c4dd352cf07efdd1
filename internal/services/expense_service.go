package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"recettes/internal/amqp"
	"recettes/internal/core"
	"recettes/internal/repository"
)

type ExpenseInput struct {
	SourceID    int64
	Amount      core.Money
	Date        core.Date
	Label       string
	Description string
	Category    string
	ReceiptRef  string
}

// ExpensePatch lists the editable fields of an expense. Nil fields are left
// unchanged.
type ExpensePatch struct {
	SourceID    *int64
	Amount      *core.Money
	Date        *core.Date
	Label       *string
	Description *string
	Category    *string
	ReceiptRef  *string
}

// ExpenseService applies expense mutations and keeps the balance of the
// parent income source in step. A balance may go negative; that only logs a
// warning.
type ExpenseService struct {
	repo   repository.Repository
	rec    *Reconciler
	events EventPublisher
}

func NewExpenseService(repo repository.Repository, rec *Reconciler, events EventPublisher) *ExpenseService {
	return &ExpenseService{repo: repo, rec: rec, events: events}
}

func (s *ExpenseService) CreateExpense(ctx context.Context, ownerID string, in ExpenseInput) (core.Expense, error) {
	e := core.Expense{
		OwnerID:     ownerID,
		SourceID:    in.SourceID,
		Amount:      in.Amount,
		Date:        in.Date,
		Label:       strings.TrimSpace(in.Label),
		Description: in.Description,
		Category:    in.Category,
		ReceiptRef:  in.ReceiptRef,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.requireOpenSource(ctx, ownerID, e.SourceID); err != nil {
		return core.Expense{}, err
	}

	created, err := s.repo.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.shift(ctx, ownerID, created.SourceID, created.Amount.Neg())
	s.reconcile(ctx, ownerID, created.SourceID)

	slog.InfoContext(ctx, "Expense created",
		"owner_id", ownerID,
		"expense_id", created.ID,
		"source_id", created.SourceID,
		"amount_cents", created.Amount.Cents)

	return created, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, ownerID string, id int64) (core.Expense, error) {
	e, err := s.repo.GetExpense(ctx, ownerID, id)
	if err != nil {
		return core.Expense{}, notFound("expense", id, err)
	}
	return e, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, ownerID string, filter repository.ExpenseFilter) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx, ownerID, filter)
}

// UpdateExpense applies patch, moves the balance delta onto the affected
// sources and, when the expense carries a receipt, asks for the receipt to
// be synchronized. The receipt sync never fails the update.
func (s *ExpenseService) UpdateExpense(ctx context.Context, ownerID string, id int64, patch ExpensePatch) (core.Expense, error) {
	cur, err := s.repo.GetExpense(ctx, ownerID, id)
	if err != nil {
		return core.Expense{}, notFound("expense", id, err)
	}

	next := cur
	if patch.SourceID != nil {
		next.SourceID = *patch.SourceID
	}
	if patch.Amount != nil {
		next.Amount = *patch.Amount
	}
	if patch.Date != nil {
		next.Date = *patch.Date
	}
	if patch.Label != nil {
		next.Label = strings.TrimSpace(*patch.Label)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Category != nil {
		next.Category = *patch.Category
	}
	if patch.ReceiptRef != nil {
		next.ReceiptRef = *patch.ReceiptRef
	}
	if err := next.Validate(); err != nil {
		return core.Expense{}, err
	}
	if next.SourceID != cur.SourceID {
		if err := s.requireOpenSource(ctx, ownerID, next.SourceID); err != nil {
			return core.Expense{}, err
		}
	}

	if err := s.repo.UpdateExpense(ctx, next); err != nil {
		return core.Expense{}, notFound("expense", id, err)
	}

	if next.SourceID == cur.SourceID {
		if delta := cur.Amount.Sub(next.Amount); delta.Cents != 0 {
			s.shift(ctx, ownerID, next.SourceID, delta)
		}
		s.reconcile(ctx, ownerID, next.SourceID)
	} else {
		s.shift(ctx, ownerID, cur.SourceID, cur.Amount)
		s.shift(ctx, ownerID, next.SourceID, next.Amount.Neg())
		s.reconcile(ctx, ownerID, cur.SourceID)
		s.reconcile(ctx, ownerID, next.SourceID)
	}

	if next.ReceiptRef != "" {
		publish(ctx, s.events, amqp.NewReceiptSyncEvent(next))
	}

	slog.InfoContext(ctx, "Expense updated",
		"owner_id", ownerID,
		"expense_id", id,
		"source_id", next.SourceID,
		"amount_cents", next.Amount.Cents)

	return next, nil
}

// DeleteExpense removes an expense and gives its amount back to the source.
// An expense whose source is already gone is simply removed.
func (s *ExpenseService) DeleteExpense(ctx context.Context, ownerID string, id int64) error {
	cur, err := s.repo.GetExpense(ctx, ownerID, id)
	if err != nil {
		return notFound("expense", id, err)
	}
	if err := s.repo.DeleteExpense(ctx, ownerID, id); err != nil {
		return notFound("expense", id, err)
	}

	s.shift(ctx, ownerID, cur.SourceID, cur.Amount)
	s.reconcile(ctx, ownerID, cur.SourceID)

	slog.InfoContext(ctx, "Expense deleted",
		"owner_id", ownerID,
		"expense_id", id,
		"source_id", cur.SourceID)

	return nil
}

func (s *ExpenseService) requireOpenSource(ctx context.Context, ownerID string, sourceID int64) error {
	src, err := s.repo.GetIncomeSource(ctx, ownerID, sourceID)
	if err != nil {
		return notFound("income source", sourceID, err)
	}
	if src.IsClosed() {
		return core.Invalid("source_id", core.ErrSourceClosed)
	}
	return nil
}

// shift applies delta to the stored balance. A failure leaves drift that the
// following reconciliation corrects, so it is only logged.
func (s *ExpenseService) shift(ctx context.Context, ownerID string, sourceID int64, delta core.Money) {
	var err error
	if delta.Cents >= 0 {
		err = s.repo.IncrementBalance(ctx, ownerID, sourceID, delta)
	} else {
		err = s.repo.DecrementBalance(ctx, ownerID, sourceID, delta.Neg())
	}
	s.rec.Invalidate(ownerID, sourceID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		slog.DebugContext(ctx, "Source gone, balance not adjusted", "source_id", sourceID)
	case err != nil:
		slog.WarnContext(ctx, "Failed to adjust source balance",
			"source_id", sourceID,
			"delta_cents", delta.Cents,
			"error", err)
	}
}

func (s *ExpenseService) reconcile(ctx context.Context, ownerID string, sourceID int64) {
	src, _, err := s.rec.ReconcileSource(ctx, ownerID, sourceID)
	var nf *core.NotFoundError
	switch {
	case errors.As(err, &nf):
		return
	case err != nil:
		slog.WarnContext(ctx, "Failed to reconcile source", "source_id", sourceID, "error", err)
		return
	}
	if src.AvailableBalance.Cents < 0 {
		slog.WarnContext(ctx, "Income source balance is negative",
			"owner_id", ownerID,
			"source_id", sourceID,
			"available_cents", src.AvailableBalance.Cents)
	}
}
