package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"recettes/internal/core"
	"recettes/internal/repository"
)

// IncomeSourcePatch lists the editable fields of an income source. Nil
// fields are left unchanged.
type IncomeSourcePatch struct {
	Label         *string
	InitialAmount *core.Money
}

// IncomeService manages the lifecycle of income sources. Every read returns
// reconciled balances.
type IncomeService struct {
	repo repository.Repository
	rec  *Reconciler
}

func NewIncomeService(repo repository.Repository, rec *Reconciler) *IncomeService {
	return &IncomeService{repo: repo, rec: rec}
}

func (s *IncomeService) CreateIncomeSource(ctx context.Context, ownerID, label string, initial core.Money) (core.IncomeSource, error) {
	src := core.IncomeSource{
		OwnerID:          ownerID,
		Label:            strings.TrimSpace(label),
		InitialAmount:    initial,
		AvailableBalance: initial,
		Status:           core.SourceOpen,
	}
	if err := src.Validate(); err != nil {
		return core.IncomeSource{}, err
	}

	created, err := s.repo.CreateIncomeSource(ctx, src)
	if err != nil {
		return core.IncomeSource{}, fmt.Errorf("save income source: %w", err)
	}

	slog.InfoContext(ctx, "Income source created",
		"owner_id", ownerID,
		"source_id", created.ID,
		"initial_cents", initial.Cents)

	return created, nil
}

func (s *IncomeService) ListIncomeSources(ctx context.Context, ownerID string) ([]core.IncomeSource, error) {
	sources, _, err := s.rec.ReconcileAll(ctx, ownerID)
	return sources, err
}

func (s *IncomeService) GetIncomeSource(ctx context.Context, ownerID string, id int64) (core.IncomeSource, error) {
	src, _, err := s.rec.ReconcileSource(ctx, ownerID, id)
	return src, err
}

// Balance is a cached read of the available balance.
func (s *IncomeService) Balance(ctx context.Context, ownerID string, id int64) (core.Money, error) {
	return s.rec.Balance(ctx, ownerID, id)
}

// UpdateIncomeSource edits label and initial amount. A new initial amount
// shifts the available balance by the same delta.
func (s *IncomeService) UpdateIncomeSource(ctx context.Context, ownerID string, id int64, patch IncomeSourcePatch) (core.IncomeSource, error) {
	cur, err := s.repo.GetIncomeSource(ctx, ownerID, id)
	if err != nil {
		return core.IncomeSource{}, notFound("income source", id, err)
	}

	next := cur
	if patch.Label != nil {
		next.Label = strings.TrimSpace(*patch.Label)
	}
	if patch.InitialAmount != nil {
		next.InitialAmount = *patch.InitialAmount
	}
	if err := next.Validate(); err != nil {
		return core.IncomeSource{}, err
	}

	if err := s.repo.UpdateIncomeSource(ctx, next); err != nil {
		return core.IncomeSource{}, notFound("income source", id, err)
	}
	s.rec.Invalidate(ownerID, id)

	// the balance moves by the same delta, applied in place
	var shiftErr error
	switch delta := next.InitialAmount.Sub(cur.InitialAmount); {
	case delta.Cents > 0:
		shiftErr = s.repo.IncrementBalance(ctx, ownerID, id, delta)
	case delta.Cents < 0:
		shiftErr = s.repo.DecrementBalance(ctx, ownerID, id, delta.Neg())
	}
	if shiftErr != nil {
		// reconciliation below recomputes the balance from the new initial amount
		slog.WarnContext(ctx, "Failed to shift balance after initial amount change",
			"owner_id", ownerID,
			"source_id", id,
			"error", shiftErr)
	}

	src, _, err := s.rec.ReconcileSource(ctx, ownerID, id)
	return src, err
}

// CloseIncomeSource soft-closes a source. Closed sources keep their history
// but accept no new expenses or transfers. Only the status is written.
func (s *IncomeService) CloseIncomeSource(ctx context.Context, ownerID string, id int64) (core.IncomeSource, error) {
	cur, err := s.repo.GetIncomeSource(ctx, ownerID, id)
	if err != nil {
		return core.IncomeSource{}, notFound("income source", id, err)
	}
	if !cur.IsClosed() {
		cur.Status = core.SourceClosed
		if err := s.repo.UpdateIncomeSource(ctx, cur); err != nil {
			return core.IncomeSource{}, notFound("income source", id, err)
		}
		slog.InfoContext(ctx, "Income source closed", "owner_id", ownerID, "source_id", id)
	}

	src, _, err := s.rec.ReconcileSource(ctx, ownerID, id)
	return src, err
}

// DeleteIncomeSource removes a source and its expenses. Sources referenced
// by a transfer can only be closed.
func (s *IncomeService) DeleteIncomeSource(ctx context.Context, ownerID string, id int64) error {
	if _, err := s.repo.GetIncomeSource(ctx, ownerID, id); err != nil {
		return notFound("income source", id, err)
	}

	transfers, err := s.repo.ListTransfers(ctx, ownerID, repository.TransferFilter{SourceID: id})
	if err != nil {
		return fmt.Errorf("list transfers of source %d: %w", id, err)
	}
	if len(transfers) > 0 {
		return core.Invalid("source_id", core.ErrSourceReferenced)
	}

	expenses, err := s.repo.ListExpenses(ctx, ownerID, repository.ExpenseFilter{SourceID: id})
	if err != nil {
		return fmt.Errorf("list expenses of source %d: %w", id, err)
	}
	for _, e := range expenses {
		if err := s.repo.DeleteExpense(ctx, ownerID, e.ID); err != nil {
			return notFound("expense", e.ID, err)
		}
	}

	if err := s.repo.DeleteIncomeSource(ctx, ownerID, id); err != nil {
		return notFound("income source", id, err)
	}
	s.rec.Invalidate(ownerID, id)

	slog.InfoContext(ctx, "Income source deleted",
		"owner_id", ownerID,
		"source_id", id,
		"expenses_deleted", len(expenses))

	return nil
}
