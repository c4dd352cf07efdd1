package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"recettes/internal/core"
	"recettes/internal/repository"
)

type LineItemInput struct {
	Name     string
	Budgeted core.Money
	Kind     core.LineItemKind // defaults to progressive
}

// LineItemPatch lists the editable fields of a line item. Nil fields are
// left unchanged.
type LineItemPatch struct {
	Name     *string
	Budgeted *core.Money
	Kind     *core.LineItemKind
	Status   *core.LineItemStatus
}

type MovementInput struct {
	Amount      core.Money
	Date        core.Date
	Description string
}

type MovementPatch struct {
	Amount      *core.Money
	Date        *core.Date
	Description *string
}

// EnvelopeService manages monthly envelope budgets. The sum of budgeted
// amounts of a month is capped by its revenue when planning; spending is
// never blocked and over-budget items are only reported. Spent amounts are
// always recomputed from movements.
type EnvelopeService struct {
	repo repository.EnvelopeStore
}

func NewEnvelopeService(repo repository.EnvelopeStore) *EnvelopeService {
	return &EnvelopeService{repo: repo}
}

// GetOrCreateBudgetMonth returns the budget of (year, month), creating it
// with revenue when none exists. The revenue of an existing month never
// changes.
func (s *EnvelopeService) GetOrCreateBudgetMonth(ctx context.Context, ownerID string, year, month int, revenue *core.Money) (core.BudgetMonth, error) {
	if month < 1 || month > 12 {
		return core.BudgetMonth{}, core.Invalid("month", core.ErrInvalidMonth)
	}

	bm, err := s.repo.GetBudgetMonth(ctx, ownerID, year, month)
	if err == nil {
		return bm, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return core.BudgetMonth{}, fmt.Errorf("get budget month: %w", err)
	}

	if revenue == nil {
		return core.BudgetMonth{}, core.Invalid("revenue", core.ErrMissingRevenue)
	}
	bm = core.BudgetMonth{OwnerID: ownerID, Year: year, Month: month, Revenue: *revenue}
	if err := bm.Validate(); err != nil {
		return core.BudgetMonth{}, err
	}

	created, err := s.repo.CreateBudgetMonth(ctx, bm)
	if errors.Is(err, repository.ErrConflict) {
		// created concurrently, the first revenue wins
		return s.repo.GetBudgetMonth(ctx, ownerID, year, month)
	}
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("save budget month: %w", err)
	}

	slog.InfoContext(ctx, "Budget month created",
		"owner_id", ownerID,
		"year", year,
		"month", month,
		"revenue_cents", revenue.Cents)

	return created, nil
}

func (s *EnvelopeService) ListBudgetMonths(ctx context.Context, ownerID string) ([]core.BudgetMonth, error) {
	return s.repo.ListBudgetMonths(ctx, ownerID)
}

// MonthOverview recomputes every aggregate of a budget month.
func (s *EnvelopeService) MonthOverview(ctx context.Context, ownerID string, budgetMonthID int64) (core.MonthOverview, error) {
	bm, err := s.repo.GetBudgetMonthByID(ctx, ownerID, budgetMonthID)
	if err != nil {
		return core.MonthOverview{}, notFound("budget month", budgetMonthID, err)
	}

	var (
		items     []core.LineItem
		movements []core.Movement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.repo.ListLineItems(gctx, ownerID, bm.ID)
		return err
	})
	g.Go(func() error {
		var err error
		movements, err = s.repo.ListMovements(gctx, ownerID, repository.MovementFilter{BudgetMonthID: bm.ID})
		return err
	})
	if err := g.Wait(); err != nil {
		return core.MonthOverview{}, fmt.Errorf("load budget month %d: %w", bm.ID, err)
	}

	return core.BuildMonthOverview(bm, items, movements), nil
}

// MonthOverviewFor is MonthOverview keyed by (year, month).
func (s *EnvelopeService) MonthOverviewFor(ctx context.Context, ownerID string, year, month int) (core.MonthOverview, error) {
	bm, err := s.repo.GetBudgetMonth(ctx, ownerID, year, month)
	if err != nil {
		return core.MonthOverview{}, notFound("budget month", int64(year*100+month), err)
	}
	return s.MonthOverview(ctx, ownerID, bm.ID)
}

func (s *EnvelopeService) CreateLineItem(ctx context.Context, ownerID string, budgetMonthID int64, in LineItemInput) (core.LineItem, error) {
	li := core.LineItem{
		OwnerID:       ownerID,
		BudgetMonthID: budgetMonthID,
		Name:          strings.TrimSpace(in.Name),
		Budgeted:      in.Budgeted,
		Kind:          in.Kind,
		Status:        core.InProgress,
	}
	if li.Kind == "" {
		li.Kind = core.Progressive
	}
	if err := li.Validate(); err != nil {
		return core.LineItem{}, err
	}

	bm, err := s.repo.GetBudgetMonthByID(ctx, ownerID, budgetMonthID)
	if err != nil {
		return core.LineItem{}, notFound("budget month", budgetMonthID, err)
	}
	if err := s.checkCap(ctx, bm, 0, li.Budgeted); err != nil {
		return core.LineItem{}, err
	}

	created, err := s.repo.CreateLineItem(ctx, li)
	if err != nil {
		return core.LineItem{}, fmt.Errorf("save line item: %w", err)
	}
	return created, nil
}

func (s *EnvelopeService) ListLineItems(ctx context.Context, ownerID string, budgetMonthID int64) ([]core.LineItemView, error) {
	ov, err := s.MonthOverview(ctx, ownerID, budgetMonthID)
	if err != nil {
		return nil, err
	}
	return ov.LineItems, nil
}

func (s *EnvelopeService) GetLineItem(ctx context.Context, ownerID string, id int64) (core.LineItemView, error) {
	li, err := s.repo.GetLineItem(ctx, ownerID, id)
	if err != nil {
		return core.LineItemView{}, notFound("line item", id, err)
	}
	movements, err := s.repo.ListMovements(ctx, ownerID, repository.MovementFilter{LineItemID: id})
	if err != nil {
		return core.LineItemView{}, fmt.Errorf("list movements of line item %d: %w", id, err)
	}
	return core.NewLineItemView(li, movements), nil
}

// UpdateLineItem applies patch. A new budgeted amount is checked against
// the revenue with the item's previous amount left out of the total.
func (s *EnvelopeService) UpdateLineItem(ctx context.Context, ownerID string, id int64, patch LineItemPatch) (core.LineItem, error) {
	cur, err := s.repo.GetLineItem(ctx, ownerID, id)
	if err != nil {
		return core.LineItem{}, notFound("line item", id, err)
	}

	next := cur
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Budgeted != nil {
		next.Budgeted = *patch.Budgeted
	}
	if patch.Kind != nil {
		next.Kind = *patch.Kind
	}
	if patch.Status != nil {
		if !cur.Status.CanTransition(*patch.Status) {
			return core.LineItem{}, core.Invalid("status", core.ErrInvalidTransition)
		}
		next.Status = *patch.Status
	}
	if err := next.Validate(); err != nil {
		return core.LineItem{}, err
	}

	if next.Budgeted != cur.Budgeted {
		bm, err := s.repo.GetBudgetMonthByID(ctx, ownerID, cur.BudgetMonthID)
		if err != nil {
			return core.LineItem{}, notFound("budget month", cur.BudgetMonthID, err)
		}
		if err := s.checkCap(ctx, bm, cur.ID, next.Budgeted); err != nil {
			return core.LineItem{}, err
		}
	}

	if err := s.repo.UpdateLineItem(ctx, next); err != nil {
		return core.LineItem{}, notFound("line item", id, err)
	}
	return next, nil
}

// DeleteLineItem is refused while the item has recorded spend.
func (s *EnvelopeService) DeleteLineItem(ctx context.Context, ownerID string, id int64) error {
	view, err := s.GetLineItem(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if view.Spent.Cents > 0 {
		return core.Invalid("line_item", core.ErrLineItemHasSpend)
	}
	if err := s.repo.DeleteLineItem(ctx, ownerID, id); err != nil {
		return notFound("line item", id, err)
	}
	return nil
}

// checkCap sums the budgeted amounts of bm, leaving out excludeID, and
// verifies requested still fits in the revenue.
func (s *EnvelopeService) checkCap(ctx context.Context, bm core.BudgetMonth, excludeID int64, requested core.Money) error {
	items, err := s.repo.ListLineItems(ctx, bm.OwnerID, bm.ID)
	if err != nil {
		return fmt.Errorf("list line items of month %d: %w", bm.ID, err)
	}
	var committed core.Money
	for _, li := range items {
		if li.ID != excludeID {
			committed = committed.Add(li.Budgeted)
		}
	}
	return core.CheckCap(bm, committed, requested)
}

// AddMovement records spend on a line item. Spend beyond the budgeted
// amount is accepted.
func (s *EnvelopeService) AddMovement(ctx context.Context, ownerID string, lineItemID int64, in MovementInput) (core.Movement, error) {
	m := core.Movement{
		OwnerID:     ownerID,
		LineItemID:  lineItemID,
		Amount:      in.Amount,
		Date:        in.Date,
		Description: in.Description,
	}
	if err := m.Validate(); err != nil {
		return core.Movement{}, err
	}

	li, err := s.repo.GetLineItem(ctx, ownerID, lineItemID)
	if err != nil {
		return core.Movement{}, notFound("line item", lineItemID, err)
	}
	if li.Status == core.Cancelled {
		return core.Movement{}, core.Invalid("line_item_id", core.ErrLineItemClosed)
	}

	created, err := s.repo.CreateMovement(ctx, m)
	if err != nil {
		return core.Movement{}, fmt.Errorf("save movement: %w", err)
	}
	return created, nil
}

func (s *EnvelopeService) ListMovements(ctx context.Context, ownerID string, filter repository.MovementFilter) ([]core.Movement, error) {
	return s.repo.ListMovements(ctx, ownerID, filter)
}

// UpdateMovement edits a movement. Movements of a cancelled line item are
// frozen.
func (s *EnvelopeService) UpdateMovement(ctx context.Context, ownerID string, id int64, patch MovementPatch) (core.Movement, error) {
	cur, err := s.repo.GetMovement(ctx, ownerID, id)
	if err != nil {
		return core.Movement{}, notFound("movement", id, err)
	}
	li, err := s.repo.GetLineItem(ctx, ownerID, cur.LineItemID)
	if err != nil {
		return core.Movement{}, notFound("line item", cur.LineItemID, err)
	}
	if li.Status == core.Cancelled {
		return core.Movement{}, core.Invalid("line_item_id", core.ErrLineItemClosed)
	}

	next := cur
	if patch.Amount != nil {
		next.Amount = *patch.Amount
	}
	if patch.Date != nil {
		next.Date = *patch.Date
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if err := next.Validate(); err != nil {
		return core.Movement{}, err
	}

	if err := s.repo.UpdateMovement(ctx, next); err != nil {
		return core.Movement{}, notFound("movement", id, err)
	}
	return next, nil
}

func (s *EnvelopeService) DeleteMovement(ctx context.Context, ownerID string, id int64) error {
	if err := s.repo.DeleteMovement(ctx, ownerID, id); err != nil {
		return notFound("movement", id, err)
	}
	return nil
}
