package storage

import (
	"context"
	"errors"
	"fmt"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"recettes/internal/core"
	"recettes/internal/repository"
)

const (
	monthColumns    = `id, owner_id, year, month, revenue_cents, created_at`
	lineItemColumns = `id, owner_id, budget_month_id, name, budgeted_cents, kind, status, created_at, updated_at`
	movementColumns = `id, owner_id, line_item_id, amount_cents, date, description, created_at`
)

func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func scanMonth(s scanner) (core.BudgetMonth, error) {
	var (
		bm        core.BudgetMonth
		createdAt string
	)
	if err := s.Scan(&bm.ID, &bm.OwnerID, &bm.Year, &bm.Month, &bm.Revenue.Cents, &createdAt); err != nil {
		return core.BudgetMonth{}, err
	}
	bm.CreatedAt = parseTime(createdAt)
	return bm, nil
}

func scanLineItem(s scanner) (core.LineItem, error) {
	var (
		li                   core.LineItem
		kind, status         string
		createdAt, updatedAt string
	)
	err := s.Scan(&li.ID, &li.OwnerID, &li.BudgetMonthID, &li.Name, &li.Budgeted.Cents,
		&kind, &status, &createdAt, &updatedAt)
	if err != nil {
		return core.LineItem{}, err
	}
	li.Kind = core.LineItemKind(kind)
	li.Status = core.LineItemStatus(status)
	li.CreatedAt = parseTime(createdAt)
	li.UpdatedAt = parseTime(updatedAt)
	return li, nil
}

func scanMovement(s scanner) (core.Movement, error) {
	var (
		m               core.Movement
		date, createdAt string
	)
	if err := s.Scan(&m.ID, &m.OwnerID, &m.LineItemID, &m.Amount.Cents, &date, &m.Description, &createdAt); err != nil {
		return core.Movement{}, err
	}
	m.Date = parseDate(date)
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

// Budget months

func (r *SQLiteRepository) GetBudgetMonth(ctx context.Context, ownerID string, year, month int) (core.BudgetMonth, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+monthColumns+` FROM budget_months WHERE owner_id = ? AND year = ? AND month = ?`, ownerID, year, month)
	bm, err := scanMonth(row)
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("get budget month %d-%02d: %w", year, month, notFound(err))
	}
	return bm, nil
}

func (r *SQLiteRepository) GetBudgetMonthByID(ctx context.Context, ownerID string, id int64) (core.BudgetMonth, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+monthColumns+` FROM budget_months WHERE owner_id = ? AND id = ?`, ownerID, id)
	bm, err := scanMonth(row)
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("get budget month %d: %w", id, notFound(err))
	}
	return bm, nil
}

func (r *SQLiteRepository) ListBudgetMonths(ctx context.Context, ownerID string) ([]core.BudgetMonth, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+monthColumns+` FROM budget_months WHERE owner_id = ? ORDER BY year, month`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budget months: %w", err)
	}
	defer rows.Close()

	out := []core.BudgetMonth{}
	for rows.Next() {
		bm, err := scanMonth(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget month: %w", err)
		}
		out = append(out, bm)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateBudgetMonth(ctx context.Context, b core.BudgetMonth) (core.BudgetMonth, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budget_months (owner_id, year, month, revenue_cents, created_at) VALUES (?, ?, ?, ?, ?)`,
		b.OwnerID, b.Year, b.Month, b.Revenue.Cents, now)
	if isUniqueViolation(err) {
		return core.BudgetMonth{}, fmt.Errorf("create budget month %d-%02d: %w", b.Year, b.Month, repository.ErrConflict)
	}
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("create budget month: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return core.BudgetMonth{}, fmt.Errorf("budget month id: %w", err)
	}
	b.CreatedAt = parseTime(now)
	return b, nil
}

// Line items

func (r *SQLiteRepository) ListLineItems(ctx context.Context, ownerID string, budgetMonthID int64) ([]core.LineItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lineItemColumns+` FROM line_items WHERE owner_id = ? AND budget_month_id = ? ORDER BY id`,
		ownerID, budgetMonthID)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()

	out := []core.LineItem{}
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetLineItem(ctx context.Context, ownerID string, id int64) (core.LineItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+lineItemColumns+` FROM line_items WHERE owner_id = ? AND id = ?`, ownerID, id)
	li, err := scanLineItem(row)
	if err != nil {
		return core.LineItem{}, fmt.Errorf("get line item %d: %w", id, notFound(err))
	}
	return li, nil
}

func (r *SQLiteRepository) CreateLineItem(ctx context.Context, li core.LineItem) (core.LineItem, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO line_items (owner_id, budget_month_id, name, budgeted_cents, kind, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		li.OwnerID, li.BudgetMonthID, li.Name, li.Budgeted.Cents, string(li.Kind), string(li.Status), now, now)
	if err != nil {
		return core.LineItem{}, fmt.Errorf("create line item: %w", err)
	}
	if li.ID, err = res.LastInsertId(); err != nil {
		return core.LineItem{}, fmt.Errorf("line item id: %w", err)
	}
	li.CreatedAt = parseTime(now)
	li.UpdatedAt = li.CreatedAt
	return li, nil
}

func (r *SQLiteRepository) UpdateLineItem(ctx context.Context, li core.LineItem) error {
	err := expectOne(r.db.ExecContext(ctx,
		`UPDATE line_items SET name = ?, budgeted_cents = ?, kind = ?, status = ?, updated_at = ?
		 WHERE owner_id = ? AND id = ?`,
		li.Name, li.Budgeted.Cents, string(li.Kind), string(li.Status), r.now(), li.OwnerID, li.ID))
	if err != nil {
		return fmt.Errorf("update line item %d: %w", li.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteLineItem(ctx context.Context, ownerID string, id int64) error {
	err := expectOne(r.db.ExecContext(ctx,
		`DELETE FROM line_items WHERE owner_id = ? AND id = ?`, ownerID, id))
	if err != nil {
		return fmt.Errorf("delete line item %d: %w", id, err)
	}
	return nil
}

// Movements

func (r *SQLiteRepository) ListMovements(ctx context.Context, ownerID string, filter repository.MovementFilter) ([]core.Movement, error) {
	query := `SELECT m.id, m.owner_id, m.line_item_id, m.amount_cents, m.date, m.description, m.created_at
		FROM movements m JOIN line_items li ON li.id = m.line_item_id
		WHERE m.owner_id = ?`
	args := []any{ownerID}
	if filter.LineItemID != 0 {
		query += ` AND m.line_item_id = ?`
		args = append(args, filter.LineItemID)
	}
	if filter.BudgetMonthID != 0 {
		query += ` AND li.budget_month_id = ?`
		args = append(args, filter.BudgetMonthID)
	}

	rows, err := r.db.QueryContext(ctx, query+` ORDER BY m.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	out := []core.Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetMovement(ctx context.Context, ownerID string, id int64) (core.Movement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE owner_id = ? AND id = ?`, ownerID, id)
	m, err := scanMovement(row)
	if err != nil {
		return core.Movement{}, fmt.Errorf("get movement %d: %w", id, notFound(err))
	}
	return m, nil
}

func (r *SQLiteRepository) CreateMovement(ctx context.Context, m core.Movement) (core.Movement, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO movements (owner_id, line_item_id, amount_cents, date, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.OwnerID, m.LineItemID, m.Amount.Cents, formatDate(m.Date), m.Description, now)
	if err != nil {
		return core.Movement{}, fmt.Errorf("create movement: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return core.Movement{}, fmt.Errorf("movement id: %w", err)
	}
	m.CreatedAt = parseTime(now)
	return m, nil
}

func (r *SQLiteRepository) UpdateMovement(ctx context.Context, m core.Movement) error {
	err := expectOne(r.db.ExecContext(ctx,
		`UPDATE movements SET line_item_id = ?, amount_cents = ?, date = ?, description = ? WHERE owner_id = ? AND id = ?`,
		m.LineItemID, m.Amount.Cents, formatDate(m.Date), m.Description, m.OwnerID, m.ID))
	if err != nil {
		return fmt.Errorf("update movement %d: %w", m.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteMovement(ctx context.Context, ownerID string, id int64) error {
	err := expectOne(r.db.ExecContext(ctx,
		`DELETE FROM movements WHERE owner_id = ? AND id = ?`, ownerID, id))
	if err != nil {
		return fmt.Errorf("delete movement %d: %w", id, err)
	}
	return nil
}
