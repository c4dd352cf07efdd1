package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"recettes/internal/core"
	"recettes/internal/repository"
)

const expenseColumns = `id, owner_id, source_id, amount_cents, date, label, description, category, receipt_ref, created_at, updated_at`

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                          core.Expense
		date, createdAt, updatedAt string
	)
	err := s.Scan(&e.ID, &e.OwnerID, &e.SourceID, &e.Amount.Cents, &date, &e.Label,
		&e.Description, &e.Category, &e.ReceiptRef, &createdAt, &updatedAt)
	if err != nil {
		return core.Expense{}, err
	}
	e.Date = parseDate(date)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, ownerID string, filter repository.ExpenseFilter) ([]core.Expense, error) {
	where := []string{"owner_id = ?"}
	args := []any{ownerID}
	if filter.SourceID != 0 {
		where = append(where, "source_id = ?")
		args = append(args, filter.SourceID)
	}
	if !filter.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, filter.From.Format(dateLayout))
	}
	if !filter.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, filter.To.Format(dateLayout))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, ownerID string, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE owner_id = ? AND id = ?`, ownerID, id)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, notFound(err))
	}
	return e, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (owner_id, source_id, amount_cents, date, label, description, category, receipt_ref, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OwnerID, e.SourceID, e.Amount.Cents, formatDate(e.Date), e.Label, e.Description, e.Category, e.ReceiptRef, now, now)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.Expense{}, fmt.Errorf("expense id: %w", err)
	}
	e.CreatedAt = parseTime(now)
	e.UpdatedAt = e.CreatedAt

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"source_id", e.SourceID,
		"amount_cents", e.Amount.Cents)

	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	err := expectOne(r.db.ExecContext(ctx,
		`UPDATE expenses SET source_id = ?, amount_cents = ?, date = ?, label = ?, description = ?, category = ?, receipt_ref = ?, updated_at = ?
		 WHERE owner_id = ? AND id = ?`,
		e.SourceID, e.Amount.Cents, formatDate(e.Date), e.Label, e.Description, e.Category, e.ReceiptRef, r.now(), e.OwnerID, e.ID))
	if err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, ownerID string, id int64) error {
	err := expectOne(r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE owner_id = ? AND id = ?`, ownerID, id))
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}
