package storage

import (
	"context"
	"fmt"
	"log/slog"

	"recettes/internal/core"
)

const sourceColumns = `id, owner_id, label, initial_cents, available_cents, status, created_at, updated_at`

func scanSource(s scanner) (core.IncomeSource, error) {
	var (
		src                  core.IncomeSource
		status               string
		createdAt, updatedAt string
	)
	err := s.Scan(&src.ID, &src.OwnerID, &src.Label, &src.InitialAmount.Cents,
		&src.AvailableBalance.Cents, &status, &createdAt, &updatedAt)
	if err != nil {
		return core.IncomeSource{}, err
	}
	src.Status = core.SourceStatus(status)
	src.CreatedAt = parseTime(createdAt)
	src.UpdatedAt = parseTime(updatedAt)
	return src, nil
}

func (r *SQLiteRepository) ListIncomeSources(ctx context.Context, ownerID string) ([]core.IncomeSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM income_sources WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list income sources: %w", err)
	}
	defer rows.Close()

	out := []core.IncomeSource{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetIncomeSource(ctx context.Context, ownerID string, id int64) (core.IncomeSource, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM income_sources WHERE owner_id = ? AND id = ?`, ownerID, id)
	src, err := scanSource(row)
	if err != nil {
		return core.IncomeSource{}, fmt.Errorf("get income source %d: %w", id, notFound(err))
	}
	return src, nil
}

func (r *SQLiteRepository) CreateIncomeSource(ctx context.Context, src core.IncomeSource) (core.IncomeSource, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO income_sources (owner_id, label, initial_cents, available_cents, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.OwnerID, src.Label, src.InitialAmount.Cents, src.AvailableBalance.Cents, string(src.Status), now, now)
	if err != nil {
		return core.IncomeSource{}, fmt.Errorf("create income source: %w", err)
	}
	if src.ID, err = res.LastInsertId(); err != nil {
		return core.IncomeSource{}, fmt.Errorf("income source id: %w", err)
	}
	src.CreatedAt = parseTime(now)
	src.UpdatedAt = src.CreatedAt

	slog.InfoContext(ctx, "Income source saved to SQLite",
		"id", src.ID,
		"label", src.Label,
		"initial_cents", src.InitialAmount.Cents)

	return src, nil
}

func (r *SQLiteRepository) UpdateIncomeSource(ctx context.Context, src core.IncomeSource) error {
	err := expectOne(r.db.ExecContext(ctx,
		`UPDATE income_sources SET label = ?, initial_cents = ?, status = ?, updated_at = ?
		 WHERE owner_id = ? AND id = ?`,
		src.Label, src.InitialAmount.Cents, string(src.Status), r.now(), src.OwnerID, src.ID))
	if err != nil {
		return fmt.Errorf("update income source %d: %w", src.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteIncomeSource(ctx context.Context, ownerID string, id int64) error {
	err := expectOne(r.db.ExecContext(ctx,
		`DELETE FROM income_sources WHERE owner_id = ? AND id = ?`, ownerID, id))
	if err != nil {
		return fmt.Errorf("delete income source %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) SetAvailableBalance(ctx context.Context, ownerID string, id int64, balance core.Money) error {
	err := expectOne(r.db.ExecContext(ctx,
		`UPDATE income_sources SET available_cents = ?, updated_at = ? WHERE owner_id = ? AND id = ?`,
		balance.Cents, r.now(), ownerID, id))
	if err != nil {
		return fmt.Errorf("set balance of income source %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementBalance(ctx context.Context, ownerID string, id int64, amount core.Money) error {
	return r.shiftBalance(ctx, ownerID, id, amount.Cents)
}

func (r *SQLiteRepository) DecrementBalance(ctx context.Context, ownerID string, id int64, amount core.Money) error {
	return r.shiftBalance(ctx, ownerID, id, -amount.Cents)
}

func (r *SQLiteRepository) shiftBalance(ctx context.Context, ownerID string, id int64, delta int64) error {
	err := expectOne(r.db.ExecContext(ctx,
		`UPDATE income_sources SET available_cents = available_cents + ?, updated_at = ? WHERE owner_id = ? AND id = ?`,
		delta, r.now(), ownerID, id))
	if err != nil {
		return fmt.Errorf("shift balance of income source %d by %d: %w", id, delta, err)
	}
	return nil
}
