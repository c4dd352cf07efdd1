package storage

import (
	"context"
	"fmt"

	"recettes/internal/core"
	"recettes/internal/repository"
)

const transferColumns = `id, owner_id, source_id, destination_id, amount_cents, date, description, created_at`

func scanTransfer(s scanner) (core.Transfer, error) {
	var (
		t               core.Transfer
		date, createdAt string
	)
	err := s.Scan(&t.ID, &t.OwnerID, &t.SourceID, &t.DestinationID, &t.Amount.Cents, &date, &t.Description, &createdAt)
	if err != nil {
		return core.Transfer{}, err
	}
	t.Date = parseDate(date)
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

func (r *SQLiteRepository) ListTransfers(ctx context.Context, ownerID string, filter repository.TransferFilter) ([]core.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE owner_id = ?`
	args := []any{ownerID}
	if filter.SourceID != 0 {
		query += ` AND (source_id = ? OR destination_id = ?)`
		args = append(args, filter.SourceID, filter.SourceID)
	}

	rows, err := r.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	out := []core.Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTransfer(ctx context.Context, ownerID string, id int64) (core.Transfer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE owner_id = ? AND id = ?`, ownerID, id)
	t, err := scanTransfer(row)
	if err != nil {
		return core.Transfer{}, fmt.Errorf("get transfer %d: %w", id, notFound(err))
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transfers (owner_id, source_id, destination_id, amount_cents, date, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.OwnerID, t.SourceID, t.DestinationID, t.Amount.Cents, formatDate(t.Date), t.Description, now)
	if err != nil {
		return core.Transfer{}, fmt.Errorf("create transfer: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return core.Transfer{}, fmt.Errorf("transfer id: %w", err)
	}
	t.CreatedAt = parseTime(now)
	return t, nil
}

func (r *SQLiteRepository) DeleteTransfer(ctx context.Context, ownerID string, id int64) error {
	err := expectOne(r.db.ExecContext(ctx,
		`DELETE FROM transfers WHERE owner_id = ? AND id = ?`, ownerID, id))
	if err != nil {
		return fmt.Errorf("delete transfer %d: %w", id, err)
	}
	return nil
}
