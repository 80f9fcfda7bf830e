package database

import (
	"context"

	"github.com/google/uuid"
)

const tableColumns = `id, restaurant_id, name, status, current_order_group_id, created_at, updated_at`

func scanTable(row interface{ Scan(...any) error }) (Table, error) {
	var i Table
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Status,
		&i.CurrentOrderGroupID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + tableColumns + ` FROM tables
WHERE id = $1
FOR UPDATE
`

// GetTableForUpdate locks the table row for the rest of the transaction so
// that concurrent submissions for one table open at most one ledger.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTableForUpdate, id))
}

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + ` FROM tables
WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, id))
}

const getTableByName = `-- name: GetTableByName :one
SELECT ` + tableColumns + ` FROM tables
WHERE restaurant_id = $1 AND name = $2
`

type GetTableByNameParams struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         int32     `json:"name"`
}

func (q *Queries) GetTableByName(ctx context.Context, arg GetTableByNameParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTableByName, arg.RestaurantID, arg.Name))
}

const createTable = `-- name: CreateTable :one
INSERT INTO tables (id, restaurant_id, name)
VALUES ($1, $2, $3)
RETURNING ` + tableColumns

type CreateTableParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         int32     `json:"name"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, createTable, arg.ID, arg.RestaurantID, arg.Name))
}

const occupyTable = `-- name: OccupyTable :one
UPDATE tables
SET status = 'OCCUPIED', current_order_group_id = $2, updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

type OccupyTableParams struct {
	ID           uuid.UUID `json:"id"`
	OrderGroupID uuid.UUID `json:"order_group_id"`
}

func (q *Queries) OccupyTable(ctx context.Context, arg OccupyTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, occupyTable, arg.ID, arg.OrderGroupID))
}

const releaseTable = `-- name: ReleaseTable :one
UPDATE tables
SET status = 'FREE', current_order_group_id = NULL, updated_at = now()
WHERE id = $1 AND (current_order_group_id = $2 OR current_order_group_id IS NULL)
RETURNING ` + tableColumns

type ReleaseTableParams struct {
	ID           uuid.UUID `json:"id"`
	OrderGroupID uuid.UUID `json:"order_group_id"`
}

// ReleaseTable frees a table only while it still points at the given ledger
// (or at nothing). A table that already moved on to a newer ledger is left
// alone and pgx.ErrNoRows is returned.
func (q *Queries) ReleaseTable(ctx context.Context, arg ReleaseTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, releaseTable, arg.ID, arg.OrderGroupID))
}

const listTables = `-- name: ListTables :many
SELECT ` + tableColumns + ` FROM tables
WHERE restaurant_id = $1
ORDER BY name ASC
`

func (q *Queries) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Table
	for rows.Next() {
		i, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
