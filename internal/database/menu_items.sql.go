package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, restaurant_id, name, price, order_count, created_at, updated_at`

func scanMenuItem(row interface{ Scan(...any) error }) (MenuItem, error) {
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Price,
		&i.OrderCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getMenuItemForOrder = `-- name: GetMenuItemForOrder :one
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE id = $1 AND restaurant_id = $2
`

type GetMenuItemForOrderParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetMenuItemForOrder(ctx context.Context, arg GetMenuItemForOrderParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItemForOrder, arg.ID, arg.RestaurantID))
}

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (id, restaurant_id, name, price)
VALUES ($1, $2, $3, $4)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	ID           uuid.UUID      `json:"id"`
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	Name         string         `json:"name"`
	Price        pgtype.Numeric `json:"price"`
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, createMenuItem,
		arg.ID,
		arg.RestaurantID,
		arg.Name,
		arg.Price,
	))
}

const incrementMenuItemOrderCount = `-- name: IncrementMenuItemOrderCount :exec
UPDATE menu_items
SET order_count = order_count + $2, updated_at = now()
WHERE id = $1
`

type IncrementMenuItemOrderCountParams struct {
	ID    uuid.UUID `json:"id"`
	Delta int32     `json:"delta"`
}

func (q *Queries) IncrementMenuItemOrderCount(ctx context.Context, arg IncrementMenuItemOrderCountParams) error {
	_, err := q.db.Exec(ctx, incrementMenuItemOrderCount, arg.ID, arg.Delta)
	return err
}

const listTopMenuItems = `-- name: ListTopMenuItems :many
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE restaurant_id = $1
ORDER BY order_count DESC, name ASC
LIMIT $2
`

type ListTopMenuItemsParams struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Limit        int32     `json:"limit"`
}

func (q *Queries) ListTopMenuItems(ctx context.Context, arg ListTopMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listTopMenuItems, arg.RestaurantID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		i, err := scanMenuItem(rows)
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

const recomputeMenuItemOrderCounts = `-- name: RecomputeMenuItemOrderCounts :execrows
UPDATE menu_items m
SET order_count = COALESCE((
        SELECT SUM(oi.quantity)
        FROM order_items oi
        JOIN orders o ON o.id = oi.order_id
        JOIN order_groups g ON g.id = o.order_group_id
        WHERE oi.menu_item_id = m.id AND g.payment_status = 'PAID'
    ), 0),
    updated_at = now()
`

// RecomputeMenuItemOrderCounts rebuilds every order_count from paid ledgers.
func (q *Queries) RecomputeMenuItemOrderCounts(ctx context.Context) (int64, error) {
	result, err := q.db.Exec(ctx, recomputeMenuItemOrderCounts)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markAllPaidOrderCountsProcessed = `-- name: MarkAllPaidOrderCountsProcessed :exec
UPDATE order_groups SET order_count_processed = true
WHERE payment_status = 'PAID' AND NOT order_count_processed
`

func (q *Queries) MarkAllPaidOrderCountsProcessed(ctx context.Context) error {
	_, err := q.db.Exec(ctx, markAllPaidOrderCountsProcessed)
	return err
}
