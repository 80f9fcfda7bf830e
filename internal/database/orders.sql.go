package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `o.id, o.restaurant_id, o.table_id, o.order_group_id, o.total_cost, o.notes, o.status, o.created_at, o.updated_at`

func orderScanTargets(i *Order) []any {
	return []any{
		&i.ID,
		&i.RestaurantID,
		&i.TableID,
		&i.OrderGroupID,
		&i.TotalCost,
		&i.Notes,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	}
}

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(orderScanTargets(&i)...)
	return i, err
}

// OrderWithTable is an order joined with the display number of its table.
type OrderWithTable struct {
	Order
	TableName int32 `json:"table_name"`
}

func collectOrdersWithTable(rows pgx.Rows) ([]OrderWithTable, error) {
	defer rows.Close()
	var items []OrderWithTable
	for rows.Next() {
		var i OrderWithTable
		if err := rows.Scan(append(orderScanTargets(&i.Order), &i.TableName)...); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders AS o (id, restaurant_id, table_id, order_group_id, total_cost, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ID           uuid.UUID      `json:"id"`
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	TableID      uuid.UUID      `json:"table_id"`
	OrderGroupID uuid.UUID      `json:"order_group_id"`
	TotalCost    pgtype.Numeric `json:"total_cost"`
	Notes        string         `json:"notes"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.ID,
		arg.RestaurantID,
		arg.TableID,
		arg.OrderGroupID,
		arg.TotalCost,
		arg.Notes,
	))
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (id, order_id, menu_item_id, quantity, price)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, menu_item_id, quantity, price
`

type CreateOrderItemParams struct {
	ID         uuid.UUID      `json:"id"`
	OrderID    uuid.UUID      `json:"order_id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Quantity   int32          `json:"quantity"`
	Price      pgtype.Numeric `json:"price"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.ID,
		arg.OrderID,
		arg.MenuItemID,
		arg.Quantity,
		arg.Price,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.Quantity,
		&i.Price,
	)
	return i, err
}

const approveOrder = `-- name: ApproveOrder :one
UPDATE orders AS o
SET status = 'ACCEPTED', updated_at = now()
WHERE o.id = $1 AND o.restaurant_id = $2
RETURNING ` + orderColumns

type ApproveOrderParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) ApproveOrder(ctx context.Context, arg ApproveOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, approveOrder, arg.ID, arg.RestaurantID))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `, t.name AS table_name
FROM orders o
JOIN tables t ON t.id = o.table_id
WHERE o.restaurant_id = $1
  AND ($2::text IS NULL OR o.status = $2::text)
ORDER BY o.created_at DESC
`

type ListOrdersParams struct {
	RestaurantID uuid.UUID   `json:"restaurant_id"`
	Status       pgtype.Text `json:"status"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]OrderWithTable, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.RestaurantID, arg.Status)
	if err != nil {
		return nil, err
	}
	return collectOrdersWithTable(rows)
}

const listOrdersByGroup = `-- name: ListOrdersByGroup :many
SELECT ` + orderColumns + `, t.name AS table_name
FROM orders o
JOIN tables t ON t.id = o.table_id
WHERE o.order_group_id = $1
ORDER BY o.created_at ASC
`

func (q *Queries) ListOrdersByGroup(ctx context.Context, orderGroupID uuid.UUID) ([]OrderWithTable, error) {
	rows, err := q.db.Query(ctx, listOrdersByGroup, orderGroupID)
	if err != nil {
		return nil, err
	}
	return collectOrdersWithTable(rows)
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT oi.id, oi.order_id, oi.menu_item_id, oi.quantity, oi.price, m.name AS menu_item_name
FROM order_items oi
JOIN menu_items m ON m.id = oi.menu_item_id
WHERE oi.order_id = $1
ORDER BY m.name ASC
`

type ListOrderItemsByOrderRow struct {
	OrderItem
	MenuItemName string `json:"menu_item_name"`
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]ListOrderItemsByOrderRow, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListOrderItemsByOrderRow
	for rows.Next() {
		var i ListOrderItemsByOrderRow
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.MenuItemID,
			&i.Quantity,
			&i.Price,
			&i.MenuItemName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
