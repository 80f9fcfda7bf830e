package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderGroupColumns = `id, restaurant_id, table_id, payment_ref, total_cost, payment_status, payment_method, payment_date, order_count_processed, created_at, updated_at`

func scanOrderGroup(row interface{ Scan(...any) error }) (OrderGroup, error) {
	var i OrderGroup
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.TableID,
		&i.PaymentRef,
		&i.TotalCost,
		&i.PaymentStatus,
		&i.PaymentMethod,
		&i.PaymentDate,
		&i.OrderCountProcessed,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrderGroups(rows pgx.Rows) ([]OrderGroup, error) {
	defer rows.Close()
	var items []OrderGroup
	for rows.Next() {
		i, err := scanOrderGroup(rows)
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

const createOrderGroup = `-- name: CreateOrderGroup :one
INSERT INTO order_groups (id, restaurant_id, table_id, payment_ref)
VALUES ($1, $2, $3, $4)
RETURNING ` + orderGroupColumns

type CreateOrderGroupParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	TableID      uuid.UUID `json:"table_id"`
	PaymentRef   string    `json:"payment_ref"`
}

func (q *Queries) CreateOrderGroup(ctx context.Context, arg CreateOrderGroupParams) (OrderGroup, error) {
	return scanOrderGroup(q.db.QueryRow(ctx, createOrderGroup,
		arg.ID,
		arg.RestaurantID,
		arg.TableID,
		arg.PaymentRef,
	))
}

const getUnpaidOrderGroupByTable = `-- name: GetUnpaidOrderGroupByTable :one
SELECT ` + orderGroupColumns + ` FROM order_groups
WHERE table_id = $1 AND payment_status = 'UNPAID'
FOR UPDATE
`

func (q *Queries) GetUnpaidOrderGroupByTable(ctx context.Context, tableID uuid.UUID) (OrderGroup, error) {
	return scanOrderGroup(q.db.QueryRow(ctx, getUnpaidOrderGroupByTable, tableID))
}

const getActiveOrderGroupByTable = `-- name: GetActiveOrderGroupByTable :one
SELECT ` + orderGroupColumns + ` FROM order_groups
WHERE table_id = $1 AND payment_status = 'UNPAID'
`

// GetActiveOrderGroupByTable is the non-locking read of a table's open tab.
func (q *Queries) GetActiveOrderGroupByTable(ctx context.Context, tableID uuid.UUID) (OrderGroup, error) {
	return scanOrderGroup(q.db.QueryRow(ctx, getActiveOrderGroupByTable, tableID))
}

const addOrderGroupTotal = `-- name: AddOrderGroupTotal :one
UPDATE order_groups
SET total_cost = total_cost + $2, updated_at = now()
WHERE id = $1 AND payment_status = 'UNPAID'
RETURNING ` + orderGroupColumns

type AddOrderGroupTotalParams struct {
	ID     uuid.UUID      `json:"id"`
	Amount pgtype.Numeric `json:"amount"`
}

// AddOrderGroupTotal returns pgx.ErrNoRows once the ledger has been paid.
func (q *Queries) AddOrderGroupTotal(ctx context.Context, arg AddOrderGroupTotalParams) (OrderGroup, error) {
	return scanOrderGroup(q.db.QueryRow(ctx, addOrderGroupTotal, arg.ID, arg.Amount))
}

const getOrderGroup = `-- name: GetOrderGroup :one
SELECT ` + orderGroupColumns + ` FROM order_groups
WHERE id = $1 AND restaurant_id = $2
`

type GetOrderGroupParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetOrderGroup(ctx context.Context, arg GetOrderGroupParams) (OrderGroup, error) {
	return scanOrderGroup(q.db.QueryRow(ctx, getOrderGroup, arg.ID, arg.RestaurantID))
}

const getOrderGroupForUpdate = `-- name: GetOrderGroupForUpdate :one
SELECT ` + orderGroupColumns + ` FROM order_groups
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetOrderGroupForUpdate(ctx context.Context, id uuid.UUID) (OrderGroup, error) {
	return scanOrderGroup(q.db.QueryRow(ctx, getOrderGroupForUpdate, id))
}

const getUnpaidOrderGroupByRefForUpdate = `-- name: GetUnpaidOrderGroupByRefForUpdate :one
SELECT ` + orderGroupColumns + ` FROM order_groups
WHERE payment_ref = $1 AND payment_status = 'UNPAID'
FOR UPDATE
`

func (q *Queries) GetUnpaidOrderGroupByRefForUpdate(ctx context.Context, paymentRef string) (OrderGroup, error) {
	return scanOrderGroup(q.db.QueryRow(ctx, getUnpaidOrderGroupByRefForUpdate, paymentRef))
}

const markOrderGroupPaid = `-- name: MarkOrderGroupPaid :one
UPDATE order_groups
SET payment_status = 'PAID', payment_method = $3, payment_date = $4, updated_at = now()
WHERE id = $1 AND restaurant_id = $2 AND payment_status = 'UNPAID'
RETURNING ` + orderGroupColumns

type MarkOrderGroupPaidParams struct {
	ID            uuid.UUID          `json:"id"`
	RestaurantID  uuid.UUID          `json:"restaurant_id"`
	PaymentMethod string             `json:"payment_method"`
	PaymentDate   pgtype.Timestamptz `json:"payment_date"`
}

// MarkOrderGroupPaid flips an UNPAID ledger to PAID. Zero matching rows
// (pgx.ErrNoRows) means the ledger is missing or was already paid.
func (q *Queries) MarkOrderGroupPaid(ctx context.Context, arg MarkOrderGroupPaidParams) (OrderGroup, error) {
	return scanOrderGroup(q.db.QueryRow(ctx, markOrderGroupPaid,
		arg.ID,
		arg.RestaurantID,
		arg.PaymentMethod,
		arg.PaymentDate,
	))
}

const claimOrderCountProcessing = `-- name: ClaimOrderCountProcessing :execrows
UPDATE order_groups
SET order_count_processed = true, updated_at = now()
WHERE id = $1 AND payment_status = 'PAID' AND NOT order_count_processed
`

// ClaimOrderCountProcessing reports whether this caller won the right to
// bump popularity counters for the ledger.
func (q *Queries) ClaimOrderCountProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := q.db.Exec(ctx, claimOrderCountProcessing, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

const listOrderGroups = `-- name: ListOrderGroups :many
SELECT ` + orderGroupColumns + ` FROM order_groups g
WHERE g.restaurant_id = $1
  AND ($2::text IS NULL OR g.payment_status = $2::text)
  AND ($2::text IS DISTINCT FROM 'UNPAID' OR EXISTS (
        SELECT 1 FROM orders o WHERE o.order_group_id = g.id AND o.status = 'ACCEPTED'))
ORDER BY
  CASE WHEN $2::text = 'PAID' THEN g.payment_date END DESC NULLS LAST,
  g.created_at DESC
`

type ListOrderGroupsParams struct {
	RestaurantID  uuid.UUID   `json:"restaurant_id"`
	PaymentStatus pgtype.Text `json:"payment_status"`
}

// ListOrderGroups hides unpaid ledgers that have no accepted order yet when
// filtering on UNPAID, matching what the cashier board shows.
func (q *Queries) ListOrderGroups(ctx context.Context, arg ListOrderGroupsParams) ([]OrderGroup, error) {
	rows, err := q.db.Query(ctx, listOrderGroups, arg.RestaurantID, arg.PaymentStatus)
	if err != nil {
		return nil, err
	}
	return collectOrderGroups(rows)
}

const listPaidOrderGroupsWithoutInvoice = `-- name: ListPaidOrderGroupsWithoutInvoice :many
SELECT ` + orderGroupColumns + ` FROM order_groups g
WHERE g.payment_status = 'PAID'
  AND NOT EXISTS (SELECT 1 FROM invoices i WHERE i.order_group_id = g.id)
ORDER BY g.payment_date ASC
`

func (q *Queries) ListPaidOrderGroupsWithoutInvoice(ctx context.Context) ([]OrderGroup, error) {
	rows, err := q.db.Query(ctx, listPaidOrderGroupsWithoutInvoice)
	if err != nil {
		return nil, err
	}
	return collectOrderGroups(rows)
}

const aggregateOrderGroupItems = `-- name: AggregateOrderGroupItems :many
SELECT oi.menu_item_id, m.name, SUM(oi.quantity)::bigint AS quantity, SUM(oi.quantity * oi.price)::numeric(12,2) AS total_cost
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN menu_items m ON m.id = oi.menu_item_id
WHERE o.order_group_id = $1
GROUP BY oi.menu_item_id, m.name
ORDER BY m.name ASC
`

type AggregateOrderGroupItemsRow struct {
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       string         `json:"name"`
	Quantity   int64          `json:"quantity"`
	TotalCost  pgtype.Numeric `json:"total_cost"`
}

func (q *Queries) AggregateOrderGroupItems(ctx context.Context, orderGroupID uuid.UUID) ([]AggregateOrderGroupItemsRow, error) {
	rows, err := q.db.Query(ctx, aggregateOrderGroupItems, orderGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AggregateOrderGroupItemsRow
	for rows.Next() {
		var i AggregateOrderGroupItemsRow
		if err := rows.Scan(
			&i.MenuItemID,
			&i.Name,
			&i.Quantity,
			&i.TotalCost,
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
