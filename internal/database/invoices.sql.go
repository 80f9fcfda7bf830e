package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceColumns = `id, invoice_number, order_group_id, restaurant_id, table_id, total_cost, payment_method, payment_date, restaurant_name, restaurant_address, created_at`

func scanInvoice(row interface{ Scan(...any) error }) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.InvoiceNumber,
		&i.OrderGroupID,
		&i.RestaurantID,
		&i.TableID,
		&i.TotalCost,
		&i.PaymentMethod,
		&i.PaymentDate,
		&i.RestaurantName,
		&i.RestaurantAddress,
		&i.CreatedAt,
	)
	return i, err
}

const getInvoiceByOrderGroup = `-- name: GetInvoiceByOrderGroup :one
SELECT ` + invoiceColumns + ` FROM invoices
WHERE order_group_id = $1
`

func (q *Queries) GetInvoiceByOrderGroup(ctx context.Context, orderGroupID uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceByOrderGroup, orderGroupID))
}

const getInvoice = `-- name: GetInvoice :one
SELECT ` + invoiceColumns + ` FROM invoices
WHERE id = $1 AND restaurant_id = $2
`

type GetInvoiceParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetInvoice(ctx context.Context, arg GetInvoiceParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoice, arg.ID, arg.RestaurantID))
}

const createInvoice = `-- name: CreateInvoice :one
INSERT INTO invoices (id, invoice_number, order_group_id, restaurant_id, table_id, total_cost, payment_method, payment_date, restaurant_name, restaurant_address)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + invoiceColumns

type CreateInvoiceParams struct {
	ID                uuid.UUID      `json:"id"`
	InvoiceNumber     string         `json:"invoice_number"`
	OrderGroupID      uuid.UUID      `json:"order_group_id"`
	RestaurantID      uuid.UUID      `json:"restaurant_id"`
	TableID           uuid.UUID      `json:"table_id"`
	TotalCost         pgtype.Numeric `json:"total_cost"`
	PaymentMethod     string         `json:"payment_method"`
	PaymentDate       time.Time      `json:"payment_date"`
	RestaurantName    string         `json:"restaurant_name"`
	RestaurantAddress string         `json:"restaurant_address"`
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, createInvoice,
		arg.ID,
		arg.InvoiceNumber,
		arg.OrderGroupID,
		arg.RestaurantID,
		arg.TableID,
		arg.TotalCost,
		arg.PaymentMethod,
		arg.PaymentDate,
		arg.RestaurantName,
		arg.RestaurantAddress,
	))
}

const listInvoices = `-- name: ListInvoices :many
SELECT ` + invoiceColumns + ` FROM invoices
WHERE restaurant_id = $1
  AND ($2::uuid IS NULL OR table_id = $2::uuid)
  AND ($3::timestamptz IS NULL OR payment_date >= $3::timestamptz)
  AND ($4::timestamptz IS NULL OR payment_date < $4::timestamptz)
ORDER BY payment_date DESC
`

type ListInvoicesParams struct {
	RestaurantID uuid.UUID          `json:"restaurant_id"`
	TableID      pgtype.UUID        `json:"table_id"`
	StartDate    pgtype.Timestamptz `json:"start_date"`
	EndDate      pgtype.Timestamptz `json:"end_date"`
}

func (q *Queries) ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoices,
		arg.RestaurantID,
		arg.TableID,
		arg.StartDate,
		arg.EndDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
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
