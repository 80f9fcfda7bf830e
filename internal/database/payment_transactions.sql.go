package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createPaymentTransaction = `-- name: CreatePaymentTransaction :one
INSERT INTO payment_transactions (transaction_id, order_group_id, amount, account_number, content, transaction_date)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING transaction_id, order_group_id, amount, account_number, content, transaction_date, created_at
`

type CreatePaymentTransactionParams struct {
	TransactionID   string         `json:"transaction_id"`
	OrderGroupID    uuid.UUID      `json:"order_group_id"`
	Amount          pgtype.Numeric `json:"amount"`
	AccountNumber   string         `json:"account_number"`
	Content         string         `json:"content"`
	TransactionDate time.Time      `json:"transaction_date"`
}

func (q *Queries) CreatePaymentTransaction(ctx context.Context, arg CreatePaymentTransactionParams) (PaymentTransaction, error) {
	row := q.db.QueryRow(ctx, createPaymentTransaction,
		arg.TransactionID,
		arg.OrderGroupID,
		arg.Amount,
		arg.AccountNumber,
		arg.Content,
		arg.TransactionDate,
	)
	var i PaymentTransaction
	err := row.Scan(
		&i.TransactionID,
		&i.OrderGroupID,
		&i.Amount,
		&i.AccountNumber,
		&i.Content,
		&i.TransactionDate,
		&i.CreatedAt,
	)
	return i, err
}
