package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/enum"
	"github.com/dinetab/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const paymentTransactionConstraint = "payment_transactions_pkey"

// PaymentNotification is an inbound bank transfer reported by the payment
// gateway webhook.
type PaymentNotification struct {
	TransactionID string
	Amount        decimal.Decimal
	Timestamp     time.Time
	AccountNumber string
	Direction     string
	Memo          string
}

// ReconcileStore defines the DB methods needed to match a transfer to an
// order group. Satisfied by *database.Queries (and its WithTx variant).
type ReconcileStore interface {
	GetUnpaidOrderGroupByRefForUpdate(ctx context.Context, paymentRef string) (database.OrderGroup, error)
	MarkOrderGroupPaid(ctx context.Context, arg database.MarkOrderGroupPaidParams) (database.OrderGroup, error)
	CreatePaymentTransaction(ctx context.Context, arg database.CreatePaymentTransactionParams) (database.PaymentTransaction, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
}

// NewReconcileStore creates a ReconcileStore from a DBTX (pool or tx).
type NewReconcileStore func(db database.DBTX) ReconcileStore

// Finalizer runs post-payment work for a PAID order group.
// Satisfied by *SettlementService.
type Finalizer interface {
	Finalize(ctx context.Context, group database.OrderGroup) (*SettlementResult, error)
}

// Reconciler settles order groups from bank transfer notifications. A
// transfer is accepted only when it is inbound, lands on the receiving
// account, quotes an unpaid order group's reference and pays exactly its
// total.
type Reconciler struct {
	db            DB
	newStore      NewReconcileStore
	finalizer     Finalizer
	notifier      notify.Notifier
	accountNumber string
	now           func() time.Time
}

// NewReconciler creates a new Reconciler for payments into accountNumber.
func NewReconciler(db DB, newStore NewReconcileStore, finalizer Finalizer, notifier notify.Notifier, accountNumber string) *Reconciler {
	return &Reconciler{
		db:            db,
		newStore:      newStore,
		finalizer:     finalizer,
		notifier:      notifier,
		accountNumber: accountNumber,
		now:           time.Now,
	}
}

// Reconcile validates n and, when it matches, records the order group as
// paid by QR at the transfer's timestamp and finalizes it. A replay of an
// already reconciled transfer fails with ErrPaymentOrderGroupNotFound since
// the order group is no longer unpaid.
func (r *Reconciler) Reconcile(ctx context.Context, n PaymentNotification) (*SettlementResult, error) {
	if n.TransactionID == "" || !n.Amount.IsPositive() || n.Timestamp.IsZero() ||
		n.AccountNumber == "" || n.Direction == "" {
		return nil, ErrMissingFields
	}
	if n.Direction != enum.TransferTypeIn {
		return nil, ErrNotInbound
	}
	if n.AccountNumber != r.accountNumber {
		return nil, ErrAccountMismatch
	}

	ref, ok := ParsePaymentMemo(n.Memo)
	if !ok {
		r.publishError(notify.RoomAll, notify.ErrorPaymentReference,
			fmt.Sprintf("transaction %s has no order reference in its memo", n.TransactionID), n.TransactionID)
		return nil, ErrReferenceNotFound
	}

	group, table, err := r.recordPayment(ctx, ref, n)
	if err != nil {
		return nil, err
	}

	result, err := r.finalizer.Finalize(ctx, group)

	r.notifier.Publish(notify.NewEvent(notify.TypePaymentSuccess, notify.RoomRestaurant(group.RestaurantID), notify.PaymentSuccess{
		OrderGroupID:  group.ID,
		TableID:       group.TableID,
		TableName:     table.Name,
		Amount:        n.Amount.String(),
		TransactionID: n.TransactionID,
		Timestamp:     r.now(),
	}))
	return result, err
}

func (r *Reconciler) recordPayment(ctx context.Context, ref string, n PaymentNotification) (database.OrderGroup, database.Table, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return database.OrderGroup{}, database.Table{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := r.newStore(tx)

	group, err := store.GetUnpaidOrderGroupByRefForUpdate(ctx, ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.publishError(notify.RoomAll, notify.ErrorPaymentOrderGroup,
				fmt.Sprintf("transaction %s references %s, which is not an unpaid order group", n.TransactionID, ref), n.TransactionID)
			return database.OrderGroup{}, database.Table{}, ErrPaymentOrderGroupNotFound
		}
		return database.OrderGroup{}, database.Table{}, fmt.Errorf("get order group by ref: %w", err)
	}

	total := numericToDecimal(group.TotalCost)
	if !n.Amount.Equal(total) {
		r.publishError(notify.RoomRestaurant(group.RestaurantID), notify.ErrorPaymentAmountMismatch,
			fmt.Sprintf("transaction %s paid %s but order group %s totals %s", n.TransactionID, n.Amount, group.ID, total), group.ID.String())
		return database.OrderGroup{}, database.Table{}, fmt.Errorf("%w: expected %s, received %s", ErrAmountMismatch, total, n.Amount)
	}

	group, err = store.MarkOrderGroupPaid(ctx, database.MarkOrderGroupPaidParams{
		ID:            group.ID,
		RestaurantID:  group.RestaurantID,
		PaymentMethod: enum.PaymentMethodQR,
		PaymentDate:   pgtype.Timestamptz{Time: n.Timestamp, Valid: true},
	})
	if err != nil {
		return database.OrderGroup{}, database.Table{}, fmt.Errorf("mark order group paid: %w", err)
	}

	if _, err := store.CreatePaymentTransaction(ctx, database.CreatePaymentTransactionParams{
		TransactionID:   n.TransactionID,
		OrderGroupID:    group.ID,
		Amount:          decimalToNumeric(n.Amount),
		AccountNumber:   n.AccountNumber,
		Content:         n.Memo,
		TransactionDate: n.Timestamp,
	}); err != nil {
		if isUniqueViolation(err, paymentTransactionConstraint) {
			return database.OrderGroup{}, database.Table{}, ErrDuplicateTransaction
		}
		return database.OrderGroup{}, database.Table{}, fmt.Errorf("record payment transaction: %w", err)
	}

	table, err := store.GetTable(ctx, group.TableID)
	if err != nil {
		return database.OrderGroup{}, database.Table{}, fmt.Errorf("get table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.OrderGroup{}, database.Table{}, fmt.Errorf("commit tx: %w", err)
	}
	log.Printf("reconciled transaction %s for order group %s", n.TransactionID, group.ID)
	return group, table, nil
}

func (r *Reconciler) publishError(room, errorType, message, relatedID string) {
	r.notifier.Publish(notify.NewEvent(notify.TypeErrorNotification, room, notify.ErrorNotification{
		ErrorType: errorType,
		Message:   message,
		RelatedID: relatedID,
		Timestamp: r.now(),
	}))
}
