package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/enum"
	"github.com/dinetab/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// SettlementStore defines the DB methods needed to settle an order group.
// Satisfied by *database.Queries (and its WithTx variant).
type SettlementStore interface {
	MarkOrderGroupPaid(ctx context.Context, arg database.MarkOrderGroupPaidParams) (database.OrderGroup, error)
	GetOrderGroup(ctx context.Context, arg database.GetOrderGroupParams) (database.OrderGroup, error)
	ReleaseTable(ctx context.Context, arg database.ReleaseTableParams) (database.Table, error)
	ClaimOrderCountProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	AggregateOrderGroupItems(ctx context.Context, orderGroupID uuid.UUID) ([]database.AggregateOrderGroupItemsRow, error)
	IncrementMenuItemOrderCount(ctx context.Context, arg database.IncrementMenuItemOrderCountParams) error
	MarkAllPaidOrderCountsProcessed(ctx context.Context) error
	RecomputeMenuItemOrderCounts(ctx context.Context) (int64, error)
}

// NewSettlementStore creates a SettlementStore from a DBTX (pool or tx).
type NewSettlementStore func(db database.DBTX) SettlementStore

// Issuer issues the invoice for a paid order group.
// Satisfied by *InvoiceService.
type Issuer interface {
	Issue(ctx context.Context, orderGroupID uuid.UUID) (database.Invoice, bool, error)
}

// SettlementResult is a paid order group and what settling it produced.
// Table is nil when the table had already moved on to a newer tab.
type SettlementResult struct {
	OrderGroup database.OrderGroup
	Table      *database.Table
	Invoice    *database.Invoice
}

// SettlementService moves order groups from UNPAID to PAID and runs the
// follow-up work: table release, popularity counts, invoice, notifications.
type SettlementService struct {
	db       DB
	newStore NewSettlementStore
	invoices Issuer
	notifier notify.Notifier
	now      func() time.Time
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(db DB, newStore NewSettlementStore, invoices Issuer, notifier notify.Notifier) *SettlementService {
	return &SettlementService{
		db:       db,
		newStore: newStore,
		invoices: invoices,
		notifier: notifier,
		now:      time.Now,
	}
}

// NormalizePaymentMethod upper-cases method and defaults it to CASH.
func NormalizePaymentMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch m {
	case "":
		return enum.PaymentMethodCash, nil
	case enum.PaymentMethodCash, enum.PaymentMethodQR:
		return m, nil
	}
	return "", ErrInvalidPaymentMethod
}

// Settle records payment of an order group of the caller's restaurant and
// then runs Finalize. The paid flip is a conditional update, so of two
// concurrent settlements exactly one succeeds and the other gets
// ErrAlreadyPaid.
func (s *SettlementService) Settle(ctx context.Context, restaurantID, orderGroupID uuid.UUID, method string) (*SettlementResult, error) {
	method, err := NormalizePaymentMethod(method)
	if err != nil {
		return nil, err
	}

	group, err := s.markPaid(ctx, restaurantID, orderGroupID, method)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderGroupNotFound):
			s.publishError(notify.RoomRestaurant(restaurantID), notify.ErrorOrderGroupNotFound,
				"order group not found", orderGroupID.String())
		case KindOf(err) == 0:
			s.publishError(notify.RoomRestaurant(restaurantID), notify.ErrorGeneral,
				"failed to settle order group", orderGroupID.String())
		}
		return nil, err
	}

	return s.Finalize(ctx, group)
}

func (s *SettlementService) markPaid(ctx context.Context, restaurantID, orderGroupID uuid.UUID, method string) (database.OrderGroup, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return database.OrderGroup{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	group, err := store.MarkOrderGroupPaid(ctx, database.MarkOrderGroupPaidParams{
		ID:            orderGroupID,
		RestaurantID:  restaurantID,
		PaymentMethod: method,
		PaymentDate:   pgtype.Timestamptz{Time: s.now(), Valid: true},
	})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.OrderGroup{}, fmt.Errorf("mark order group paid: %w", err)
		}
		// Nothing flipped: either it does not exist here or it is already paid.
		if _, err := store.GetOrderGroup(ctx, database.GetOrderGroupParams{
			ID:           orderGroupID,
			RestaurantID: restaurantID,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.OrderGroup{}, ErrOrderGroupNotFound
			}
			return database.OrderGroup{}, fmt.Errorf("get order group: %w", err)
		}
		return database.OrderGroup{}, ErrAlreadyPaid
	}

	if err := tx.Commit(ctx); err != nil {
		return database.OrderGroup{}, fmt.Errorf("commit tx: %w", err)
	}
	return group, nil
}

// Finalize runs the post-payment steps for an order group that is already
// PAID. Table release is best-effort. Popularity counting is guarded so it
// happens once per order group however often Finalize runs. Payment is
// never rolled back here; failures are returned and announced as error
// notifications.
func (s *SettlementService) Finalize(ctx context.Context, group database.OrderGroup) (*SettlementResult, error) {
	res := &SettlementResult{OrderGroup: group}
	restaurantRoom := notify.RoomRestaurant(group.RestaurantID)
	var errs []error

	table, err := s.newStore(s.db).ReleaseTable(ctx, database.ReleaseTableParams{
		ID:           group.TableID,
		OrderGroupID: group.ID,
	})
	switch {
	case err == nil:
		res.Table = &table
	case errors.Is(err, pgx.ErrNoRows):
		// Table already serves a newer tab.
	default:
		log.Printf("WARN: release table %s after settling %s: %v", group.TableID, group.ID, err)
	}

	if err := s.countPopularity(ctx, group.ID); err != nil {
		log.Printf("ERROR: count popularity for order group %s: %v", group.ID, err)
		s.publishError(restaurantRoom, notify.ErrorGeneral, "failed to update item popularity", group.ID.String())
		errs = append(errs, err)
	}

	inv, created, err := s.invoices.Issue(ctx, group.ID)
	if err != nil {
		log.Printf("ERROR: issue invoice for order group %s: %v", group.ID, err)
		s.publishError(restaurantRoom, notify.ErrorInvoiceCreationFailed,
			"payment recorded but invoice creation failed", group.ID.String())
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvoiceFailed, err))
	} else {
		res.Invoice = &inv
	}

	if res.Table != nil {
		status := notify.TableStatus{
			TableID:        res.Table.ID,
			Name:           res.Table.Name,
			Status:         enum.TableStatusFree,
			PreviousStatus: enum.TableStatusOccupied,
			Timestamp:      s.now(),
		}
		s.notifier.Publish(notify.NewEvent(notify.TypeTableStatusUpdated, restaurantRoom, status))
		s.notifier.Publish(notify.NewEvent(notify.TypeTableStatusUpdated, notify.RoomTable(res.Table.ID), status))
	}
	s.notifier.Publish(notify.NewEvent(notify.TypeOrderGroupUpdated, restaurantRoom, group))
	s.notifier.Publish(notify.NewEvent(notify.TypeOrderGroupUpdated, notify.RoomTable(group.TableID), group))
	if res.Invoice != nil && created {
		s.notifier.Publish(notify.NewEvent(notify.TypeInvoiceCreated, restaurantRoom, res.Invoice))
	}

	return res, errors.Join(errs...)
}

func (s *SettlementService) countPopularity(ctx context.Context, orderGroupID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	claimed, err := store.ClaimOrderCountProcessing(ctx, orderGroupID)
	if err != nil {
		return fmt.Errorf("claim order count processing: %w", err)
	}
	if !claimed {
		return nil
	}

	items, err := store.AggregateOrderGroupItems(ctx, orderGroupID)
	if err != nil {
		return fmt.Errorf("aggregate order group items: %w", err)
	}
	for _, item := range items {
		if err := store.IncrementMenuItemOrderCount(ctx, database.IncrementMenuItemOrderCountParams{
			ID:    item.MenuItemID,
			Delta: int32(item.Quantity),
		}); err != nil {
			return fmt.Errorf("increment order count for %s: %w", item.MenuItemID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// RecountPopularity rebuilds every menu item's order_count from paid order
// groups and marks them all counted. Returns the number of menu items
// touched.
func (s *SettlementService) RecountPopularity(ctx context.Context) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Claim first so a settlement racing this recount cannot count twice.
	if err := store.MarkAllPaidOrderCountsProcessed(ctx); err != nil {
		return 0, fmt.Errorf("mark paid order groups processed: %w", err)
	}
	n, err := store.RecomputeMenuItemOrderCounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("recompute order counts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return n, nil
}

func (s *SettlementService) publishError(room, errorType, message, relatedID string) {
	s.notifier.Publish(notify.NewEvent(notify.TypeErrorNotification, room, notify.ErrorNotification{
		ErrorType: errorType,
		Message:   message,
		RelatedID: relatedID,
		Timestamp: s.now(),
	}))
}
