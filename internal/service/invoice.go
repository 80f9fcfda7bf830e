package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceOrderGroupConstraint = "invoices_order_group_id_key"

// FormatInvoiceNumber renders a counter value as INV-001. Values past 999
// widen the field.
func FormatInvoiceNumber(n int64) string {
	return fmt.Sprintf("INV-%03d", n)
}

// InvoiceStore defines the DB methods needed to issue and read invoices.
// Satisfied by *database.Queries (and its WithTx variant).
type InvoiceStore interface {
	GetOrderGroupForUpdate(ctx context.Context, id uuid.UUID) (database.OrderGroup, error)
	GetInvoiceByOrderGroup(ctx context.Context, orderGroupID uuid.UUID) (database.Invoice, error)
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	NextCounterValue(ctx context.Context, name string) (int64, error)
	CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
	GetInvoice(ctx context.Context, arg database.GetInvoiceParams) (database.Invoice, error)
	ListInvoices(ctx context.Context, arg database.ListInvoicesParams) ([]database.Invoice, error)
	ListPaidOrderGroupsWithoutInvoice(ctx context.Context) ([]database.OrderGroup, error)
}

// NewInvoiceStore creates an InvoiceStore from a DBTX (pool or tx).
type NewInvoiceStore func(db database.DBTX) InvoiceStore

// InvoiceFilter narrows ListInvoices. Zero values mean no filter; the date
// range is half-open [From, To).
type InvoiceFilter struct {
	RestaurantID uuid.UUID
	TableID      uuid.UUID
	From         time.Time
	To           time.Time
}

// InvoiceService issues exactly one invoice per paid order group.
type InvoiceService struct {
	db       DB
	newStore NewInvoiceStore
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(db DB, newStore NewInvoiceStore) *InvoiceService {
	return &InvoiceService{db: db, newStore: newStore}
}

// Issue returns the invoice for a paid order group, creating it on first
// call. created is false when the invoice already existed.
func (s *InvoiceService) Issue(ctx context.Context, orderGroupID uuid.UUID) (database.Invoice, bool, error) {
	inv, created, err := s.issueTx(ctx, orderGroupID)
	if isUniqueViolation(err, invoiceOrderGroupConstraint) {
		// Lost a race with another issuer; theirs is the invoice.
		inv, err := s.newStore(s.db).GetInvoiceByOrderGroup(ctx, orderGroupID)
		if err != nil {
			return database.Invoice{}, false, fmt.Errorf("get invoice after conflict: %w", err)
		}
		return inv, false, nil
	}
	return inv, created, err
}

func (s *InvoiceService) issueTx(ctx context.Context, orderGroupID uuid.UUID) (database.Invoice, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return database.Invoice{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// The row lock serializes issuers for this order group.
	group, err := store.GetOrderGroupForUpdate(ctx, orderGroupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Invoice{}, false, ErrOrderGroupNotFound
		}
		return database.Invoice{}, false, fmt.Errorf("get order group: %w", err)
	}
	if group.PaymentStatus != enum.PaymentStatusPaid {
		return database.Invoice{}, false, ErrOrderGroupUnpaid
	}

	existing, err := store.GetInvoiceByOrderGroup(ctx, orderGroupID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Invoice{}, false, fmt.Errorf("get invoice: %w", err)
	}

	restaurant, err := store.GetRestaurant(ctx, group.RestaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Invoice{}, false, ErrRestaurantNotFound
		}
		return database.Invoice{}, false, fmt.Errorf("get restaurant: %w", err)
	}

	// Counter increment rolls back with the transaction, so a failed insert
	// leaves no gap.
	n, err := store.NextCounterValue(ctx, enum.CounterInvoiceNumber)
	if err != nil {
		return database.Invoice{}, false, fmt.Errorf("next invoice number: %w", err)
	}

	inv, err := store.CreateInvoice(ctx, database.CreateInvoiceParams{
		ID:                uuid.New(),
		InvoiceNumber:     FormatInvoiceNumber(n),
		OrderGroupID:      group.ID,
		RestaurantID:      group.RestaurantID,
		TableID:           group.TableID,
		TotalCost:         group.TotalCost,
		PaymentMethod:     group.PaymentMethod.String,
		PaymentDate:       group.PaymentDate.Time,
		RestaurantName:    restaurant.Name,
		RestaurantAddress: restaurant.Address,
	})
	if err != nil {
		return database.Invoice{}, false, fmt.Errorf("create invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Invoice{}, false, fmt.Errorf("commit tx: %w", err)
	}
	return inv, true, nil
}

// SyncInvoices issues invoices for every paid order group that lacks one.
// It keeps going past individual failures and reports them joined.
func (s *InvoiceService) SyncInvoices(ctx context.Context) (int, error) {
	groups, err := s.newStore(s.db).ListPaidOrderGroupsWithoutInvoice(ctx)
	if err != nil {
		return 0, fmt.Errorf("list paid order groups without invoice: %w", err)
	}

	issued := 0
	var errs []error
	for _, g := range groups {
		inv, created, err := s.Issue(ctx, g.ID)
		if err != nil {
			log.Printf("ERROR: sync invoice for order group %s: %v", g.ID, err)
			errs = append(errs, fmt.Errorf("order group %s: %w", g.ID, err))
			continue
		}
		if created {
			log.Printf("issued %s for order group %s", inv.InvoiceNumber, g.ID)
			issued++
		}
	}
	return issued, errors.Join(errs...)
}

// GetInvoice returns an invoice of the caller's restaurant.
func (s *InvoiceService) GetInvoice(ctx context.Context, restaurantID, id uuid.UUID) (database.Invoice, error) {
	inv, err := s.newStore(s.db).GetInvoice(ctx, database.GetInvoiceParams{ID: id, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Invoice{}, ErrInvoiceNotFound
		}
		return database.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// GetInvoiceByOrderGroup returns the invoice of one of the caller's order groups.
func (s *InvoiceService) GetInvoiceByOrderGroup(ctx context.Context, restaurantID, orderGroupID uuid.UUID) (database.Invoice, error) {
	inv, err := s.newStore(s.db).GetInvoiceByOrderGroup(ctx, orderGroupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Invoice{}, ErrInvoiceNotFound
		}
		return database.Invoice{}, fmt.Errorf("get invoice by order group: %w", err)
	}
	if inv.RestaurantID != restaurantID {
		return database.Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

// ListInvoices returns invoices newest payment first.
func (s *InvoiceService) ListInvoices(ctx context.Context, f InvoiceFilter) ([]database.Invoice, error) {
	params := database.ListInvoicesParams{RestaurantID: f.RestaurantID}
	if f.TableID != uuid.Nil {
		params.TableID = pgtype.UUID{Bytes: f.TableID, Valid: true}
	}
	if !f.From.IsZero() {
		params.StartDate = pgtype.Timestamptz{Time: f.From, Valid: true}
	}
	if !f.To.IsZero() {
		params.EndDate = pgtype.Timestamptz{Time: f.To, Valid: true}
	}

	invoices, err := s.newStore(s.db).ListInvoices(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}
