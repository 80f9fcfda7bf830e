package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/enum"
	"github.com/dinetab/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	maxLedgerCreateRetries = 3
	activeLedgerConstraint = "order_groups_one_unpaid_per_table"
)

// TabStore defines the DB methods needed for ordering against a table's tab.
// Satisfied by *database.Queries (and its WithTx variant).
type TabStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetTableByName(ctx context.Context, arg database.GetTableByNameParams) (database.Table, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.Table, error)
	GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error)
	GetUnpaidOrderGroupByTable(ctx context.Context, tableID uuid.UUID) (database.OrderGroup, error)
	GetActiveOrderGroupByTable(ctx context.Context, tableID uuid.UUID) (database.OrderGroup, error)
	CreateOrderGroup(ctx context.Context, arg database.CreateOrderGroupParams) (database.OrderGroup, error)
	AddOrderGroupTotal(ctx context.Context, arg database.AddOrderGroupTotalParams) (database.OrderGroup, error)
	GetOrderGroup(ctx context.Context, arg database.GetOrderGroupParams) (database.OrderGroup, error)
	ListOrderGroups(ctx context.Context, arg database.ListOrderGroupsParams) ([]database.OrderGroup, error)
	AggregateOrderGroupItems(ctx context.Context, orderGroupID uuid.UUID) ([]database.AggregateOrderGroupItemsRow, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ApproveOrder(ctx context.Context, arg database.ApproveOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.OrderWithTable, error)
	ListOrdersByGroup(ctx context.Context, orderGroupID uuid.UUID) ([]database.OrderWithTable, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderItemsByOrderRow, error)
}

// NewTabStore creates a TabStore from a DBTX (pool or tx).
type NewTabStore func(db database.DBTX) TabStore

// SubmitOrderRequest is the input for placing an order at a table.
type SubmitOrderRequest struct {
	TableID string
	Notes   string
	Items   []SubmitOrderItem
}

// SubmitOrderItem is one requested menu item. Quantities below 1 count as 1.
type SubmitOrderItem struct {
	ItemID   string
	Quantity int32
}

// OrderLine is a menu item on an order with its price at order time.
type OrderLine struct {
	MenuItemID uuid.UUID       `json:"item_id"`
	Name       string          `json:"name"`
	Quantity   int32           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// OrderResult is an order with its table and lines.
type OrderResult struct {
	Order     database.Order `json:"order"`
	TableName int32          `json:"table_name"`
	Items     []OrderLine    `json:"items"`
}

// SubmitResult is the outcome of SubmitOrder.
type SubmitResult struct {
	OrderResult
	OrderGroup    database.OrderGroup
	NewOrderGroup bool
}

// OrderGroupDetail is a tab with its orders and per-item totals.
type OrderGroupDetail struct {
	OrderGroup database.OrderGroup
	TableName  int32
	Orders     []OrderResult
	Items      []database.AggregateOrderGroupItemsRow
}

// TableTab is what a table's customers see: the table and its open tab, if
// any.
type TableTab struct {
	Table      database.Table
	OrderGroup *OrderGroupDetail
}

// TabService runs the ordering side of a table's tab: placing orders,
// staff approval and read projections.
type TabService struct {
	db       DB
	newStore NewTabStore
	notifier notify.Notifier
	now      func() time.Time
}

// NewTabService creates a new TabService.
func NewTabService(db DB, newStore NewTabStore, notifier notify.Notifier) *TabService {
	return &TabService{db: db, newStore: newStore, notifier: notifier, now: time.Now}
}

type resolvedItem struct {
	menuItemID uuid.UUID
	quantity   int32
}

// SubmitOrder prices the requested items from the menu, appends the order to
// the table's unpaid tab (opening one if needed) and grows the tab total.
func (s *TabService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*SubmitResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		return nil, ErrInvalidTableID
	}

	items := make([]resolvedItem, len(req.Items))
	for i, item := range req.Items {
		id, err := uuid.Parse(item.ItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidItemID)
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		items[i] = resolvedItem{menuItemID: id, quantity: qty}
	}

	// Retry loop: the table row lock serializes submitters, the partial
	// unique index is the backstop if a tab was opened without it.
	var lastErr error
	for attempt := 0; attempt < maxLedgerCreateRetries; attempt++ {
		result, err := s.submitOrderTx(ctx, tableID, items, req.Notes)
		if err == nil {
			s.publishSubmitted(result)
			return result, nil
		}
		if isUniqueViolation(err, activeLedgerConstraint) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *TabService) submitOrderTx(ctx context.Context, tableID uuid.UUID, items []resolvedItem, notes string) (*SubmitResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	// --- Price items from the menu ---
	total := decimal.Zero
	lines := make([]OrderLine, len(items))
	for i, item := range items {
		menuItem, err := store.GetMenuItemForOrder(ctx, database.GetMenuItemForOrderParams{
			ID:           item.menuItemID,
			RestaurantID: table.RestaurantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		price := numericToDecimal(menuItem.Price)
		if price.IsNegative() {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrNegativePrice)
		}
		total = total.Add(price.Mul(decimal.NewFromInt32(item.quantity)))
		lines[i] = OrderLine{
			MenuItemID: menuItem.ID,
			Name:       menuItem.Name,
			Quantity:   item.quantity,
			Price:      price,
		}
	}

	// --- Resolve or open the tab ---
	created := false
	group, err := store.GetUnpaidOrderGroupByTable(ctx, table.ID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		id := uuid.New()
		group, err = store.CreateOrderGroup(ctx, database.CreateOrderGroupParams{
			ID:           id,
			RestaurantID: table.RestaurantID,
			TableID:      table.ID,
			PaymentRef:   PaymentRef(id),
		})
		if err != nil {
			return nil, fmt.Errorf("create order group: %w", err)
		}
		created = true
	case err != nil:
		return nil, fmt.Errorf("get unpaid order group: %w", err)
	}

	if created || !table.CurrentOrderGroupID.Valid || table.CurrentOrderGroupID.Bytes != group.ID {
		if _, err := store.OccupyTable(ctx, database.OccupyTableParams{
			ID:           table.ID,
			OrderGroupID: group.ID,
		}); err != nil {
			return nil, fmt.Errorf("occupy table: %w", err)
		}
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		ID:           uuid.New(),
		RestaurantID: table.RestaurantID,
		TableID:      table.ID,
		OrderGroupID: group.ID,
		TotalCost:    decimalToNumeric(total),
		Notes:        notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	for _, line := range lines {
		if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			ID:         uuid.New(),
			OrderID:    order.ID,
			MenuItemID: line.MenuItemID,
			Quantity:   line.Quantity,
			Price:      decimalToNumeric(line.Price),
		}); err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
	}

	group, err = store.AddOrderGroupTotal(ctx, database.AddOrderGroupTotalParams{
		ID:     group.ID,
		Amount: decimalToNumeric(total),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderGroupClosed
		}
		return nil, fmt.Errorf("add order group total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SubmitResult{
		OrderResult: OrderResult{
			Order:     order,
			TableName: table.Name,
			Items:     lines,
		},
		OrderGroup:    group,
		NewOrderGroup: created,
	}, nil
}

func (s *TabService) publishSubmitted(res *SubmitResult) {
	o := res.Order
	s.notifier.Publish(notify.NewEvent(notify.TypeNewOrder, notify.RoomRestaurant(o.RestaurantID), res.OrderResult))
	s.notifier.Publish(notify.NewEvent(notify.TypeCustomerNotification, notify.RoomTable(o.TableID), notify.CustomerNotification{
		Type:         notify.CustomerOrderSubmitted,
		Message:      "Your order has been sent to the staff",
		OrderID:      o.ID,
		TableID:      o.TableID,
		OrderGroupID: o.OrderGroupID,
		Timestamp:    s.now(),
	}))
	if res.NewOrderGroup {
		s.notifier.Publish(notify.NewEvent(notify.TypeTableStatusUpdated, notify.RoomRestaurant(o.RestaurantID), notify.TableStatus{
			TableID:        o.TableID,
			Name:           res.TableName,
			Status:         enum.TableStatusOccupied,
			PreviousStatus: enum.TableStatusFree,
			Timestamp:      s.now(),
		}))
	}
}

// ApproveOrder marks an order of the caller's restaurant as accepted. Tab
// totals are unaffected; they already include the order.
func (s *TabService) ApproveOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.newStore(s.db).ApproveOrder(ctx, database.ApproveOrderParams{
		ID:           orderID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("approve order: %w", err)
	}

	s.notifier.Publish(notify.NewEvent(notify.TypeCustomerNotification, notify.RoomTable(order.TableID), notify.CustomerNotification{
		Type:         notify.CustomerOrderApproved,
		Message:      "Your order has been accepted",
		OrderID:      order.ID,
		TableID:      order.TableID,
		OrderGroupID: order.OrderGroupID,
		Timestamp:    s.now(),
	}))
	return order, nil
}

// ListOrders returns the restaurant's orders newest first, optionally
// filtered by status.
func (s *TabService) ListOrders(ctx context.Context, restaurantID uuid.UUID, status string) ([]OrderResult, error) {
	params := database.ListOrdersParams{RestaurantID: restaurantID}
	switch status {
	case "":
	case enum.OrderStatusPending, enum.OrderStatusAccepted:
		params.Status = pgtype.Text{String: status, Valid: true}
	default:
		return nil, ErrInvalidOrderStatus
	}

	store := s.newStore(s.db)
	orders, err := store.ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return s.withLines(ctx, store, orders)
}

func (s *TabService) withLines(ctx context.Context, store TabStore, orders []database.OrderWithTable) ([]OrderResult, error) {
	results := make([]OrderResult, len(orders))
	for i, o := range orders {
		rows, err := store.ListOrderItemsByOrder(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("list order items: %w", err)
		}
		lines := make([]OrderLine, len(rows))
		for j, row := range rows {
			lines[j] = OrderLine{
				MenuItemID: row.MenuItemID,
				Name:       row.MenuItemName,
				Quantity:   row.Quantity,
				Price:      numericToDecimal(row.Price),
			}
		}
		results[i] = OrderResult{Order: o.Order, TableName: o.TableName, Items: lines}
	}
	return results, nil
}

// ListOrderGroups returns the restaurant's tabs. Filtering on UNPAID only
// shows tabs with at least one accepted order.
func (s *TabService) ListOrderGroups(ctx context.Context, restaurantID uuid.UUID, paymentStatus string) ([]OrderGroupDetail, error) {
	params := database.ListOrderGroupsParams{RestaurantID: restaurantID}
	switch paymentStatus {
	case "":
	case enum.PaymentStatusUnpaid, enum.PaymentStatusPaid:
		params.PaymentStatus = pgtype.Text{String: paymentStatus, Valid: true}
	default:
		return nil, ErrInvalidPaymentStatus
	}

	store := s.newStore(s.db)
	groups, err := store.ListOrderGroups(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list order groups: %w", err)
	}

	details := make([]OrderGroupDetail, len(groups))
	for i, g := range groups {
		d, err := s.detail(ctx, store, g)
		if err != nil {
			return nil, err
		}
		details[i] = *d
	}
	return details, nil
}

// GetOrderGroup returns one tab of the caller's restaurant.
func (s *TabService) GetOrderGroup(ctx context.Context, restaurantID, orderGroupID uuid.UUID) (*OrderGroupDetail, error) {
	store := s.newStore(s.db)
	group, err := store.GetOrderGroup(ctx, database.GetOrderGroupParams{
		ID:           orderGroupID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderGroupNotFound
		}
		return nil, fmt.Errorf("get order group: %w", err)
	}
	return s.detail(ctx, store, group)
}

// GetOrderGroupByTableName returns the open tab of the restaurant's table
// with the given number.
func (s *TabService) GetOrderGroupByTableName(ctx context.Context, restaurantID uuid.UUID, name int32) (*OrderGroupDetail, error) {
	store := s.newStore(s.db)
	table, err := store.GetTableByName(ctx, database.GetTableByNameParams{
		RestaurantID: restaurantID,
		Name:         name,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table by name: %w", err)
	}

	group, err := store.GetActiveOrderGroupByTable(ctx, table.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveOrderGroup
		}
		return nil, fmt.Errorf("get active order group: %w", err)
	}
	return s.detail(ctx, store, group)
}

// GetTableTab returns a table with its open tab. A free table has a nil
// OrderGroup.
func (s *TabService) GetTableTab(ctx context.Context, tableID uuid.UUID) (*TableTab, error) {
	store := s.newStore(s.db)
	table, err := store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	group, err := store.GetActiveOrderGroupByTable(ctx, table.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &TableTab{Table: table}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active order group: %w", err)
	}
	detail, err := s.detail(ctx, store, group)
	if err != nil {
		return nil, err
	}
	return &TableTab{Table: table, OrderGroup: detail}, nil
}

func (s *TabService) detail(ctx context.Context, store TabStore, group database.OrderGroup) (*OrderGroupDetail, error) {
	table, err := store.GetTable(ctx, group.TableID)
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	orders, err := store.ListOrdersByGroup(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("list orders by group: %w", err)
	}
	results, err := s.withLines(ctx, store, orders)
	if err != nil {
		return nil, err
	}
	items, err := store.AggregateOrderGroupItems(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("aggregate order group items: %w", err)
	}
	return &OrderGroupDetail{
		OrderGroup: group,
		TableName:  table.Name,
		Orders:     results,
		Items:      items,
	}, nil
}
