package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/enum"
	"github.com/dinetab/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error          { return m.commitErr }
func (m *mockTx) Rollback(ctx context.Context) error        { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockDB implements DB. Queries go through the store factory, so only Begin
// is ever called on it.
type mockDB struct {
	mockTx
	tx       *mockTx
	beginErr error
}

func (m *mockDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.tx, nil
}

// recordingNotifier collects published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Publish(e notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) ofType(eventType string) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// memStore is an in-memory stand-in for *database.Queries. Conditional
// updates follow the SQL they replace: zero matching rows is pgx.ErrNoRows.
// Every method takes the same lock, which plays the role of row locks.
type memStore struct {
	mu sync.Mutex

	restaurants  map[uuid.UUID]database.Restaurant
	tables       map[uuid.UUID]database.Table
	menuItems    map[uuid.UUID]database.MenuItem
	groups       map[uuid.UUID]database.OrderGroup
	orders       []database.Order
	orderItems   []database.OrderItem
	invoices     map[uuid.UUID]database.Invoice
	transactions map[string]database.PaymentTransaction
	counters     map[string]int64

	// Fault injection.
	createInvoiceErr error
	incrementErr     error
	releaseErr       error
	createGroupErr   error
	// Called before CreateInvoice and AddOrderGroupTotal run; lets a test
	// widen race windows.
	beforeCreateInvoice func()
	beforeAddTotal      func()
}

func newMemStore() *memStore {
	return &memStore{
		restaurants:  map[uuid.UUID]database.Restaurant{},
		tables:       map[uuid.UUID]database.Table{},
		menuItems:    map[uuid.UUID]database.MenuItem{},
		groups:       map[uuid.UUID]database.OrderGroup{},
		invoices:     map[uuid.UUID]database.Invoice{},
		transactions: map[string]database.PaymentTransaction{},
		counters:     map[string]int64{},
	}
}

// --- Fixtures ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	exp, _ := decimal.NewFromString(expected)
	return numericToDecimal(n).Equal(exp)
}

func (m *memStore) addRestaurant(name string) database.Restaurant {
	r := database.Restaurant{ID: uuid.New(), Name: name, Address: "1 Le Loi, District 1"}
	m.restaurants[r.ID] = r
	return r
}

func (m *memStore) addTable(restaurantID uuid.UUID, name int32) database.Table {
	t := database.Table{ID: uuid.New(), RestaurantID: restaurantID, Name: name, Status: enum.TableStatusFree}
	m.tables[t.ID] = t
	return t
}

func (m *memStore) addMenuItem(restaurantID uuid.UUID, name, price string) database.MenuItem {
	mi := database.MenuItem{ID: uuid.New(), RestaurantID: restaurantID, Name: name, Price: makeNumeric(price)}
	m.menuItems[mi.ID] = mi
	return mi
}

func (m *memStore) addGroup(table database.Table, total, status string) database.OrderGroup {
	id := uuid.New()
	g := database.OrderGroup{
		ID:            id,
		RestaurantID:  table.RestaurantID,
		TableID:       table.ID,
		PaymentRef:    PaymentRef(id),
		TotalCost:     makeNumeric(total),
		PaymentStatus: status,
	}
	if status == enum.PaymentStatusPaid {
		g.PaymentMethod = pgtype.Text{String: enum.PaymentMethodCash, Valid: true}
		g.PaymentDate = pgtype.Timestamptz{Time: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), Valid: true}
	} else {
		table.Status = enum.TableStatusOccupied
		table.CurrentOrderGroupID = pgtype.UUID{Bytes: id, Valid: true}
		m.tables[table.ID] = table
	}
	m.groups[id] = g
	return g
}

// addOrder attaches an order with the given lines to a group.
func (m *memStore) addOrder(g database.OrderGroup, status string, lines ...database.CreateOrderItemParams) database.Order {
	o := database.Order{
		ID:           uuid.New(),
		RestaurantID: g.RestaurantID,
		TableID:      g.TableID,
		OrderGroupID: g.ID,
		Status:       status,
		CreatedAt:    time.Now(),
	}
	total := decimal.Zero
	for _, l := range lines {
		m.orderItems = append(m.orderItems, database.OrderItem{
			ID:         uuid.New(),
			OrderID:    o.ID,
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			Price:      l.Price,
		})
		total = total.Add(numericToDecimal(l.Price).Mul(decimal.NewFromInt32(l.Quantity)))
	}
	o.TotalCost = decimalToNumeric(total)
	m.orders = append(m.orders, o)
	return o
}

// --- Tables ---

func (m *memStore) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memStore) GetTableByName(ctx context.Context, arg database.GetTableByNameParams) (database.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tables {
		if t.RestaurantID == arg.RestaurantID && t.Name == arg.Name {
			return t, nil
		}
	}
	return database.Table{}, pgx.ErrNoRows
}

func (m *memStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return m.GetTable(ctx, id)
}

func (m *memStore) OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusOccupied
	t.CurrentOrderGroupID = pgtype.UUID{Bytes: arg.OrderGroupID, Valid: true}
	m.tables[t.ID] = t
	return t, nil
}

func (m *memStore) ReleaseTable(ctx context.Context, arg database.ReleaseTableParams) (database.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return database.Table{}, m.releaseErr
	}
	t, ok := m.tables[arg.ID]
	if !ok || !t.CurrentOrderGroupID.Valid || t.CurrentOrderGroupID.Bytes != arg.OrderGroupID {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusFree
	t.CurrentOrderGroupID = pgtype.UUID{}
	m.tables[t.ID] = t
	return t, nil
}

// --- Menu items ---

func (m *memStore) GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mi, ok := m.menuItems[arg.ID]
	if !ok || mi.RestaurantID != arg.RestaurantID {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return mi, nil
}

func (m *memStore) IncrementMenuItemOrderCount(ctx context.Context, arg database.IncrementMenuItemOrderCountParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrementErr != nil {
		return m.incrementErr
	}
	mi := m.menuItems[arg.ID]
	mi.OrderCount += arg.Delta
	m.menuItems[arg.ID] = mi
	return nil
}

func (m *memStore) MarkAllPaidOrderCountsProcessed(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, g := range m.groups {
		if g.PaymentStatus == enum.PaymentStatusPaid {
			g.OrderCountProcessed = true
			m.groups[id] = g
		}
	}
	return nil
}

func (m *memStore) RecomputeMenuItemOrderCounts(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[uuid.UUID]int32{}
	for _, o := range m.orders {
		if m.groups[o.OrderGroupID].PaymentStatus != enum.PaymentStatusPaid {
			continue
		}
		for _, it := range m.orderItems {
			if it.OrderID == o.ID {
				counts[it.MenuItemID] += it.Quantity
			}
		}
	}
	for id, mi := range m.menuItems {
		mi.OrderCount = counts[id]
		m.menuItems[id] = mi
	}
	return int64(len(m.menuItems)), nil
}

// --- Order groups ---

func (m *memStore) GetUnpaidOrderGroupByTable(ctx context.Context, tableID uuid.UUID) (database.OrderGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.TableID == tableID && g.PaymentStatus == enum.PaymentStatusUnpaid {
			return g, nil
		}
	}
	return database.OrderGroup{}, pgx.ErrNoRows
}

func (m *memStore) GetActiveOrderGroupByTable(ctx context.Context, tableID uuid.UUID) (database.OrderGroup, error) {
	return m.GetUnpaidOrderGroupByTable(ctx, tableID)
}

func (m *memStore) CreateOrderGroup(ctx context.Context, arg database.CreateOrderGroupParams) (database.OrderGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createGroupErr != nil {
		err := m.createGroupErr
		m.createGroupErr = nil
		return database.OrderGroup{}, err
	}
	for _, g := range m.groups {
		if g.TableID == arg.TableID && g.PaymentStatus == enum.PaymentStatusUnpaid {
			return database.OrderGroup{}, &pgconn.PgError{Code: "23505", ConstraintName: activeLedgerConstraint}
		}
	}
	g := database.OrderGroup{
		ID:            arg.ID,
		RestaurantID:  arg.RestaurantID,
		TableID:       arg.TableID,
		PaymentRef:    arg.PaymentRef,
		TotalCost:     makeNumeric("0"),
		PaymentStatus: enum.PaymentStatusUnpaid,
		CreatedAt:     time.Now(),
	}
	m.groups[g.ID] = g
	return g, nil
}

func (m *memStore) AddOrderGroupTotal(ctx context.Context, arg database.AddOrderGroupTotalParams) (database.OrderGroup, error) {
	if m.beforeAddTotal != nil {
		m.beforeAddTotal()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[arg.ID]
	if !ok || g.PaymentStatus != enum.PaymentStatusUnpaid {
		return database.OrderGroup{}, pgx.ErrNoRows
	}
	g.TotalCost = decimalToNumeric(numericToDecimal(g.TotalCost).Add(numericToDecimal(arg.Amount)))
	m.groups[g.ID] = g
	return g, nil
}

func (m *memStore) GetOrderGroup(ctx context.Context, arg database.GetOrderGroupParams) (database.OrderGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[arg.ID]
	if !ok || g.RestaurantID != arg.RestaurantID {
		return database.OrderGroup{}, pgx.ErrNoRows
	}
	return g, nil
}

func (m *memStore) GetOrderGroupForUpdate(ctx context.Context, id uuid.UUID) (database.OrderGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return database.OrderGroup{}, pgx.ErrNoRows
	}
	return g, nil
}

func (m *memStore) GetUnpaidOrderGroupByRefForUpdate(ctx context.Context, paymentRef string) (database.OrderGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.PaymentRef == paymentRef && g.PaymentStatus == enum.PaymentStatusUnpaid {
			return g, nil
		}
	}
	return database.OrderGroup{}, pgx.ErrNoRows
}

func (m *memStore) MarkOrderGroupPaid(ctx context.Context, arg database.MarkOrderGroupPaidParams) (database.OrderGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[arg.ID]
	if !ok || g.RestaurantID != arg.RestaurantID || g.PaymentStatus != enum.PaymentStatusUnpaid {
		return database.OrderGroup{}, pgx.ErrNoRows
	}
	g.PaymentStatus = enum.PaymentStatusPaid
	g.PaymentMethod = pgtype.Text{String: arg.PaymentMethod, Valid: true}
	g.PaymentDate = arg.PaymentDate
	m.groups[g.ID] = g
	return g, nil
}

func (m *memStore) ClaimOrderCountProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok || g.PaymentStatus != enum.PaymentStatusPaid || g.OrderCountProcessed {
		return false, nil
	}
	g.OrderCountProcessed = true
	m.groups[id] = g
	return true, nil
}

func (m *memStore) ListOrderGroups(ctx context.Context, arg database.ListOrderGroupsParams) ([]database.OrderGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.OrderGroup
	for _, g := range m.groups {
		if g.RestaurantID != arg.RestaurantID {
			continue
		}
		if arg.PaymentStatus.Valid && g.PaymentStatus != arg.PaymentStatus.String {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (m *memStore) ListPaidOrderGroupsWithoutInvoice(ctx context.Context) ([]database.OrderGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.OrderGroup
	for _, g := range m.groups {
		if g.PaymentStatus != enum.PaymentStatusPaid {
			continue
		}
		if _, ok := m.invoiceByGroup(g.ID); !ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memStore) AggregateOrderGroupItems(ctx context.Context, orderGroupID uuid.UUID) ([]database.AggregateOrderGroupItemsRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byItem := map[uuid.UUID]*database.AggregateOrderGroupItemsRow{}
	var order []uuid.UUID
	for _, o := range m.orders {
		if o.OrderGroupID != orderGroupID {
			continue
		}
		for _, it := range m.orderItems {
			if it.OrderID != o.ID {
				continue
			}
			row, ok := byItem[it.MenuItemID]
			if !ok {
				row = &database.AggregateOrderGroupItemsRow{
					MenuItemID: it.MenuItemID,
					Name:       m.menuItems[it.MenuItemID].Name,
					TotalCost:  makeNumeric("0"),
				}
				byItem[it.MenuItemID] = row
				order = append(order, it.MenuItemID)
			}
			row.Quantity += int64(it.Quantity)
			line := numericToDecimal(it.Price).Mul(decimal.NewFromInt32(it.Quantity))
			row.TotalCost = decimalToNumeric(numericToDecimal(row.TotalCost).Add(line))
		}
	}
	out := make([]database.AggregateOrderGroupItemsRow, 0, len(order))
	for _, id := range order {
		out = append(out, *byItem[id])
	}
	return out, nil
}

// --- Orders ---

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := database.Order{
		ID:           arg.ID,
		RestaurantID: arg.RestaurantID,
		TableID:      arg.TableID,
		OrderGroupID: arg.OrderGroupID,
		TotalCost:    arg.TotalCost,
		Notes:        arg.Notes,
		Status:       enum.OrderStatusPending,
		CreatedAt:    time.Now(),
	}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *memStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := database.OrderItem{
		ID:         arg.ID,
		OrderID:    arg.OrderID,
		MenuItemID: arg.MenuItemID,
		Quantity:   arg.Quantity,
		Price:      arg.Price,
	}
	m.orderItems = append(m.orderItems, it)
	return it, nil
}

func (m *memStore) ApproveOrder(ctx context.Context, arg database.ApproveOrderParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.orders {
		if o.ID == arg.ID && o.RestaurantID == arg.RestaurantID {
			m.orders[i].Status = enum.OrderStatusAccepted
			return m.orders[i], nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *memStore) withTable(o database.Order) database.OrderWithTable {
	return database.OrderWithTable{Order: o, TableName: m.tables[o.TableID].Name}
}

func (m *memStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.OrderWithTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.OrderWithTable
	for i := len(m.orders) - 1; i >= 0; i-- {
		o := m.orders[i]
		if o.RestaurantID != arg.RestaurantID {
			continue
		}
		if arg.Status.Valid && o.Status != arg.Status.String {
			continue
		}
		out = append(out, m.withTable(o))
	}
	return out, nil
}

func (m *memStore) ListOrdersByGroup(ctx context.Context, orderGroupID uuid.UUID) ([]database.OrderWithTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.OrderWithTable
	for _, o := range m.orders {
		if o.OrderGroupID == orderGroupID {
			out = append(out, m.withTable(o))
		}
	}
	return out, nil
}

func (m *memStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderItemsByOrderRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.ListOrderItemsByOrderRow
	for _, it := range m.orderItems {
		if it.OrderID == orderID {
			out = append(out, database.ListOrderItemsByOrderRow{
				OrderItem:    it,
				MenuItemName: m.menuItems[it.MenuItemID].Name,
			})
		}
	}
	return out, nil
}

// --- Restaurants, counters, invoices, transactions ---

func (m *memStore) GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.restaurants[id]
	if !ok {
		return database.Restaurant{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *memStore) NextCounterValue(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
	return m.counters[name], nil
}

func (m *memStore) invoiceByGroup(orderGroupID uuid.UUID) (database.Invoice, bool) {
	for _, inv := range m.invoices {
		if inv.OrderGroupID == orderGroupID {
			return inv, true
		}
	}
	return database.Invoice{}, false
}

func (m *memStore) GetInvoiceByOrderGroup(ctx context.Context, orderGroupID uuid.UUID) (database.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoiceByGroup(orderGroupID)
	if !ok {
		return database.Invoice{}, pgx.ErrNoRows
	}
	return inv, nil
}

func (m *memStore) CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error) {
	if m.beforeCreateInvoice != nil {
		m.beforeCreateInvoice()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createInvoiceErr != nil {
		return database.Invoice{}, m.createInvoiceErr
	}
	if _, ok := m.invoiceByGroup(arg.OrderGroupID); ok {
		return database.Invoice{}, &pgconn.PgError{Code: "23505", ConstraintName: invoiceOrderGroupConstraint}
	}
	inv := database.Invoice{
		ID:                arg.ID,
		InvoiceNumber:     arg.InvoiceNumber,
		OrderGroupID:      arg.OrderGroupID,
		RestaurantID:      arg.RestaurantID,
		TableID:           arg.TableID,
		TotalCost:         arg.TotalCost,
		PaymentMethod:     arg.PaymentMethod,
		PaymentDate:       arg.PaymentDate,
		RestaurantName:    arg.RestaurantName,
		RestaurantAddress: arg.RestaurantAddress,
		CreatedAt:         time.Now(),
	}
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *memStore) GetInvoice(ctx context.Context, arg database.GetInvoiceParams) (database.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[arg.ID]
	if !ok || inv.RestaurantID != arg.RestaurantID {
		return database.Invoice{}, pgx.ErrNoRows
	}
	return inv, nil
}

func (m *memStore) ListInvoices(ctx context.Context, arg database.ListInvoicesParams) ([]database.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Invoice
	for _, inv := range m.invoices {
		if inv.RestaurantID != arg.RestaurantID {
			continue
		}
		if arg.TableID.Valid && inv.TableID != uuid.UUID(arg.TableID.Bytes) {
			continue
		}
		if arg.StartDate.Valid && inv.PaymentDate.Before(arg.StartDate.Time) {
			continue
		}
		if arg.EndDate.Valid && !inv.PaymentDate.Before(arg.EndDate.Time) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	return out, nil
}

func (m *memStore) CreatePaymentTransaction(ctx context.Context, arg database.CreatePaymentTransactionParams) (database.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[arg.TransactionID]; ok {
		return database.PaymentTransaction{}, &pgconn.PgError{Code: "23505", ConstraintName: paymentTransactionConstraint}
	}
	pt := database.PaymentTransaction{
		TransactionID:   arg.TransactionID,
		OrderGroupID:    arg.OrderGroupID,
		Amount:          arg.Amount,
		AccountNumber:   arg.AccountNumber,
		Content:         arg.Content,
		TransactionDate: arg.TransactionDate,
		CreatedAt:       time.Now(),
	}
	m.transactions[pt.TransactionID] = pt
	return pt, nil
}

// --- Service wiring ---

type testEnv struct {
	store    *memStore
	db       *mockDB
	notifier *recordingNotifier
	tabs     *TabService
	invoices *InvoiceService
	settle   *SettlementService
	webhook  *Reconciler
	qr       *QRService
}

const testAccountNumber = "0123456789"

func newTestEnv() *testEnv {
	store := newMemStore()
	db := &mockDB{tx: &mockTx{}}
	n := &recordingNotifier{}

	invoices := NewInvoiceService(db, func(database.DBTX) InvoiceStore { return store })
	settle := NewSettlementService(db, func(database.DBTX) SettlementStore { return store }, invoices, n)
	return &testEnv{
		store:    store,
		db:       db,
		notifier: n,
		tabs:     NewTabService(db, func(database.DBTX) TabStore { return store }, n),
		invoices: invoices,
		settle:   settle,
		webhook:  NewReconciler(db, func(database.DBTX) ReconcileStore { return store }, settle, n, testAccountNumber),
		qr: NewQRService(store, QRConfig{
			BaseURL:       "https://qr.sepay.vn/img",
			AccountNumber: testAccountNumber,
			BankCode:      "MBBank",
		}),
	}
}
