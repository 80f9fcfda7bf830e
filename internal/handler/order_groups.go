package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/middleware"
	"github.com/dinetab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OrderGroupReader defines the read methods needed by order group handlers.
// Satisfied by *service.TabService.
type OrderGroupReader interface {
	ListOrderGroups(ctx context.Context, restaurantID uuid.UUID, paymentStatus string) ([]service.OrderGroupDetail, error)
	GetOrderGroup(ctx context.Context, restaurantID, orderGroupID uuid.UUID) (*service.OrderGroupDetail, error)
	GetOrderGroupByTableName(ctx context.Context, restaurantID uuid.UUID, name int32) (*service.OrderGroupDetail, error)
}

// Settler settles an order group. Satisfied by *service.SettlementService.
type Settler interface {
	Settle(ctx context.Context, restaurantID, orderGroupID uuid.UUID, method string) (*service.SettlementResult, error)
}

// QRCreator builds payment QR codes. Satisfied by *service.QRService.
type QRCreator interface {
	CreatePaymentQR(ctx context.Context, restaurantID, orderGroupID uuid.UUID) (*service.PaymentQR, error)
}

// OrderGroupHandler handles order group (tab) endpoints.
type OrderGroupHandler struct {
	reader  OrderGroupReader
	settler Settler
	qr      QRCreator
}

// NewOrderGroupHandler creates a new OrderGroupHandler.
func NewOrderGroupHandler(reader OrderGroupReader, settler Settler, qr QRCreator) *OrderGroupHandler {
	return &OrderGroupHandler{reader: reader, settler: settler, qr: qr}
}

// RegisterRoutes registers order group endpoints.
// Expected to be mounted inside an authenticated subrouter: /order-groups
func (h *OrderGroupHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/table/{name}", h.GetByTable)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/pay", h.Pay)
	r.Post("/{id}/create-qr", h.CreateQR)
}

// --- Request / Response types ---

type payRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type orderGroupResponse struct {
	ID            uuid.UUID                `json:"id"`
	RestaurantID  uuid.UUID                `json:"restaurant_id"`
	TableID       uuid.UUID                `json:"table_id"`
	TableName     int32                    `json:"table_name"`
	PaymentRef    string                   `json:"payment_ref"`
	TotalCost     string                   `json:"total_cost"`
	PaymentStatus string                   `json:"payment_status"`
	PaymentMethod *string                  `json:"payment_method"`
	PaymentDate   *time.Time               `json:"payment_date"`
	CreatedAt     time.Time                `json:"created_at"`
	Orders        []orderResponse          `json:"orders,omitempty"`
	Items         []aggregatedItemResponse `json:"items,omitempty"`
}

type aggregatedItemResponse struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	TotalCost string    `json:"total_cost"`
}

type settlementResponse struct {
	OrderGroup orderGroupResponse `json:"order_group"`
	Table      *tableResponse     `json:"table"`
	Invoice    *invoiceResponse   `json:"invoice"`
}

type qrResponse struct {
	OrderGroupID uuid.UUID `json:"order_group_id"`
	QRCodeURL    string    `json:"qr_code_url"`
	Amount       string    `json:"amount"`
	Memo         string    `json:"memo"`
}

// --- Handlers ---

// List handles GET /order-groups?payment_status=.
func (h *OrderGroupHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	groups, err := h.reader.ListOrderGroups(r.Context(), claims.RestaurantID, r.URL.Query().Get("payment_status"))
	if err != nil {
		writeServiceError(w, "list order groups", err)
		return
	}

	resp := make([]orderGroupResponse, len(groups))
	for i, g := range groups {
		resp[i] = toOrderGroupDetailResponse(g)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order_groups": resp})
}

// Get handles GET /order-groups/{id}.
func (h *OrderGroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, ok := parseOrderGroupID(w, r)
	if !ok {
		return
	}

	detail, err := h.reader.GetOrderGroup(r.Context(), claims.RestaurantID, id)
	if err != nil {
		writeServiceError(w, "get order group", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order_group": toOrderGroupDetailResponse(*detail)})
}

// GetByTable handles GET /order-groups/table/{name}, the open tab of a table
// looked up by its number.
func (h *OrderGroupHandler) GetByTable(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	name, err := strconv.ParseInt(chi.URLParam(r, "name"), 10, 32)
	if err != nil || name < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table name", "code": "INVALID_TABLE_NAME"})
		return
	}

	detail, err := h.reader.GetOrderGroupByTableName(r.Context(), claims.RestaurantID, int32(name))
	if err != nil {
		writeServiceError(w, "get order group by table", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order_group": toOrderGroupDetailResponse(*detail)})
}

// Pay handles PUT /order-groups/{id}/pay. The body is optional; the
// payment method defaults to CASH.
func (h *OrderGroupHandler) Pay(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, ok := parseOrderGroupID(w, r)
	if !ok {
		return
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.settler.Settle(r.Context(), claims.RestaurantID, id, req.PaymentMethod)
	if result == nil {
		writeServiceErrorStatus(w, "settle order group", err, alreadyPaidAsBadRequest(err))
		return
	}
	if err != nil {
		// Paid either way. Only a missing invoice is surfaced to the caller.
		if errors.Is(err, service.ErrInvoiceFailed) {
			writeServiceError(w, "finalize order group", err)
			return
		}
		log.Printf("WARN: finalize order group %s: %v", id, err)
	}

	writeJSON(w, http.StatusOK, toSettlementResponse(result))
}

// CreateQR handles POST /order-groups/{id}/create-qr.
func (h *OrderGroupHandler) CreateQR(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, ok := parseOrderGroupID(w, r)
	if !ok {
		return
	}

	qr, err := h.qr.CreatePaymentQR(r.Context(), claims.RestaurantID, id)
	if err != nil {
		writeServiceErrorStatus(w, "create payment qr", err, alreadyPaidAsBadRequest(err))
		return
	}

	writeJSON(w, http.StatusOK, qrResponse{
		OrderGroupID: qr.OrderGroupID,
		QRCodeURL:    qr.QRCodeURL,
		Amount:       qr.Amount.StringFixed(2),
		Memo:         qr.Memo,
	})
}

// --- Helpers ---

func parseOrderGroupID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order group ID", "code": "INVALID_ORDER_GROUP_ID"})
		return uuid.Nil, false
	}
	return id, true
}

// alreadyPaidAsBadRequest keeps the 400 clients of the payment endpoints
// expect for an already-paid tab.
func alreadyPaidAsBadRequest(err error) int {
	if errors.Is(err, service.ErrAlreadyPaid) {
		return http.StatusBadRequest
	}
	return statusOf(err)
}

func toOrderGroupResponse(g database.OrderGroup) orderGroupResponse {
	resp := orderGroupResponse{
		ID:            g.ID,
		RestaurantID:  g.RestaurantID,
		TableID:       g.TableID,
		PaymentRef:    g.PaymentRef,
		TotalCost:     numericToString(g.TotalCost),
		PaymentStatus: g.PaymentStatus,
		CreatedAt:     g.CreatedAt,
	}
	if g.PaymentMethod.Valid {
		resp.PaymentMethod = &g.PaymentMethod.String
	}
	if g.PaymentDate.Valid {
		resp.PaymentDate = &g.PaymentDate.Time
	}
	return resp
}

func toOrderGroupDetailResponse(d service.OrderGroupDetail) orderGroupResponse {
	resp := toOrderGroupResponse(d.OrderGroup)
	resp.TableName = d.TableName
	resp.Orders = make([]orderResponse, len(d.Orders))
	for i, o := range d.Orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	resp.Items = make([]aggregatedItemResponse, len(d.Items))
	for i, it := range d.Items {
		resp.Items[i] = aggregatedItemResponse{
			ItemID:    it.MenuItemID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			TotalCost: numericToString(it.TotalCost),
		}
	}
	return resp
}

func toSettlementResponse(res *service.SettlementResult) settlementResponse {
	resp := settlementResponse{OrderGroup: toOrderGroupResponse(res.OrderGroup)}
	if res.Table != nil {
		t := toTableResponse(*res.Table)
		resp.Table = &t
		resp.OrderGroup.TableName = res.Table.Name
	}
	if res.Invoice != nil {
		inv := toInvoiceResponse(*res.Invoice)
		resp.Invoice = &inv
	}
	return resp
}
