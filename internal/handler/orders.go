package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/enum"
	"github.com/dinetab/api/internal/middleware"
	"github.com/dinetab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TabServicer defines the service methods needed by order handlers.
// Satisfied by *service.TabService; narrow interface for testability.
type TabServicer interface {
	SubmitOrder(ctx context.Context, req service.SubmitOrderRequest) (*service.SubmitResult, error)
	ApproveOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, restaurantID uuid.UUID, status string) ([]service.OrderResult, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc TabServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc TabServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterPublicRoutes registers the customer-facing order endpoint. Tables
// order without logging in; the table id in the body scopes the order.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/orders/add", h.Submit)
}

// RegisterRoutes registers staff order endpoints.
// Expected to be mounted inside an authenticated subrouter: /orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listByStatus(""))
	r.Get("/pending", h.listByStatus(enum.OrderStatusPending))
	r.Get("/approved", h.listByStatus(enum.OrderStatusAccepted))
	r.Put("/{id}/approve", h.Approve)
}

// --- Request / Response types ---

type submitOrderRequest struct {
	TableID string                   `json:"table_id"`
	Notes   string                   `json:"notes"`
	Items   []submitOrderItemRequest `json:"items"`
}

type submitOrderItemRequest struct {
	ItemID   string   `json:"item_id"`
	Quantity quantity `json:"quantity"`
}

// maxQuantity bounds a single order line.
const maxQuantity = 1000

// quantity accepts a JSON number or numeric string. A missing, null,
// non-numeric, zero or negative value counts as 1. Whole numbers up to
// maxQuantity are kept as given. Fractions and larger numbers decode as
// invalidQuantity so a customer is never charged for a different amount.
type quantity int32

const invalidQuantity quantity = -1

func (q *quantity) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	n, err := strconv.ParseFloat(s, 64)
	switch {
	case err != nil || n < 1:
		*q = 1
	case n > maxQuantity || n != math.Trunc(n):
		*q = invalidQuantity
	default:
		*q = quantity(n)
	}
	return nil
}

type orderResponse struct {
	ID           uuid.UUID           `json:"id"`
	RestaurantID uuid.UUID           `json:"restaurant_id"`
	TableID      uuid.UUID           `json:"table_id"`
	TableName    int32               `json:"table_name"`
	OrderGroupID uuid.UUID           `json:"order_group_id"`
	TotalCost    string              `json:"total_cost"`
	Notes        string              `json:"notes"`
	Status       string              `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Items        []orderLineResponse `json:"items"`
}

type orderLineResponse struct {
	ItemID   uuid.UUID `json:"item_id"`
	Name     string    `json:"name"`
	Quantity int32     `json:"quantity"`
	Price    string    `json:"price"`
}

// --- Handlers ---

// Submit handles POST /orders/add.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.TableID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required", "code": "TABLE_ID_REQUIRED"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required", "code": "ITEMS_REQUIRED"})
		return
	}

	items := make([]service.SubmitOrderItem, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity == invalidQuantity {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("quantity must be a whole number from 1 to %d", maxQuantity),
				"code":  "INVALID_QUANTITY",
			})
			return
		}
		q := int32(item.Quantity)
		if q == 0 {
			q = 1
		}
		items[i] = service.SubmitOrderItem{ItemID: item.ItemID, Quantity: q}
	}

	result, err := h.svc.SubmitOrder(r.Context(), service.SubmitOrderRequest{
		TableID: req.TableID,
		Notes:   req.Notes,
		Items:   items,
	})
	if err != nil {
		writeServiceError(w, "submit order", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"order":           toOrderResponse(result.OrderResult),
		"new_order_group": result.NewOrderGroup,
	})
}

func (h *OrderHandler) listByStatus(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}

		orders, err := h.svc.ListOrders(r.Context(), claims.RestaurantID, status)
		if err != nil {
			writeServiceError(w, "list orders", err)
			return
		}

		resp := make([]orderResponse, len(orders))
		for i, o := range orders {
			resp[i] = toOrderResponse(o)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
	}
}

// Approve handles PUT /orders/{id}/approve.
func (h *OrderHandler) Approve(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID", "code": "INVALID_ORDER_ID"})
		return
	}

	order, err := h.svc.ApproveOrder(r.Context(), claims.RestaurantID, orderID)
	if err != nil {
		writeServiceError(w, "approve order", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"order": dbOrderToResponse(order)})
}

// --- Helpers ---

func toOrderResponse(o service.OrderResult) orderResponse {
	resp := dbOrderToResponse(o.Order)
	resp.TableName = o.TableName
	resp.Items = make([]orderLineResponse, len(o.Items))
	for i, line := range o.Items {
		resp.Items[i] = orderLineResponse{
			ItemID:   line.MenuItemID,
			Name:     line.Name,
			Quantity: line.Quantity,
			Price:    line.Price.StringFixed(2),
		}
	}
	return resp
}

func dbOrderToResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		RestaurantID: o.RestaurantID,
		TableID:      o.TableID,
		OrderGroupID: o.OrderGroupID,
		TotalCost:    numericToString(o.TotalCost),
		Notes:        o.Notes,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		Items:        []orderLineResponse{},
	}
}
