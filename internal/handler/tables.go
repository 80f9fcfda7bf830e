package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/middleware"
	"github.com/dinetab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context, restaurantID uuid.UUID) ([]database.Table, error)
}

// TableTabReader reads a table's open tab. Satisfied by *service.TabService.
type TableTabReader interface {
	GetTableTab(ctx context.Context, tableID uuid.UUID) (*service.TableTab, error)
}

// TableHandler serves the staff table board and the customer tab view.
type TableHandler struct {
	store TableStore
	tabs  TableTabReader
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore, tabs TableTabReader) *TableHandler {
	return &TableHandler{store: store, tabs: tabs}
}

// RegisterPublicRoutes registers the customer-facing table endpoint. The
// table id printed on the table's QR code is the only credential.
func (h *TableHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/tables/{tid}/orders", h.Orders)
}

// RegisterRoutes registers table endpoints.
// Expected to be mounted inside an authenticated subrouter: /tables
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type tableResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Name                int32      `json:"name"`
	Status              string     `json:"status"`
	CurrentOrderGroupID *uuid.UUID `json:"current_order_group_id"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// List handles GET /tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	tables, err := h.store.ListTables(r.Context(), claims.RestaurantID)
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": resp})
}

// Orders handles GET /tables/{tid}/orders: the table's running tab as its
// customers see it.
func (h *TableHandler) Orders(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID", "code": "INVALID_TABLE_ID"})
		return
	}

	tab, err := h.tabs.GetTableTab(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, "get table tab", err)
		return
	}

	resp := map[string]interface{}{
		"table":       toTableResponse(tab.Table),
		"order_group": nil,
		"orders":      []orderResponse{},
	}
	if tab.OrderGroup != nil {
		g := toOrderGroupDetailResponse(*tab.OrderGroup)
		resp["orders"] = g.Orders
		g.Orders = nil
		resp["order_group"] = g
	}
	writeJSON(w, http.StatusOK, resp)
}

func toTableResponse(t database.Table) tableResponse {
	resp := tableResponse{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.Status,
		UpdatedAt: t.UpdatedAt,
	}
	if t.CurrentOrderGroupID.Valid {
		id := uuid.UUID(t.CurrentOrderGroupID.Bytes)
		resp.CurrentOrderGroupID = &id
	}
	return resp
}
