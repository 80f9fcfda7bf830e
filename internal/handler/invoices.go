package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/middleware"
	"github.com/dinetab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// InvoiceReader defines the service methods needed by invoice handlers.
// Satisfied by *service.InvoiceService.
type InvoiceReader interface {
	GetInvoice(ctx context.Context, restaurantID, id uuid.UUID) (database.Invoice, error)
	GetInvoiceByOrderGroup(ctx context.Context, restaurantID, orderGroupID uuid.UUID) (database.Invoice, error)
	ListInvoices(ctx context.Context, f service.InvoiceFilter) ([]database.Invoice, error)
}

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	svc InvoiceReader
	loc *time.Location
}

// NewInvoiceHandler creates a new InvoiceHandler. loc is the restaurant
// time zone used to interpret payment_date filters.
func NewInvoiceHandler(svc InvoiceReader, loc *time.Location) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, loc: loc}
}

// RegisterRoutes registers invoice endpoints.
// Expected to be mounted inside an authenticated subrouter: /invoices
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/order-group/{ogid}", h.GetByOrderGroup)
	r.Get("/{id}", h.Get)
}

type invoiceResponse struct {
	ID                uuid.UUID `json:"id"`
	InvoiceNumber     string    `json:"invoice_number"`
	OrderGroupID      uuid.UUID `json:"order_group_id"`
	TableID           uuid.UUID `json:"table_id"`
	TotalCost         string    `json:"total_cost"`
	PaymentMethod     string    `json:"payment_method"`
	PaymentDate       time.Time `json:"payment_date"`
	RestaurantName    string    `json:"restaurant_name"`
	RestaurantAddress string    `json:"restaurant_address"`
	CreatedAt         time.Time `json:"created_at"`
}

// List handles GET /invoices?table_id=&payment_date=YYYY-MM-DD.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	f := service.InvoiceFilter{RestaurantID: claims.RestaurantID}
	q := r.URL.Query()
	if s := q.Get("table_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id", "code": "INVALID_TABLE_ID"})
			return
		}
		f.TableID = id
	}
	if s := q.Get("payment_date"); s != "" {
		day, err := time.ParseInLocation("2006-01-02", s, h.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment_date format, expected YYYY-MM-DD", "code": "INVALID_DATE"})
			return
		}
		f.From = day
		f.To = day.AddDate(0, 0, 1)
	}

	invoices, err := h.svc.ListInvoices(r.Context(), f)
	if err != nil {
		writeServiceError(w, "list invoices", err)
		return
	}

	resp := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		resp[i] = toInvoiceResponse(inv)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invoices": resp})
}

// Get handles GET /invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid invoice ID", "code": "INVALID_INVOICE_ID"})
		return
	}

	inv, err := h.svc.GetInvoice(r.Context(), claims.RestaurantID, id)
	if err != nil {
		writeServiceError(w, "get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invoice": toInvoiceResponse(inv)})
}

// GetByOrderGroup handles GET /invoices/order-group/{ogid}.
func (h *InvoiceHandler) GetByOrderGroup(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "ogid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order group ID", "code": "INVALID_ORDER_GROUP_ID"})
		return
	}

	inv, err := h.svc.GetInvoiceByOrderGroup(r.Context(), claims.RestaurantID, id)
	if err != nil {
		writeServiceError(w, "get invoice by order group", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invoice": toInvoiceResponse(inv)})
}

func toInvoiceResponse(inv database.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:                inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		OrderGroupID:      inv.OrderGroupID,
		TableID:           inv.TableID,
		TotalCost:         numericToString(inv.TotalCost),
		PaymentMethod:     inv.PaymentMethod,
		PaymentDate:       inv.PaymentDate,
		RestaurantName:    inv.RestaurantName,
		RestaurantAddress: inv.RestaurantAddress,
		CreatedAt:         inv.CreatedAt,
	}
}
