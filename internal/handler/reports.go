package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	ListTopMenuItems(ctx context.Context, arg database.ListTopMenuItemsParams) ([]database.MenuItem, error)
	GetDailyRevenue(ctx context.Context, arg database.GetDailyRevenueParams) ([]database.GetDailyRevenueRow, error)
}

// ReportsHandler handles admin analytics endpoints.
type ReportsHandler struct {
	store ReportsStore
	loc   *time.Location
}

// NewReportsHandler creates a new ReportsHandler. Days are bucketed in loc.
func NewReportsHandler(store ReportsStore, loc *time.Location) *ReportsHandler {
	return &ReportsHandler{store: store, loc: loc}
}

// RegisterRoutes registers report endpoints.
// Expected to be mounted inside an admin-only subrouter: /reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/top-items", h.TopItems)
	r.Get("/revenue", h.Revenue)
}

// --- Response types ---

type topItemResponse struct {
	ItemID     uuid.UUID `json:"item_id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
	OrderCount int32     `json:"order_count"`
}

type dailyRevenueResponse struct {
	Date         string `json:"date"`
	InvoiceCount int64  `json:"invoice_count"`
	Revenue      string `json:"revenue"`
}

// --- Handlers ---

// TopItems returns the restaurant's most ordered menu items.
func (h *ReportsHandler) TopItems(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	items, err := h.store.ListTopMenuItems(r.Context(), database.ListTopMenuItemsParams{
		RestaurantID: claims.RestaurantID,
		Limit:        int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: list top menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]topItemResponse, len(items))
	for i, it := range items {
		resp[i] = topItemResponse{
			ItemID:     it.ID,
			Name:       it.Name,
			Price:      numericToString(it.Price),
			OrderCount: it.OrderCount,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Revenue returns per-day invoice totals for a given date range.
func (h *ReportsHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	startDate, endDate, err := parseDateRange(r, h.loc, time.Now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDailyRevenue(r.Context(), database.GetDailyRevenueParams{
		RestaurantID: claims.RestaurantID,
		StartDate:    pgtype.Timestamptz{Time: startDate, Valid: true},
		EndDate:      pgtype.Timestamptz{Time: endDate, Valid: true},
		TimeZone:     h.loc.String(),
	})
	if err != nil {
		log.Printf("ERROR: get daily revenue: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailyRevenueResponse, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.Day.Valid {
			date = row.Day.Time.Format("2006-01-02")
		}
		resp[i] = dailyRevenueResponse{
			Date:         date,
			InvoiceCount: row.InvoiceCount,
			Revenue:      numericToString(row.Revenue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange reads start_date and end_date (YYYY-MM-DD, inclusive) in loc
// and returns a half-open [start, end) range. Default: the last 30 days.
func parseDateRange(r *http.Request, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	startDate := today.AddDate(0, 0, -30)
	endDate := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return startDate, endDate, nil
}
