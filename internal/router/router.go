package router

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dinetab/api/internal/config"
	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/enum"
	"github.com/dinetab/api/internal/handler"
	mw "github.com/dinetab/api/internal/middleware"
	"github.com/dinetab/api/internal/notify"
	"github.com/dinetab/api/internal/service"
	"github.com/dinetab/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Services bundles the domain services behind the HTTP surface so commands
// outside the server (cmd/tabctl) can build the same graph.
type Services struct {
	Tabs       *service.TabService
	Invoices   *service.InvoiceService
	Settlement *service.SettlementService
	Reconciler *service.Reconciler
	QR         *service.QRService
}

// NewServices wires the services over pool. Events go to notifier.
func NewServices(cfg *config.Config, queries *database.Queries, pool service.DB, notifier notify.Notifier) *Services {
	invoices := service.NewInvoiceService(pool, func(db database.DBTX) service.InvoiceStore {
		return database.New(db)
	})
	settlement := service.NewSettlementService(pool, func(db database.DBTX) service.SettlementStore {
		return database.New(db)
	}, invoices, notifier)

	return &Services{
		Tabs: service.NewTabService(pool, func(db database.DBTX) service.TabStore {
			return database.New(db)
		}, notifier),
		Invoices:   invoices,
		Settlement: settlement,
		Reconciler: service.NewReconciler(pool, func(db database.DBTX) service.ReconcileStore {
			return database.New(db)
		}, settlement, notifier, cfg.Payment.AccountNumber),
		QR: service.NewQRService(queries, service.QRConfig{
			BaseURL:       cfg.Payment.QRBaseURL,
			AccountNumber: cfg.Payment.AccountNumber,
			BankCode:      cfg.Payment.BankCode,
		}),
	}
}

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, notifier notify.Notifier) (chi.Router, error) {
	loc, err := time.LoadLocation(cfg.Payment.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", cfg.Payment.TimeZone, err)
	}
	svc := NewServices(cfg, queries, pool, notifier)

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Customers order from the table device without logging in.
	orderHandler := handler.NewOrderHandler(svc.Tabs)
	orderHandler.RegisterPublicRoutes(r)
	tableHandler := handler.NewTableHandler(queries, svc.Tabs)
	tableHandler.RegisterPublicRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAPIKey(cfg.WebhookAPIKey))
		handler.NewWebhookHandler(svc.Reconciler, loc).RegisterRoutes(r)
	})

	// WebSocket routes (staff auth via query param)
	r.Get("/ws/staff", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeStaff(hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/tables/{tid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeTable(hub, queries, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleStaff, enum.UserRoleAdmin))

			r.Route("/orders", orderHandler.RegisterRoutes)

			orderGroupHandler := handler.NewOrderGroupHandler(svc.Tabs, svc.Settlement, svc.QR)
			r.Route("/order-groups", orderGroupHandler.RegisterRoutes)

			invoiceHandler := handler.NewInvoiceHandler(svc.Invoices, loc)
			r.Route("/invoices", invoiceHandler.RegisterRoutes)

			r.Route("/tables", tableHandler.RegisterRoutes)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			reportsHandler := handler.NewReportsHandler(queries, loc)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r, nil
}
