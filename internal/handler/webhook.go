package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dinetab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// PaymentReconciler matches bank transfers to order groups.
// Satisfied by *service.Reconciler.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, n service.PaymentNotification) (*service.SettlementResult, error)
}

// WebhookHandler receives payment gateway (SePay) transfer callbacks.
type WebhookHandler struct {
	reconciler PaymentReconciler
	loc        *time.Location
}

// NewWebhookHandler creates a new WebhookHandler. The gateway reports
// transaction dates as local wall time in loc.
func NewWebhookHandler(reconciler PaymentReconciler, loc *time.Location) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, loc: loc}
}

// RegisterRoutes registers the webhook endpoint.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook/payment", h.Payment)
}

const gatewayTimeLayout = "2006-01-02 15:04:05"

type paymentWebhookRequest struct {
	ID              gatewayID       `json:"id"`
	TransferAmount  decimal.Decimal `json:"transferAmount"`
	TransactionDate string          `json:"transactionDate"`
	AccountNumber   string          `json:"accountNumber"`
	TransferType    string          `json:"transferType"`
	Content         string          `json:"content"`
}

// gatewayID accepts the transaction id as a JSON number or string.
type gatewayID string

func (g *gatewayID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = gatewayID(s)
		return nil
	}
	if string(b) == "null" {
		*g = ""
		return nil
	}
	*g = gatewayID(b)
	return nil
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Payment handles POST /webhook/payment. Any reconciliation failure answers
// 400 so the gateway does not retry a transfer that can never match; a
// failure after the payment was recorded answers 500.
func (h *WebhookHandler) Payment(w http.ResponseWriter, r *http.Request) {
	var req paymentWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Code: "INVALID_BODY", Error: "invalid request body"})
		return
	}

	n := service.PaymentNotification{
		TransactionID: strings.TrimSpace(string(req.ID)),
		Amount:        req.TransferAmount,
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		Direction:     strings.ToLower(strings.TrimSpace(req.TransferType)),
		Memo:          req.Content,
	}
	if req.TransactionDate != "" {
		ts, err := time.ParseInLocation(gatewayTimeLayout, req.TransactionDate, h.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, webhookResponse{Code: "INVALID_DATE", Error: "invalid transactionDate"})
			return
		}
		n.Timestamp = ts
	}

	result, err := h.reconciler.Reconcile(r.Context(), n)
	if err != nil && result != nil && !errors.Is(err, service.ErrInvoiceFailed) {
		// Recorded and invoiced; a follow-up step failed and was announced.
		log.Printf("WARN: finalize transaction %s: %v", n.TransactionID, err)
		err = nil
	}
	if err != nil {
		if errors.Is(err, service.ErrInvoiceFailed) || service.KindOf(err) == 0 {
			log.Printf("ERROR: reconcile transaction %s: %v", n.TransactionID, err)
			writeJSON(w, http.StatusInternalServerError, webhookResponse{Code: service.ReasonOf(err), Error: "internal server error"})
			return
		}
		log.Printf("WARN: rejected transaction %s: %v", n.TransactionID, err)
		writeJSON(w, http.StatusBadRequest, webhookResponse{Code: service.ReasonOf(err), Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Success: true})
}
