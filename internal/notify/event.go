// Package notify carries settlement and ordering events from services to
// real-time subscribers. Publishing never blocks the caller and delivery is
// best-effort.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Event types pushed to websocket clients.
const (
	TypeNewOrder             = "new_order"
	TypeCustomerNotification = "customer_notification"
	TypeOrderGroupUpdated    = "order_group_updated"
	TypeTableStatusUpdated   = "table_status_updated"
	TypeInvoiceCreated       = "invoice_created"
	TypePaymentSuccess       = "payment_success"
	TypeErrorNotification    = "error_notification"
)

// error_type values carried by error notifications.
const (
	ErrorOrderGroupNotFound    = "OrderGroupNotFound"
	ErrorInvoiceCreationFailed = "InvoiceCreationFailed"
	ErrorGeneral               = "GeneralError"
	ErrorPaymentReference      = "PaymentReferenceNotFound"
	ErrorPaymentOrderGroup     = "PaymentOrderGroupNotFound"
	ErrorPaymentAmountMismatch = "PaymentAmountMismatch"
)

// customer_notification kinds.
const (
	CustomerOrderSubmitted = "order_submitted"
	CustomerOrderApproved  = "order_approved"
)

// RoomAll addresses every connected client.
const RoomAll = ""

// RoomRestaurant is the staff room of one restaurant.
func RoomRestaurant(id uuid.UUID) string { return "restaurant:" + id.String() }

// RoomTable is the customer room of one table.
func RoomTable(id uuid.UUID) string { return "table:" + id.String() }

// Event is a message addressed to one room.
type Event struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an event for room.
func NewEvent(eventType, room string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s payload: %v", eventType, err)
		data = []byte("null")
	}
	return Event{Type: eventType, Room: room, Payload: data}
}

// Notifier accepts events for asynchronous delivery.
type Notifier interface {
	Publish(e Event)
}

// Sink delivers an event to its subscribers.
type Sink interface {
	Deliver(ctx context.Context, e Event) error
}

// Discard drops every event.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// --- Payloads ---

type ErrorNotification struct {
	ErrorType string    `json:"error_type"`
	Message   string    `json:"message"`
	RelatedID string    `json:"related_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type CustomerNotification struct {
	Type         string    `json:"type"`
	Message      string    `json:"message"`
	OrderID      uuid.UUID `json:"order_id"`
	TableID      uuid.UUID `json:"table_id"`
	OrderGroupID uuid.UUID `json:"order_group_id"`
	Timestamp    time.Time `json:"timestamp"`
}

type TableStatus struct {
	TableID        uuid.UUID `json:"table_id"`
	Name           int32     `json:"name"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status"`
	Timestamp      time.Time `json:"timestamp"`
}

type PaymentSuccess struct {
	OrderGroupID  uuid.UUID `json:"order_group_id"`
	TableID       uuid.UUID `json:"table_id"`
	TableName     int32     `json:"table_name"`
	Amount        string    `json:"amount"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}
