package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending  = "PENDING"
	OrderStatusAccepted = "ACCEPTED"
)

const (
	PaymentStatusUnpaid = "UNPAID"
	PaymentStatusPaid   = "PAID"
)

const (
	TableStatusFree     = "FREE"
	TableStatusOccupied = "OCCUPIED"
)

const (
	PaymentMethodCash = "CASH"
	PaymentMethodQR   = "QR"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleStaff = "STAFF"
	UserRoleAdmin = "ADMIN"
)

// ── Group B: Configurable labels (no DB constraint) ──

// CounterInvoiceNumber is the counters row backing invoice numbering.
const CounterInvoiceNumber = "invoice_number"

// Webhook transfer directions as sent by the bank gateway.
const (
	TransferTypeIn  = "in"
	TransferTypeOut = "out"
)
