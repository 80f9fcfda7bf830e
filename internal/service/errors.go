package service

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies an Error for transport mapping.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindNotFound
	KindForbidden
	KindConflict
	KindUpstream
)

// Error is a domain failure with a stable, machine-checkable reason code.
type Error struct {
	Kind   Kind
	Reason string
	msg    string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, reason, msg string) *Error {
	return &Error{Kind: kind, Reason: reason, msg: msg}
}

// Errors returned by the ordering and settlement services.
var (
	ErrEmptyItems           = newError(KindInvalidArgument, "ITEMS_REQUIRED", "items are required")
	ErrInvalidTableID       = newError(KindInvalidArgument, "INVALID_TABLE_ID", "invalid table_id")
	ErrInvalidItemID        = newError(KindInvalidArgument, "INVALID_ITEM_ID", "invalid item_id")
	ErrNegativePrice        = newError(KindInvalidArgument, "NEGATIVE_PRICE", "menu item price must not be negative")
	ErrInvalidPaymentMethod = newError(KindInvalidArgument, "INVALID_PAYMENT_METHOD", "payment_method must be CASH or QR")
	ErrInvalidPaymentStatus = newError(KindInvalidArgument, "INVALID_PAYMENT_STATUS", "payment_status must be UNPAID or PAID")
	ErrInvalidOrderStatus   = newError(KindInvalidArgument, "INVALID_ORDER_STATUS", "status must be PENDING or ACCEPTED")

	ErrTableNotFound      = newError(KindNotFound, "TABLE_NOT_FOUND", "table not found")
	ErrMenuItemNotFound   = newError(KindNotFound, "ITEM_NOT_FOUND", "menu item not found")
	ErrOrderNotFound      = newError(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrOrderGroupNotFound = newError(KindNotFound, "ORDER_GROUP_NOT_FOUND", "order group not found")
	ErrNoActiveOrderGroup = newError(KindNotFound, "NO_ACTIVE_ORDER_GROUP", "table has no unpaid order group")
	ErrRestaurantNotFound = newError(KindNotFound, "RESTAURANT_NOT_FOUND", "restaurant not found")
	ErrInvoiceNotFound    = newError(KindNotFound, "INVOICE_NOT_FOUND", "invoice not found")

	ErrAlreadyPaid      = newError(KindConflict, "ALREADY_PAID", "order group is already paid")
	ErrOrderGroupClosed = newError(KindConflict, "ORDER_GROUP_CLOSED", "order group was settled before the order was placed")
	ErrOrderGroupUnpaid = newError(KindConflict, "ORDER_GROUP_UNPAID", "order group is not paid")

	ErrInvoiceFailed = newError(KindUpstream, "INVOICE_CREATION_FAILED", "payment recorded but invoice creation failed")
)

// Errors returned by the payment webhook reconciler.
var (
	ErrMissingFields             = newError(KindInvalidArgument, "MISSING_FIELDS", "missing required payment fields")
	ErrNotInbound                = newError(KindInvalidArgument, "NOT_INBOUND", "only inbound transfers are reconciled")
	ErrAccountMismatch           = newError(KindConflict, "ACCOUNT_MISMATCH", "payment was not made to the receiving account")
	ErrReferenceNotFound         = newError(KindNotFound, "REFERENCE_NOT_FOUND", "payment memo carries no order reference")
	ErrPaymentOrderGroupNotFound = newError(KindNotFound, "ORDER_GROUP_NOT_PENDING", "no unpaid order group matches the payment reference")
	ErrAmountMismatch            = newError(KindConflict, "AMOUNT_MISMATCH", "payment amount does not match order total")
	ErrDuplicateTransaction      = newError(KindConflict, "DUPLICATE_TRANSACTION", "transaction was already recorded")
)

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// ReasonOf returns the reason code of the first *Error in err's chain.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// isUniqueViolation reports a Postgres unique violation (23505), optionally
// restricted to one constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}
