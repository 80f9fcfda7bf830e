package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const memoPrefix = "Thanh toan don "

// Banks commonly collapse spaces and change case in transfer descriptions.
var memoPattern = regexp.MustCompile(`(?i)thanh\s*toan\s*don\s*([0-9a-f]{24})`)

// PaymentRef derives the 24-hex reference customers quote in transfer memos.
func PaymentRef(id uuid.UUID) string {
	return hex.EncodeToString(id[:12])
}

// PaymentMemo is the transfer description for an order group reference.
func PaymentMemo(ref string) string {
	return memoPrefix + ref
}

// ParsePaymentMemo extracts the order group reference from a transfer memo.
func ParsePaymentMemo(memo string) (string, bool) {
	m := memoPattern.FindStringSubmatch(memo)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// QRConfig locates the receiving account in the QR image service.
type QRConfig struct {
	BaseURL       string
	AccountNumber string
	BankCode      string
}

// QRStore defines the DB methods needed to build payment QR codes.
// Satisfied by *database.Queries.
type QRStore interface {
	GetOrderGroup(ctx context.Context, arg database.GetOrderGroupParams) (database.OrderGroup, error)
}

// PaymentQR is a bank-transfer QR code for one order group.
type PaymentQR struct {
	OrderGroupID uuid.UUID       `json:"order_group_id"`
	QRCodeURL    string          `json:"qr_code_url"`
	Amount       decimal.Decimal `json:"amount"`
	Memo         string          `json:"memo"`
}

// QRService builds VietQR deep links for unpaid order groups.
type QRService struct {
	store QRStore
	cfg   QRConfig
}

func NewQRService(store QRStore, cfg QRConfig) *QRService {
	return &QRService{store: store, cfg: cfg}
}

// CreatePaymentQR returns a QR link that pre-fills the account, the exact
// amount due and the memo the webhook reconciler expects. The amount is the
// tab total unrounded, since Reconcile only accepts an exact match.
func (s *QRService) CreatePaymentQR(ctx context.Context, restaurantID, orderGroupID uuid.UUID) (*PaymentQR, error) {
	group, err := s.store.GetOrderGroup(ctx, database.GetOrderGroupParams{
		ID:           orderGroupID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderGroupNotFound
		}
		return nil, fmt.Errorf("get order group: %w", err)
	}
	if group.PaymentStatus == enum.PaymentStatusPaid {
		return nil, ErrAlreadyPaid
	}

	amount := numericToDecimal(group.TotalCost)
	memo := PaymentMemo(group.PaymentRef)
	q := url.Values{}
	q.Set("acc", s.cfg.AccountNumber)
	q.Set("bank", s.cfg.BankCode)
	q.Set("amount", amount.String())
	q.Set("des", memo)

	return &PaymentQR{
		OrderGroupID: group.ID,
		QRCodeURL:    s.cfg.BaseURL + "?" + q.Encode(),
		Amount:       amount,
		Memo:         memo,
	}, nil
}
