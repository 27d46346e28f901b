package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// BookingDeposit is the monetary obligation created when a client accepts a quote.
type BookingDeposit struct {
	ID            int64           `json:"id"`
	QuoteID       int64           `json:"quote_id"`
	ClientID      string          `json:"client_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
}

// PaymentReference is the m_payment_id sent to the gateway for this deposit.
func (d *BookingDeposit) PaymentReference() string {
	return strconv.FormatInt(d.ID, 10)
}

// ParsePaymentReference turns an m_payment_id back into a deposit id.
func ParsePaymentReference(ref string) (int64, error) {
	return strconv.ParseInt(ref, 10, 64)
}
