package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CallbackOutcome string

const (
	CallbackOutcomeSuccess CallbackOutcome = "success"
	CallbackOutcomeCancel  CallbackOutcome = "cancel"
	CallbackOutcomeOther   CallbackOutcome = "other"
)

// PaymentSession correlates a BookingDeposit with one gateway redirect.
// It lives only as long as the embedded payment surface does.
type PaymentSession struct {
	ID          string          `json:"session_id"`
	DepositID   int64           `json:"deposit_id"`
	PaymentID   string          `json:"m_payment_id"`
	RedirectURL string          `json:"redirect_url"`
	Signature   string          `json:"signature"`
	Outcome     CallbackOutcome `json:"outcome,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Payer identifies who pays a deposit at the gateway.
type Payer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// BookingEvent is published to clients and downstream consumers whenever
// the payment side of a quote moves.
type BookingEvent struct {
	Type       string    `json:"type"` // booking_confirmed, payment_cancelled, payment_failed
	QuoteID    int64     `json:"quote_id"`
	DepositID  int64     `json:"deposit_id"`
	ClientID   string    `json:"client_id"`
	ListingID  string    `json:"listing_id,omitempty"`
	Amount     string    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	BookingEventConfirmed        = "booking_confirmed"
	BookingEventPaymentCancelled = "payment_cancelled"
	BookingEventPaymentFailed    = "payment_failed"
)

// PaymentIntent is what the gateway client needs to open a payment.
type PaymentIntent struct {
	Amount          decimal.Decimal
	ItemName        string
	ItemDescription string
	Payer           Payer
	// PaymentID is the m_payment_id; it must be unique per deposit attempt.
	PaymentID string
}

// GatewayNotification is a verified server-to-server payment notification.
type GatewayNotification struct {
	PaymentID        string          `json:"m_payment_id"`
	GatewayPaymentID string          `json:"pf_payment_id"`
	Status           string          `json:"payment_status"` // COMPLETE, FAILED, CANCELLED
	AmountGross      decimal.Decimal `json:"amount_gross"`
	MerchantID       string          `json:"merchant_id"`
}

const (
	GatewayStatusComplete  = "COMPLETE"
	GatewayStatusFailed    = "FAILED"
	GatewayStatusCancelled = "CANCELLED"
)
