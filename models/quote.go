package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuoteStatus string

const (
	QuoteStatusPending       QuoteStatus = "pending"
	QuoteStatusQuoted        QuoteStatus = "quoted"
	QuoteStatusAmended       QuoteStatus = "amended"
	QuoteStatusAccepted      QuoteStatus = "accepted"
	QuoteStatusRejected      QuoteStatus = "rejected"
	QuoteStatusFinalised     QuoteStatus = "finalised"
	QuoteStatusBooked        QuoteStatus = "booked"
	QuoteStatusTourRequested QuoteStatus = "tour_requested"
)

func (s QuoteStatus) String() string {
	return string(s)
}

func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusQuoted, QuoteStatusAmended, QuoteStatusAccepted,
		QuoteStatusRejected, QuoteStatusFinalised, QuoteStatusBooked, QuoteStatusTourRequested:
		return true
	default:
		return false
	}
}

// CarriesAmount reports whether a quote in this status may hold a quoted amount.
func (s QuoteStatus) CarriesAmount() bool {
	switch s {
	case QuoteStatusQuoted, QuoteStatusAmended, QuoteStatusAccepted, QuoteStatusFinalised, QuoteStatusBooked:
		return true
	default:
		return false
	}
}

func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteStatusBooked || s == QuoteStatusRejected
}

// AllQuoteStatuses returns every known quote status.
func AllQuoteStatuses() []QuoteStatus {
	return []QuoteStatus{
		QuoteStatusPending,
		QuoteStatusQuoted,
		QuoteStatusAmended,
		QuoteStatusAccepted,
		QuoteStatusRejected,
		QuoteStatusFinalised,
		QuoteStatusBooked,
		QuoteStatusTourRequested,
	}
}

// QuoteRequest is a client's ask for pricing against a vendor or venue listing.
type QuoteRequest struct {
	ID          int64            `json:"id"`
	ClientID    string           `json:"client_id"`
	ListingID   string           `json:"listing_id"`
	Status      QuoteStatus      `json:"status"`
	EventType   string           `json:"event_type"`
	EventDate   string           `json:"event_date"`
	Details     string           `json:"details"`
	Budget      string           `json:"budget,omitempty"`
	QuoteAmount *decimal.Decimal `json:"quote_amount,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type RevisionStatus string

const (
	RevisionStatusDraft      RevisionStatus = "draft"
	RevisionStatusSent       RevisionStatus = "sent"
	RevisionStatusSuperseded RevisionStatus = "superseded"
)

// QuoteRevision is one vendor-issued proposal against a QuoteRequest.
// Revisions are immutable once they leave the draft status.
type QuoteRevision struct {
	QuoteID     int64           `json:"quote_id"`
	Number      int64           `json:"number"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Status      RevisionStatus  `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// QuoteTransition is one applied lifecycle step, kept for audit.
type QuoteTransition struct {
	QuoteID    int64     `json:"quote_id" db:"quote_id"`
	Event      string    `json:"event" db:"event"`
	From       string    `json:"from_status" db:"from_status"`
	To         string    `json:"to_status" db:"to_status"`
	DepositID  int64     `json:"deposit_id,omitempty" db:"deposit_id"`
	Actor      string    `json:"actor,omitempty" db:"actor"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}
