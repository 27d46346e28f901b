package status

import (
	"errors"
	"fmt"
)

var (
	ErrFailedPayment  = errors.New("payment: payment failed")
	ErrNotFound       = errors.New("store: record not found")
	ErrStatusConflict = errors.New("store: status changed concurrently")
	ErrSessionClosed  = errors.New("payment session: session not found or expired")
)

// InvalidTransitionError is returned when a lifecycle guard fails. Callers
// should re-fetch the quote and show its current status.
type InvalidTransitionError struct {
	QuoteID int64
	From    string
	Event   string
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition: %s from %q", e.Event, e.From)
	if e.QuoteID != 0 {
		msg = fmt.Sprintf("%s (quote=%d)", msg, e.QuoteID)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

type InvalidAmountError struct {
	Amount string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount: %q must be greater than zero", e.Amount)
}

type InvalidPayerError struct {
	Field string
}

func (e *InvalidPayerError) Error() string {
	return fmt.Sprintf("invalid payer: %s is required", e.Field)
}

// SigningError means the signature input was malformed. It never comes from
// valid input.
type SigningError struct {
	Key    string
	Reason string
}

func (e *SigningError) Error() string {
	if e.Key == "" {
		return "signing: " + e.Reason
	}
	return fmt.Sprintf("signing: parameter %q: %s", e.Key, e.Reason)
}

// SettlementInconsistencyError reports a deposit already marked paid whose
// quote could not be moved to booked. Only the quote write is retried.
type SettlementInconsistencyError struct {
	DepositID int64
	QuoteID   int64
	Err       error
}

func (e *SettlementInconsistencyError) Error() string {
	return fmt.Sprintf("settlement inconsistency: deposit %d is paid but quote %d is not booked: %v", e.DepositID, e.QuoteID, e.Err)
}

func (e *SettlementInconsistencyError) Unwrap() error {
	return e.Err
}
