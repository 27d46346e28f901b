package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quote-booking/models"
	"quote-booking/monitoring"
)

const (
	returnPath = "payment/return"
	cancelPath = "payment/cancel"
)

// Classify maps a navigation URL from the payment surface to an outcome.
// Success is checked first.
func Classify(rawURL string) models.CallbackOutcome {
	switch {
	case strings.Contains(rawURL, returnPath):
		return models.CallbackOutcomeSuccess
	case strings.Contains(rawURL, cancelPath):
		return models.CallbackOutcomeCancel
	default:
		return models.CallbackOutcomeOther
	}
}

// PaymentFlow is the part of the booking flow the interceptor drives.
type PaymentFlow interface {
	ConfirmPayment(ctx context.Context, depositID int64) error
	CancelPayment(ctx context.Context, depositID int64) error
}

// Interceptor turns navigation events of one payment session into at most
// one ConfirmPayment and one CancelPayment call.
type Interceptor struct {
	flow     PaymentFlow
	sessions SessionStore
}

func NewInterceptor(flow PaymentFlow, sessions SessionStore) *Interceptor {
	return &Interceptor{flow: flow, sessions: sessions}
}

// Observe classifies rawURL and dispatches it for the session. Other URLs
// are ignored without touching the store. A success seen after a cancel
// still confirms; anything seen after a success is a no-op.
func (i *Interceptor) Observe(ctx context.Context, sessionID, rawURL string) (models.CallbackOutcome, error) {
	outcome := Classify(rawURL)
	monitoring.TrackCallback(string(outcome))
	if outcome == models.CallbackOutcomeOther {
		return outcome, nil
	}

	session, err := i.sessions.Get(ctx, sessionID)
	if err != nil {
		return outcome, fmt.Errorf("observe %s: %w", sessionID, err)
	}

	switch outcome {
	case models.CallbackOutcomeSuccess:
		return outcome, i.dispatch(ctx, session, outcome, i.flow.ConfirmPayment)
	default:
		if session.Outcome == models.CallbackOutcomeSuccess {
			return outcome, nil
		}
		return outcome, i.dispatch(ctx, session, outcome, i.flow.CancelPayment)
	}
}

func (i *Interceptor) dispatch(ctx context.Context, session *models.PaymentSession, outcome models.CallbackOutcome, call func(context.Context, int64) error) error {
	claimed, err := i.sessions.ClaimOutcome(ctx, session.ID, outcome)
	if err != nil {
		return err
	}
	if !claimed {
		slog.Debug("callback already dispatched", "session_id", session.ID, "outcome", outcome)
		return nil
	}

	if err := call(ctx, session.DepositID); err != nil {
		// Let the next observation retry; both calls are idempotent.
		if relErr := i.sessions.ReleaseOutcome(ctx, session.ID, outcome); relErr != nil {
			slog.Warn("release session outcome", "session_id", session.ID, "error", relErr)
		}
		return err
	}
	slog.Info("callback dispatched", "session_id", session.ID, "deposit_id", session.DepositID, "outcome", outcome)
	return nil
}
