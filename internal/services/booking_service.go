package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quote-booking/internal/lifecycle"
	"quote-booking/internal/services/gateway"
	"quote-booking/internal/status"
	"quote-booking/models"
	"quote-booking/monitoring"
	"quote-booking/utils"
)

// AcceptResult is what the client needs to open the payment surface.
type AcceptResult struct {
	RedirectURL string `json:"redirect_url"`
	DepositID   int64  `json:"deposit_id"`
	SessionID   string `json:"session_id"`
}

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Checked int     `json:"checked"`
	Settled int     `json:"settled"`
	Failed  []int64 `json:"failed,omitempty"`
}

// BookingService chains quote transitions with deposit writes and gateway
// sessions. Every operation is safe to retry after a partial failure.
type BookingService struct {
	store    Store
	gateway  gateway.Gateway
	sessions SessionStore
	recorder Recorder
	notifier Notifier
	now      func() time.Time
}

func NewBookingService(store Store, gw gateway.Gateway, sessions SessionStore, recorder Recorder, notifier Notifier) *BookingService {
	return &BookingService{
		store:    store,
		gateway:  gw,
		sessions: sessions,
		recorder: recorder,
		notifier: notifier,
		now:      time.Now,
	}
}

// AcceptQuote moves a quoted request to accepted, creates its pending deposit
// and returns a signed gateway redirect. Concurrent accepts of the same quote
// race on the status write: one wins and the others get an
// InvalidTransitionError. A later call for an already accepted quote reuses
// the open deposit.
func (s *BookingService) AcceptQuote(ctx context.Context, quoteID int64, payer models.Payer) (*AcceptResult, error) {
	if err := validatePayer(payer); err != nil {
		return nil, err
	}

	q, err := s.store.GetQuoteRequest(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("accept quote %d: %w", quoteID, err)
	}
	if q.Status == models.QuoteStatusAccepted {
		return s.InitiatePayment(ctx, quoteID, payer)
	}

	rev, err := s.store.GetLatestSentRevision(ctx, quoteID)
	if err != nil && !errors.Is(err, status.ErrNotFound) {
		return nil, fmt.Errorf("accept quote %d: %w", quoteID, err)
	}

	next, err := lifecycle.Transition(q.Status, lifecycle.EventClientAccepts, lifecycle.Facts{QuoteID: quoteID, SentRevision: rev})
	if err != nil {
		monitoring.TrackTransition(string(lifecycle.EventClientAccepts), "rejected")
		return nil, err
	}
	amount := rev.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, &status.InvalidAmountError{Amount: rev.Amount.String()}
	}

	if err := applyStatus(ctx, s.store, s.recorder, q, lifecycle.EventClientAccepts, next); err != nil {
		return nil, err
	}

	deposit, err := s.store.CreateBookingDeposit(ctx, &models.BookingDeposit{
		QuoteID:  quoteID,
		ClientID: q.ClientID,
		Amount:   amount,
	})
	if err != nil {
		return nil, fmt.Errorf("accept quote %d: create deposit: %w", quoteID, err)
	}
	slog.Info("deposit created", "quote_id", quoteID, "deposit_id", deposit.ID, "amount", deposit.Amount.StringFixed(2))

	q.Status = next
	return s.openSession(ctx, q, deposit, payer)
}

// InitiatePayment opens a new payment session for an accepted or finalised
// quote. The pending deposit is reused; a new one is created only when the
// previous attempt failed.
func (s *BookingService) InitiatePayment(ctx context.Context, quoteID int64, payer models.Payer) (*AcceptResult, error) {
	if err := validatePayer(payer); err != nil {
		return nil, err
	}

	q, err := s.store.GetQuoteRequest(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("initiate payment %d: %w", quoteID, err)
	}

	deposit, err := s.store.FindOpenDeposit(ctx, quoteID)
	if errors.Is(err, status.ErrNotFound) {
		deposit, err = s.createRetryDeposit(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	return s.openSession(ctx, q, deposit, payer)
}

func (s *BookingService) createRetryDeposit(ctx context.Context, q *models.QuoteRequest) (*models.BookingDeposit, error) {
	if _, err := lifecycle.Transition(q.Status, lifecycle.EventPaymentInitiated, lifecycle.Facts{
		QuoteID: q.ID,
		Deposit: &models.BookingDeposit{QuoteID: q.ID, PaymentStatus: models.PaymentStatusPending},
	}); err != nil {
		return nil, err
	}
	if q.QuoteAmount == nil {
		return nil, &status.InvalidAmountError{Amount: ""}
	}

	deposit, err := s.store.CreateBookingDeposit(ctx, &models.BookingDeposit{
		QuoteID:  q.ID,
		ClientID: q.ClientID,
		Amount:   q.QuoteAmount.Round(2),
	})
	if errors.Is(err, status.ErrStatusConflict) {
		// Another attempt created it first, or the deposit is already paid.
		deposit, err = s.store.FindOpenDeposit(ctx, q.ID)
		if errors.Is(err, status.ErrNotFound) {
			return nil, &status.InvalidTransitionError{
				QuoteID: q.ID,
				From:    string(q.Status),
				Event:   string(lifecycle.EventPaymentInitiated),
				Reason:  "deposit already settled",
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("initiate payment %d: create deposit: %w", q.ID, err)
	}
	slog.Info("retry deposit created", "quote_id", q.ID, "deposit_id", deposit.ID)
	return deposit, nil
}

func (s *BookingService) openSession(ctx context.Context, q *models.QuoteRequest, deposit *models.BookingDeposit, payer models.Payer) (*AcceptResult, error) {
	if _, err := lifecycle.Transition(q.Status, lifecycle.EventPaymentInitiated, lifecycle.Facts{QuoteID: q.ID, Deposit: deposit}); err != nil {
		return nil, err
	}

	session, err := s.gateway.NewSession(&models.PaymentIntent{
		Amount:          deposit.Amount,
		ItemName:        fmt.Sprintf("Deposit for quote #%d", q.ID),
		ItemDescription: q.EventType,
		Payer:           payer,
		PaymentID:       deposit.PaymentReference(),
	})
	if err != nil {
		return nil, fmt.Errorf("open payment session: deposit %d: %w", deposit.ID, err)
	}

	id, err := utils.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("open payment session: %w", err)
	}
	session.ID = id
	session.DepositID = deposit.ID
	session.CreatedAt = s.now()

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("open payment session: deposit %d: %w", deposit.ID, err)
	}
	slog.Info("payment session opened", "quote_id", q.ID, "deposit_id", deposit.ID, "session_id", session.ID)

	return &AcceptResult{
		RedirectURL: session.RedirectURL,
		DepositID:   deposit.ID,
		SessionID:   session.ID,
	}, nil
}

// ConfirmPayment marks the deposit paid, then books its quote. A second call
// for the same deposit is a no-op. When only the first write lands the
// result is a *status.SettlementInconsistencyError.
func (s *BookingService) ConfirmPayment(ctx context.Context, depositID int64) error {
	deposit, err := s.store.GetBookingDeposit(ctx, depositID)
	if err != nil {
		return fmt.Errorf("confirm payment %d: %w", depositID, err)
	}

	switch deposit.PaymentStatus {
	case models.PaymentStatusPending:
		paid, err := s.store.UpdateBookingDepositStatus(ctx, depositID, models.PaymentStatusPending, models.PaymentStatusPaid)
		if errors.Is(err, status.ErrStatusConflict) {
			paid, err = s.store.GetBookingDeposit(ctx, depositID)
			if err == nil && paid.PaymentStatus != models.PaymentStatusPaid {
				return fmt.Errorf("confirm payment %d: deposit is %s: %w", depositID, paid.PaymentStatus, status.ErrFailedPayment)
			}
		}
		if err != nil {
			return fmt.Errorf("confirm payment %d: %w", depositID, err)
		}
		deposit = paid
		monitoring.TrackPaymentOutcome("confirmed")
		slog.Info("deposit paid", "deposit_id", depositID, "quote_id", deposit.QuoteID)

	case models.PaymentStatusPaid:

	default:
		return fmt.Errorf("confirm payment %d: deposit is %s: %w", depositID, deposit.PaymentStatus, status.ErrFailedPayment)
	}

	return s.settle(ctx, deposit)
}

// SettleQuote books the quote of an already paid deposit. It is the second
// half of ConfirmPayment and never touches the deposit.
func (s *BookingService) SettleQuote(ctx context.Context, depositID int64) error {
	deposit, err := s.store.GetBookingDeposit(ctx, depositID)
	if err != nil {
		return fmt.Errorf("settle quote: deposit %d: %w", depositID, err)
	}
	if deposit.PaymentStatus != models.PaymentStatusPaid {
		return fmt.Errorf("settle quote: deposit %d is %s: %w", depositID, deposit.PaymentStatus, status.ErrFailedPayment)
	}
	return s.settle(ctx, deposit)
}

func (s *BookingService) settle(ctx context.Context, deposit *models.BookingDeposit) error {
	err := s.bookQuote(ctx, deposit)
	if err != nil {
		monitoring.TrackSettlementInconsistency()
		slog.Error("settlement inconsistency", "deposit_id", deposit.ID, "quote_id", deposit.QuoteID, "error", err)
		return &status.SettlementInconsistencyError{DepositID: deposit.ID, QuoteID: deposit.QuoteID, Err: err}
	}

	if err := s.store.MarkDepositSettled(ctx, deposit.ID); err != nil {
		slog.Warn("mark deposit settled", "deposit_id", deposit.ID, "error", err)
	}
	return nil
}

func (s *BookingService) bookQuote(ctx context.Context, deposit *models.BookingDeposit) error {
	q, err := s.store.GetQuoteRequest(ctx, deposit.QuoteID)
	if err != nil {
		return err
	}
	if q.Status == models.QuoteStatusBooked {
		return nil
	}

	next, err := lifecycle.Transition(q.Status, lifecycle.EventPaymentConfirmed, lifecycle.Facts{QuoteID: q.ID, Deposit: deposit})
	if err != nil {
		monitoring.TrackTransition(string(lifecycle.EventPaymentConfirmed), "rejected")
		return err
	}

	if _, err := s.store.UpdateQuoteRequestStatus(ctx, q.ID, q.Status, next); err != nil {
		if !errors.Is(err, status.ErrStatusConflict) {
			return err
		}
		current, getErr := s.store.GetQuoteRequest(ctx, q.ID)
		if getErr != nil || current.Status != models.QuoteStatusBooked {
			return err
		}
		return nil
	}
	monitoring.TrackTransition(string(lifecycle.EventPaymentConfirmed), "applied")
	s.record(ctx, q.ID, lifecycle.EventPaymentConfirmed, q.Status, next, deposit.ID)
	slog.Info("quote booked", "quote_id", q.ID, "deposit_id", deposit.ID)

	s.publish(ctx, models.BookingEventConfirmed, q, deposit)
	return nil
}

func (s *BookingService) GetDeposit(ctx context.Context, depositID int64) (*models.BookingDeposit, error) {
	return s.store.GetBookingDeposit(ctx, depositID)
}

// CancelPayment handles a user leaving the payment surface. The deposit
// stays pending so the payment can be retried.
func (s *BookingService) CancelPayment(ctx context.Context, depositID int64) error {
	deposit, err := s.store.GetBookingDeposit(ctx, depositID)
	if err != nil {
		return fmt.Errorf("cancel payment %d: %w", depositID, err)
	}
	if deposit.PaymentStatus != models.PaymentStatusPending {
		return nil
	}

	monitoring.TrackPaymentOutcome("cancelled")
	slog.Info("payment cancelled", "deposit_id", depositID, "quote_id", deposit.QuoteID)

	q, err := s.store.GetQuoteRequest(ctx, deposit.QuoteID)
	if err != nil {
		slog.Warn("cancel payment: load quote", "quote_id", deposit.QuoteID, "error", err)
		return nil
	}
	s.publish(ctx, models.BookingEventPaymentCancelled, q, deposit)
	return nil
}

// FailPayment records an explicit gateway failure. A paid deposit is never
// downgraded.
func (s *BookingService) FailPayment(ctx context.Context, depositID int64) error {
	deposit, err := s.store.GetBookingDeposit(ctx, depositID)
	if err != nil {
		return fmt.Errorf("fail payment %d: %w", depositID, err)
	}

	switch deposit.PaymentStatus {
	case models.PaymentStatusFailed:
		return nil
	case models.PaymentStatusPaid:
		return fmt.Errorf("fail payment %d: deposit already paid: %w", depositID, status.ErrStatusConflict)
	}

	failed, err := s.store.UpdateBookingDepositStatus(ctx, depositID, models.PaymentStatusPending, models.PaymentStatusFailed)
	if err != nil {
		return fmt.Errorf("fail payment %d: %w", depositID, err)
	}
	monitoring.TrackPaymentOutcome("failed")
	slog.Info("payment failed", "deposit_id", depositID, "quote_id", failed.QuoteID)

	if q, err := s.store.GetQuoteRequest(ctx, failed.QuoteID); err == nil {
		s.publish(ctx, models.BookingEventPaymentFailed, q, failed)
	}
	return nil
}

// Reconcile books the quote of every paid deposit that is still waiting
// for it. Failures are reported per deposit and left for the next pass.
func (s *BookingService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	ids, err := s.store.ListUnsettledDeposits(ctx)
	if err != nil {
		monitoring.TrackReconcile("error")
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	report := &ReconcileReport{Checked: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.SettleQuote(ctx, id); err != nil {
			slog.Error("reconcile deposit", "deposit_id", id, "error", err)
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Settled++
	}

	if len(report.Failed) > 0 {
		monitoring.TrackReconcile("partial")
	} else {
		monitoring.TrackReconcile("ok")
	}
	return report, nil
}

func (s *BookingService) record(ctx context.Context, quoteID int64, event lifecycle.Event, from, to models.QuoteStatus, depositID int64) {
	recordTransition(ctx, s.recorder, &models.QuoteTransition{
		QuoteID:    quoteID,
		Event:      string(event),
		From:       string(from),
		To:         string(to),
		DepositID:  depositID,
		OccurredAt: s.now(),
	})
}

func (s *BookingService) publish(ctx context.Context, eventType string, q *models.QuoteRequest, deposit *models.BookingDeposit) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Publish(ctx, &models.BookingEvent{
		Type:       eventType,
		QuoteID:    q.ID,
		DepositID:  deposit.ID,
		ClientID:   q.ClientID,
		ListingID:  q.ListingID,
		Amount:     deposit.Amount.StringFixed(2),
		OccurredAt: s.now(),
	})
	if err != nil {
		slog.Warn("publish booking event", "type", eventType, "quote_id", q.ID, "error", err)
	}
}

func validatePayer(p models.Payer) error {
	if strings.TrimSpace(p.Email) == "" {
		return &status.InvalidPayerError{Field: "email"}
	}
	return nil
}
