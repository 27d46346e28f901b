package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"quote-booking/internal/services"
	"quote-booking/internal/status"
	"quote-booking/models"
	"quote-booking/monitoring"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type BookingAPI interface {
	AcceptQuote(ctx context.Context, quoteID int64, payer models.Payer) (*services.AcceptResult, error)
	InitiatePayment(ctx context.Context, quoteID int64, payer models.Payer) (*services.AcceptResult, error)
	ConfirmPayment(ctx context.Context, depositID int64) error
	CancelPayment(ctx context.Context, depositID int64) error
	FailPayment(ctx context.Context, depositID int64) error
	GetDeposit(ctx context.Context, depositID int64) (*models.BookingDeposit, error)
	Reconcile(ctx context.Context) (*services.ReconcileReport, error)
}

type QuoteReader interface {
	GetQuote(ctx context.Context, id int64) (*models.QuoteRequest, error)
}

type SessionReader interface {
	Get(ctx context.Context, id string) (*models.PaymentSession, error)
}

type NavigationObserver interface {
	Observe(ctx context.Context, sessionID, rawURL string) (models.CallbackOutcome, error)
}

// NotificationVerifier checks server-to-server gateway notifications.
type NotificationVerifier interface {
	VerifyNotification(form url.Values) (*models.GatewayNotification, error)
	ValidateNotification(ctx context.Context, form url.Values) error
}

type PaymentHandler struct {
	booking     BookingAPI
	quotes      QuoteReader
	sessions    SessionReader
	navigation  NavigationObserver
	verifier    NotificationVerifier
	validateITN bool
}

func NewPaymentHandler(booking BookingAPI, quotes QuoteReader, sessions SessionReader, navigation NavigationObserver, verifier NotificationVerifier, validateITN bool) *PaymentHandler {
	return &PaymentHandler{
		booking:     booking,
		quotes:      quotes,
		sessions:    sessions,
		navigation:  navigation,
		verifier:    verifier,
		validateITN: validateITN,
	}
}

type payerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (r payerRequest) payer() models.Payer {
	return models.Payer{FirstName: r.FirstName, LastName: r.LastName, Email: r.Email}
}

// AcceptQuote - Client accepts the sent revision and gets a payment redirect
func (h *PaymentHandler) AcceptQuote(e *core.RequestEvent) error {
	return h.startPayment(e, h.booking.AcceptQuote)
}

// InitiatePayment - Retry payment for an accepted quote
func (h *PaymentHandler) InitiatePayment(e *core.RequestEvent) error {
	return h.startPayment(e, h.booking.InitiatePayment)
}

func (h *PaymentHandler) startPayment(e *core.RequestEvent, start func(context.Context, int64, models.Payer) (*services.AcceptResult, error)) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	quoteID, err := pathID(e, "quoteId")
	if err != nil {
		return err
	}

	var req payerRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Email == "" {
		req.Email = e.Auth.Email()
	}

	ctx := e.Request.Context()
	q, err := h.quotes.GetQuote(ctx, quoteID)
	if err != nil {
		return apiError(err)
	}
	if q.ClientID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	result, err := start(ctx, quoteID, req.payer())
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, result)
}

// ObserveNavigation - The embedded payment surface reports a URL change
func (h *PaymentHandler) ObserveNavigation(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	sessionID := e.Request.PathValue("sessionId")

	var req struct {
		URL string `json:"url"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()

	// Other URLs never reach the store, so only payment outcomes need an owner check.
	if services.Classify(req.URL) != models.CallbackOutcomeOther {
		if err := h.checkSessionOwner(ctx, sessionID, e.Auth.Id); err != nil {
			return err
		}
	}

	outcome, err := h.navigation.Observe(ctx, sessionID, req.URL)
	var settlement *status.SettlementInconsistencyError
	switch {
	case errors.As(err, &settlement):
		// The money is in; the quote write is retried by reconciliation.
		return e.JSON(http.StatusAccepted, map[string]any{"outcome": outcome, "booking": "processing"})
	case err != nil:
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"outcome": outcome})
}

func (h *PaymentHandler) checkSessionOwner(ctx context.Context, sessionID, clientID string) error {
	session, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		return apiError(err)
	}
	deposit, err := h.booking.GetDeposit(ctx, session.DepositID)
	if err != nil {
		return apiError(err)
	}
	if deposit.ClientID != clientID {
		return apis.NewForbiddenError("Access denied", nil)
	}
	return nil
}

// CancelPayment - Client closes the payment surface without paying
func (h *PaymentHandler) CancelPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	depositID, err := pathID(e, "depositId")
	if err != nil {
		return err
	}

	ctx := e.Request.Context()
	deposit, err := h.booking.GetDeposit(ctx, depositID)
	if err != nil {
		return apiError(err)
	}
	if deposit.ClientID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	if err := h.booking.CancelPayment(ctx, depositID); err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"message": "Payment cancelled",
		"action":  actionRetryPayment,
	})
}

// Notify - Gateway server-to-server payment notification
func (h *PaymentHandler) Notify(e *core.RequestEvent) error {
	if err := e.Request.ParseForm(); err != nil {
		return apis.NewBadRequestError("Invalid form", err)
	}
	form := e.Request.PostForm
	ctx := e.Request.Context()

	n, err := h.verifier.VerifyNotification(form)
	if err != nil {
		slog.Warn("payment notification rejected", "error", err)
		return apis.NewBadRequestError("Invalid notification", nil)
	}

	if h.validateITN {
		start := time.Now()
		err := h.verifier.ValidateNotification(ctx, form)
		monitoring.ObserveGatewayValidate(validateResult(err), time.Since(start))
		if err != nil {
			slog.Error("payment notification not validated", "m_payment_id", n.PaymentID, "error", err)
			return apis.NewBadRequestError("Notification not validated", nil)
		}
	}

	depositID, err := models.ParsePaymentReference(n.PaymentID)
	if err != nil {
		return apis.NewBadRequestError("Unknown payment reference", nil)
	}
	deposit, err := h.booking.GetDeposit(ctx, depositID)
	if err != nil {
		return apiError(err)
	}

	switch n.Status {
	case models.GatewayStatusComplete:
		if !n.AmountGross.Equal(deposit.Amount.Round(2)) {
			slog.Error("payment notification amount mismatch",
				"deposit_id", depositID,
				"expected", deposit.Amount.StringFixed(2),
				"amount_gross", n.AmountGross.StringFixed(2),
			)
			return apis.NewBadRequestError("Amount mismatch", nil)
		}
		err = h.booking.ConfirmPayment(ctx, depositID)
	case models.GatewayStatusFailed:
		err = h.booking.FailPayment(ctx, depositID)
	case models.GatewayStatusCancelled:
		err = h.booking.CancelPayment(ctx, depositID)
	default:
		slog.Info("payment notification ignored", "deposit_id", depositID, "payment_status", n.Status)
	}

	var settlement *status.SettlementInconsistencyError
	if err != nil && !errors.As(err, &settlement) {
		return apiError(err)
	}

	slog.Info("payment notification handled", "deposit_id", depositID, "payment_status", n.Status, "pf_payment_id", n.GatewayPaymentID)
	return e.NoContent(http.StatusOK)
}

// PaymentReturn and PaymentCancel are the gateway landing pages. The embedded
// surface intercepts them; a plain browser just sees a short message.
func (h *PaymentHandler) PaymentReturn(e *core.RequestEvent) error {
	return e.HTML(http.StatusOK, "<p>Payment received. You can close this window.</p>")
}

func (h *PaymentHandler) PaymentCancel(e *core.RequestEvent) error {
	return e.HTML(http.StatusOK, "<p>Payment cancelled. You can try again from your quote.</p>")
}

func validateResult(err error) string {
	if err != nil {
		return "error"
	}
	return "valid"
}
