package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"quote-booking/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// Actions tell the client what to do after a failed request.
const (
	actionRetryPayment   = "retry_payment"
	actionRefreshQuote   = "refresh_quote"
	actionFixInput       = "fix_input"
	actionContactSupport = "contact_support"
)

// apiError maps service errors to API errors carrying a user action.
func apiError(err error) error {
	var (
		transition *status.InvalidTransitionError
		amount     *status.InvalidAmountError
		payer      *status.InvalidPayerError
		settlement *status.SettlementInconsistencyError
	)

	switch {
	case errors.As(err, &transition):
		return apis.NewApiError(http.StatusConflict, transition.Error(), map[string]any{
			"action": actionRefreshQuote,
			"status": transition.From,
		})
	case errors.As(err, &amount):
		return apis.NewApiError(http.StatusBadRequest, amount.Error(), map[string]any{"action": actionFixInput})
	case errors.As(err, &payer):
		return apis.NewApiError(http.StatusBadRequest, payer.Error(), map[string]any{"action": actionFixInput})
	case errors.As(err, &settlement):
		return apis.NewApiError(http.StatusServiceUnavailable, "Payment received, booking is being finalised.", map[string]any{
			"action": actionContactSupport,
		})
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("Not found", nil)
	case errors.Is(err, status.ErrSessionClosed):
		return apis.NewApiError(http.StatusGone, "Payment session expired", map[string]any{"action": actionRetryPayment})
	case errors.Is(err, status.ErrFailedPayment):
		return apis.NewApiError(http.StatusPaymentRequired, "Payment failed", map[string]any{"action": actionRetryPayment})
	case errors.Is(err, status.ErrStatusConflict):
		return apis.NewApiError(http.StatusConflict, "Changed concurrently", map[string]any{"action": actionRefreshQuote})
	default:
		slog.Error("unhandled service error", "error", err)
		return apis.NewInternalServerError("internal error", nil)
	}
}

func pathID(e *core.RequestEvent, name string) (int64, error) {
	id, err := strconv.ParseInt(e.Request.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apis.NewBadRequestError("Invalid "+name, err)
	}
	return id, nil
}
