package handlers

import (
	"context"
	"net/http"

	"quote-booking/internal/services"
	"quote-booking/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type Reconciler interface {
	Reconcile(ctx context.Context) (*services.ReconcileReport, error)
	GetDeposit(ctx context.Context, depositID int64) (*models.BookingDeposit, error)
}

type AdminHandler struct {
	booking Reconciler
}

func NewAdminHandler(booking Reconciler) *AdminHandler {
	return &AdminHandler{booking: booking}
}

// Reconcile - Book every paid deposit whose quote is still waiting
func (h *AdminHandler) Reconcile(e *core.RequestEvent) error {
	if !e.HasSuperuserAuth() {
		return apis.NewForbiddenError("Superuser access required", nil)
	}

	report, err := h.booking.Reconcile(e.Request.Context())
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, report)
}

func (h *AdminHandler) GetDeposit(e *core.RequestEvent) error {
	if !e.HasSuperuserAuth() {
		return apis.NewForbiddenError("Superuser access required", nil)
	}
	depositID, err := pathID(e, "depositId")
	if err != nil {
		return err
	}

	deposit, err := h.booking.GetDeposit(e.Request.Context(), depositID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, deposit)
}
