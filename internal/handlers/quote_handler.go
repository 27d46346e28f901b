package handlers

import (
	"context"
	"net/http"

	"quote-booking/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type QuoteAPI interface {
	CreateQuoteRequest(ctx context.Context, q *models.QuoteRequest) (*models.QuoteRequest, error)
	GetQuote(ctx context.Context, id int64) (*models.QuoteRequest, error)
	ListRevisions(ctx context.Context, quoteID int64) ([]*models.QuoteRevision, error)
	SaveDraftRevision(ctx context.Context, quoteID int64, amount decimal.Decimal, description string) (*models.QuoteRevision, error)
	SendRevision(ctx context.Context, quoteID int64, amount decimal.Decimal, description string) (*models.QuoteRevision, error)
	SendDraft(ctx context.Context, quoteID, number int64) (*models.QuoteRevision, error)
	RejectQuote(ctx context.Context, quoteID int64) (*models.QuoteRequest, error)
	ApproveAmendment(ctx context.Context, quoteID int64) (*models.QuoteRequest, error)
	FinaliseQuote(ctx context.Context, quoteID int64) (*models.QuoteRequest, error)
	RequestTour(ctx context.Context, quoteID int64) (*models.QuoteRequest, error)
	ReopenTour(ctx context.Context, quoteID int64) (*models.QuoteRequest, error)
}

type HistoryReader interface {
	History(ctx context.Context, quoteID int64) ([]*models.QuoteTransition, error)
}

type QuoteHandler struct {
	quotes  QuoteAPI
	history HistoryReader
}

func NewQuoteHandler(quotes QuoteAPI, history HistoryReader) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, history: history}
}

// CreateQuoteRequest - Client asks a listing for pricing
func (h *QuoteHandler) CreateQuoteRequest(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		ListingID string `json:"listing_id"`
		EventType string `json:"event_type"`
		EventDate string `json:"event_date"`
		Details   string `json:"details"`
		Budget    string `json:"budget"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ListingID == "" {
		return apis.NewBadRequestError("listing_id is required", nil)
	}

	q, err := h.quotes.CreateQuoteRequest(e.Request.Context(), &models.QuoteRequest{
		ClientID:  e.Auth.Id,
		ListingID: req.ListingID,
		EventType: req.EventType,
		EventDate: req.EventDate,
		Details:   req.Details,
		Budget:    req.Budget,
	})
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusCreated, q)
}

func (h *QuoteHandler) GetQuote(e *core.RequestEvent) error {
	q, err := h.ownedQuote(e)
	if err != nil {
		return err
	}
	return e.JSON(http.StatusOK, q)
}

func (h *QuoteHandler) ListRevisions(e *core.RequestEvent) error {
	q, err := h.ownedQuote(e)
	if err != nil {
		return err
	}
	revisions, err := h.quotes.ListRevisions(e.Request.Context(), q.ID)
	if err != nil {
		return apiError(err)
	}
	if !e.HasSuperuserAuth() {
		revisions = withoutDrafts(revisions)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": revisions})
}

func (h *QuoteHandler) GetHistory(e *core.RequestEvent) error {
	q, err := h.ownedQuote(e)
	if err != nil {
		return err
	}
	items, err := h.history.History(e.Request.Context(), q.ID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": items})
}

// CreateRevision - Vendor drafts or sends a priced revision
func (h *QuoteHandler) CreateRevision(e *core.RequestEvent) error {
	if !e.HasSuperuserAuth() {
		return apis.NewForbiddenError("Vendor access required", nil)
	}
	quoteID, err := pathID(e, "quoteId")
	if err != nil {
		return err
	}

	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Draft       bool            `json:"draft"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()
	var rev *models.QuoteRevision
	if req.Draft {
		rev, err = h.quotes.SaveDraftRevision(ctx, quoteID, req.Amount, req.Description)
	} else {
		rev, err = h.quotes.SendRevision(ctx, quoteID, req.Amount, req.Description)
	}
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusCreated, rev)
}

func (h *QuoteHandler) SendDraft(e *core.RequestEvent) error {
	if !e.HasSuperuserAuth() {
		return apis.NewForbiddenError("Vendor access required", nil)
	}
	quoteID, err := pathID(e, "quoteId")
	if err != nil {
		return err
	}
	number, err := pathID(e, "number")
	if err != nil {
		return err
	}

	rev, err := h.quotes.SendDraft(e.Request.Context(), quoteID, number)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, rev)
}

func (h *QuoteHandler) RejectQuote(e *core.RequestEvent) error {
	return h.clientAction(e, h.quotes.RejectQuote)
}

func (h *QuoteHandler) ApproveAmendment(e *core.RequestEvent) error {
	return h.clientAction(e, h.quotes.ApproveAmendment)
}

func (h *QuoteHandler) RequestTour(e *core.RequestEvent) error {
	return h.clientAction(e, h.quotes.RequestTour)
}

func (h *QuoteHandler) FinaliseQuote(e *core.RequestEvent) error {
	return h.vendorAction(e, h.quotes.FinaliseQuote)
}

func (h *QuoteHandler) ReopenTour(e *core.RequestEvent) error {
	return h.vendorAction(e, h.quotes.ReopenTour)
}

// withoutDrafts keeps the revisions a client may see.
func withoutDrafts(revisions []*models.QuoteRevision) []*models.QuoteRevision {
	out := make([]*models.QuoteRevision, 0, len(revisions))
	for _, rev := range revisions {
		if rev.Status != models.RevisionStatusDraft {
			out = append(out, rev)
		}
	}
	return out
}

type quoteAction func(ctx context.Context, quoteID int64) (*models.QuoteRequest, error)

func (h *QuoteHandler) clientAction(e *core.RequestEvent, action quoteAction) error {
	q, err := h.ownedQuote(e)
	if err != nil {
		return err
	}
	updated, err := action(e.Request.Context(), q.ID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, updated)
}

func (h *QuoteHandler) vendorAction(e *core.RequestEvent, action quoteAction) error {
	if !e.HasSuperuserAuth() {
		return apis.NewForbiddenError("Vendor access required", nil)
	}
	quoteID, err := pathID(e, "quoteId")
	if err != nil {
		return err
	}
	updated, err := action(e.Request.Context(), quoteID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, updated)
}

// ownedQuote loads the quote in the path. Clients only see their own quotes;
// superusers see all of them.
func (h *QuoteHandler) ownedQuote(e *core.RequestEvent) (*models.QuoteRequest, error) {
	if e.Auth == nil {
		return nil, apis.NewUnauthorizedError("Unauthorized", nil)
	}
	quoteID, err := pathID(e, "quoteId")
	if err != nil {
		return nil, err
	}

	q, err := h.quotes.GetQuote(e.Request.Context(), quoteID)
	if err != nil {
		return nil, apiError(err)
	}
	if q.ClientID != e.Auth.Id && !e.HasSuperuserAuth() {
		return nil, apis.NewForbiddenError("Access denied", nil)
	}
	return q, nil
}
