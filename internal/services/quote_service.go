package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quote-booking/internal/lifecycle"
	"quote-booking/internal/status"
	"quote-booking/models"
	"quote-booking/monitoring"

	"github.com/shopspring/decimal"
)

// QuoteService covers the vendor and client actions on a quote request that
// do not involve money.
type QuoteService struct {
	store    Store
	recorder Recorder
}

func NewQuoteService(store Store, recorder Recorder) *QuoteService {
	return &QuoteService{store: store, recorder: recorder}
}

func (s *QuoteService) CreateQuoteRequest(ctx context.Context, q *models.QuoteRequest) (*models.QuoteRequest, error) {
	if strings.TrimSpace(q.ClientID) == "" || strings.TrimSpace(q.ListingID) == "" {
		return nil, errors.New("create quote request: client and listing are required")
	}
	created, err := s.store.CreateQuoteRequest(ctx, q)
	if err != nil {
		return nil, err
	}
	slog.Info("quote request created", "quote_id", created.ID, "listing_id", created.ListingID)
	return created, nil
}

func (s *QuoteService) GetQuote(ctx context.Context, id int64) (*models.QuoteRequest, error) {
	return s.store.GetQuoteRequest(ctx, id)
}

func (s *QuoteService) ListRevisions(ctx context.Context, quoteID int64) ([]*models.QuoteRevision, error) {
	return s.store.ListRevisions(ctx, quoteID)
}

// SaveDraftRevision stores a revision the client cannot see yet.
func (s *QuoteService) SaveDraftRevision(ctx context.Context, quoteID int64, amount decimal.Decimal, description string) (*models.QuoteRevision, error) {
	if !amount.Round(2).IsPositive() {
		return nil, &status.InvalidAmountError{Amount: amount.String()}
	}

	q, err := s.store.GetQuoteRequest(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if q.Status == models.QuoteStatusBooked {
		return nil, &status.InvalidTransitionError{
			QuoteID: quoteID,
			From:    string(q.Status),
			Event:   string(lifecycle.EventVendorSendsRevision),
			Reason:  "quote is closed",
		}
	}
	return s.store.SaveDraftRevision(ctx, quoteID, amount.Round(2), description)
}

// SendRevision sends a new revision to the client, superseding the one sent
// before it.
func (s *QuoteService) SendRevision(ctx context.Context, quoteID int64, amount decimal.Decimal, description string) (*models.QuoteRevision, error) {
	if !amount.Round(2).IsPositive() {
		return nil, &status.InvalidAmountError{Amount: amount.String()}
	}
	return s.send(ctx, quoteID, &models.QuoteRevision{
		QuoteID:     quoteID,
		Amount:      amount.Round(2),
		Description: description,
		Status:      models.RevisionStatusDraft,
	})
}

// SendDraft promotes a saved draft revision to sent.
func (s *QuoteService) SendDraft(ctx context.Context, quoteID, number int64) (*models.QuoteRevision, error) {
	revisions, err := s.store.ListRevisions(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	for _, rev := range revisions {
		if rev.Number != number {
			continue
		}
		if rev.Status != models.RevisionStatusDraft {
			return nil, fmt.Errorf("send draft %d/%d: revision is %s: %w", quoteID, number, rev.Status, status.ErrStatusConflict)
		}
		return s.send(ctx, quoteID, rev)
	}
	return nil, fmt.Errorf("send draft %d/%d: %w", quoteID, number, status.ErrNotFound)
}

func (s *QuoteService) send(ctx context.Context, quoteID int64, rev *models.QuoteRevision) (*models.QuoteRevision, error) {
	q, err := s.store.GetQuoteRequest(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	event := lifecycle.EventVendorSendsRevision
	next, err := lifecycle.Transition(q.Status, event, lifecycle.Facts{QuoteID: quoteID, Revision: rev})
	if err != nil {
		monitoring.TrackTransition(string(event), "rejected")
		return nil, err
	}

	sent, err := s.store.SendRevision(ctx, quoteID, q.Status, next, rev)
	if err != nil {
		return nil, casFailure(q, event, err)
	}
	monitoring.TrackTransition(string(event), "applied")
	recordTransition(ctx, s.recorder, &models.QuoteTransition{
		QuoteID:    quoteID,
		Event:      string(event),
		From:       string(q.Status),
		To:         string(next),
		OccurredAt: sent.CreatedAt,
	})
	slog.Info("revision sent", "quote_id", quoteID, "revision", sent.Number, "status", next)
	return sent, nil
}

func (s *QuoteService) RejectQuote(ctx context.Context, quoteID int64) (*models.QuoteRequest, error) {
	return s.apply(ctx, quoteID, lifecycle.EventClientRejects)
}

// ApproveAmendment finalises an amended quote without a new round of quoting.
func (s *QuoteService) ApproveAmendment(ctx context.Context, quoteID int64) (*models.QuoteRequest, error) {
	return s.apply(ctx, quoteID, lifecycle.EventClientApproves)
}

func (s *QuoteService) FinaliseQuote(ctx context.Context, quoteID int64) (*models.QuoteRequest, error) {
	return s.apply(ctx, quoteID, lifecycle.EventVendorFinalises)
}

func (s *QuoteService) RequestTour(ctx context.Context, quoteID int64) (*models.QuoteRequest, error) {
	return s.apply(ctx, quoteID, lifecycle.EventClientRequestsTour)
}

// ReopenTour returns a toured request to pending so it can be priced.
func (s *QuoteService) ReopenTour(ctx context.Context, quoteID int64) (*models.QuoteRequest, error) {
	return s.apply(ctx, quoteID, lifecycle.EventVendorReopens)
}

func (s *QuoteService) apply(ctx context.Context, quoteID int64, event lifecycle.Event) (*models.QuoteRequest, error) {
	q, err := s.store.GetQuoteRequest(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	facts := lifecycle.Facts{QuoteID: quoteID}
	if event == lifecycle.EventClientApproves {
		rev, err := s.store.GetLatestSentRevision(ctx, quoteID)
		if err != nil && !errors.Is(err, status.ErrNotFound) {
			return nil, err
		}
		facts.SentRevision = rev
	}

	next, err := lifecycle.Transition(q.Status, event, facts)
	if err != nil {
		monitoring.TrackTransition(string(event), "rejected")
		return nil, err
	}
	if err := applyStatus(ctx, s.store, s.recorder, q, event, next); err != nil {
		return nil, err
	}
	slog.Info("quote transition applied", "quote_id", quoteID, "event", event, "from", q.Status, "to", next)
	return s.store.GetQuoteRequest(ctx, quoteID)
}
