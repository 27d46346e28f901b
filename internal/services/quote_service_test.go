package services

import (
	"context"
	"errors"
	"testing"

	"quote-booking/internal/status"
	"quote-booking/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestQuoteService_CreateQuoteRequest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	q, err := f.quotes.CreateQuoteRequest(ctx, &models.QuoteRequest{ClientID: "client_2", ListingID: "venue_1", EventType: "birthday"})
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusPending, q.Status)
	assert.Nil(t, q.QuoteAmount)

	_, err = f.quotes.CreateQuoteRequest(ctx, &models.QuoteRequest{ClientID: "client_2"})
	assert.Error(t, err)
}

func TestQuoteService_RevisionsSupersedeEachOther(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i, want := range []models.QuoteStatus{models.QuoteStatusQuoted, models.QuoteStatusAmended, models.QuoteStatusAmended} {
		_, err := f.quotes.SendRevision(ctx, 42, decimal.NewFromInt(int64(1000+i*100)), "")
		require.NoError(t, err)
		assert.Equal(t, want, f.store.quote(42).Status)
	}

	revisions, err := f.quotes.ListRevisions(ctx, 42)
	require.NoError(t, err)
	require.Len(t, revisions, 3)

	sent := 0
	for _, r := range revisions {
		if r.Status == models.RevisionStatusSent {
			sent++
			assert.Equal(t, int64(3), r.Number)
		}
	}
	assert.Equal(t, 1, sent)
	assert.Equal(t, "1200.00", f.store.quote(42).QuoteAmount.StringFixed(2))
}

func TestQuoteService_RejectThenFreshQuote(t *testing.T) {
	f := newFixture(t, nil)
	f.quoted(t)
	ctx := context.Background()

	q, err := f.quotes.RejectQuote(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusRejected, q.Status)
	assert.Nil(t, q.QuoteAmount)

	_, err = f.booking.AcceptQuote(ctx, 42, thandi)
	var transitionErr *status.InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))

	_, err = f.quotes.SendRevision(ctx, 42, decimal.NewFromInt(1200), "new offer")
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusQuoted, f.store.quote(42).Status)
}

func TestQuoteService_InvalidAmount(t *testing.T) {
	f := newFixture(t, nil)

	for _, amount := range []string{"0", "-5", "0.001"} {
		_, err := f.quotes.SendRevision(context.Background(), 42, decimal.RequireFromString(amount), "")

		var amountErr *status.InvalidAmountError
		assert.True(t, errors.As(err, &amountErr), amount)
	}
	assert.Equal(t, models.QuoteStatusPending, f.store.quote(42).Status)
}

func TestQuoteService_SendDraft(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	draft, err := f.quotes.SaveDraftRevision(ctx, 42, decimal.NewFromInt(900), "weekday")
	require.NoError(t, err)
	assert.Equal(t, models.RevisionStatusDraft, draft.Status)
	assert.Equal(t, models.QuoteStatusPending, f.store.quote(42).Status)

	sent, err := f.quotes.SendDraft(ctx, 42, draft.Number)
	require.NoError(t, err)
	assert.Equal(t, models.RevisionStatusSent, sent.Status)
	assert.Equal(t, draft.Number, sent.Number)
	assert.Equal(t, models.QuoteStatusQuoted, f.store.quote(42).Status)

	_, err = f.quotes.SendDraft(ctx, 42, draft.Number)
	assert.ErrorIs(t, err, status.ErrStatusConflict)

	_, err = f.quotes.SendDraft(ctx, 42, 99)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestQuoteService_TourBranch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	q, err := f.quotes.RequestTour(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusTourRequested, q.Status)

	_, err = f.quotes.SendRevision(ctx, 42, decimal.NewFromInt(1500), "")
	var transitionErr *status.InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))

	_, err = f.quotes.ApproveAmendment(ctx, 42)
	require.True(t, errors.As(err, &transitionErr))

	q, err = f.quotes.ReopenTour(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusPending, q.Status)
}

func TestQuoteService_FinaliseAccepted(t *testing.T) {
	f := newFixture(t, nil)
	f.accepted(t)

	q, err := f.quotes.FinaliseQuote(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusFinalised, q.Status)
	assert.NotNil(t, q.QuoteAmount)
}

func TestQuoteService_RecordsTransitions(t *testing.T) {
	f := newFixture(t, nil)
	f.quoted(t)

	_, err := f.quotes.RejectQuote(context.Background(), 42)
	require.NoError(t, err)

	f.recorder.AssertCalled(t, "RecordTransition", mock.Anything, mock.MatchedBy(func(tr *models.QuoteTransition) bool {
		return tr.QuoteID == 42 && tr.Event == "vendor_sends_revision" && tr.From == "pending" && tr.To == "quoted"
	}))
	f.recorder.AssertCalled(t, "RecordTransition", mock.Anything, mock.MatchedBy(func(tr *models.QuoteTransition) bool {
		return tr.Event == "client_rejects" && tr.From == "quoted" && tr.To == "rejected"
	}))
}

func TestQuoteService_RecorderFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t, nil)
	rec := &mockRecorder{}
	rec.On("RecordTransition", mock.Anything, mock.Anything).Return(errors.New("audit down"))
	svc := NewQuoteService(f.store, rec)

	_, err := svc.SendRevision(context.Background(), 42, decimal.NewFromInt(1500), "")

	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusQuoted, f.store.quote(42).Status)
	rec.AssertNumberOfCalls(t, "RecordTransition", 1)
}
