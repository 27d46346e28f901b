package services

import (
	"context"

	"quote-booking/models"

	"github.com/shopspring/decimal"
)

// Store is the remote record store. Status updates are compare-and-set and
// fail with status.ErrStatusConflict when the stored status is not expected.
type Store interface {
	CreateQuoteRequest(ctx context.Context, q *models.QuoteRequest) (*models.QuoteRequest, error)
	GetQuoteRequest(ctx context.Context, id int64) (*models.QuoteRequest, error)
	UpdateQuoteRequestStatus(ctx context.Context, id int64, expected, next models.QuoteStatus) (*models.QuoteRequest, error)

	SaveDraftRevision(ctx context.Context, quoteID int64, amount decimal.Decimal, description string) (*models.QuoteRevision, error)
	SendRevision(ctx context.Context, quoteID int64, expected, next models.QuoteStatus, rev *models.QuoteRevision) (*models.QuoteRevision, error)
	GetLatestSentRevision(ctx context.Context, quoteID int64) (*models.QuoteRevision, error)
	ListRevisions(ctx context.Context, quoteID int64) ([]*models.QuoteRevision, error)

	CreateBookingDeposit(ctx context.Context, d *models.BookingDeposit) (*models.BookingDeposit, error)
	GetBookingDeposit(ctx context.Context, id int64) (*models.BookingDeposit, error)
	FindOpenDeposit(ctx context.Context, quoteID int64) (*models.BookingDeposit, error)
	UpdateBookingDepositStatus(ctx context.Context, id int64, expected, next models.PaymentStatus) (*models.BookingDeposit, error)
	ListUnsettledDeposits(ctx context.Context) ([]int64, error)
	MarkDepositSettled(ctx context.Context, id int64) error
}

// SessionStore keeps the ephemeral payment sessions.
type SessionStore interface {
	Save(ctx context.Context, session *models.PaymentSession) error
	Get(ctx context.Context, id string) (*models.PaymentSession, error)
	ClaimOutcome(ctx context.Context, id string, outcome models.CallbackOutcome) (bool, error)
	ReleaseOutcome(ctx context.Context, id string, outcome models.CallbackOutcome) error
}

type Recorder interface {
	RecordTransition(ctx context.Context, t *models.QuoteTransition) error
}

type Notifier interface {
	Publish(ctx context.Context, event *models.BookingEvent) error
}
