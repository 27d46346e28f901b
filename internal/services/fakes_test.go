package services

import (
	"context"
	"sync"
	"time"

	"quote-booking/internal/status"
	"quote-booking/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory Store with the same compare-and-set rules as the
// Redis one.
type memStore struct {
	mu        sync.Mutex
	quotes    map[int64]*models.QuoteRequest
	revisions map[int64][]*models.QuoteRevision
	deposits  map[int64]*models.BookingDeposit
	open      map[int64]int64
	unsettled map[int64]bool

	nextQuote   int64
	nextDeposit int64

	// beforeQuoteUpdate runs before every quote status write, outside the lock.
	beforeQuoteUpdate func()
	// bookingErr fails writes that would move a quote to booked.
	bookingErr error

	depositsCreated int
}

func newMemStore() *memStore {
	return &memStore{
		quotes:      map[int64]*models.QuoteRequest{},
		revisions:   map[int64][]*models.QuoteRevision{},
		deposits:    map[int64]*models.BookingDeposit{},
		open:        map[int64]int64{},
		unsettled:   map[int64]bool{},
		nextQuote:   41,
		nextDeposit: 6,
	}
}

func (m *memStore) CreateQuoteRequest(_ context.Context, q *models.QuoteRequest) (*models.QuoteRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQuote++
	created := *q
	created.ID = m.nextQuote
	created.Status = models.QuoteStatusPending
	created.QuoteAmount = nil
	m.quotes[created.ID] = &created
	out := created
	return &out, nil
}

func (m *memStore) GetQuoteRequest(_ context.Context, id int64) (*models.QuoteRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	out := *q
	return &out, nil
}

func (m *memStore) UpdateQuoteRequestStatus(_ context.Context, id int64, expected, next models.QuoteStatus) (*models.QuoteRequest, error) {
	if m.beforeQuoteUpdate != nil {
		m.beforeQuoteUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	if next == models.QuoteStatusBooked && m.bookingErr != nil {
		return nil, m.bookingErr
	}
	if q.Status != expected {
		return nil, status.ErrStatusConflict
	}
	q.Status = next
	if !next.CarriesAmount() {
		q.QuoteAmount = nil
	}
	out := *q
	return &out, nil
}

func (m *memStore) SaveDraftRevision(_ context.Context, quoteID int64, amount decimal.Decimal, description string) (*models.QuoteRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotes[quoteID]; !ok {
		return nil, status.ErrNotFound
	}
	rev := &models.QuoteRevision{
		QuoteID:     quoteID,
		Number:      int64(len(m.revisions[quoteID]) + 1),
		Amount:      amount,
		Description: description,
		Status:      models.RevisionStatusDraft,
	}
	m.revisions[quoteID] = append(m.revisions[quoteID], rev)
	out := *rev
	return &out, nil
}

func (m *memStore) SendRevision(_ context.Context, quoteID int64, expected, next models.QuoteStatus, rev *models.QuoteRevision) (*models.QuoteRevision, error) {
	if m.beforeQuoteUpdate != nil {
		m.beforeQuoteUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[quoteID]
	if !ok {
		return nil, status.ErrNotFound
	}
	if q.Status != expected {
		return nil, status.ErrStatusConflict
	}

	var target *models.QuoteRevision
	if rev.Number == 0 {
		target = &models.QuoteRevision{QuoteID: quoteID, Number: int64(len(m.revisions[quoteID]) + 1)}
		m.revisions[quoteID] = append(m.revisions[quoteID], target)
	} else {
		for _, r := range m.revisions[quoteID] {
			if r.Number == rev.Number {
				target = r
			}
		}
		if target == nil {
			return nil, status.ErrNotFound
		}
		if target.Status != models.RevisionStatusDraft {
			return nil, status.ErrStatusConflict
		}
	}
	for _, r := range m.revisions[quoteID] {
		if r.Status == models.RevisionStatusSent {
			r.Status = models.RevisionStatusSuperseded
		}
	}
	target.Amount = rev.Amount
	target.Description = rev.Description
	target.Status = models.RevisionStatusSent
	target.CreatedAt = time.Now()

	amount := rev.Amount
	q.Status = next
	q.QuoteAmount = &amount
	out := *target
	return &out, nil
}

func (m *memStore) GetLatestSentRevision(_ context.Context, quoteID int64) (*models.QuoteRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.revisions[quoteID] {
		if r.Status == models.RevisionStatusSent {
			out := *r
			return &out, nil
		}
	}
	return nil, status.ErrNotFound
}

func (m *memStore) ListRevisions(_ context.Context, quoteID int64) ([]*models.QuoteRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.QuoteRevision, 0, len(m.revisions[quoteID]))
	for _, r := range m.revisions[quoteID] {
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (m *memStore) CreateBookingDeposit(_ context.Context, d *models.BookingDeposit) (*models.BookingDeposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.open[d.QuoteID]; ok && m.deposits[id].PaymentStatus != models.PaymentStatusFailed {
		return nil, status.ErrStatusConflict
	}
	m.nextDeposit++
	m.depositsCreated++
	created := *d
	created.ID = m.nextDeposit
	created.PaymentStatus = models.PaymentStatusPending
	m.deposits[created.ID] = &created
	m.open[d.QuoteID] = created.ID
	out := created
	return &out, nil
}

func (m *memStore) GetBookingDeposit(_ context.Context, id int64) (*models.BookingDeposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deposits[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	out := *d
	return &out, nil
}

func (m *memStore) FindOpenDeposit(_ context.Context, quoteID int64) (*models.BookingDeposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.open[quoteID]
	if !ok || m.deposits[id].PaymentStatus != models.PaymentStatusPending {
		return nil, status.ErrNotFound
	}
	out := *m.deposits[id]
	return &out, nil
}

func (m *memStore) UpdateBookingDepositStatus(_ context.Context, id int64, expected, next models.PaymentStatus) (*models.BookingDeposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deposits[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	if d.PaymentStatus != expected {
		return nil, status.ErrStatusConflict
	}
	d.PaymentStatus = next
	if next == models.PaymentStatusPaid {
		now := time.Now()
		d.PaidAt = &now
		m.unsettled[id] = true
	}
	out := *d
	return &out, nil
}

func (m *memStore) ListUnsettledDeposits(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id := range m.unsettled {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memStore) MarkDepositSettled(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.unsettled, id)
	return nil
}

func (m *memStore) quote(id int64) models.QuoteRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.quotes[id]
}

func (m *memStore) deposit(id int64) models.BookingDeposit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.deposits[id]
}

func (m *memStore) seedQuote(q *models.QuoteRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[q.ID] = q
}

// memSessions is an in-memory SessionStore.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.PaymentSession
	claimed  map[string]map[models.CallbackOutcome]bool
}

func newMemSessions() *memSessions {
	return &memSessions{
		sessions: map[string]*models.PaymentSession{},
		claimed:  map[string]map[models.CallbackOutcome]bool{},
	}
}

func (m *memSessions) Save(_ context.Context, s *models.PaymentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.sessions[s.ID] = &c
	m.claimed[s.ID] = map[models.CallbackOutcome]bool{}
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*models.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, status.ErrSessionClosed
	}
	out := *s
	switch {
	case m.claimed[id][models.CallbackOutcomeSuccess]:
		out.Outcome = models.CallbackOutcomeSuccess
	case m.claimed[id][models.CallbackOutcomeCancel]:
		out.Outcome = models.CallbackOutcomeCancel
	}
	return &out, nil
}

func (m *memSessions) ClaimOutcome(_ context.Context, id string, o models.CallbackOutcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[id][o] {
		return false, nil
	}
	m.claimed[id][o] = true
	return true, nil
}

func (m *memSessions) ReleaseOutcome(_ context.Context, id string, o models.CallbackOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed[id], o)
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (n *mockNotifier) Publish(ctx context.Context, event *models.BookingEvent) error {
	args := n.Called(ctx, event)
	return args.Error(0)
}

type mockRecorder struct {
	mock.Mock
}

func (r *mockRecorder) RecordTransition(ctx context.Context, t *models.QuoteTransition) error {
	args := r.Called(ctx, t)
	return args.Error(0)
}
