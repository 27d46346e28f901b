package store

import (
	"context"
	"testing"
	"time"

	"quote-booking/internal/status"
	"quote-booking/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionStore() (*SessionStore, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	s := NewSessionStore(db, 15*time.Minute)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestSessionStore_Save(t *testing.T) {
	s, mock := newTestSessionStore()

	mock.ExpectHSet("payment_session:ps_abc",
		"session_id", "ps_abc",
		"deposit_id", "7",
		"m_payment_id", "7",
		"redirect_url", "https://sandbox.payfast.co.za/eng/process?amount=1500.00",
		"signature", "7ff40b14ebfadd7255ef564b891b01fd",
		"created_at", fixedNow.Format(time.RFC3339Nano),
	).SetVal(6)
	mock.ExpectExpire("payment_session:ps_abc", 15*time.Minute).SetVal(true)

	err := s.Save(context.Background(), &models.PaymentSession{
		ID:          "ps_abc",
		DepositID:   7,
		PaymentID:   "7",
		RedirectURL: "https://sandbox.payfast.co.za/eng/process?amount=1500.00",
		Signature:   "7ff40b14ebfadd7255ef564b891b01fd",
		CreatedAt:   fixedNow,
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_Get(t *testing.T) {
	s, mock := newTestSessionStore()

	mock.ExpectHGetAll("payment_session:ps_abc").SetVal(map[string]string{
		"session_id":     "ps_abc",
		"deposit_id":     "7",
		"m_payment_id":   "7",
		"outcome:cancel": "2025-06-01T10:01:00Z",
	})

	session, err := s.Get(context.Background(), "ps_abc")

	require.NoError(t, err)
	assert.Equal(t, int64(7), session.DepositID)
	assert.Equal(t, models.CallbackOutcomeCancel, session.Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_GetExpired(t *testing.T) {
	s, mock := newTestSessionStore()

	mock.ExpectHGetAll("payment_session:ps_gone").SetVal(map[string]string{})

	_, err := s.Get(context.Background(), "ps_gone")

	assert.ErrorIs(t, err, status.ErrSessionClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_ClaimOutcomeOnce(t *testing.T) {
	s, mock := newTestSessionStore()
	ts := fixedNow.Format(time.RFC3339Nano)

	mock.ExpectHSetNX("payment_session:ps_abc", "outcome:success", ts).SetVal(true)
	mock.ExpectHSetNX("payment_session:ps_abc", "outcome:success", ts).SetVal(false)

	first, err := s.ClaimOutcome(context.Background(), "ps_abc", models.CallbackOutcomeSuccess)
	require.NoError(t, err)
	second, err := s.ClaimOutcome(context.Background(), "ps_abc", models.CallbackOutcomeSuccess)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_ReleaseOutcome(t *testing.T) {
	s, mock := newTestSessionStore()

	mock.ExpectHDel("payment_session:ps_abc", "outcome:success").SetVal(1)

	err := s.ReleaseOutcome(context.Background(), "ps_abc", models.CallbackOutcomeSuccess)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
