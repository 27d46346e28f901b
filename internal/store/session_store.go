package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"quote-booking/internal/status"
	"quote-booking/models"

	"github.com/redis/go-redis/v9"
)

const DefaultSessionTTL = 30 * time.Minute

func sessionKey(id string) string { return "payment_session:" + id }

func outcomeField(o models.CallbackOutcome) string { return "outcome:" + string(o) }

// SessionStore keeps payment sessions for as long as the payment surface
// may still navigate. Expired sessions behave as closed.
type SessionStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
	now func() time.Time
}

func NewSessionStore(rdb redis.UniversalClient, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func (s *SessionStore) Save(ctx context.Context, session *models.PaymentSession) error {
	key := sessionKey(session.ID)
	fields := []interface{}{
		"session_id", session.ID,
		"deposit_id", strconv.FormatInt(session.DepositID, 10),
		"m_payment_id", session.PaymentID,
		"redirect_url", session.RedirectURL,
		"signature", session.Signature,
		"created_at", session.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := s.rdb.HSet(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("save payment session: %w", err)
	}
	if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("save payment session: expire: %w", err)
	}
	return nil
}

// Get returns status.ErrSessionClosed for unknown or expired sessions.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.PaymentSession, error) {
	data, err := s.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get payment session: %w", err)
	}
	if len(data) == 0 {
		return nil, status.ErrSessionClosed
	}

	depositID, err := strconv.ParseInt(data["deposit_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("get payment session: deposit_id: %w", err)
	}

	session := &models.PaymentSession{
		ID:          data["session_id"],
		DepositID:   depositID,
		PaymentID:   data["m_payment_id"],
		RedirectURL: data["redirect_url"],
		Signature:   data["signature"],
		CreatedAt:   parseTime(data["created_at"]),
	}
	if _, ok := data[outcomeField(models.CallbackOutcomeSuccess)]; ok {
		session.Outcome = models.CallbackOutcomeSuccess
	} else if _, ok := data[outcomeField(models.CallbackOutcomeCancel)]; ok {
		session.Outcome = models.CallbackOutcomeCancel
	}
	return session, nil
}

// ClaimOutcome records outcome for the session once. It reports false when
// the outcome was already recorded.
func (s *SessionStore) ClaimOutcome(ctx context.Context, id string, outcome models.CallbackOutcome) (bool, error) {
	ok, err := s.rdb.HSetNX(ctx, sessionKey(id), outcomeField(outcome), s.now().UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return false, fmt.Errorf("claim session outcome: %w", err)
	}
	return ok, nil
}

// ReleaseOutcome forgets a claimed outcome so the dispatch can be retried.
func (s *SessionStore) ReleaseOutcome(ctx context.Context, id string, outcome models.CallbackOutcome) error {
	if err := s.rdb.HDel(ctx, sessionKey(id), outcomeField(outcome)).Err(); err != nil {
		return fmt.Errorf("release session outcome: %w", err)
	}
	return nil
}
