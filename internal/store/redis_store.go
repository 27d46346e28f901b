// Package store keeps quote requests, revisions, deposits and payment
// sessions in Redis. Status changes are compare-and-set: a WATCHed read of
// the current status followed by a MULTI/EXEC write.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"quote-booking/internal/status"
	"quote-booking/models"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	quoteSeqKey   = "seq:quote_request"
	depositSeqKey = "seq:booking_deposit"

	// AwaitingSettlementKey is the set of paid deposits whose quote is not yet booked.
	AwaitingSettlementKey = "booking_deposits:awaiting_settlement"
)

func quoteKey(id int64) string { return fmt.Sprintf("quote_request:%d", id) }
func revisionSeqKey(quoteID int64) string { return fmt.Sprintf("quote_request:%d:revision_seq", quoteID) }
func revisionKey(quoteID, n int64) string { return fmt.Sprintf("quote_revision:%d:%d", quoteID, n) }
func openDepositKey(quoteID int64) string { return fmt.Sprintf("quote_request:%d:open_deposit", quoteID) }
func depositKey(id int64) string { return fmt.Sprintf("booking_deposit:%d", id) }

type RedisStore struct {
	rdb redis.UniversalClient
	now func() time.Time
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

func (s *RedisStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// Quote requests

func (s *RedisStore) CreateQuoteRequest(ctx context.Context, q *models.QuoteRequest) (*models.QuoteRequest, error) {
	id, err := s.rdb.Incr(ctx, quoteSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("create quote request: next id: %w", err)
	}

	now := s.timestamp()
	fields := []interface{}{
		"id", strconv.FormatInt(id, 10),
		"client_id", q.ClientID,
		"listing_id", q.ListingID,
		"status", string(models.QuoteStatusPending),
		"event_type", q.EventType,
		"event_date", q.EventDate,
		"details", q.Details,
		"budget", q.Budget,
		"created_at", now,
		"updated_at", now,
	}
	if err := s.rdb.HSet(ctx, quoteKey(id), fields...).Err(); err != nil {
		return nil, fmt.Errorf("create quote request: %w", err)
	}
	return s.GetQuoteRequest(ctx, id)
}

func (s *RedisStore) GetQuoteRequest(ctx context.Context, id int64) (*models.QuoteRequest, error) {
	data, err := s.rdb.HGetAll(ctx, quoteKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get quote request %d: %w", id, err)
	}
	if len(data) == 0 {
		return nil, status.ErrNotFound
	}
	return decodeQuote(data)
}

// UpdateQuoteRequestStatus moves a quote from expected to next. It fails with
// status.ErrStatusConflict when the stored status is not expected.
func (s *RedisStore) UpdateQuoteRequestStatus(ctx context.Context, id int64, expected, next models.QuoteStatus) (*models.QuoteRequest, error) {
	key := quoteKey(id)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		if err := checkStatus(ctx, tx, key, string(expected)); err != nil {
			return err
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "status", string(next), "updated_at", s.timestamp())
			if !next.CarriesAmount() {
				pipe.HDel(ctx, key, "quote_amount")
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, casError("update quote status", err)
	}
	return s.GetQuoteRequest(ctx, id)
}

// Revisions

func (s *RedisStore) SaveDraftRevision(ctx context.Context, quoteID int64, amount decimal.Decimal, description string) (*models.QuoteRevision, error) {
	exists, err := s.rdb.Exists(ctx, quoteKey(quoteID)).Result()
	if err != nil {
		return nil, fmt.Errorf("save draft revision: %w", err)
	}
	if exists == 0 {
		return nil, status.ErrNotFound
	}

	n, err := s.rdb.Incr(ctx, revisionSeqKey(quoteID)).Result()
	if err != nil {
		return nil, fmt.Errorf("save draft revision: next number: %w", err)
	}

	rev := &models.QuoteRevision{
		QuoteID:     quoteID,
		Number:      n,
		Amount:      amount,
		Description: description,
		Status:      models.RevisionStatusDraft,
	}
	if err := s.rdb.HSet(ctx, revisionKey(quoteID, n), revisionFields(rev, s.timestamp())...).Err(); err != nil {
		return nil, fmt.Errorf("save draft revision: %w", err)
	}
	return s.getRevision(ctx, quoteID, n)
}

// SendRevision marks rev as sent, supersedes the previously sent revision and
// moves the quote from expected to next in one transaction. A rev without a
// number is created; a draft rev is promoted.
func (s *RedisStore) SendRevision(ctx context.Context, quoteID int64, expected, next models.QuoteStatus, rev *models.QuoteRevision) (*models.QuoteRevision, error) {
	n := rev.Number
	if n == 0 {
		var err error
		if n, err = s.rdb.Incr(ctx, revisionSeqKey(quoteID)).Result(); err != nil {
			return nil, fmt.Errorf("send revision: next number: %w", err)
		}
	}

	key := quoteKey(quoteID)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		if err := checkStatus(ctx, tx, key, string(expected)); err != nil {
			return err
		}

		if rev.Number != 0 {
			current, err := tx.HGet(ctx, revisionKey(quoteID, n), "status").Result()
			if err == redis.Nil {
				return status.ErrNotFound
			} else if err != nil {
				return err
			}
			if current != string(models.RevisionStatusDraft) {
				return status.ErrStatusConflict
			}
		}

		var prevN int64
		previous, err := tx.HGet(ctx, key, "sent_revision").Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if previous != "" {
			if prevN, err = strconv.ParseInt(previous, 10, 64); err != nil {
				return fmt.Errorf("sent_revision %q: %w", previous, err)
			}
		}

		now := s.timestamp()
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if prevN != 0 {
				pipe.HSet(ctx, revisionKey(quoteID, prevN), "status", string(models.RevisionStatusSuperseded))
			}
			sent := *rev
			sent.QuoteID = quoteID
			sent.Number = n
			sent.Status = models.RevisionStatusSent
			pipe.HSet(ctx, revisionKey(quoteID, n), revisionFields(&sent, now)...)
			pipe.HSet(ctx, key,
				"status", string(next),
				"quote_amount", rev.Amount.String(),
				"sent_revision", strconv.FormatInt(n, 10),
				"updated_at", now,
			)
			return nil
		})
		return err
	}, key, revisionKey(quoteID, n))
	if err != nil {
		return nil, casError("send revision", err)
	}
	return s.getRevision(ctx, quoteID, n)
}

// GetLatestSentRevision returns status.ErrNotFound when nothing was sent.
func (s *RedisStore) GetLatestSentRevision(ctx context.Context, quoteID int64) (*models.QuoteRevision, error) {
	sent, err := s.rdb.HGet(ctx, quoteKey(quoteID), "sent_revision").Result()
	if err == redis.Nil {
		return nil, status.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("latest sent revision: %w", err)
	}
	n, err := strconv.ParseInt(sent, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("latest sent revision: %w", err)
	}
	return s.getRevision(ctx, quoteID, n)
}

func (s *RedisStore) ListRevisions(ctx context.Context, quoteID int64) ([]*models.QuoteRevision, error) {
	last, err := s.rdb.Get(ctx, revisionSeqKey(quoteID)).Int64()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}

	revisions := make([]*models.QuoteRevision, 0, last)
	for n := int64(1); n <= last; n++ {
		rev, err := s.getRevision(ctx, quoteID, n)
		if errors.Is(err, status.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	return revisions, nil
}

func (s *RedisStore) getRevision(ctx context.Context, quoteID, n int64) (*models.QuoteRevision, error) {
	data, err := s.rdb.HGetAll(ctx, revisionKey(quoteID, n)).Result()
	if err != nil {
		return nil, fmt.Errorf("get revision %d/%d: %w", quoteID, n, err)
	}
	if len(data) == 0 {
		return nil, status.ErrNotFound
	}
	return decodeRevision(data)
}

// Deposits

// CreateBookingDeposit stores a pending deposit. It fails with
// status.ErrStatusConflict while another non-failed deposit exists for the quote.
func (s *RedisStore) CreateBookingDeposit(ctx context.Context, d *models.BookingDeposit) (*models.BookingDeposit, error) {
	openKey := openDepositKey(d.QuoteID)
	var id int64
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		open, err := tx.Get(ctx, openKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if open != 0 {
			current, err := tx.HGet(ctx, depositKey(open), "payment_status").Result()
			if err != nil && err != redis.Nil {
				return err
			}
			if current != "" && current != string(models.PaymentStatusFailed) {
				return status.ErrStatusConflict
			}
		}

		if id, err = tx.Incr(ctx, depositSeqKey).Result(); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, depositKey(id),
				"id", strconv.FormatInt(id, 10),
				"quote_id", strconv.FormatInt(d.QuoteID, 10),
				"client_id", d.ClientID,
				"amount", d.Amount.String(),
				"payment_status", string(models.PaymentStatusPending),
				"created_at", s.timestamp(),
			)
			pipe.Set(ctx, openKey, id, 0)
			return nil
		})
		return err
	}, openKey)
	if err != nil {
		return nil, casError("create booking deposit", err)
	}
	return s.GetBookingDeposit(ctx, id)
}

func (s *RedisStore) GetBookingDeposit(ctx context.Context, id int64) (*models.BookingDeposit, error) {
	data, err := s.rdb.HGetAll(ctx, depositKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get booking deposit %d: %w", id, err)
	}
	if len(data) == 0 {
		return nil, status.ErrNotFound
	}
	return decodeDeposit(data)
}

// FindOpenDeposit returns the quote's pending deposit or status.ErrNotFound.
func (s *RedisStore) FindOpenDeposit(ctx context.Context, quoteID int64) (*models.BookingDeposit, error) {
	id, err := s.rdb.Get(ctx, openDepositKey(quoteID)).Int64()
	if err == redis.Nil {
		return nil, status.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("find open deposit: %w", err)
	}

	d, err := s.GetBookingDeposit(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.PaymentStatus != models.PaymentStatusPending {
		return nil, status.ErrNotFound
	}
	return d, nil
}

// UpdateBookingDepositStatus moves a deposit from expected to next. A deposit
// becoming paid is queued for settlement.
func (s *RedisStore) UpdateBookingDepositStatus(ctx context.Context, id int64, expected, next models.PaymentStatus) (*models.BookingDeposit, error) {
	key := depositKey(id)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "payment_status").Result()
		if err == redis.Nil {
			return status.ErrNotFound
		} else if err != nil {
			return err
		}
		if current != string(expected) {
			return status.ErrStatusConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "payment_status", string(next))
			if next == models.PaymentStatusPaid {
				pipe.HSet(ctx, key, "paid_at", s.timestamp())
				pipe.SAdd(ctx, AwaitingSettlementKey, strconv.FormatInt(id, 10))
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, casError("update deposit status", err)
	}
	return s.GetBookingDeposit(ctx, id)
}

// ListUnsettledDeposits returns paid deposits whose quote has not been booked yet.
func (s *RedisStore) ListUnsettledDeposits(ctx context.Context) ([]int64, error) {
	members, err := s.rdb.SMembers(ctx, AwaitingSettlementKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list unsettled deposits: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *RedisStore) MarkDepositSettled(ctx context.Context, id int64) error {
	if err := s.rdb.SRem(ctx, AwaitingSettlementKey, strconv.FormatInt(id, 10)).Err(); err != nil {
		return fmt.Errorf("mark deposit settled: %w", err)
	}
	return nil
}

func checkStatus(ctx context.Context, tx *redis.Tx, key, expected string) error {
	current, err := tx.HGet(ctx, key, "status").Result()
	if err == redis.Nil {
		return status.ErrNotFound
	} else if err != nil {
		return err
	}
	if current != expected {
		return status.ErrStatusConflict
	}
	return nil
}

// casError maps a lost WATCH race to status.ErrStatusConflict.
func casError(op string, err error) error {
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%s: %w", op, status.ErrStatusConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
