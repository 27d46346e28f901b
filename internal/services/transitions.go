package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quote-booking/internal/lifecycle"
	"quote-booking/internal/status"
	"quote-booking/models"
	"quote-booking/monitoring"
)

// applyStatus writes next over q.Status with compare-and-set and records the
// transition. A concurrent change surfaces as an *status.InvalidTransitionError.
func applyStatus(ctx context.Context, store Store, recorder Recorder, q *models.QuoteRequest, event lifecycle.Event, next models.QuoteStatus) error {
	if _, err := store.UpdateQuoteRequestStatus(ctx, q.ID, q.Status, next); err != nil {
		return casFailure(q, event, err)
	}
	monitoring.TrackTransition(string(event), "applied")
	recordTransition(ctx, recorder, &models.QuoteTransition{
		QuoteID:    q.ID,
		Event:      string(event),
		From:       string(q.Status),
		To:         string(next),
		OccurredAt: time.Now(),
	})
	return nil
}

func casFailure(q *models.QuoteRequest, event lifecycle.Event, err error) error {
	if errors.Is(err, status.ErrStatusConflict) {
		monitoring.TrackTransition(string(event), "conflict")
		return &status.InvalidTransitionError{
			QuoteID: q.ID,
			From:    string(q.Status),
			Event:   string(event),
			Reason:  "quote changed concurrently",
		}
	}
	return fmt.Errorf("%s: quote %d: %w", event, q.ID, err)
}

func recordTransition(ctx context.Context, recorder Recorder, t *models.QuoteTransition) {
	if recorder == nil {
		return
	}
	if err := recorder.RecordTransition(ctx, t); err != nil {
		slog.Warn("record quote transition", "quote_id", t.QuoteID, "event", t.Event, "error", err)
	}
}
