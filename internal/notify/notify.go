// Package notify publishes booking events to clients (PubNub) and to
// downstream consumers (RabbitMQ).
package notify

import (
	"context"
	"errors"

	"quote-booking/models"
)

type Notifier interface {
	Publish(ctx context.Context, event *models.BookingEvent) error
}

// Multi publishes to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, event *models.BookingEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, *models.BookingEvent) error { return nil }
