// Package audit keeps an append-only history of quote transitions in a
// PocketBase collection.
package audit

import (
	"context"
	"fmt"

	"quote-booking/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

const CollectionName = "quote_transitions"

// App is the part of core.App the recorder needs.
type App interface {
	DB() dbx.Builder
	FindCollectionByNameOrId(nameOrId string) (*core.Collection, error)
	SaveWithContext(ctx context.Context, model core.Model) error
}

type Recorder struct {
	app App
}

func NewRecorder(app App) *Recorder {
	return &Recorder{app: app}
}

// NewCollection describes the quote_transitions collection.
func NewCollection() *core.Collection {
	c := core.NewBaseCollection(CollectionName)
	c.Fields.Add(
		&core.NumberField{Name: "quote_id", Required: true, OnlyInt: true},
		&core.TextField{Name: "event", Required: true, Max: 64},
		&core.TextField{Name: "from_status", Max: 32},
		&core.TextField{Name: "to_status", Required: true, Max: 32},
		&core.NumberField{Name: "deposit_id", OnlyInt: true},
		&core.TextField{Name: "actor", Max: 128},
		&core.DateField{Name: "occurred_at", Required: true},
		&core.AutodateField{Name: "created", OnCreate: true},
	)
	c.AddIndex("idx_quote_transitions_quote", false, "quote_id, occurred_at", "")
	return c
}

func (r *Recorder) RecordTransition(ctx context.Context, t *models.QuoteTransition) error {
	collection, err := r.app.FindCollectionByNameOrId(CollectionName)
	if err != nil {
		return fmt.Errorf("audit: find collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("quote_id", t.QuoteID)
	record.Set("event", t.Event)
	record.Set("from_status", t.From)
	record.Set("to_status", t.To)
	record.Set("deposit_id", t.DepositID)
	record.Set("actor", t.Actor)
	record.Set("occurred_at", t.OccurredAt)

	if err := r.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("audit: save transition: %w", err)
	}
	return nil
}

type transitionRow struct {
	QuoteID    int64          `db:"quote_id"`
	Event      string         `db:"event"`
	From       string         `db:"from_status"`
	To         string         `db:"to_status"`
	DepositID  int64          `db:"deposit_id"`
	Actor      string         `db:"actor"`
	OccurredAt types.DateTime `db:"occurred_at"`
}

// History returns the transitions of a quote, oldest first.
func (r *Recorder) History(ctx context.Context, quoteID int64) ([]*models.QuoteTransition, error) {
	var rows []transitionRow
	err := r.app.DB().
		Select("quote_id", "event", "from_status", "to_status", "deposit_id", "actor", "occurred_at").
		From(CollectionName).
		Where(dbx.HashExp{"quote_id": quoteID}).
		OrderBy("occurred_at ASC", "rowid ASC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("audit: history for quote %d: %w", quoteID, err)
	}

	out := make([]*models.QuoteTransition, 0, len(rows))
	for _, row := range rows {
		out = append(out, &models.QuoteTransition{
			QuoteID:    row.QuoteID,
			Event:      row.Event,
			From:       row.From,
			To:         row.To,
			DepositID:  row.DepositID,
			Actor:      row.Actor,
			OccurredAt: row.OccurredAt.Time(),
		})
	}
	return out, nil
}
