package store

import (
	"fmt"
	"strconv"
	"time"

	"quote-booking/models"

	"github.com/shopspring/decimal"
)

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func revisionFields(r *models.QuoteRevision, now string) []interface{} {
	return []interface{}{
		"quote_id", strconv.FormatInt(r.QuoteID, 10),
		"number", strconv.FormatInt(r.Number, 10),
		"amount", r.Amount.String(),
		"description", r.Description,
		"status", string(r.Status),
		"created_at", now,
	}
}

func decodeQuote(data map[string]string) (*models.QuoteRequest, error) {
	id, err := strconv.ParseInt(data["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode quote: id: %w", err)
	}

	q := &models.QuoteRequest{
		ID:        id,
		ClientID:  data["client_id"],
		ListingID: data["listing_id"],
		Status:    models.QuoteStatus(data["status"]),
		EventType: data["event_type"],
		EventDate: data["event_date"],
		Details:   data["details"],
		Budget:    data["budget"],
		CreatedAt: parseTime(data["created_at"]),
		UpdatedAt: parseTime(data["updated_at"]),
	}
	if v, ok := data["quote_amount"]; ok && q.Status.CarriesAmount() {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("decode quote %d: quote_amount: %w", id, err)
		}
		q.QuoteAmount = &amount
	}
	return q, nil
}

func decodeRevision(data map[string]string) (*models.QuoteRevision, error) {
	quoteID, err := strconv.ParseInt(data["quote_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode revision: quote_id: %w", err)
	}
	n, err := strconv.ParseInt(data["number"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode revision: number: %w", err)
	}
	amount, err := decimal.NewFromString(data["amount"])
	if err != nil {
		return nil, fmt.Errorf("decode revision %d/%d: amount: %w", quoteID, n, err)
	}

	return &models.QuoteRevision{
		QuoteID:     quoteID,
		Number:      n,
		Amount:      amount,
		Description: data["description"],
		Status:      models.RevisionStatus(data["status"]),
		CreatedAt:   parseTime(data["created_at"]),
	}, nil
}

func decodeDeposit(data map[string]string) (*models.BookingDeposit, error) {
	id, err := strconv.ParseInt(data["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode deposit: id: %w", err)
	}
	quoteID, err := strconv.ParseInt(data["quote_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode deposit %d: quote_id: %w", id, err)
	}
	amount, err := decimal.NewFromString(data["amount"])
	if err != nil {
		return nil, fmt.Errorf("decode deposit %d: amount: %w", id, err)
	}

	d := &models.BookingDeposit{
		ID:            id,
		QuoteID:       quoteID,
		ClientID:      data["client_id"],
		Amount:        amount,
		PaymentStatus: models.PaymentStatus(data["payment_status"]),
		CreatedAt:     parseTime(data["created_at"]),
	}
	if v := data["paid_at"]; v != "" {
		paidAt := parseTime(v)
		d.PaidAt = &paidAt
	}
	return d, nil
}
