// Package lifecycle holds the quote state machine. Transition is a pure
// function: it never touches storage and returns the next status or an
// *status.InvalidTransitionError.
package lifecycle

import (
	"quote-booking/internal/status"
	"quote-booking/models"
)

type Event string

const (
	EventVendorSendsRevision Event = "vendor_sends_revision"
	EventClientAccepts       Event = "client_accepts"
	EventClientRejects       Event = "client_rejects"
	EventClientApproves      Event = "client_approves"
	EventVendorFinalises     Event = "vendor_finalises"
	EventPaymentInitiated    Event = "payment_initiated"
	EventPaymentConfirmed    Event = "payment_confirmed"
	EventClientRequestsTour  Event = "client_requests_tour"
	EventVendorReopens       Event = "vendor_reopens"
)

// AllEvents returns every event the machine understands.
func AllEvents() []Event {
	return []Event{
		EventVendorSendsRevision,
		EventClientAccepts,
		EventClientRejects,
		EventClientApproves,
		EventVendorFinalises,
		EventPaymentInitiated,
		EventPaymentConfirmed,
		EventClientRequestsTour,
		EventVendorReopens,
	}
}

// Facts carries the records guards look at.
type Facts struct {
	QuoteID int64

	// Revision is the incoming revision for EventVendorSendsRevision.
	Revision *models.QuoteRevision

	// SentRevision is the latest revision with status sent, if any.
	SentRevision *models.QuoteRevision

	// Deposit is the deposit involved in payment events.
	Deposit *models.BookingDeposit
}

type guard func(f Facts) string

type rule struct {
	to    models.QuoteStatus
	guard guard
}

// unchanged marks rules that leave the status where it is.
const unchanged models.QuoteStatus = ""

var table = map[Event]map[models.QuoteStatus]rule{
	EventVendorSendsRevision: {
		models.QuoteStatusPending:  {to: models.QuoteStatusQuoted, guard: revisionPresent},
		models.QuoteStatusQuoted:   {to: models.QuoteStatusAmended, guard: revisionPresent},
		models.QuoteStatusAmended:  {to: models.QuoteStatusAmended, guard: revisionPresent},
		models.QuoteStatusRejected: {to: models.QuoteStatusQuoted, guard: revisionPresent},
	},
	EventClientAccepts: {
		models.QuoteStatusQuoted: {to: models.QuoteStatusAccepted, guard: revisionSent},
	},
	EventClientRejects: {
		models.QuoteStatusQuoted:  {to: models.QuoteStatusRejected},
		models.QuoteStatusAmended: {to: models.QuoteStatusRejected},
	},
	EventClientApproves: {
		models.QuoteStatusAmended: {to: models.QuoteStatusFinalised, guard: revisionSent},
	},
	EventVendorFinalises: {
		models.QuoteStatusAccepted: {to: models.QuoteStatusFinalised},
	},
	EventPaymentInitiated: {
		models.QuoteStatusAccepted:  {to: unchanged, guard: depositPending},
		models.QuoteStatusFinalised: {to: unchanged, guard: depositPending},
	},
	EventPaymentConfirmed: {
		models.QuoteStatusAccepted:  {to: models.QuoteStatusBooked, guard: depositPaid},
		models.QuoteStatusFinalised: {to: models.QuoteStatusBooked, guard: depositPaid},
	},
	EventClientRequestsTour: {
		models.QuoteStatusPending: {to: models.QuoteStatusTourRequested},
	},
	EventVendorReopens: {
		models.QuoteStatusTourRequested: {to: models.QuoteStatusPending},
	},
}

// Transition returns the status a quote in from moves to when event happens.
func Transition(from models.QuoteStatus, event Event, facts Facts) (models.QuoteStatus, error) {
	rules, ok := table[event]
	if !ok {
		return from, invalid(from, event, facts, "unknown event")
	}
	r, ok := rules[from]
	if !ok {
		return from, invalid(from, event, facts, "not allowed from this status")
	}
	if r.guard != nil {
		if reason := r.guard(facts); reason != "" {
			return from, invalid(from, event, facts, reason)
		}
	}
	if r.to == unchanged {
		return from, nil
	}
	return r.to, nil
}

// Allowed lists the events that have a rule for from, ignoring guards.
func Allowed(from models.QuoteStatus) []Event {
	var events []Event
	for _, e := range AllEvents() {
		if _, ok := table[e][from]; ok {
			events = append(events, e)
		}
	}
	return events
}

func invalid(from models.QuoteStatus, event Event, facts Facts, reason string) error {
	return &status.InvalidTransitionError{
		QuoteID: facts.QuoteID,
		From:    string(from),
		Event:   string(event),
		Reason:  reason,
	}
}

func revisionPresent(f Facts) string {
	if f.Revision == nil {
		return "no revision to send"
	}
	if f.Revision.Status == models.RevisionStatusSuperseded {
		return "revision already superseded"
	}
	if !f.Revision.Amount.IsPositive() {
		return "revision amount must be positive"
	}
	return ""
}

func revisionSent(f Facts) string {
	if f.SentRevision == nil || f.SentRevision.Status != models.RevisionStatusSent {
		return "no sent revision"
	}
	return ""
}

func depositPending(f Facts) string {
	if f.Deposit == nil {
		return "no deposit"
	}
	if f.Deposit.PaymentStatus != models.PaymentStatusPending {
		return "deposit is " + string(f.Deposit.PaymentStatus)
	}
	return ""
}

func depositPaid(f Facts) string {
	if f.Deposit == nil {
		return "deposit not found"
	}
	if f.QuoteID != 0 && f.Deposit.QuoteID != f.QuoteID {
		return "deposit belongs to another quote"
	}
	if f.Deposit.PaymentStatus != models.PaymentStatusPaid {
		return "deposit is " + string(f.Deposit.PaymentStatus)
	}
	return ""
}
