// Package dispatch routes composed emails to the correct backend endpoint
// and keeps the bounded dispatch history.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/compose"
	"github.com/opsdesk/opsdesk/internal/logging"
)

// Record statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// DefaultHistoryLimit caps the in-memory history when no limit is set.
const DefaultHistoryLimit = 10

// ErrBusy means a dispatch is already in flight.
var ErrBusy = errors.New("a dispatch is already in flight")

// Record is an immutable dispatch log entry, newest first in the history.
type Record struct {
	ID       string
	To       string
	Subject  string
	Body     string
	SentAt   time.Time
	Status   string
	Response json.RawMessage
}

// Draft is the operator's compose state at send time.
type Draft struct {
	To       string
	Bulk     string
	BulkMode bool
	Subject  string
	Body     string
}

// Outcome reports a completed dispatch. ClearForm is set only for a
// successful single-recipient send; bulk sends leave the form populated so
// the operator can review or resend variations of the list.
type Outcome struct {
	Record     Record
	Recipients []string
	ClearForm  bool
}

// EmailSender posts a send request, choosing the endpoint from the
// request's Emails field.
type EmailSender interface {
	SendEmail(ctx context.Context, req api.SendEmailRequest) (json.RawMessage, error)
}

// RecordStore persists dispatch records beyond the process lifetime.
type RecordStore interface {
	Save(ctx context.Context, record Record) error
}

// Dispatcher validates drafts, routes them, and owns the dispatch history.
type Dispatcher struct {
	sender   EmailSender
	store    RecordStore
	history  []Record
	limit    int
	inFlight bool
	log      zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHistoryLimit overrides the in-memory history cap.
func WithHistoryLimit(limit int) Option {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.limit = limit
		}
	}
}

// WithStore persists every appended record.
func WithStore(store RecordStore) Option {
	return func(d *Dispatcher) { d.store = store }
}

// NewDispatcher creates a dispatcher over the given sender.
func NewDispatcher(sender EmailSender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		limit:  DefaultHistoryLimit,
		log:    logging.Component("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BuildRequest shapes the outbound payload from resolved recipients.
// Emails is present if and only if more than one recipient resolved; To
// always carries the first recipient for backend compatibility. Endpoint
// selection downstream is a pure function of this shape, never of whether
// the bulk UI toggle was on.
func BuildRequest(recipients []string, subject, body string) api.SendEmailRequest {
	subject, body = compose.TrimmedContent(subject, body)
	req := api.SendEmailRequest{
		To:      recipients[0],
		Subject: subject,
		Body:    body,
	}
	if len(recipients) > 1 {
		req.Emails = recipients
	}
	return req
}

// Send validates the draft, dispatches it, and appends a sent or failed
// record. Validation failures return before any network activity and leave
// the history untouched.
func (d *Dispatcher) Send(ctx context.Context, draft Draft) (Outcome, error) {
	if d.inFlight {
		return Outcome{}, ErrBusy
	}

	recipients, err := compose.ResolveRecipients(draft.To, draft.Bulk, draft.BulkMode)
	if err != nil {
		return Outcome{}, err
	}
	if err := compose.ValidateContent(draft.Subject, draft.Body); err != nil {
		return Outcome{}, err
	}

	d.inFlight = true
	defer func() { d.inFlight = false }()

	req := BuildRequest(recipients, draft.Subject, draft.Body)
	response, err := d.sender.SendEmail(ctx, req)

	record := Record{
		ID:       uuid.New().String(),
		Subject:  req.Subject,
		Body:     req.Body,
		SentAt:   time.Now(),
		Response: response,
	}

	if err != nil {
		record.Status = StatusFailed
		record.To = failureDisplay(recipients)
		d.append(ctx, record)
		d.log.Warn().Str("to", record.To).Err(err).Msg("dispatch failed")
		return Outcome{Record: record, Recipients: recipients}, err
	}

	record.Status = StatusSent
	record.To = successDisplay(recipients)
	d.append(ctx, record)
	d.log.Info().Str("to", record.To).Int("recipients", len(recipients)).Msg("dispatched")

	return Outcome{
		Record:     record,
		Recipients: recipients,
		ClearForm:  len(recipients) == 1,
	}, nil
}

// History returns a copy of the bounded dispatch history, newest first.
func (d *Dispatcher) History() []Record {
	return append([]Record(nil), d.history...)
}

func (d *Dispatcher) append(ctx context.Context, record Record) {
	d.history = append([]Record{record}, d.history...)
	if len(d.history) > d.limit {
		d.history = d.history[:d.limit]
	}
	if d.store != nil {
		if err := d.store.Save(ctx, record); err != nil {
			d.log.Warn().Err(err).Msg("failed to persist dispatch record")
		}
	}
}

func successDisplay(recipients []string) string {
	if len(recipients) > 1 {
		return fmt.Sprintf("%s (+%d more)", recipients[0], len(recipients)-1)
	}
	return recipients[0]
}

func failureDisplay(recipients []string) string {
	if len(recipients) > 1 {
		return fmt.Sprintf("%d recipients", len(recipients))
	}
	return recipients[0]
}
