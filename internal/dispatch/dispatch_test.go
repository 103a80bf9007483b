package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/compose"
)

type fakeSender struct {
	requests []api.SendEmailRequest
	err      error
	response json.RawMessage
}

func (f *fakeSender) SendEmail(ctx context.Context, req api.SendEmailRequest) (json.RawMessage, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func TestBuildRequestSingleRecipient(t *testing.T) {
	req := BuildRequest([]string{"a@x.com"}, "  Subject  ", "Body\n")
	require.Equal(t, "a@x.com", req.To)
	require.Equal(t, "Subject", req.Subject)
	require.Equal(t, "Body", req.Body)
	require.Nil(t, req.Emails, "single recipient never sets Emails")
}

func TestBuildRequestBulkShape(t *testing.T) {
	recipients := []string{"a@x.com", "b@x.com", "c@x.com"}
	req := BuildRequest(recipients, "s", "b")
	require.Equal(t, "a@x.com", req.To, "To carries the first recipient")
	require.Equal(t, recipients, req.Emails)
}

func TestSendRoutesByRecipientCountNotToggle(t *testing.T) {
	sender := &fakeSender{response: json.RawMessage(`{"ok": true}`)}
	d := NewDispatcher(sender)

	// Bulk mode on, but only one address in the list: single shape.
	_, err := d.Send(context.Background(), Draft{
		Bulk:     "only@x.com",
		BulkMode: true,
		Subject:  "s",
		Body:     "b",
	})
	require.NoError(t, err)
	require.Len(t, sender.requests, 1)
	require.Nil(t, sender.requests[0].Emails)
	require.Equal(t, "only@x.com", sender.requests[0].To)
}

func TestSendValidatesBeforeNetwork(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender)

	_, err := d.Send(context.Background(), Draft{To: "", Subject: "s", Body: "b"})
	require.ErrorIs(t, err, compose.ErrEmptyRecipient)

	_, err = d.Send(context.Background(), Draft{To: "bad-address", Subject: "s", Body: "b"})
	var invalid *compose.InvalidRecipientsError
	require.ErrorAs(t, err, &invalid)

	_, err = d.Send(context.Background(), Draft{To: "a@x.com", Subject: " ", Body: "b"})
	require.ErrorIs(t, err, compose.ErrMissingContent)

	require.Empty(t, sender.requests, "no network call on validation failure")
	require.Empty(t, d.History(), "no record on validation failure")
}

func TestSendSuccessRecordsAndClearsSingleForm(t *testing.T) {
	sender := &fakeSender{response: json.RawMessage(`{"ok": true}`)}
	d := NewDispatcher(sender)

	outcome, err := d.Send(context.Background(), Draft{To: "a@x.com", Subject: "s", Body: "b"})
	require.NoError(t, err)
	require.True(t, outcome.ClearForm)
	require.Equal(t, StatusSent, outcome.Record.Status)
	require.Equal(t, "a@x.com", outcome.Record.To)
	require.JSONEq(t, `{"ok": true}`, string(outcome.Record.Response))

	history := d.History()
	require.Len(t, history, 1)
	require.Equal(t, outcome.Record.ID, history[0].ID)
}

func TestSendBulkSuccessKeepsFormAndSummarizesRecipients(t *testing.T) {
	sender := &fakeSender{response: json.RawMessage(`{"ok": true}`)}
	d := NewDispatcher(sender)

	outcome, err := d.Send(context.Background(), Draft{
		Bulk:     "a@x.com, b@x.com, c@x.com",
		BulkMode: true,
		Subject:  "s",
		Body:     "b",
	})
	require.NoError(t, err)
	require.False(t, outcome.ClearForm, "bulk sends leave the form populated")
	require.Equal(t, "a@x.com (+2 more)", outcome.Record.To)
	require.Len(t, outcome.Recipients, 3)
}

func TestSendFailureRecordsCoarseDisplay(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	d := NewDispatcher(sender)

	outcome, err := d.Send(context.Background(), Draft{
		Bulk:     "a@x.com; b@x.com",
		BulkMode: true,
		Subject:  "s",
		Body:     "b",
	})
	require.Error(t, err)
	require.Equal(t, StatusFailed, outcome.Record.Status)
	require.Equal(t, "2 recipients", outcome.Record.To)
	require.False(t, outcome.ClearForm)

	history := d.History()
	require.Len(t, history, 1)
	require.Equal(t, StatusFailed, history[0].Status)
}

func TestHistoryIsNewestFirstAndBounded(t *testing.T) {
	sender := &fakeSender{response: json.RawMessage(`{}`)}
	d := NewDispatcher(sender, WithHistoryLimit(3))

	for i := 0; i < 5; i++ {
		_, err := d.Send(context.Background(), Draft{
			To:      "a@x.com",
			Subject: fmt.Sprintf("subject %d", i),
			Body:    "b",
		})
		require.NoError(t, err)
	}

	history := d.History()
	require.Len(t, history, 3)
	require.Equal(t, "subject 4", history[0].Subject)
	require.Equal(t, "subject 2", history[2].Subject)
}

type fakeStore struct {
	saved []Record
	err   error
}

func (f *fakeStore) Save(ctx context.Context, record Record) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, record)
	return nil
}

func TestStoreReceivesEveryRecord(t *testing.T) {
	sender := &fakeSender{err: errors.New("down")}
	store := &fakeStore{}
	d := NewDispatcher(sender, WithStore(store))

	_, _ = d.Send(context.Background(), Draft{To: "a@x.com", Subject: "s", Body: "b"})
	sender.err = nil
	_, err := d.Send(context.Background(), Draft{To: "a@x.com", Subject: "s", Body: "b"})
	require.NoError(t, err)

	require.Len(t, store.saved, 2, "failed and sent records both persist")
}

func TestStoreFailureDoesNotFailDispatch(t *testing.T) {
	sender := &fakeSender{response: json.RawMessage(`{}`)}
	d := NewDispatcher(sender, WithStore(&fakeStore{err: errors.New("disk full")}))

	outcome, err := d.Send(context.Background(), Draft{To: "a@x.com", Subject: "s", Body: "b"})
	require.NoError(t, err)
	require.Equal(t, StatusSent, outcome.Record.Status)
	require.Len(t, d.History(), 1)
}
