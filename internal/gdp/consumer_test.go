package gdp

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"rtpbridge/internal/rtp/models"
	"rtpbridge/internal/rtp/service"
	dErrors "rtpbridge/pkg/domain-errors"
)

type fakeSender struct {
	commands []service.SendCommand
	err      error
}

func (f *fakeSender) Send(_ context.Context, cmd service.SendCommand) (models.Rtp, error) {
	f.commands = append(f.commands, cmd)
	return models.Rtp{}, f.err
}

func newConsumer(sender *fakeSender) *Consumer {
	return &Consumer{sender: sender, logger: slog.Default(), dispatcherName: "GDP"}
}

func record(value string) *kgo.Record {
	return &kgo.Record{Value: []byte(value)}
}

func TestHandleDispatchesCreationEvent(t *testing.T) {
	sender := &fakeSender{}
	c := newConsumer(sender)

	c.handle(context.Background(), record(`{
		"operation_id": "op-7",
		"notice_number": "302001069073736898",
		"amount_cents": 15099,
		"description": "TARI 2026",
		"subject": "TARI",
		"expiry_date": "2026-04-30",
		"payer_id": "RSSMRA85T10A562S",
		"payer_name": "Mario Rossi",
		"payee_id": "77777777777",
		"payee_name": "Comune di Roma",
		"iban": "IT60X0542811101000000123456",
		"pay_trx_ref": "ABC/124"
	}`))

	require.Len(t, sender.commands, 1)
	cmd := sender.commands[0]
	assert.Equal(t, "op-7", cmd.OperationID)
	assert.Equal(t, "GDP", cmd.EventDispatcher)
	assert.Equal(t, "302001069073736898", cmd.NoticeNumber)
	assert.Equal(t, int64(15099), cmd.AmountCents)
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), cmd.ExpiryDate)
	assert.Equal(t, "RSSMRA85T10A562S", cmd.PayerID)
	assert.Equal(t, "IT60X0542811101000000123456", cmd.IBAN)
}

func TestHandleSkipsUndecodableRecord(t *testing.T) {
	sender := &fakeSender{}
	c := newConsumer(sender)

	c.handle(context.Background(), record(`not json`))

	assert.Empty(t, sender.commands)
}

func TestHandleSkipsBadExpiryDate(t *testing.T) {
	sender := &fakeSender{}
	c := newConsumer(sender)

	c.handle(context.Background(), record(`{
		"operation_id": "op-8",
		"notice_number": "1",
		"amount_cents": 100,
		"payer_id": "A",
		"payee_id": "B",
		"expiry_date": "30-04-2026"
	}`))

	assert.Empty(t, sender.commands, "a record with an unparseable expiry is never dispatched")
}

func TestHandleSurvivesDispatchFailure(t *testing.T) {
	sender := &fakeSender{err: dErrors.New(dErrors.CodeConflict, "duplicate operation")}
	c := newConsumer(sender)

	c.handle(context.Background(), record(`{
		"operation_id": "op-9",
		"notice_number": "1",
		"amount_cents": 100,
		"payer_id": "A",
		"payee_id": "B"
	}`))

	// The failure is logged, not propagated; redelivery settles it.
	require.Len(t, sender.commands, 1)
	assert.True(t, sender.commands[0].ExpiryDate.IsZero())
}
