package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtpbridge/internal/activation/store"
	dErrors "rtpbridge/pkg/domain-errors"
	"rtpbridge/pkg/platform/audit"
	"rtpbridge/pkg/platform/audit/publisher"
	"rtpbridge/pkg/requestcontext"
)

func TestActivate(t *testing.T) {
	svc := New(store.NewInMemory())
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	activation, err := svc.Activate(ctx, "PSP-A", "RSSMRA80A01H501U")
	require.NoError(t, err)
	assert.Equal(t, "RSSMRA80A01H501U", activation.FiscalCode)
	assert.Equal(t, "PSP-A", activation.ServiceProviderDebtor)
	assert.Equal(t, now, activation.EffectiveDate)
	assert.NotZero(t, activation.ID)
}

func TestActivateEmitsAuditEvent(t *testing.T) {
	sink := publisher.NewMemory()
	svc := New(store.NewInMemory(), WithAuditPublisher(sink))

	activation, err := svc.Activate(context.Background(), "PSP-A", "RSSMRA80A01H501U")
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionPayerActivated, events[0].Action)
	assert.Equal(t, activation.ID, events[0].ResourceID)
	assert.Equal(t, "PSP-A", events[0].ServiceProvider)

	// A rejected duplicate emits nothing.
	_, err = svc.Activate(context.Background(), "PSP-B", "RSSMRA80A01H501U")
	require.Error(t, err)
	assert.Len(t, sink.Events(), 1)
}

func TestActivateDuplicateFiscalCode(t *testing.T) {
	svc := New(store.NewInMemory())
	ctx := context.Background()

	first, err := svc.Activate(ctx, "PSP-A", "RSSMRA80A01H501U")
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "PSP-B", "RSSMRA80A01H501U")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	var already *AlreadyActivatedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, first.ID, already.ExistingID)
}

func TestActivateValidation(t *testing.T) {
	svc := New(store.NewInMemory())

	_, err := svc.Activate(context.Background(), "PSP-A", "  ")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = svc.Activate(context.Background(), "", "RSSMRA80A01H501U")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestFindByFiscalCode(t *testing.T) {
	svc := New(store.NewInMemory())
	ctx := context.Background()

	_, err := svc.FindByFiscalCode(ctx, "RSSMRA80A01H501U")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	created, err := svc.Activate(ctx, "PSP-A", "RSSMRA80A01H501U")
	require.NoError(t, err)

	found, err := svc.FindByFiscalCode(ctx, "RSSMRA80A01H501U")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}
