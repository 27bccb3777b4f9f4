//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtpbridge/internal/rtp/models"
	"rtpbridge/pkg/platform/sentinel"
	"rtpbridge/pkg/testutil/containers"
)

func TestPostgresRoundTrip(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	s := NewPostgres(pg.Pool)
	ctx := context.Background()

	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	rtp := models.NewRtp(uuid.New(), now)
	rtp.NoticeNumber = "302001069073736898"
	rtp.AmountCents = 15099
	rtp.Description = "TARI 2026"
	rtp.ExpiryDate = now.AddDate(0, 1, 0)
	rtp.PayerID = "RSSMRA85T10A562S"
	rtp.PayeeID = "77777777777"
	rtp.ServiceProviderDebtor = "PSP-A"
	rtp.ServiceProviderCreditor = "PSP-LOCAL"
	rtp.IBAN = "IT60X0542811101000000123456"
	rtp.OperationID = "op-42"
	rtp.EventDispatcher = "GDP"

	require.NoError(t, s.Save(ctx, rtp))

	found, err := s.FindByID(ctx, rtp.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, rtp.NoticeNumber, found.NoticeNumber)
	assert.Equal(t, rtp.AmountCents, found.AmountCents)
	assert.Equal(t, models.StatusCreated, found.Status)
	require.Len(t, found.Events, 1)
	assert.Nil(t, found.Events[0].PrecStatus)
	assert.Equal(t, models.EventCreateRtp, found.Events[0].TriggerEvent)

	byOp, err := s.FindByOperationID(ctx, "op-42", "GDP")
	require.NoError(t, err)
	assert.Equal(t, rtp.ResourceID, byOp.ResourceID)
}

func TestPostgresUpdateAppendsOnlyNewEvents(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	s := NewPostgres(pg.Pool)
	ctx := context.Background()

	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	rtp := models.NewRtp(uuid.New(), now)
	rtp.NoticeNumber = "302001069073736898"
	rtp.PayerID = "RSSMRA85T10A562S"
	rtp.PayeeID = "77777777777"
	rtp.ServiceProviderDebtor = "PSP-A"
	rtp.ServiceProviderCreditor = "PSP-LOCAL"
	rtp.ExpiryDate = now
	require.NoError(t, s.Save(ctx, rtp))

	sent, err := rtp.Apply(models.EventSendRtp, now.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, sent))

	accepted, err := sent.Apply(models.EventAcceptRtp, now.Add(2*time.Second))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, accepted))

	found, err := s.FindByID(ctx, rtp.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, found.Status)
	require.Len(t, found.Events, 3)

	// Chain integrity survives the round trip.
	assert.Nil(t, found.Events[0].PrecStatus)
	require.NotNil(t, found.Events[1].PrecStatus)
	assert.Equal(t, models.StatusCreated, *found.Events[1].PrecStatus)
	require.NotNil(t, found.Events[2].PrecStatus)
	assert.Equal(t, models.StatusSent, *found.Events[2].PrecStatus)
}

func TestPostgresSaveConflict(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	s := NewPostgres(pg.Pool)
	ctx := context.Background()

	now := time.Now().UTC()
	rtp := models.NewRtp(uuid.New(), now)
	rtp.NoticeNumber = "1"
	rtp.PayerID = "A"
	rtp.PayeeID = "B"
	rtp.ServiceProviderDebtor = "PSP-A"
	rtp.ServiceProviderCreditor = "PSP-LOCAL"
	rtp.ExpiryDate = now

	require.NoError(t, s.Save(ctx, rtp))
	assert.ErrorIs(t, s.Save(ctx, rtp), sentinel.ErrConflict)
}

func TestPostgresFindUnknown(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	s := NewPostgres(pg.Pool)

	_, err := s.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	err = s.Update(context.Background(), models.NewRtp(uuid.New(), time.Now().UTC()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
