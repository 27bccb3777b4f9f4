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
)

func newStoredRtp(t *testing.T) models.Rtp {
	t.Helper()
	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	rtp := models.NewRtp(uuid.New(), now)
	rtp.NoticeNumber = "302001069073736898"
	rtp.AmountCents = 15099
	rtp.PayerID = "RSSMRA85T10A562S"
	rtp.PayeeID = "77777777777"
	rtp.ServiceProviderDebtor = "PSP-A"
	rtp.ServiceProviderCreditor = "PSP-LOCAL"
	return rtp
}

func TestInMemorySaveAndFind(t *testing.T) {
	s := NewInMemory()
	rtp := newStoredRtp(t)

	require.NoError(t, s.Save(context.Background(), rtp))

	found, err := s.FindByID(context.Background(), rtp.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, rtp, found)
}

func TestInMemorySaveConflict(t *testing.T) {
	s := NewInMemory()
	rtp := newStoredRtp(t)

	require.NoError(t, s.Save(context.Background(), rtp))
	assert.ErrorIs(t, s.Save(context.Background(), rtp), sentinel.ErrConflict)
}

func TestInMemoryFindUnknown(t *testing.T) {
	s := NewInMemory()

	_, err := s.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryUpdate(t *testing.T) {
	s := NewInMemory()
	rtp := newStoredRtp(t)
	require.NoError(t, s.Save(context.Background(), rtp))

	sent, err := rtp.Apply(models.EventSendRtp, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, s.Update(context.Background(), sent))

	found, err := s.FindByID(context.Background(), rtp.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, found.Status)
	assert.Len(t, found.Events, 2)
}

func TestInMemoryUpdateUnknown(t *testing.T) {
	s := NewInMemory()

	err := s.Update(context.Background(), newStoredRtp(t))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryFindByOperationID(t *testing.T) {
	s := NewInMemory()
	rtp := newStoredRtp(t)
	rtp.OperationID = "op-1"
	rtp.EventDispatcher = "GDP"
	require.NoError(t, s.Save(context.Background(), rtp))

	found, err := s.FindByOperationID(context.Background(), "op-1", "GDP")
	require.NoError(t, err)
	assert.Equal(t, rtp.ResourceID, found.ResourceID)

	// The index is scoped per dispatcher.
	_, err = s.FindByOperationID(context.Background(), "op-1", "OTHER")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
