package store

import (
	"context"

	"github.com/google/uuid"

	"rtpbridge/internal/rtp/models"
)

// Repository is the persistence capability for the RTP aggregate. Stores
// return pkg/platform/sentinel errors; services translate them.
//
// Save inserts a new aggregate; Update persists a transitioned copy,
// appending the events that were not yet stored. The secondary lookup
// serves messages from the GDP stream, which carry an operation id and
// dispatcher name instead of the resource id.
type Repository interface {
	Save(ctx context.Context, rtp models.Rtp) error
	Update(ctx context.Context, rtp models.Rtp) error
	FindByID(ctx context.Context, resourceID uuid.UUID) (models.Rtp, error)
	FindByOperationID(ctx context.Context, operationID, eventDispatcher string) (models.Rtp, error)
}
