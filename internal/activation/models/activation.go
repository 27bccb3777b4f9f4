package models

import (
	"time"

	"github.com/google/uuid"
)

// Activation registers a payer with the debtor provider responsible for
// it. At most one activation exists per fiscal code; records are immutable
// once created and there is no deactivation path.
type Activation struct {
	ID                    uuid.UUID
	FiscalCode            string
	ServiceProviderDebtor string
	EffectiveDate         time.Time
}
