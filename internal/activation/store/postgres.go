package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"rtpbridge/internal/activation/models"
	"rtpbridge/pkg/platform/sentinel"
)

// Postgres persists activations. The fiscal_code column carries a unique
// constraint, so a concurrent duplicate insert surfaces as the same
// conflict the find-before-insert check would have reported.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const uniqueViolation = "23505"

func (s *Postgres) Create(ctx context.Context, activation models.Activation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activations (id, fiscal_code, service_provider_debtor, effective_date)
		VALUES ($1, $2, $3, $4)
	`, activation.ID, activation.FiscalCode, activation.ServiceProviderDebtor, activation.EffectiveDate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert activation: %w", err)
	}
	return nil
}

func (s *Postgres) FindByFiscalCode(ctx context.Context, fiscalCode string) (models.Activation, error) {
	var activation models.Activation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, fiscal_code, service_provider_debtor, effective_date
		FROM activations
		WHERE fiscal_code = $1
	`, fiscalCode).Scan(&activation.ID, &activation.FiscalCode, &activation.ServiceProviderDebtor, &activation.EffectiveDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Activation{}, sentinel.ErrNotFound
		}
		return models.Activation{}, fmt.Errorf("find activation: %w", err)
	}
	return activation, nil
}
