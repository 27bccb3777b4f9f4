package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"rtpbridge/internal/activation/models"
	dErrors "rtpbridge/pkg/domain-errors"
	"rtpbridge/pkg/platform/audit"
	"rtpbridge/pkg/platform/sentinel"
	"rtpbridge/pkg/requestcontext"
)

// ActivationStore is the narrow persistence capability the service needs.
type ActivationStore interface {
	Create(ctx context.Context, activation models.Activation) error
	FindByFiscalCode(ctx context.Context, fiscalCode string) (models.Activation, error)
}

// AuditPublisher records activation outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AlreadyActivatedError reports an activation attempt for a fiscal code
// that already has one, carrying the existing activation's id.
type AlreadyActivatedError struct {
	ExistingID uuid.UUID
}

func (e *AlreadyActivatedError) Error() string {
	return "fiscal code already activated under " + e.ExistingID.String()
}

// Service manages payer activations.
type Service struct {
	activations ActivationStore
	logger      *slog.Logger
	audit       AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func New(activations ActivationStore, opts ...Option) *Service {
	s := &Service{activations: activations, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate registers fiscalCode with the given debtor provider. A second
// activation for the same fiscal code fails with *AlreadyActivatedError
// (wrapped in a conflict-coded domain error), whether detected by the
// find-before-insert check or by the store's unique constraint.
func (s *Service) Activate(ctx context.Context, debtorProviderID, fiscalCode string) (models.Activation, error) {
	fiscalCode = strings.TrimSpace(fiscalCode)
	if fiscalCode == "" {
		return models.Activation{}, dErrors.New(dErrors.CodeValidation, "fiscal code is required")
	}
	if debtorProviderID == "" {
		return models.Activation{}, dErrors.New(dErrors.CodeValidation, "debtor service provider id is required")
	}

	if existing, err := s.activations.FindByFiscalCode(ctx, fiscalCode); err == nil {
		return models.Activation{}, dErrors.Wrap(
			&AlreadyActivatedError{ExistingID: existing.ID},
			dErrors.CodeConflict, "payer already activated")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Activation{}, dErrors.Wrap(err, dErrors.CodeInternal, "lookup activation")
	}

	activation := models.Activation{
		ID:                    uuid.New(),
		FiscalCode:            fiscalCode,
		ServiceProviderDebtor: debtorProviderID,
		EffectiveDate:         requestcontext.Now(ctx),
	}
	if err := s.activations.Create(ctx, activation); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			existing, findErr := s.activations.FindByFiscalCode(ctx, fiscalCode)
			if findErr == nil {
				return models.Activation{}, dErrors.Wrap(
					&AlreadyActivatedError{ExistingID: existing.ID},
					dErrors.CodeConflict, "payer already activated")
			}
			return models.Activation{}, dErrors.New(dErrors.CodeConflict, "payer already activated")
		}
		return models.Activation{}, dErrors.Wrap(err, dErrors.CodeInternal, "create activation")
	}

	if s.audit != nil {
		event := audit.Event{
			Timestamp:       requestcontext.Now(ctx),
			Action:          audit.ActionPayerActivated,
			ResourceID:      activation.ID,
			ServiceProvider: debtorProviderID,
			RequestID:       requestcontext.RequestID(ctx),
		}
		if err := s.audit.Emit(ctx, event); err != nil {
			s.logger.Warn("audit emit failed", "action", audit.ActionPayerActivated, "error", err)
		}
	}
	s.logger.Info("payer activated", "activation_id", activation.ID, "service_provider_debtor", debtorProviderID)
	return activation, nil
}

// FindByFiscalCode returns the activation for fiscalCode or a not-found
// domain error.
func (s *Service) FindByFiscalCode(ctx context.Context, fiscalCode string) (models.Activation, error) {
	activation, err := s.activations.FindByFiscalCode(ctx, strings.TrimSpace(fiscalCode))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Activation{}, dErrors.New(dErrors.CodeNotFound, "payer not activated")
		}
		return models.Activation{}, dErrors.Wrap(err, dErrors.CodeInternal, "lookup activation")
	}
	return activation, nil
}
