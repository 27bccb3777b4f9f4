// Package service orchestrates the outbound RTP dispatch: activation
// lookup, registry resolution, token acquisition and the authenticated
// SEPA call, driving the aggregate's CREATE/SEND/ERROR_SEND transitions.
package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	activationmodels "rtpbridge/internal/activation/models"
	"rtpbridge/internal/oauth"
	registrymodels "rtpbridge/internal/registry/models"
	"rtpbridge/internal/rtp/metrics"
	"rtpbridge/internal/rtp/models"
	"rtpbridge/internal/rtp/store"
	dErrors "rtpbridge/pkg/domain-errors"
	"rtpbridge/pkg/platform/audit"
	"rtpbridge/pkg/platform/sentinel"
	"rtpbridge/pkg/requestcontext"
)

// ActivationRegistry resolves which debtor provider serves a payer.
type ActivationRegistry interface {
	FindByFiscalCode(ctx context.Context, fiscalCode string) (activationmodels.Activation, error)
}

// RegistryResolver looks up a provider's routing and security entry.
type RegistryResolver interface {
	Resolve(ctx context.Context, providerID string) (registrymodels.ServiceProviderFullData, error)
}

// TokenIssuer acquires an access token for the outbound call.
type TokenIssuer interface {
	GetToken(ctx context.Context, req oauth.TokenRequest) (string, error)
}

// SepaSender performs the outbound SEPA POST.
type SepaSender interface {
	Send(ctx context.Context, endpoint string, mtlsRequired bool, accessToken string, rtp models.Rtp) error
}

// AuditPublisher records lifecycle outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// SendCommand carries the creditor-side request to create and send an RTP.
// The creditor provider is this instance's identity, not caller input.
type SendCommand struct {
	NoticeNumber    string
	AmountCents     int64
	Description     string
	Subject         string
	ExpiryDate      time.Time
	PayerID         string
	PayerName       string
	PayeeID         string
	PayeeName       string
	IBAN            string
	PayTrxRef       string
	Confirmed       bool
	OperationID     string
	EventDispatcher string
}

// Service is the outbound dispatcher.
type Service struct {
	rtps        store.Repository
	activations ActivationRegistry
	registry    RegistryResolver
	tokens      TokenIssuer
	sepa        SepaSender
	spCreditor  string

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher
	tracer  trace.Tracer
	secret  func(envVar string) string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

// WithSecretResolver overrides how OAuth2 client secrets are resolved from
// their registry reference. Defaults to environment lookup.
func WithSecretResolver(resolve func(envVar string) string) Option {
	return func(s *Service) { s.secret = resolve }
}

func New(
	rtps store.Repository,
	activations ActivationRegistry,
	registry RegistryResolver,
	tokens TokenIssuer,
	sepa SepaSender,
	spCreditor string,
	opts ...Option,
) *Service {
	s := &Service{
		rtps:        rtps,
		activations: activations,
		registry:    registry,
		tokens:      tokens,
		sepa:        sepa,
		spCreditor:  spCreditor,
		logger:      slog.Default(),
		tracer:      otel.Tracer("rtpbridge/rtp"),
		secret:      os.Getenv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send creates the RTP, dispatches it to the debtor provider and returns
// the SENT aggregate. The RTP is persisted as CREATED before the outbound
// sequence starts; a token or call failure leaves it in ERROR_SEND rather
// than SENT, with the failure surfaced to the caller.
func (s *Service) Send(ctx context.Context, cmd SendCommand) (models.Rtp, error) {
	ctx, span := s.tracer.Start(ctx, "rtp.send")
	defer span.End()
	start := time.Now()

	if cmd.AmountCents <= 0 {
		return models.Rtp{}, dErrors.New(dErrors.CodeValidation, "amount must be a positive number of cents")
	}

	activation, err := s.activations.FindByFiscalCode(ctx, cmd.PayerID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return models.Rtp{}, dErrors.New(dErrors.CodeNotFound, "payer not activated")
		}
		return models.Rtp{}, err
	}

	entry, err := s.resolveProvider(ctx, activation.ServiceProviderDebtor)
	if err != nil {
		return models.Rtp{}, err
	}

	rtp := s.buildRtp(ctx, cmd, activation)
	if err := s.rtps.Save(ctx, rtp); err != nil {
		return models.Rtp{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist rtp")
	}
	s.emit(ctx, audit.ActionRtpCreated, rtp.ResourceID, rtp.ServiceProviderDebtor, "")

	token, err := s.tokens.GetToken(ctx, s.tokenRequest(entry))
	if err != nil {
		return s.failSend(ctx, rtp, err)
	}

	if err := s.sepa.Send(ctx, entry.TSP.ServiceEndpoint, entry.TSP.MTLSEnabled, token, rtp); err != nil {
		return s.failSend(ctx, rtp, dErrors.Wrap(err, dErrors.CodeUpstream, "sepa request failed"))
	}

	sent, err := rtp.Apply(models.EventSendRtp, requestcontext.Now(ctx))
	if err != nil {
		return models.Rtp{}, wrapTransition(err)
	}
	if err := s.rtps.Update(ctx, sent); err != nil {
		return models.Rtp{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist sent rtp")
	}

	if s.metrics != nil {
		s.metrics.Sends.WithLabelValues("sent").Inc()
		s.metrics.SendTime.Observe(time.Since(start).Seconds())
	}
	s.emit(ctx, audit.ActionRtpSent, sent.ResourceID, sent.ServiceProviderDebtor, "")
	s.logger.Info("rtp sent",
		"resource_id", sent.ResourceID,
		"service_provider_debtor", sent.ServiceProviderDebtor)
	return sent, nil
}

// Cancel applies the cancellation trigger to an existing RTP. Cancellation
// is rejected once the RTP reached a terminal accepted, rejected or paid
// status.
func (s *Service) Cancel(ctx context.Context, resourceID uuid.UUID) (models.Rtp, error) {
	rtp, err := s.rtps.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Rtp{}, dErrors.Newf(dErrors.CodeNotFound, "rtp %s not found", resourceID)
		}
		return models.Rtp{}, dErrors.Wrap(err, dErrors.CodeInternal, "load rtp")
	}

	cancelled, err := rtp.Apply(models.EventCancelRtp, requestcontext.Now(ctx))
	if err != nil {
		return models.Rtp{}, wrapTransition(err)
	}
	if err := s.rtps.Update(ctx, cancelled); err != nil {
		return models.Rtp{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist cancelled rtp")
	}

	s.emit(ctx, audit.ActionRtpCancelled, cancelled.ResourceID, cancelled.ServiceProviderDebtor, "")
	return cancelled, nil
}

func (s *Service) resolveProvider(ctx context.Context, providerID string) (registrymodels.ServiceProviderFullData, error) {
	entry, err := s.registry.Resolve(ctx, providerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return registrymodels.ServiceProviderFullData{}, dErrors.Newf(dErrors.CodeNotFound, "service provider %s not found", providerID)
		}
		return registrymodels.ServiceProviderFullData{}, dErrors.Wrap(err, dErrors.CodeInternal, "resolve service provider")
	}
	if entry.TSP == nil {
		return registrymodels.ServiceProviderFullData{}, dErrors.Newf(dErrors.CodeNotFound, "service provider %s has no technical provider", providerID)
	}
	return entry, nil
}

func (s *Service) buildRtp(ctx context.Context, cmd SendCommand, activation activationmodels.Activation) models.Rtp {
	rtp := models.NewRtp(uuid.New(), requestcontext.Now(ctx))
	rtp.NoticeNumber = cmd.NoticeNumber
	rtp.AmountCents = cmd.AmountCents
	rtp.Description = cmd.Description
	rtp.Subject = cmd.Subject
	rtp.ExpiryDate = cmd.ExpiryDate
	rtp.PayerID = cmd.PayerID
	rtp.PayerName = cmd.PayerName
	rtp.PayeeID = cmd.PayeeID
	rtp.PayeeName = cmd.PayeeName
	rtp.IBAN = cmd.IBAN
	rtp.PayTrxRef = cmd.PayTrxRef
	rtp.Confirmed = cmd.Confirmed
	rtp.OperationID = cmd.OperationID
	rtp.EventDispatcher = cmd.EventDispatcher
	rtp.ServiceProviderDebtor = activation.ServiceProviderDebtor
	rtp.ServiceProviderCreditor = s.spCreditor
	return rtp
}

func (s *Service) tokenRequest(entry registrymodels.ServiceProviderFullData) oauth.TokenRequest {
	cfg := entry.TSP.OAuth2
	if cfg == nil {
		return oauth.TokenRequest{}
	}
	return oauth.TokenRequest{
		TokenEndpoint: cfg.TokenEndpoint,
		ClientID:      cfg.ClientID,
		ClientSecret:  s.secret(cfg.ClientSecretEnvVar),
		Scope:         cfg.Scope,
		MTLSRequired:  cfg.MTLSEnabled,
	}
}

// failSend records the outbound failure on the aggregate and surfaces the
// original error annotated with the RTP id. The ERROR_SEND transition is
// forward-only: there is no rollback of the created RTP.
func (s *Service) failSend(ctx context.Context, rtp models.Rtp, cause error) (models.Rtp, error) {
	failed, applyErr := rtp.Apply(models.EventErrorSendRtp, requestcontext.Now(ctx))
	if applyErr == nil {
		if err := s.rtps.Update(ctx, failed); err != nil {
			s.logger.Error("persist error-send status failed", "resource_id", rtp.ResourceID, "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.Sends.WithLabelValues("error_send").Inc()
	}
	s.emit(ctx, audit.ActionRtpSendFailed, rtp.ResourceID, rtp.ServiceProviderDebtor, cause.Error())
	s.logger.Warn("rtp send failed", "resource_id", rtp.ResourceID, "error", cause)
	return models.Rtp{}, dErrors.Wrap(cause, dErrors.CodeUpstream, "send rtp "+rtp.ResourceID.String())
}

func (s *Service) emit(ctx context.Context, action audit.Action, resourceID uuid.UUID, provider, reason string) {
	if s.audit == nil {
		return
	}
	event := audit.Event{
		Timestamp:       requestcontext.Now(ctx),
		Action:          action,
		ResourceID:      resourceID,
		ServiceProvider: provider,
		Reason:          reason,
		RequestID:       requestcontext.RequestID(ctx),
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", action, "error", err)
	}
}

func wrapTransition(err error) error {
	return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "invalid transition")
}
