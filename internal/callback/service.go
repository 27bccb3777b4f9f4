// Package callback ingests asynchronous status reports from debtor
// providers and reduces them onto the RTP state machine.
package callback

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"rtpbridge/internal/rtp/metrics"
	"rtpbridge/internal/rtp/models"
	"rtpbridge/internal/rtp/store"
	dErrors "rtpbridge/pkg/domain-errors"
	"rtpbridge/pkg/platform/audit"
	"rtpbridge/pkg/platform/sentinel"
	"rtpbridge/pkg/requestcontext"
)

// AuditPublisher records callback outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the callback pipeline: extract, fetch, map, apply, persist.
type Service struct {
	rtps    store.Repository
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher
	tracer  trace.Tracer
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

func New(rtps store.Repository, opts ...Option) *Service {
	s := &Service{
		rtps:   rtps,
		logger: slog.Default(),
		tracer: otel.Tracer("rtpbridge/callback"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle processes one callback payload. Transaction statuses are applied
// strictly in document order against the same aggregate, persisting after
// each application; the transitions applied before a failure stay
// persisted (forward-only, no rollback) and the failure is surfaced for
// the caller to reconcile by re-delivery.
func (s *Service) Handle(ctx context.Context, p *Payload) error {
	ctx, span := s.tracer.Start(ctx, "callback.handle")
	defer span.End()

	resourceID, err := ExtractResourceID(p)
	if err != nil {
		return err
	}
	statuses, err := ExtractTransactionStatuses(p)
	if err != nil {
		return err
	}

	rtp, err := s.rtps.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "rtp %s not found", resourceID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load rtp")
	}

	for _, text := range statuses {
		trigger := models.TriggerForText(text)

		next, err := rtp.Apply(trigger, requestcontext.Now(ctx))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "invalid transition")
		}
		if err := s.rtps.Update(ctx, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "persist rtp transition")
		}
		rtp = next

		if s.metrics != nil {
			s.metrics.Callbacks.WithLabelValues(string(trigger)).Inc()
		}
		s.emit(ctx, trigger, rtp)
		s.logger.Info("callback trigger applied",
			"resource_id", rtp.ResourceID,
			"trigger", trigger,
			"status", rtp.Status)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, trigger models.RtpEvent, rtp models.Rtp) {
	if s.audit == nil {
		return
	}
	var action audit.Action
	switch trigger {
	case models.EventAcceptRtp:
		action = audit.ActionRtpAccepted
	case models.EventRejectRtp:
		action = audit.ActionRtpRejected
	default:
		action = audit.ActionRtpError
	}
	event := audit.Event{
		Timestamp:       requestcontext.Now(ctx),
		Action:          action,
		ResourceID:      rtp.ResourceID,
		ServiceProvider: rtp.ServiceProviderDebtor,
		RequestID:       requestcontext.RequestID(ctx),
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", action, "error", err)
	}
}
