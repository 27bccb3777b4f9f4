package callback

import (
	"context"
	"log/slog"

	registrymodels "rtpbridge/internal/registry/models"
	dErrors "rtpbridge/pkg/domain-errors"
	"rtpbridge/pkg/platform/audit"
	"rtpbridge/pkg/requestcontext"
)

// RegistryResolver looks up the claimed counterpart's directory entry.
type RegistryResolver interface {
	Resolve(ctx context.Context, providerID string) (registrymodels.ServiceProviderFullData, error)
}

// Verifier authenticates an inbound callback by comparing the presented
// client-certificate serial against the serial the registry records for
// the claimed counterpart. This is the sole authentication mechanism for
// callbacks; there is no secondary signature check.
type Verifier struct {
	registry RegistryResolver
	logger   *slog.Logger
	audit    AuditPublisher
}

type VerifierOption func(*Verifier)

func WithVerifierAuditPublisher(publisher AuditPublisher) VerifierOption {
	return func(v *Verifier) { v.audit = publisher }
}

func NewVerifier(registry RegistryResolver, logger *slog.Logger, opts ...VerifierOption) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Verifier{registry: registry, logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify passes the payload through untouched on success. An unresolved
// counterpart, a missing technical record, or a serial mismatch all fail
// with the same unauthorized error; the comparison is exact and
// case-sensitive.
func (v *Verifier) Verify(ctx context.Context, p *Payload, presentedSerial string) error {
	counterpart, err := ExtractCounterpart(p)
	if err != nil {
		return v.reject(ctx, "", "counterpart missing from payload")
	}

	entry, err := v.registry.Resolve(ctx, counterpart)
	if err != nil || entry.TSP == nil {
		v.logger.Warn("callback counterpart unresolved", "service_provider", counterpart)
		return v.reject(ctx, counterpart, "counterpart unresolved")
	}

	if presentedSerial == "" || entry.TSP.CertificateSerialNumber != presentedSerial {
		v.logger.Warn("callback certificate serial mismatch", "service_provider", counterpart)
		return v.reject(ctx, counterpart, "certificate serial mismatch")
	}
	return nil
}

// reject records the refusal in the audit trail. Callers always see the
// same unauthorized error regardless of the reason.
func (v *Verifier) reject(ctx context.Context, counterpart, reason string) error {
	if v.audit != nil {
		event := audit.Event{
			Timestamp:       requestcontext.Now(ctx),
			Action:          audit.ActionCallbackUnauthorized,
			ServiceProvider: counterpart,
			Reason:          reason,
			RequestID:       requestcontext.RequestID(ctx),
		}
		if err := v.audit.Emit(ctx, event); err != nil {
			v.logger.Warn("audit emit failed", "action", audit.ActionCallbackUnauthorized, "error", err)
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, "incorrect certificate")
}
