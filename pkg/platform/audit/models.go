// Package audit defines the lifecycle audit trail emitted from domain
// logic. Events are transport-agnostic so publishers can fan out to Kafka,
// logs or stores without the services caring.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names one audited lifecycle outcome.
type Action string

const (
	ActionRtpCreated           Action = "rtp_created"
	ActionRtpSent              Action = "rtp_sent"
	ActionRtpSendFailed        Action = "rtp_send_failed"
	ActionRtpAccepted          Action = "rtp_accepted"
	ActionRtpRejected          Action = "rtp_rejected"
	ActionRtpError             Action = "rtp_error"
	ActionRtpCancelled         Action = "rtp_cancelled"
	ActionPayerActivated       Action = "payer_activated"
	ActionCallbackUnauthorized Action = "callback_unauthorized"
)

// Event is one audit record. ResourceID is zero for events that are not
// tied to a single RTP (e.g. an unauthorized callback that never resolved
// one).
type Event struct {
	Timestamp       time.Time `json:"timestamp"`
	Action          Action    `json:"action"`
	ResourceID      uuid.UUID `json:"resource_id,omitempty"`
	ServiceProvider string    `json:"service_provider,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	RequestID       string    `json:"request_id,omitempty"`
}
