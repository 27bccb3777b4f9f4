package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is one immutable entry of an RTP's transition log. PrecStatus is
// nil only for the creation event.
type Event struct {
	Timestamp    time.Time
	PrecStatus   *RtpStatus
	TriggerEvent RtpEvent
}

// Rtp is the request-to-pay aggregate. Transitions rebuild the value with
// the new status and an appended event instead of mutating in place, so a
// caller always holds a self-consistent snapshot.
//
// Invariant: Status equals the outcome of the last event in Events, and
// Events is append-only, never reordered or pruned.
type Rtp struct {
	ResourceID     uuid.UUID
	NoticeNumber   string
	AmountCents    int64
	Description    string
	Subject        string
	ExpiryDate     time.Time
	PayerID        string
	PayerName      string
	PayeeID        string
	PayeeName      string
	SavingDateTime time.Time

	ServiceProviderDebtor   string
	ServiceProviderCreditor string

	IBAN      string
	PayTrxRef string
	Confirmed bool

	// Secondary keys for messages originating from the GDP stream, where
	// the resource id is not known to the producer.
	OperationID     string
	EventDispatcher string

	Status RtpStatus
	Events []Event
}

// NewRtp creates an RTP in status CREATED with its creation event appended.
func NewRtp(resourceID uuid.UUID, at time.Time) Rtp {
	return Rtp{
		ResourceID:     resourceID,
		SavingDateTime: at,
		Status:         StatusCreated,
		Events: []Event{{
			Timestamp:    at,
			TriggerEvent: EventCreateRtp,
		}},
	}
}

// Apply runs trigger through the transition table and returns a copy of the
// RTP with the new status and one appended event. The receiver is left
// untouched; on an invalid transition the original value is returned
// alongside the error.
func (r Rtp) Apply(trigger RtpEvent, at time.Time) (Rtp, error) {
	next, err := Transition(r.ResourceID, r.Status, trigger)
	if err != nil {
		return r, err
	}
	prec := r.Status
	out := r
	out.Status = next
	out.Events = append(append([]Event(nil), r.Events...), Event{
		Timestamp:    at,
		PrecStatus:   &prec,
		TriggerEvent: trigger,
	})
	return out, nil
}
