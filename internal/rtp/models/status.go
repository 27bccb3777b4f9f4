package models

import (
	"fmt"

	"github.com/google/uuid"
)

// RtpStatus is the lifecycle status of a request-to-pay.
type RtpStatus string

const (
	StatusCreated           RtpStatus = "CREATED"
	StatusSent              RtpStatus = "SENT"
	StatusCancelled         RtpStatus = "CANCELLED"
	StatusAccepted          RtpStatus = "ACCEPTED"
	StatusRejected          RtpStatus = "REJECTED"
	StatusUserAccepted      RtpStatus = "USER_ACCEPTED"
	StatusUserRejected      RtpStatus = "USER_REJECTED"
	StatusPaid              RtpStatus = "PAID"
	StatusErrorSend         RtpStatus = "ERROR_SEND"
	StatusCancelledAccr     RtpStatus = "CANCELLED_ACCR"
	StatusCancelledRejected RtpStatus = "CANCELLED_REJECTED"
	StatusErrorCancel       RtpStatus = "ERROR_CANCEL"
)

// RtpEvent is the kind of trigger that moves an RTP between statuses.
type RtpEvent string

const (
	EventCreateRtp         RtpEvent = "CREATE_RTP"
	EventSendRtp           RtpEvent = "SEND_RTP"
	EventCancelRtp         RtpEvent = "CANCEL_RTP"
	EventAcceptRtp         RtpEvent = "ACCEPT_RTP"
	EventRejectRtp         RtpEvent = "REJECT_RTP"
	EventUserAcceptRtp     RtpEvent = "USER_ACCEPT_RTP"
	EventUserRejectRtp     RtpEvent = "USER_REJECT_RTP"
	EventPayRtp            RtpEvent = "PAY_RTP"
	EventErrorSendRtp      RtpEvent = "ERROR_SEND_RTP"
	EventErrorCancelRtp    RtpEvent = "ERROR_CANCEL_RTP"
	EventCancelRtpAccr     RtpEvent = "CANCEL_RTP_ACCR"
	EventCancelRtpRejected RtpEvent = "CANCEL_RTP_REJECTED"
)

// transitions maps each trigger to the statuses it is valid from and the
// status it lands on. ERROR_SEND_RTP is valid from CREATED (a failed
// outbound send) as well as SENT (an error reported by the counterpart).
var transitions = map[RtpEvent]map[RtpStatus]RtpStatus{
	EventSendRtp:           {StatusCreated: StatusSent},
	EventAcceptRtp:         {StatusSent: StatusAccepted},
	EventRejectRtp:         {StatusSent: StatusRejected},
	EventUserAcceptRtp:     {StatusAccepted: StatusUserAccepted},
	EventUserRejectRtp:     {StatusAccepted: StatusUserRejected},
	EventPayRtp:            {StatusAccepted: StatusPaid, StatusUserAccepted: StatusPaid},
	EventErrorSendRtp:      {StatusCreated: StatusErrorSend, StatusSent: StatusErrorSend},
	EventCancelRtp:         {StatusCreated: StatusCancelled, StatusSent: StatusCancelled},
	EventCancelRtpAccr:     {StatusCancelled: StatusCancelledAccr},
	EventCancelRtpRejected: {StatusCancelled: StatusCancelledRejected},
	EventErrorCancelRtp:    {StatusCancelled: StatusErrorCancel},
}

// Transition computes the status reached by applying trigger from current.
// It is a pure function; callers append the matching Event themselves (the
// Rtp.Apply method does both). An inapplicable trigger yields an
// *InvalidTransitionError.
func Transition(resourceID uuid.UUID, current RtpStatus, trigger RtpEvent) (RtpStatus, error) {
	next, ok := transitions[trigger][current]
	if !ok {
		return current, &InvalidTransitionError{
			ResourceID: resourceID,
			Status:     current,
			Trigger:    trigger,
		}
	}
	return next, nil
}

// InvalidTransitionError reports a trigger that is not applicable to the
// RTP's current status. It carries the RTP id so callers can surface which
// aggregate rejected the trigger.
type InvalidTransitionError struct {
	ResourceID uuid.UUID
	Status     RtpStatus
	Trigger    RtpEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("rtp %s: trigger %s not applicable in status %s", e.ResourceID, e.Trigger, e.Status)
}
