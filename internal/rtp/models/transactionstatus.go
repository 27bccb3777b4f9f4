package models

import "fmt"

// TransactionStatus is the external status vocabulary reported by a
// counterpart in a callback. Values are matched case-sensitively.
type TransactionStatus string

const (
	TxStatusACTC  TransactionStatus = "ACTC"
	TxStatusACCP  TransactionStatus = "ACCP"
	TxStatusRJCT  TransactionStatus = "RJCT"
	TxStatusERROR TransactionStatus = "ERROR"
	TxStatusCNCL  TransactionStatus = "CNCL"
	TxStatusRJCR  TransactionStatus = "RJCR"
	TxStatusACWC  TransactionStatus = "ACWC"
)

var knownTxStatuses = map[TransactionStatus]struct{}{
	TxStatusACTC:  {},
	TxStatusACCP:  {},
	TxStatusRJCT:  {},
	TxStatusERROR: {},
	TxStatusCNCL:  {},
	TxStatusRJCR:  {},
	TxStatusACWC:  {},
}

// ParseTransactionStatus parses the external status text case-sensitively.
// Empty or unrecognized text is an error; callers in the callback pipeline
// degrade that to the ERROR trigger instead of aborting the batch.
func ParseTransactionStatus(text string) (TransactionStatus, error) {
	s := TransactionStatus(text)
	if _, ok := knownTxStatuses[s]; !ok {
		return "", fmt.Errorf("unknown transaction status %q", text)
	}
	return s, nil
}

// TriggerFor maps a transaction status to the state machine trigger the
// callback pipeline applies. Anything that is not an acceptance or a
// rejection classifies as an outbound-send error.
func TriggerFor(status TransactionStatus) RtpEvent {
	switch status {
	case TxStatusACCP, TxStatusACWC:
		return EventAcceptRtp
	case TxStatusRJCT:
		return EventRejectRtp
	default:
		return EventErrorSendRtp
	}
}

// TriggerForText parses text and maps it to a trigger, degrading any parse
// failure to the error-send trigger.
func TriggerForText(text string) RtpEvent {
	status, err := ParseTransactionStatus(text)
	if err != nil {
		return EventErrorSendRtp
	}
	return TriggerFor(status)
}
