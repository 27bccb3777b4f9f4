package callback

import (
	"strings"

	"github.com/google/uuid"

	dErrors "rtpbridge/pkg/domain-errors"
)

// The types below mirror the external EPC status-report nesting field by
// field. They are a wire contract: renaming or flattening anything here
// breaks interoperability with counterpart providers.

// Payload is the inbound callback body.
type Payload struct {
	AsynchronousSepaRequestToPayResponse *Response `json:"AsynchronousSepaRequestToPayResponse"`
}

type Response struct {
	Document *Document `json:"Document"`
}

type Document struct {
	CdtrPmtActvtnReqStsRpt *StatusReport `json:"CdtrPmtActvtnReqStsRpt"`
}

type StatusReport struct {
	GrpHdr            *GroupHeader          `json:"GrpHdr"`
	OrgnlGrpInfAndSts *OriginalGroupInfo    `json:"OrgnlGrpInfAndSts"`
	OrgnlPmtInfAndSts []OriginalPaymentInfo `json:"OrgnlPmtInfAndSts"`
}

type GroupHeader struct {
	MsgId    string           `json:"MsgId"`
	CreDtTm  string           `json:"CreDtTm"`
	InitgPty *InitiatingParty `json:"InitgPty"`
}

type InitiatingParty struct {
	Nm string   `json:"Nm"`
	Id *PartyId `json:"Id"`
}

type PartyId struct {
	OrgId *OrgId `json:"OrgId"`
}

type OrgId struct {
	AnyBIC string `json:"AnyBIC"`
}

type OriginalGroupInfo struct {
	OrgnlMsgId   string `json:"OrgnlMsgId"`
	OrgnlMsgNmId string `json:"OrgnlMsgNmId"`
}

type OriginalPaymentInfo struct {
	OrgnlPmtInfId string            `json:"OrgnlPmtInfId"`
	TxInfAndSts   []TransactionInfo `json:"TxInfAndSts"`
}

type TransactionInfo struct {
	StsId string `json:"StsId"`
	TxSts string `json:"TxSts"`
}

func (p *Payload) report() *StatusReport {
	if p == nil || p.AsynchronousSepaRequestToPayResponse == nil {
		return nil
	}
	doc := p.AsynchronousSepaRequestToPayResponse.Document
	if doc == nil {
		return nil
	}
	return doc.CdtrPmtActvtnReqStsRpt
}

// ExtractResourceID pulls the referenced RTP's resource id from the
// original message id field, trimming and re-parsing it into the canonical
// UUID form.
func ExtractResourceID(p *Payload) (uuid.UUID, error) {
	report := p.report()
	if report == nil || report.OrgnlGrpInfAndSts == nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "callback lacks original group information")
	}
	raw := strings.TrimSpace(report.OrgnlGrpInfAndSts.OrgnlMsgId)
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "callback lacks original message id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "original message id is not a resource id")
	}
	return id, nil
}

// ExtractTransactionStatuses walks both array levels of the status report
// and returns every TxSts value in document order. An absent report
// structure is an extraction error; empty arrays are not.
func ExtractTransactionStatuses(p *Payload) ([]string, error) {
	report := p.report()
	if report == nil || report.OrgnlPmtInfAndSts == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "callback lacks transaction status report")
	}
	var statuses []string
	for _, pmtInf := range report.OrgnlPmtInfAndSts {
		for _, tx := range pmtInf.TxInfAndSts {
			statuses = append(statuses, tx.TxSts)
		}
	}
	return statuses, nil
}

// ExtractCounterpart returns the provider identifier the caller claims to
// be, from the group header's initiating party.
func ExtractCounterpart(p *Payload) (string, error) {
	report := p.report()
	if report == nil || report.GrpHdr == nil || report.GrpHdr.InitgPty == nil ||
		report.GrpHdr.InitgPty.Id == nil || report.GrpHdr.InitgPty.Id.OrgId == nil ||
		report.GrpHdr.InitgPty.Id.OrgId.AnyBIC == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "callback lacks initiating party identifier")
	}
	return report.GrpHdr.InitgPty.Id.OrgId.AnyBIC, nil
}
