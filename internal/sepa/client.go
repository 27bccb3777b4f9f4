// Package sepa builds and sends the SEPA request-to-pay message to a
// debtor provider's service endpoint.
package sepa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rtpbridge/internal/platform/channel"
	"rtpbridge/internal/rtp/models"
)

// Client performs the authenticated outbound POST. The transport (plain or
// mutual TLS) is chosen per call from the registry entry's flag.
type Client struct {
	channels *channel.Builder
}

func New(channels *channel.Builder) *Client {
	return &Client{channels: channels}
}

// Send posts the SEPA-formatted request for rtp to endpoint with a Bearer
// token. Any HTTP error status, transport failure or timeout is returned
// as an error; the caller classifies it as an outbound failure.
func (c *Client) Send(ctx context.Context, endpoint string, mtlsRequired bool, accessToken string, rtp models.Rtp) error {
	body, err := json.Marshal(requestBody(rtp))
	if err != nil {
		return fmt.Errorf("encode sepa request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sepa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	client, err := c.channels.Client(mtlsRequired)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sepa call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sepa call: endpoint answered %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// requestBody shapes the EPC creditor payment activation request. Field
// names follow the external wire format and must not drift from it.
func requestBody(rtp models.Rtp) map[string]any {
	return map[string]any{
		"resourceId": rtp.ResourceID.String(),
		"Document": map[string]any{
			"CdtrPmtActvtnReq": map[string]any{
				"GrpHdr": map[string]any{
					"MsgId":    rtp.ResourceID.String(),
					"CreDtTm":  rtp.SavingDateTime.UTC().Format(time.RFC3339),
					"InitgPty": map[string]any{"Nm": rtp.PayeeName, "Id": orgID(rtp.ServiceProviderCreditor)},
				},
				"PmtInf": []any{map[string]any{
					"PmtInfId": rtp.NoticeNumber,
					"XpryDt":   rtp.ExpiryDate.Format("2006-01-02"),
					"Dbtr": map[string]any{
						"Nm": rtp.PayerName,
						"Id": map[string]any{"PrvtId": map[string]any{"Othr": map[string]any{"Id": rtp.PayerID}}},
					},
					"DbtrAgt": map[string]any{"FinInstnId": map[string]any{"BICFI": rtp.ServiceProviderDebtor}},
					"CdtTrfTx": []any{map[string]any{
						"PmtId": map[string]any{"EndToEndId": rtp.NoticeNumber},
						"Amt": map[string]any{
							"InstdAmt": formatAmount(rtp.AmountCents),
							"Ccy":      "EUR",
						},
						"Cdtr":     map[string]any{"Nm": rtp.PayeeName, "Id": orgID(rtp.PayeeID)},
						"CdtrAcct": map[string]any{"Id": map[string]any{"IBAN": rtp.IBAN}},
						"RmtInf":   map[string]any{"Ustrd": []any{rtp.Description, rtp.Subject}},
					}},
				}},
			},
		},
	}
}

func orgID(id string) map[string]any {
	return map[string]any{"OrgId": map[string]any{"Othr": map[string]any{"Id": id}}}
}

// formatAmount renders minor units as a fixed-point decimal string, never
// going through floating point. The sign is carried once, so negative
// inputs stay well-formed even though the dispatcher rejects them.
func formatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
