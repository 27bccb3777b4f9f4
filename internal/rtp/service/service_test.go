package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	activationservice "rtpbridge/internal/activation/service"
	activationstore "rtpbridge/internal/activation/store"
	"rtpbridge/internal/oauth"
	registrymodels "rtpbridge/internal/registry/models"
	"rtpbridge/internal/rtp/models"
	"rtpbridge/internal/rtp/store"
	dErrors "rtpbridge/pkg/domain-errors"
	"rtpbridge/pkg/platform/audit"
	"rtpbridge/pkg/platform/audit/publisher"
	"rtpbridge/pkg/platform/sentinel"
)

type fakeRegistry struct {
	entries map[string]registrymodels.ServiceProviderFullData
}

func (f *fakeRegistry) Resolve(ctx context.Context, providerID string) (registrymodels.ServiceProviderFullData, error) {
	entry, ok := f.entries[providerID]
	if !ok {
		return registrymodels.ServiceProviderFullData{}, sentinel.ErrNotFound
	}
	return entry, nil
}

type fakeTokens struct {
	err  error
	last oauth.TokenRequest
}

func (f *fakeTokens) GetToken(ctx context.Context, req oauth.TokenRequest) (string, error) {
	f.last = req
	if f.err != nil {
		return "", f.err
	}
	return "tok-xyz", nil
}

type fakeSepa struct {
	err      error
	calls    int
	endpoint string
	mtls     bool
	token    string
}

func (f *fakeSepa) Send(ctx context.Context, endpoint string, mtlsRequired bool, accessToken string, rtp models.Rtp) error {
	f.calls++
	f.endpoint = endpoint
	f.mtls = mtlsRequired
	f.token = accessToken
	return f.err
}

type fixture struct {
	svc      *Service
	rtps     *store.InMemory
	registry *fakeRegistry
	tokens   *fakeTokens
	sepa     *fakeSepa
	audit    *publisher.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	activations := activationservice.New(activationstore.NewInMemory())
	_, err := activations.Activate(context.Background(), "PSP-A", "RSSMRA80A01H501U")
	require.NoError(t, err)

	registry := &fakeRegistry{entries: map[string]registrymodels.ServiceProviderFullData{
		"PSP-A": {
			SP: registrymodels.ServiceProvider{ID: "PSP-A", Name: "Provider A", TSPID: "TSP1"},
			TSP: &registrymodels.TechnicalServiceProvider{
				ID:                      "TSP1",
				ServiceEndpoint:         "https://tsp1.example/rtp",
				CertificateSerialNumber: "0A1B2C",
				MTLSEnabled:             true,
				OAuth2: &registrymodels.OAuth2{
					TokenEndpoint:      "https://tsp1.example/token",
					ClientID:           "client-a",
					ClientSecretEnvVar: "TSP1_SECRET",
					Scope:              "rtp.send",
					MTLSEnabled:        true,
				},
			},
		},
		"PSP-NO-TSP": {SP: registrymodels.ServiceProvider{ID: "PSP-NO-TSP", TSPID: "gone"}},
	}}

	f := &fixture{
		rtps:     store.NewInMemory(),
		registry: registry,
		tokens:   &fakeTokens{},
		sepa:     &fakeSepa{},
		audit:    publisher.NewMemory(),
	}
	f.svc = New(f.rtps, activations, registry, f.tokens, f.sepa, "PSP-B",
		WithAuditPublisher(f.audit),
		WithSecretResolver(func(envVar string) string {
			if envVar == "TSP1_SECRET" {
				return "s3cret"
			}
			return ""
		}),
	)
	return f
}

func sendCommand() SendCommand {
	return SendCommand{
		NoticeNumber: "302001069073736898",
		AmountCents:  1250,
		Description:  "TARI 2026",
		ExpiryDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PayerID:      "RSSMRA80A01H501U",
		PayerName:    "Mario Rossi",
		PayeeID:      "77777777777",
		PayeeName:    "Comune di Roma",
		IBAN:         "IT60X0542811101000000123456",
	}
}

func TestSendHappyPath(t *testing.T) {
	f := newFixture(t)

	sent, err := f.svc.Send(context.Background(), sendCommand())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSent, sent.Status)
	assert.Equal(t, "PSP-A", sent.ServiceProviderDebtor)
	assert.Equal(t, "PSP-B", sent.ServiceProviderCreditor)
	require.Len(t, sent.Events, 2)
	assert.Equal(t, models.EventCreateRtp, sent.Events[0].TriggerEvent)
	assert.Equal(t, models.EventSendRtp, sent.Events[1].TriggerEvent)

	// Token acquisition used the resolved registry configuration.
	assert.Equal(t, "https://tsp1.example/token", f.tokens.last.TokenEndpoint)
	assert.Equal(t, "client-a", f.tokens.last.ClientID)
	assert.Equal(t, "s3cret", f.tokens.last.ClientSecret)
	assert.True(t, f.tokens.last.MTLSRequired)

	// The call went to the resolved endpoint over mutual TLS.
	assert.Equal(t, "https://tsp1.example/rtp", f.sepa.endpoint)
	assert.True(t, f.sepa.mtls)
	assert.Equal(t, "tok-xyz", f.sepa.token)

	stored, err := f.rtps.FindByID(context.Background(), sent.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, stored.Status)
}

func TestSendNonPositiveAmountRejected(t *testing.T) {
	f := newFixture(t)

	for _, cents := range []int64{0, -1250} {
		cmd := sendCommand()
		cmd.AmountCents = cents

		_, err := f.svc.Send(context.Background(), cmd)
		require.Error(t, err, "amount %d must be rejected", cents)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	}
	assert.Empty(t, f.sepa.endpoint, "nothing dispatched for a rejected amount")
}

func TestSendPayerNotActivated(t *testing.T) {
	f := newFixture(t)

	cmd := sendCommand()
	cmd.PayerID = "VRDLGI85B02F205X"
	_, err := f.svc.Send(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.Zero(t, f.sepa.calls, "no outbound call without an activation")
}

func TestSendProviderNotFound(t *testing.T) {
	f := newFixture(t)
	f.registry.entries = map[string]registrymodels.ServiceProviderFullData{}

	_, err := f.svc.Send(context.Background(), sendCommand())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSendProviderMissingTechnicalRecord(t *testing.T) {
	f := newFixture(t)
	f.registry.entries["PSP-A"] = f.registry.entries["PSP-NO-TSP"]

	_, err := f.svc.Send(context.Background(), sendCommand())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.Zero(t, f.sepa.calls)
}

func TestSendTokenFailureMarksErrorSend(t *testing.T) {
	f := newFixture(t)
	f.tokens.err = dErrors.New(dErrors.CodeUpstream, "token endpoint answered 500")

	_, err := f.svc.Send(context.Background(), sendCommand())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstream))
	assert.Zero(t, f.sepa.calls, "no outbound call without a token")

	assertSingleErrorSend(t, f)
}

func TestSendRemoteFailureMarksErrorSend(t *testing.T) {
	f := newFixture(t)
	f.sepa.err = errors.New("endpoint answered 502")

	_, err := f.svc.Send(context.Background(), sendCommand())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstream))

	assertSingleErrorSend(t, f)
}

func assertSingleErrorSend(t *testing.T, f *fixture) {
	t.Helper()
	var found bool
	for _, event := range f.audit.Events() {
		if event.Action != audit.ActionRtpSendFailed {
			continue
		}
		found = true
		stored, err := f.rtps.FindByID(context.Background(), event.ResourceID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusErrorSend, stored.Status)
		require.Len(t, stored.Events, 2)
		assert.Equal(t, models.EventErrorSendRtp, stored.Events[1].TriggerEvent)
	}
	assert.True(t, found, "expected a send-failed audit event")
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	sent, err := f.svc.Send(context.Background(), sendCommand())
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), sent.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
}

func TestCancelUnknownRtp(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Cancel(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestCancelTerminalStatusRejected(t *testing.T) {
	f := newFixture(t)

	sent, err := f.svc.Send(context.Background(), sendCommand())
	require.NoError(t, err)

	accepted, err := sent.Apply(models.EventAcceptRtp, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.rtps.Update(context.Background(), accepted))

	_, err = f.svc.Cancel(context.Background(), sent.ResourceID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
