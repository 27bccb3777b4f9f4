package callback

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rtpbridge/pkg/domain-errors"
)

func loadPayload(t *testing.T, name string) *Payload {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	var p Payload
	require.NoError(t, json.Unmarshal(raw, &p))
	return &p
}

func TestExtractResourceIDTrimsAndCanonicalizes(t *testing.T) {
	p := loadPayload(t, "callback_accp.json")

	id, err := ExtractResourceID(p)
	require.NoError(t, err)
	assert.Equal(t, "b77b4a58-5e4c-4b6a-9d2f-8a33cf1adf22", id.String())
}

func TestExtractResourceIDMissingGroupInfo(t *testing.T) {
	p := loadPayload(t, "callback_missing_group.json")

	_, err := ExtractResourceID(p)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestExtractResourceIDEmptyPayload(t *testing.T) {
	_, err := ExtractResourceID(&Payload{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestExtractTransactionStatusesVisitsBothArrayLevels(t *testing.T) {
	p := loadPayload(t, "callback_multi.json")

	statuses, err := ExtractTransactionStatuses(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACTC", "ACCP", "bogus"}, statuses)
}

func TestExtractTransactionStatusesMissingReport(t *testing.T) {
	p := loadPayload(t, "callback_missing_report.json")

	_, err := ExtractTransactionStatuses(p)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestExtractCounterpart(t *testing.T) {
	p := loadPayload(t, "callback_accp.json")

	counterpart, err := ExtractCounterpart(p)
	require.NoError(t, err)
	assert.Equal(t, "PSP-A", counterpart)

	_, err = ExtractCounterpart(&Payload{})
	require.Error(t, err)
}
