package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizePayload_MasksSensitiveKeysAtEveryLevel(t *testing.T) {
	payload := map[string]any{
		"intentId":    "intent-1",
		"attestation": "a1b2c3",
		"nested": map[string]any{
			"proof":      "issuer-proof",
			"anchorType": "GROCERY",
			"items": []any{
				map[string]any{"userAddress": "0xA1B2", "units": 25},
			},
		},
	}

	sanitized, ok := SanitizePayload(payload).(map[string]any)
	require.True(t, ok)

	require.Equal(t, "intent-1", sanitized["intentId"])
	require.Equal(t, "******", sanitized["attestation"])

	nested, ok := sanitized["nested"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "******", nested["proof"])
	require.Equal(t, "GROCERY", nested["anchorType"])

	items, ok := nested["items"].([]any)
	require.True(t, ok)
	item, ok := items[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "******", item["userAddress"])
	require.EqualValues(t, 25, item["units"])
}

func TestSanitizePayload_NormalizesKeyCasing(t *testing.T) {
	payload := map[string]any{
		"Channel-Key":  "secret",
		"ACCOUNT_ID":   int64(42),
		"SigningKey":   "hmac-key",
		"plainCounter": 7,
	}

	sanitized, ok := SanitizePayload(payload).(map[string]any)
	require.True(t, ok)
	require.Equal(t, "******", sanitized["Channel-Key"])
	require.Equal(t, "******", sanitized["ACCOUNT_ID"])
	require.Equal(t, "******", sanitized["SigningKey"])
	require.EqualValues(t, 7, sanitized["plainCounter"])
}

func TestSanitizePayload_UnmarshalableValue(t *testing.T) {
	require.Equal(t, "<unavailable>", SanitizePayload(func() {}))
}
