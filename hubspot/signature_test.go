package hubspot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func signV3(secret, method, uri string, body []byte, at time.Time) (signature, timestamp string) {
	timestamp = strconv.FormatInt(at.UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method))
	mac.Write([]byte(uri))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), timestamp
}

func TestValidateSignature(t *testing.T) {
	require := require.New(t)

	c := NewClient("app-id", "app-secret", "https://bridge.example.com/oauth/callback")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	externalURL := "https://bridge.example.com/api/card?portalId=424242"
	body := []byte(`{"hello":"world"}`)

	sig, ts := signV3("app-secret", "POST", externalURL, body, now)
	r := httptest.NewRequest("POST", "/api/card?portalId=424242", strings.NewReader(string(body)))
	r.Header.Set("X-HubSpot-Signature-v3", sig)
	r.Header.Set("X-HubSpot-Request-Timestamp", ts)

	require.NoError(c.ValidateSignature(r, externalURL, body, now))
	require.NoError(c.ValidateSignature(r, externalURL, body, now.Add(4*time.Minute)))

	// tampered body
	require.ErrorIs(c.ValidateSignature(r, externalURL, []byte(`{"hello":"mallory"}`), now), errSignatureInvalid)

	// wrong URL, e.g. replayed against another endpoint
	require.ErrorIs(c.ValidateSignature(r, "https://bridge.example.com/api/other", body, now), errSignatureInvalid)

	// signed with another app's secret
	other := NewClient("app-id", "other-secret", "https://bridge.example.com/oauth/callback")
	require.ErrorIs(other.ValidateSignature(r, externalURL, body, now), errSignatureInvalid)
}

func TestValidateSignatureStale(t *testing.T) {
	require := require.New(t)

	c := NewClient("app-id", "app-secret", "https://bridge.example.com/oauth/callback")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	externalURL := "https://bridge.example.com/api/card"
	body := []byte(`{}`)

	sig, ts := signV3("app-secret", "POST", externalURL, body, now)
	r := httptest.NewRequest("POST", "/api/card", strings.NewReader(string(body)))
	r.Header.Set("X-HubSpot-Signature-v3", sig)
	r.Header.Set("X-HubSpot-Request-Timestamp", ts)

	require.ErrorIs(c.ValidateSignature(r, externalURL, body, now.Add(6*time.Minute)), errSignatureStale)
	require.ErrorIs(c.ValidateSignature(r, externalURL, body, now.Add(-6*time.Minute)), errSignatureStale)

	r.Header.Set("X-HubSpot-Request-Timestamp", "not-a-number")
	require.ErrorIs(c.ValidateSignature(r, externalURL, body, now), errSignatureStale)
}

func TestValidateSignatureMissingHeaders(t *testing.T) {
	require := require.New(t)

	c := NewClient("app-id", "app-secret", "https://bridge.example.com/oauth/callback")
	r := httptest.NewRequest("POST", "/api/card", nil)

	require.ErrorIs(c.ValidateSignature(r, "https://bridge.example.com/api/card", nil, time.Now()), errSignatureMissing)

	r.Header.Set("X-HubSpot-Signature-v3", "c2lnbmF0dXJl")
	require.ErrorIs(c.ValidateSignature(r, "https://bridge.example.com/api/card", nil, time.Now()), errSignatureMissing)
}
