package hubspot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// signatureMaxAge bounds how stale a signed request may be before it is
// rejected as a possible replay.
const signatureMaxAge = 5 * time.Minute

var (
	errSignatureMissing = errors.New("hubspot: missing request signature")
	errSignatureStale   = errors.New("hubspot: request timestamp outside allowed window")
	errSignatureInvalid = errors.New("hubspot: request signature mismatch")
)

// ValidateSignature checks the X-HubSpot-Signature-v3 header on an inbound
// request. externalURL must be the full URL HubSpot called, scheme and query
// included, and body the raw request body. The v3 scheme signs
// method+url+body+timestamp with the app's client secret.
func (c *Client) ValidateSignature(r *http.Request, externalURL string, body []byte, now time.Time) error {
	signature := r.Header.Get("X-HubSpot-Signature-v3")
	timestamp := r.Header.Get("X-HubSpot-Request-Timestamp")
	if signature == "" || timestamp == "" {
		return errSignatureMissing
	}

	millis, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errSignatureStale
	}
	sent := time.UnixMilli(millis)
	if now.Sub(sent) > signatureMaxAge || sent.Sub(now) > signatureMaxAge {
		return errSignatureStale
	}

	mac := hmac.New(sha256.New, []byte(c.ClientSecret))
	mac.Write([]byte(r.Method))
	mac.Write([]byte(externalURL))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errSignatureInvalid
	}
	return nil
}
