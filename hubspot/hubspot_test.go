package hubspot

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient points a client at a fake HubSpot so tests never leave the
// process.
func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient("test-client-id", "test-client-secret", "https://bridge.example.com/oauth/callback")
	c.APIBase = srv.URL
	c.AuthBase = srv.URL
	return c
}
