// Package hubspot is a client for the slices of the HubSpot REST API the
// bridge needs: the OAuth token grants, the Files v3 API, and the CRM notes
// and associations used to walk a contact's attachments.
package hubspot

import (
	"net/http"
	"time"
)

const (
	// DefaultAPIBase is the HubSpot API host.
	DefaultAPIBase = "https://api.hubapi.com"
	// DefaultAuthBase hosts the interactive OAuth authorize page.
	DefaultAuthBase = "https://app.hubspot.com"
)

// Client calls the HubSpot API on behalf of one installed app. It carries
// the app credentials only; per-portal access tokens are passed per call so
// a single client serves every installed portal.
type Client struct {
	// ClientID and ClientSecret identify the app in the HubSpot developer
	// account. The secret also keys request-signature validation.
	ClientID     string
	ClientSecret string
	// RedirectURI must match the app's registered OAuth redirect URL.
	RedirectURI string

	// APIBase and AuthBase exist so tests can point the client at fakes.
	APIBase  string
	AuthBase string

	// HTTPClient performs raw downloads and backs the request builder.
	HTTPClient *http.Client
}

// NewClient returns a client for the app identified by clientID.
func NewClient(clientID, clientSecret, redirectURI string) *Client {
	return &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		APIBase:      DefaultAPIBase,
		AuthBase:     DefaultAuthBase,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}
