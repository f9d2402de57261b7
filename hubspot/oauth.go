package hubspot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/carlmjohnson/requests"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/metrics"
)

// Credentials is the token pair HubSpot issues for an installed portal.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`
}

// TokenInfo is the introspection record for an access token. The bridge uses
// it once per install to learn which hub the credentials belong to.
type TokenInfo struct {
	HubID     int64  `json:"hub_id"`
	HubDomain string `json:"hub_domain"`
	AppID     int64  `json:"app_id"`
	UserID    int64  `json:"user_id"`
	User      string `json:"user"`
	ExpiresIn int    `json:"expires_in"`
}

// AuthorizeURL builds the HubSpot consent page URL the install flow
// redirects the admin to. state is echoed back on the callback and must be
// verified there.
func (c *Client) AuthorizeURL(state string, scopes ...string) string {
	q := url.Values{
		"client_id":    {c.ClientID},
		"redirect_uri": {c.RedirectURI},
		"scope":        {strings.Join(scopes, " ")},
		"state":        {state},
	}
	return c.AuthBase + "/oauth/authorize?" + q.Encode()
}

// ExchangeCode trades the authorization code from the OAuth callback for a
// token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Credentials, error) {
	var creds Credentials
	err := requests.URL(c.APIBase).
		Path("/oauth/v1/token").
		BodyForm(url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {c.ClientID},
			"client_secret": {c.ClientSecret},
			"redirect_uri":  {c.RedirectURI},
			"code":          {code},
		}).
		Client(c.HTTPClient).
		CheckStatus(http.StatusOK).
		ToJSON(&creds).
		Fetch(ctx)
	metrics.HubSpotCall("oauth.exchange", err)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return &creds, nil
}

// Refresh trades a refresh token for a fresh token pair. HubSpot keeps the
// refresh token stable, but callers should persist whatever comes back.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	var creds Credentials
	err := requests.URL(c.APIBase).
		Path("/oauth/v1/token").
		BodyForm(url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {c.ClientID},
			"client_secret": {c.ClientSecret},
			"refresh_token": {refreshToken},
		}).
		Client(c.HTTPClient).
		CheckStatus(http.StatusOK).
		ToJSON(&creds).
		Fetch(ctx)
	metrics.HubSpotCall("oauth.refresh", err)
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	return &creds, nil
}

// IntrospectToken looks up the hub an access token was issued for.
func (c *Client) IntrospectToken(ctx context.Context, accessToken string) (*TokenInfo, error) {
	var info TokenInfo
	err := requests.URL(c.APIBase).
		Pathf("/oauth/v1/access-tokens/%s", accessToken).
		Client(c.HTTPClient).
		CheckStatus(http.StatusOK).
		ToJSON(&info).
		Fetch(ctx)
	metrics.HubSpotCall("oauth.introspect", err)
	if err != nil {
		return nil, fmt.Errorf("introspecting access token: %w", err)
	}
	return &info, nil
}
