// Package oauth implements the HubSpot app install flow: the redirect to
// HubSpot's consent page and the callback that trades the authorization code
// for portal credentials.
package oauth

import (
	"html"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/httpx"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
)

// stateTTL bounds how long an install may sit on the consent page before the
// callback stops trusting its state nonce.
const stateTTL = 10 * time.Minute

// states remembers the nonces handed to pending installs. Nonces are single
// use; redeeming removes them.
type states struct {
	mu  sync.Mutex
	set map[string]time.Time
}

func (s *states) issue() string {
	nonce := uuid.New().String()
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		s.set = make(map[string]time.Time)
	}
	// Installs abandoned on the consent page never redeem their nonce, so
	// drop anything already expired before adding the new one.
	for n, expiry := range s.set {
		if !now.Before(expiry) {
			delete(s.set, n)
		}
	}
	s.set[nonce] = now.Add(stateTTL)
	return nonce
}

func (s *states) redeem(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.set[nonce]
	if !ok {
		return false
	}
	delete(s.set, nonce)
	return time.Now().Before(expiry)
}

var pending states

// Install redirects the portal admin to HubSpot's consent page.
func Install(env *models.Env, w http.ResponseWriter, r *http.Request) error {
	return httpx.Redirect(w, env.HubSpot.AuthorizeURL(pending.issue(), env.Scopes...))
}

// Callback handles the return leg of the consent flow. On success the
// portal's credentials are stored and an all-done page rendered; every
// failure renders an error page the admin can act on.
func Callback(env *models.Env, w http.ResponseWriter, r *http.Request) error {
	var params struct {
		Code             string `schema:"code"`
		State            string `schema:"state"`
		Error            string `schema:"error"`
		ErrorDescription string `schema:"error_description"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}

	if params.Error != "" {
		env.Log().Info("install declined", "error", params.Error, "description", params.ErrorDescription)
		return errorPage(w, "HubSpot reported "+params.Error+". Try the install again.")
	}
	if params.State == "" || !pending.redeem(params.State) {
		return errorPage(w, "This install link has expired. Start the install again.")
	}
	if params.Code == "" {
		return errorPage(w, "HubSpot did not send an authorization code. Start the install again.")
	}

	creds, err := env.HubSpot.ExchangeCode(r.Context(), params.Code)
	if err != nil {
		env.Log().Error("code exchange failed", "err", err)
		return errorPage(w, "Exchanging the authorization code failed. Start the install again.")
	}
	info, err := env.HubSpot.IntrospectToken(r.Context(), creds.AccessToken)
	if err != nil {
		env.Log().Error("token introspection failed", "err", err)
		return errorPage(w, "Could not identify the HubSpot account. Start the install again.")
	}

	portal := &models.Portal{
		HubID:        info.HubID,
		HubDomain:    info.HubDomain,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(creds.ExpiresIn) * time.Second),
	}
	if err := models.NewPortals(env.DB).Save(portal); err != nil {
		return err
	}

	env.Log().Info("portal installed", "hub_id", info.HubID, "hub_domain", info.HubDomain)
	return successPage(w, info.HubDomain)
}

func successPage(w http.ResponseWriter, hubDomain string) error {
	return page(w, http.StatusOK, `
		<h1>Document viewer connected</h1>
		<p>The viewer is now installed for <strong>`+html.EscapeString(hubDomain)+`</strong>.</p>
		<p>You can close this tab and return to HubSpot.</p>
	`)
}

func errorPage(w http.ResponseWriter, message string) error {
	return page(w, http.StatusBadRequest, `
		<h1>Install failed</h1>
		<p>`+html.EscapeString(message)+`</p>
	`)
}

func page(w http.ResponseWriter, status int, body string) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := io.WriteString(w, `
		<!DOCTYPE html>
		<html>
		<head>
		<meta charset="utf-8">
		<title>Document viewer</title>
		<style>
		body { font-family: system-ui, sans-serif; max-width: 36rem; margin: 4rem auto; padding: 0 1rem; }
		</style>
		</head>
		<body>`+body+`</body>
		</html>
	`)
	return err
}
