package oauth

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/hubspot"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	require := require.New(t)
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger: logger.Default.LogMode(func() logger.LogLevel {
			return logger.Warn
		}()),
	})
	require.NoError(err)

	err = db.AutoMigrate(models.AllTables()...)
	require.NoError(err)

	return db
}

// newTestEnv wires an Env at a fake HubSpot that grants every code exchange
// and reports the token as belonging to hubID. The database is shared
// between tests, so each test passes its own hub id.
func newTestEnv(t *testing.T, hubID int64) *models.Env {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","expires_in":1800}`))
	})
	mux.HandleFunc("/oauth/v1/access-tokens/access-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"hub_id":%d,"hub_domain":"acme.hubspot.com","app_id":7,"user_id":99,"user":"ops@acme.test","expires_in":1800}`, hubID)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := hubspot.NewClient("app-id", "app-secret", "https://bridge.example.com/oauth/callback")
	client.APIBase = srv.URL
	client.AuthBase = srv.URL

	return &models.Env{
		DB:      setupTestDB(t),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		HubSpot: client,
		Base:    "https://bridge.example.com",
		Scopes:  []string{"files", "crm.objects.contacts.read"},
	}
}

// install drives the install redirect and returns the state nonce HubSpot
// would echo back.
func install(t *testing.T, env *models.Env) string {
	t.Helper()
	require := require.New(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/oauth/install", nil)
	require.NoError(Install(env, w, r))
	require.Equal(http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(err)
	return location.Query().Get("state")
}

func TestInstallRedirectsToConsentPage(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 424240)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/oauth/install", nil)
	require.NoError(Install(env, w, r))
	require.Equal(http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(err)
	require.Equal("/oauth/authorize", location.Path)

	q := location.Query()
	require.Equal("app-id", q.Get("client_id"))
	require.Equal("https://bridge.example.com/oauth/callback", q.Get("redirect_uri"))
	require.Equal("files crm.objects.contacts.read", q.Get("scope"))
	require.NotEmpty(q.Get("state"))
}

func TestCallbackStoresPortal(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 424242)
	state := install(t, env)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/oauth/callback?code=auth-code&state="+state, nil)
	require.NoError(Callback(env, w, r))
	require.Equal(http.StatusOK, w.Code)
	require.Contains(w.Body.String(), "acme.hubspot.com")

	portal, err := models.NewPortals(env.DB).Find(424242)
	require.NoError(err)
	require.Equal("access-1", portal.AccessToken)
	require.Equal("refresh-1", portal.RefreshToken)
	require.Equal("acme.hubspot.com", portal.HubDomain)
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 424241)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/oauth/callback?code=auth-code&state=forged", nil)
	require.NoError(Callback(env, w, r))
	require.Equal(http.StatusBadRequest, w.Code)
	require.Contains(w.Body.String(), "Install failed")
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 424244)
	state := install(t, env)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/oauth/callback?code=auth-code&state="+state, nil)
	require.NoError(Callback(env, w, r))
	require.Equal(http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/oauth/callback?code=auth-code&state="+state, nil)
	require.NoError(Callback(env, w, r))
	require.Equal(http.StatusBadRequest, w.Code)
}

func TestIssueDropsExpiredNonces(t *testing.T) {
	require := require.New(t)

	var s states
	for i := 0; i < 100; i++ {
		s.issue()
	}
	s.mu.Lock()
	for nonce := range s.set {
		s.set[nonce] = time.Now().Add(-time.Minute)
	}
	s.mu.Unlock()

	live := s.issue()

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(s.set, 1)
	require.Contains(s.set, live)
}

func TestCallbackUserDeclined(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 424243)
	state := install(t, env)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/oauth/callback?state="+state+"&error=access_denied&error_description=user+declined", nil)
	require.NoError(Callback(env, w, r))
	require.Equal(http.StatusBadRequest, w.Code)
	require.Contains(w.Body.String(), "access_denied")

	_, err := models.NewPortals(env.DB).Find(424243)
	require.ErrorIs(err, gorm.ErrRecordNotFound)
}
