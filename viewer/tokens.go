package viewer

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/httpx"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/metrics"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/to"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
)

// TokenCreate mints a viewer token on demand, for callers embedding the
// viewer outside the CRM card. The request must name an installed portal and
// a non-empty file id; both are checked before anything reaches the store.
func TokenCreate(env *models.Env, w http.ResponseWriter, r *http.Request) error {
	var params struct {
		HubID    int64  `json:"hubId" schema:"hubId"`
		FileID   string `json:"fileId" schema:"fileId"`
		Filename string `json:"filename" schema:"filename"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if params.FileID == "" {
		return httpx.Error(http.StatusBadRequest, fmt.Errorf("fileId is required"))
	}
	if _, err := models.NewPortals(env.DB).Find(params.HubID); err != nil {
		return httpx.Error(http.StatusBadRequest, fmt.Errorf("portal %d is not installed", params.HubID))
	}

	token := env.Tokens.Mint(params.HubID, params.FileID, params.Filename)
	metrics.TokenMints.Inc()
	rec, err := env.Tokens.Validate(token, params.FileID)
	if err != nil {
		return err
	}

	return to.JSONStatus(w, http.StatusCreated, struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
		ViewerURL string    `json:"viewerUrl"`
	}{
		Token:     token,
		ExpiresAt: rec.ExpiresAt,
		ViewerURL: env.AbsoluteURL("/viewer/" + params.FileID + "?token=" + token),
	})
}
