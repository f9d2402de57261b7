package viewer

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/httpx"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/metrics"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
)

// Content streams the document's bytes through to the viewer. The token must
// be bound to exactly this file. A fresh signed URL is fetched per request;
// nothing is cached on the way through.
func Content(env *models.Env, w http.ResponseWriter, r *http.Request) error {
	fileID := chi.URLParam(r, "fileID")

	rec, err := env.Tokens.Validate(r.URL.Query().Get("token"), fileID)
	metrics.Validation(err)
	if err != nil {
		return httpx.Unauthorized(err)
	}

	ctx := r.Context()
	accessToken, err := models.NewPortals(env.DB).AccessToken(ctx, rec.HubID, env.HubSpot)
	if err != nil {
		return fmt.Errorf("resolving credentials for hub %d: %w", rec.HubID, err)
	}
	signed, err := env.HubSpot.SignedDownloadURL(ctx, accessToken, fileID)
	if err != nil {
		return httpx.Error(http.StatusBadGateway, err)
	}
	content, err := env.HubSpot.Download(ctx, signed.URL)
	if err != nil {
		return httpx.Error(http.StatusBadGateway, err)
	}
	defer content.Body.Close()

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Disposition", httpx.Disposition(rec.Filename))
	if content.Length >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(content.Length, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, err = io.Copy(w, content.Body)
	return err
}
