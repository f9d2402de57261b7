// Package viewer serves the document viewer: the shell page that hosts the
// Nutrient Web SDK, the listing and token APIs that feed it, and the relays
// that move document bytes between the browser and HubSpot.
package viewer

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/httpx"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/metrics"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
)

//go:embed shell.html
var shellHTML string

var shellTemplate = template.Must(template.New("shell").Parse(shellHTML))

type shellData struct {
	Filename     string
	ViewerScript string
	ContentURL   string
	UploadURL    string
	ContactID    string
}

// Shell renders the viewer page for one document. The token must have been
// minted for exactly this file; the page it unlocks carries the same token
// onward in its content and upload URLs.
func Shell(env *models.Env, w http.ResponseWriter, r *http.Request) error {
	fileID := chi.URLParam(r, "fileID")
	token := r.URL.Query().Get("token")

	rec, err := env.Tokens.Validate(token, fileID)
	metrics.Validation(err)
	if err != nil {
		return httpx.Unauthorized(err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return shellTemplate.Execute(w, shellData{
		Filename:     rec.Filename,
		ViewerScript: env.ViewerScript,
		ContentURL:   env.AbsoluteURL("/files/" + fileID + "/content?token=" + token),
		UploadURL:    env.AbsoluteURL("/files/upload?token=" + token),
		ContactID:    r.URL.Query().Get("contactId"),
	})
}
