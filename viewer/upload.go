package viewer

import (
	"fmt"
	"net/http"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/hubspot"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/httpx"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/metrics"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/to"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
)

// maxUploadBytes caps a save round trip, matching the files tool's own
// per-file limit.
const maxUploadBytes = 100 << 20

// Upload relays an edited document into the HubSpot files tool. Any live
// token authorizes an upload: a save can create a file that did not exist
// when the token was minted, so there is no file id to bind against. The
// token does pin the portal the upload lands in.
func Upload(env *models.Env, w http.ResponseWriter, r *http.Request) error {
	rec, err := env.Tokens.ValidateAny(r.URL.Query().Get("token"))
	metrics.Validation(err)
	if err != nil {
		return httpx.Unauthorized(err)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return httpx.Error(http.StatusBadRequest, fmt.Errorf("bad multipart body: %w", err))
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return httpx.Error(http.StatusBadRequest, fmt.Errorf("missing file field"))
	}
	defer file.Close()

	filename := header.Filename
	if filename == "" {
		filename = rec.Filename
	}

	ctx := r.Context()
	accessToken, err := models.NewPortals(env.DB).AccessToken(ctx, rec.HubID, env.HubSpot)
	if err != nil {
		return fmt.Errorf("resolving credentials for hub %d: %w", rec.HubID, err)
	}
	uploaded, err := env.HubSpot.UploadFile(ctx, accessToken, filename, file, hubspot.UploadOptions{
		FolderPath: env.UploadFolder,
	})
	if err != nil {
		return httpx.Error(http.StatusBadGateway, err)
	}

	// Attaching the new file to a contact is best effort. The upload already
	// happened; failing the request now would invite a retry and a duplicate.
	attached := false
	if contactID := r.FormValue("contactId"); contactID != "" {
		if err := env.HubSpot.AttachFileToContact(ctx, accessToken, contactID, uploaded.ID); err != nil {
			env.Log().Error("attaching upload to contact failed", "contact_id", contactID, "file_id", uploaded.ID, "err", err)
		} else {
			attached = true
		}
	}

	return to.JSONStatus(w, http.StatusCreated, struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		URL      string `json:"url,omitempty"`
		Attached bool   `json:"attached"`
	}{
		ID:       uploaded.ID,
		Name:     uploaded.DisplayName(),
		URL:      uploaded.URL,
		Attached: attached,
	})
}
