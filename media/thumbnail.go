// Package media renders downscaled previews of image attachments. Documents
// open in the viewer; images listed on a card row can show a small
// thumbnail instead of a generic icon.
package media

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nfnt/resize"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/httpx"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/metrics"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
)

const (
	// maxEdge caps the longest edge of a generated preview.
	maxEdge = 320

	jpegQuality = 80

	// headerBytes is how much of the body the format sniff may inspect.
	headerBytes = 8 << 10

	// maxPixels bounds decode memory. 40 megapixels decodes to roughly
	// 160 MB of RGBA, which is already generous for an attachment preview.
	maxPixels = 40 << 20
)

// Thumbnail streams a downscaled JPEG preview of an image attachment. The
// token must be bound to exactly this file. Content that does not decode as
// an image cannot be previewed and reports as such.
func Thumbnail(env *models.Env, w http.ResponseWriter, r *http.Request) error {
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

	body := bufio.NewReaderSize(content.Body, headerBytes)
	header, _ := body.Peek(headerBytes)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(header))
	if err != nil {
		return httpx.Error(http.StatusUnsupportedMediaType, fmt.Errorf("not a previewable image: %w", err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return httpx.Error(http.StatusUnsupportedMediaType, fmt.Errorf("image dimensions %dx%d out of range", cfg.Width, cfg.Height))
	}

	src, _, err := image.Decode(body)
	if err != nil {
		return httpx.Error(http.StatusUnsupportedMediaType, fmt.Errorf("not a previewable image: %w", err))
	}
	thumb := resize.Thumbnail(maxEdge, maxEdge, src, resize.Lanczos3)

	w.Header().Set("Content-Type", "image/jpeg")
	// Private: the URL embeds a capability token, so only the holder's own
	// browser cache may keep it.
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	return jpeg.Encode(w, thumb, &jpeg.Options{Quality: jpegQuality})
}
