package viewer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/hubspot"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/httpx"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/metrics"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/to"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
)

// maxConcurrentLookups bounds parallel metadata fetches per listing, to stay
// well inside HubSpot's burst rate limit.
const maxConcurrentLookups = 4

// A ContactFile pairs one attachment's metadata with a token minted for it.
type ContactFile struct {
	File  *hubspot.File
	Token string
}

// ContactFiles walks the contact's note attachments and fetches each file's
// metadata, minting a fresh viewer token per file. Results keep note order.
func ContactFiles(ctx context.Context, env *models.Env, hubID int64, contactID string) ([]ContactFile, error) {
	accessToken, err := models.NewPortals(env.DB).AccessToken(ctx, hubID, env.HubSpot)
	if err != nil {
		return nil, err
	}
	ids, err := env.HubSpot.ListNoteAttachmentIDs(ctx, accessToken, contactID)
	if err != nil {
		return nil, err
	}

	files := make([]ContactFile, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			f, err := env.HubSpot.GetFile(ctx, accessToken, id)
			if err != nil {
				return err
			}
			files[i] = ContactFile{
				File:  f,
				Token: env.Tokens.Mint(hubID, f.ID, f.DisplayName()),
			}
			metrics.TokenMints.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// Files lists the documents attached to a contact's notes. Each entry
// carries viewer and content URLs that embed a freshly minted token, so the
// response is immediately actionable and short-lived.
func Files(env *models.Env, w http.ResponseWriter, r *http.Request) error {
	hubID, err := strconv.ParseInt(chi.URLParam(r, "hubID"), 10, 64)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, fmt.Errorf("portal id must be numeric"))
	}
	contactID := chi.URLParam(r, "contactID")

	files, err := ContactFiles(r.Context(), env, hubID, contactID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpx.Error(http.StatusNotFound, fmt.Errorf("portal %d is not installed", hubID))
		}
		return fmt.Errorf("listing files for contact %s: %w", contactID, err)
	}

	type item struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Size         int64     `json:"size"`
		UpdatedAt    time.Time `json:"updatedAt"`
		ViewerURL    string    `json:"viewerUrl"`
		ContentURL   string    `json:"contentUrl"`
		ThumbnailURL string    `json:"thumbnailUrl"`
	}
	items := make([]item, 0, len(files))
	for _, f := range files {
		items = append(items, item{
			ID:           f.File.ID,
			Name:         f.File.DisplayName(),
			Size:         f.File.Size,
			UpdatedAt:    f.File.UpdatedAt,
			ViewerURL:    env.AbsoluteURL("/viewer/" + f.File.ID + "?token=" + f.Token),
			ContentURL:   env.AbsoluteURL("/files/" + f.File.ID + "/content?token=" + f.Token),
			ThumbnailURL: env.AbsoluteURL("/files/" + f.File.ID + "/thumbnail?token=" + f.Token),
		})
	}
	return to.JSON(w, items)
}
