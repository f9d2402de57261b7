// Package card serves the CRM card data-fetch endpoint. HubSpot calls it
// while rendering the card on a contact record; the response lists the
// contact's documents with iframe actions that open the viewer.
package card

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/httpx"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/to"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/viewer"
)

// iframe dimensions HubSpot uses for the action modal.
const (
	iframeWidth  = 890
	iframeHeight = 748
)

type action struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URI    string `json:"uri"`
	Label  string `json:"label"`
}

type property struct {
	Label    string `json:"label"`
	DataType string `json:"dataType"`
	Value    string `json:"value"`
}

type result struct {
	ObjectID   int        `json:"objectId"`
	Title      string     `json:"title"`
	Properties []property `json:"properties,omitempty"`
	Actions    []action   `json:"actions"`
}

type response struct {
	Results []result `json:"results"`
}

// Data answers a card data-fetch request. Every request must carry a valid
// v3 signature unless signature checking is disabled for local development.
func Data(env *models.Env, w http.ResponseWriter, r *http.Request) error {
	if !env.SkipSignatureCheck {
		if err := env.HubSpot.ValidateSignature(r, env.AbsoluteURL(r.URL.RequestURI()), nil, time.Now()); err != nil {
			return httpx.Unauthorized(err)
		}
	}

	var params struct {
		PortalID             int64  `schema:"portalId"`
		AssociatedObjectID   string `schema:"associatedObjectId"`
		AssociatedObjectType string `schema:"associatedObjectType"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if params.PortalID == 0 || params.AssociatedObjectID == "" {
		return httpx.Error(http.StatusBadRequest, fmt.Errorf("portalId and associatedObjectId are required"))
	}
	// The card only knows how to walk contact attachments.
	if params.AssociatedObjectType != "" && !strings.EqualFold(params.AssociatedObjectType, "CONTACT") {
		return to.JSON(w, response{Results: []result{}})
	}

	files, err := viewer.ContactFiles(r.Context(), env, params.PortalID, params.AssociatedObjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpx.Error(http.StatusNotFound, fmt.Errorf("portal %d is not installed", params.PortalID))
		}
		return fmt.Errorf("building card for contact %s: %w", params.AssociatedObjectID, err)
	}

	resp := response{Results: make([]result, 0, len(files))}
	for i, f := range files {
		objectID, err := strconv.Atoi(f.File.ID)
		if err != nil {
			objectID = i + 1
		}
		resp.Results = append(resp.Results, result{
			ObjectID: objectID,
			Title:    f.File.DisplayName(),
			Properties: []property{
				{Label: "Size", DataType: "STRING", Value: sizeLabel(f.File.Size)},
				{Label: "Updated", DataType: "STRING", Value: f.File.UpdatedAt.Format("2 Jan 2006")},
			},
			Actions: []action{{
				Type:   "IFRAME",
				Width:  iframeWidth,
				Height: iframeHeight,
				URI:    env.AbsoluteURL("/viewer/" + f.File.ID + "?token=" + f.Token + "&contactId=" + params.AssociatedObjectID),
				Label:  "View document",
			}},
		})
	}
	return to.JSON(w, resp)
}

func sizeLabel(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
