package models

import (
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/access"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/hubspot"
)

type Env struct {
	// DB is the database connection.
	DB     *gorm.DB
	Logger *slog.Logger

	// Tokens holds the short-lived file access tokens minted for viewer
	// sessions. They live in memory only.
	Tokens *access.Store

	// HubSpot is the API client shared by every installed portal.
	HubSpot *hubspot.Client

	// Base is the externally visible base URL of this server. Viewer
	// links and request-signature checks are built against it.
	Base string

	// ViewerScript is the URL of the hosted viewer bundle the shell page
	// loads.
	ViewerScript string

	// UploadFolder is the files-tool folder saved documents land in.
	UploadFolder string

	// Scopes are requested from HubSpot at install time.
	Scopes []string

	// SkipSignatureCheck disables card request signature validation.
	// Local development only.
	SkipSignatureCheck bool
}

func (e *Env) Log() *slog.Logger {
	return e.Logger
}

// AbsoluteURL joins a path onto the server's external base URL.
func (e *Env) AbsoluteURL(path string) string {
	return strings.TrimSuffix(e.Base, "/") + path
}
