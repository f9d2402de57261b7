package models

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/hubspot"
)

// refreshMargin is how close to expiry a stored access token may get before
// it is refreshed rather than handed out.
const refreshMargin = 2 * time.Minute

// A Portal is a HubSpot account that has installed the app, together with
// the OAuth credentials issued at install time. Credentials are rewritten in
// place on refresh and on reinstall.
type Portal struct {
	HubID        int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	HubDomain    string `gorm:"size:255"`
	AccessToken  string `gorm:"size:512;not null"`
	RefreshToken string `gorm:"size:512;not null"`
	// ExpiresAt is when AccessToken stops working, per the token grant.
	ExpiresAt time.Time
}

type Portals struct {
	db *gorm.DB
}

func NewPortals(db *gorm.DB) *Portals {
	return &Portals{db: db}
}

// Save stores the portal, replacing any record from an earlier install of
// the same hub.
func (p *Portals) Save(portal *Portal) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(portal).Error
}

// Find returns the portal for the hub id.
func (p *Portals) Find(hubID int64) (*Portal, error) {
	var portal Portal
	return &portal, p.db.Where("hub_id = ?", hubID).Take(&portal).Error
}

// AccessToken returns a live access token for the hub. A token close to
// expiry is refreshed against HubSpot and the new credentials persisted
// before it is returned.
func (p *Portals) AccessToken(ctx context.Context, hubID int64, client *hubspot.Client) (string, error) {
	portal, err := p.Find(hubID)
	if err != nil {
		return "", fmt.Errorf("no credentials for hub %d: %w", hubID, err)
	}
	if time.Until(portal.ExpiresAt) > refreshMargin {
		return portal.AccessToken, nil
	}

	creds, err := client.Refresh(ctx, portal.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refreshing credentials for hub %d: %w", hubID, err)
	}
	portal.AccessToken = creds.AccessToken
	if creds.RefreshToken != "" {
		portal.RefreshToken = creds.RefreshToken
	}
	portal.ExpiresAt = time.Now().Add(time.Duration(creds.ExpiresIn) * time.Second)
	if err := p.Save(portal); err != nil {
		return "", err
	}
	return portal.AccessToken, nil
}
