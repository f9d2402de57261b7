package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockPortal creates an installed portal in the database.
func MockPortal(t *testing.T, tx *gorm.DB, hubID int64, opts ...func(*Portal)) *Portal {
	t.Helper()
	require := require.New(t)

	portal := &Portal{
		HubID:        hubID,
		HubDomain:    "acme.hubspot.com",
		AccessToken:  "access-stored",
		RefreshToken: "refresh-stored",
		ExpiresAt:    time.Now().Add(30 * time.Minute),
	}
	for _, opt := range opts {
		opt(portal)
	}
	require.NoError(NewPortals(tx).Save(portal))
	return portal
}

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

	err = db.AutoMigrate(AllTables()...)
	require.NoError(err)

	return db
}
