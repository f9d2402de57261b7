package main

// database backend selection

import (
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newDialector picks the backend from whichever of the two database flags
// was set. kong guarantees exactly one of them is.
func newDialector(sqlitePath, mysqlDSN string) gorm.Dialector {
	if sqlitePath != "" {
		return &sqlite.Dialector{
			DSN: sqlitePath,
		}
	}
	return mysql.New(mysql.Config{
		DSN:                       mergeOptions(mysqlDSN, "charset=utf8mb4&parseTime=True&loc=Local"),
		SkipInitializeWithVersion: false, // auto configure based on currently MySQL version
	})
}

// merge options appends the options to the DSN if they are not already present.
func mergeOptions(dsn, options string) string {
	if options == "" {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + options
	}
	return dsn + "?" + options
}

func configureDB(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "sqlite":
		// enable foreign key constraints
		return db.Exec("PRAGMA foreign_keys = ON").Error
	default:
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}

		// SetMaxIdleConns sets the maximum number of connections in the idle connection pool.
		sqlDB.SetMaxIdleConns(10)

		// SetMaxOpenConns sets the maximum number of open connections to the database.
		sqlDB.SetMaxOpenConns(100)

		// SetConnMaxLifetime sets the maximum amount of time a connection may be reused.
		sqlDB.SetConnMaxLifetime(time.Hour)

		return nil
	}
}
