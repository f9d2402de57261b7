package main

import (
	"gorm.io/gorm"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
)

type AutoMigrateCmd struct {
}

func (a *AutoMigrateCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}

	return db.AutoMigrate(models.AllTables()...)
}
