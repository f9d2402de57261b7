package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Context struct {
	Debug  bool
	Logger *slog.Logger

	gorm.Dialector
	gorm.Config
}

var cli struct {
	Debug  bool   `help:"Enable debug mode."`
	Sqlite string `help:"Path to the sqlite database file." xor:"db" required:""`
	Mysql  string `help:"MySQL data source name." xor:"db" required:""`

	Serve       ServeCmd       `cmd:"" help:"Serve the viewer bridge."`
	AutoMigrate AutoMigrateCmd `cmd:"" help:"Create or update the database schema."`
}

func main() {
	ctx := kong.Parse(&cli)
	err := ctx.Run(&Context{
		Debug:     cli.Debug,
		Logger:    newLogger(cli.Debug),
		Dialector: newDialector(cli.Sqlite, cli.Mysql),
		Config: gorm.Config{
			Logger:         logger.Default.LogMode(gormLogLevel(cli.Debug)),
			TranslateError: true,
		},
	})
	ctx.FatalIfErrorf(err)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func gormLogLevel(debug bool) logger.LogLevel {
	if debug {
		return logger.Info
	}
	return logger.Warn
}
