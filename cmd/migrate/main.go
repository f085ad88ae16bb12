package main

import (
	"github.com/spf13/pflag"

	"github.com/iliyamo/cane-truck-registry/internal/config"
	"github.com/iliyamo/cane-truck-registry/internal/database"
)

func main() {
	dsn := pflag.String("dsn", "", "MySQL DSN; defaults to the DB_* environment")
	pflag.Parse()

	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if *dsn == "" {
		*dsn = database.Settings{
			User: cfg.DBUser,
			Pass: cfg.DBPass,
			Host: cfg.DBHost,
			Port: cfg.DBPort,
			Name: cfg.DBName,
		}.DSN()
	}
	if err := database.Migrate(*dsn, log); err != nil {
		log.WithError(err).Fatal("migrate failed")
	}
	log.Info("schema up to date")
}
