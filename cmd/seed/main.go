package main

import (
	"context"
	"os"

	"github.com/spf13/pflag"

	"github.com/iliyamo/cane-truck-registry/internal/config"
	"github.com/iliyamo/cane-truck-registry/internal/database"
	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
	"github.com/iliyamo/cane-truck-registry/internal/service"
)

func main() {
	file := pflag.StringP("file", "f", "seed.yaml", "YAML file with contractors, factories, gates and users")
	pflag.Parse()

	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	fh, err := os.Open(*file)
	if err != nil {
		log.WithError(err).Fatal("seed: open file")
	}
	defer fh.Close()
	seed, err := parseSeed(fh)
	if err != nil {
		log.WithError(err).Fatal("seed: invalid file")
	}

	db, err := database.Open(database.Settings{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		log.WithError(err).Fatal("database: connect failed")
	}
	defer db.Close()

	refs := service.References{}
	for _, k := range model.ReferenceKinds {
		refs[k] = repository.NewReferenceRepo(db, k)
	}
	s := &seeder{refs: refs, users: repository.NewUserRepo(db), cost: cfg.BcryptCost, log: log}
	if err := s.apply(context.Background(), seed); err != nil {
		log.WithError(err).Fatal("seed failed")
	}
	log.WithField("created", s.created).WithField("skipped", s.skipped).Info("seed done")
}
