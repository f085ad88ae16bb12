package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/iliyamo/cane-truck-registry/internal/config"
	"github.com/iliyamo/cane-truck-registry/internal/database"
	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/queue"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
	"github.com/iliyamo/cane-truck-registry/internal/service"
)

func main() {
	logFile := pflag.String("log-file", "logs/trucks.log", "audit log the events are appended to")
	every := pflag.Duration("reconcile-every", 0, "rebuild reference counters on this interval (0 disables)")
	pflag.Parse()

	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	audit, closer, err := queue.NewAuditLogger(*logFile)
	if err != nil {
		log.WithError(err).Fatal("truck-consumer: audit log")
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *every > 0 {
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
		reports := service.NewReports(repository.NewStatsRepo(db), refs, log)
		go reconcile(ctx, reports, *every, log)
	}

	c := &queue.Consumer{URL: cfg.AMQPURL, Queue: queue.TruckEventsQueue, Log: log, Audit: audit}
	log.WithField("queue", c.Queue).WithField("file", *logFile).Info("truck-consumer: started")
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("truck-consumer: stopped")
	}
	log.Info("truck-consumer: bye")
}

type rebuilder interface {
	RebuildCounters(ctx context.Context, actor *model.User) error
}

// reconcile rebuilds the counters on every tick until ctx ends. Failures
// are logged and retried on the next tick.
func reconcile(ctx context.Context, r rebuilder, every time.Duration, log logrus.FieldLogger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if ctx.Err() != nil {
				return
			}
			if err := r.RebuildCounters(ctx, nil); err != nil {
				log.WithError(err).Warn("truck-consumer: counter rebuild failed")
			}
		}
	}
}
