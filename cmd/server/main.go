package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cane-truck-registry/internal/config"
	"github.com/iliyamo/cane-truck-registry/internal/database"
	"github.com/iliyamo/cane-truck-registry/internal/handler"
	"github.com/iliyamo/cane-truck-registry/internal/middleware"
	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/queue"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
	"github.com/iliyamo/cane-truck-registry/internal/router"
	"github.com/iliyamo/cane-truck-registry/internal/service"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

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

	// Redis backs rate limiting and the response cache; without it both
	// are skipped and the API keeps serving.
	var rdb *redis.Client
	if client, err := config.NewRedisClient(); err != nil {
		log.WithError(err).Warn("redis unavailable; rate limiting and caching disabled")
	} else {
		rdb = client
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	users := repository.NewUserRepo(db)
	trucks := repository.NewTruckRepo(db)
	stats := repository.NewStatsRepo(db)
	refs := service.References{}
	for _, k := range model.ReferenceKinds {
		refs[k] = repository.NewReferenceRepo(db, k)
	}

	var events service.EventPublisher
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.AMQPURL, log)
	}
	var listCache service.ListCache
	if rdb != nil {
		listCache = middleware.NewCachePurger(rdb, cacheCfg.Prefix)
	}

	policy := service.LedgerPolicy{
		EditWindow:      cfg.EditWindow,
		RequireEditFlag: cfg.RequireEditFlag,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	}

	refHandlers := map[model.ReferenceKind]*handler.ReferenceHandler{}
	for _, k := range model.ReferenceKinds {
		refHandlers[k] = handler.NewReferenceHandler(service.NewReferenceRegistry(refs[k], stats, listCache, log), log)
	}

	issuer := service.NewSessionIssuer(users, cfg.JWTSecret, cfg.SessionTTL, log)
	issuer.BcryptCost = cfg.BcryptCost
	ledger := service.NewTruckLedger(trucks, refs, stats, events, policy, log)
	ledger.Cache = listCache
	reports := service.NewReports(stats, refs, log)
	reports.Cache = listCache

	e := router.New(router.Deps{
		Log:         log,
		Access:      service.NewAccessControl(users, cfg.JWTSecret),
		Auth:        handler.NewAuthHandler(issuer, log),
		References:  refHandlers,
		Trucks:      handler.NewTruckHandler(ledger, log),
		Users:       handler.NewUserHandler(service.NewUserAdmin(users, refs[model.KindGate], stats, cfg.BcryptCost, log), log),
		Stats:       handler.NewStatsHandler(reports, log),
		Redis:       rdb,
		RateLimit:   config.LoadRateLimitConfig(),
		LoginLimit:  config.LoadLoginRateLimitConfig(),
		Cache:       cacheCfg,
		CORSOrigins: cfg.CORSOrigins,
		BodyLimit:   cfg.BodyLimit,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	go func() {
		log.WithField("env", cfg.Env).Infof("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
