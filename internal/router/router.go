package router // package router wires middleware and handlers into an echo instance

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/config"
	"github.com/iliyamo/cane-truck-registry/internal/handler"
	"github.com/iliyamo/cane-truck-registry/internal/middleware"
	"github.com/iliyamo/cane-truck-registry/internal/model"
)

// Deps is everything the HTTP surface needs. Redis is optional; without
// it rate limiting and response caching are disabled.
type Deps struct {
	Log        logrus.FieldLogger
	Access     middleware.Authenticator
	Auth       *handler.AuthHandler
	References map[model.ReferenceKind]*handler.ReferenceHandler
	Trucks     *handler.TruckHandler
	Users      *handler.UserHandler
	Stats      *handler.StatsHandler

	Redis       *redis.Client
	RateLimit   config.RateLimitConfig
	LoginLimit  config.RateLimitConfig
	Cache       config.CacheConfig
	CORSOrigins []string
	BodyLimit   string
}

// New builds the echo instance with the global middleware chain and all
// /api routes.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(d.Log)
	e.Validator = handler.NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if d.BodyLimit != "" {
		e.Use(echomw.BodyLimit(d.BodyLimit))
	}
	e.Use(middleware.RequestLogger(d.Log))

	RegisterRoutes(e, d)
	return e
}

// chain copies base and appends more so that route-level chains never
// share a backing array.
func chain(base []echo.MiddlewareFunc, more ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(base)+len(more))
	out = append(out, base...)
	return append(out, more...)
}

// RegisterRoutes mounts the /api surface on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	limiter := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)
	loginLimiter := middleware.NewTokenBucket(d.LoginLimit, d.Redis, d.Log)
	cache := middleware.NewRedisCache(d.Cache, d.Redis, d.Log)

	authed := []echo.MiddlewareFunc{middleware.Authenticate(d.Access, d.Log), limiter}
	optional := []echo.MiddlewareFunc{middleware.OptionalAuthenticate(d.Access, d.Log), limiter}
	admin := middleware.RequireRole(model.RoleAdmin)
	military := middleware.RequireRole(model.RoleMilitary)

	api := e.Group("/api")
	api.GET("/health", handler.Health)

	api.POST("/auth/login", d.Auth.Login, loginLimiter)
	api.GET("/auth/me", d.Auth.Me, authed...)

	users := api.Group("/users", chain(authed, admin)...)
	users.GET("", d.Users.List)
	users.POST("", d.Users.Create)
	users.PUT("/:id", d.Users.Update)
	users.PUT("/:id/password", d.Users.ChangePassword)
	users.DELETE("/:id", d.Users.Delete)
	users.GET("/:id/stats", d.Users.Stats)

	for _, kind := range model.ReferenceKinds {
		h, ok := d.References[kind]
		if !ok {
			continue
		}
		g := api.Group("/" + kind.Table())
		g.GET("", h.List, chain(optional, cache)...)
		g.GET("/:id", h.Get, chain(optional, cache)...)
		g.POST("", h.Create, chain(authed, admin)...)
		g.PUT("/:id", h.Update, chain(authed, admin)...)
		g.DELETE("/:id", h.Delete, chain(authed, admin)...)
		g.GET("/:id/stats", h.Stats, chain(authed, admin)...)
	}

	// Ownership on single trucks is enforced by the ledger, so Get and
	// Transition are open to both roles here.
	trucks := api.Group("/trucks", authed...)
	trucks.POST("/register-new-truck", d.Trucks.Register, military)
	trucks.GET("", d.Trucks.List, admin)
	trucks.GET("/my-trucks", d.Trucks.MyTrucks, military)
	trucks.GET("/my-stats", d.Trucks.MyStats, military)
	trucks.GET("/:id", d.Trucks.Get)
	trucks.PUT("/:id", d.Trucks.Update, military)
	trucks.PATCH("/:id/status", d.Trucks.Transition)

	stats := api.Group("/stats", chain(authed, admin)...)
	stats.GET("/dashboard", d.Stats.Dashboard)
	for _, kind := range model.ReferenceKinds {
		stats.GET("/"+kind.String()+"/:id", d.Stats.Entity(kind))
	}

	api.POST("/admin/reconcile-counters", d.Stats.Reconcile, chain(authed, admin)...)
}
