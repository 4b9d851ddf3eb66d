package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/healthprogress/internal/config"
	"github.com/ehr/healthprogress/internal/domain/condition"
	"github.com/ehr/healthprogress/internal/domain/postnatal"
	"github.com/ehr/healthprogress/internal/domain/progress"
	"github.com/ehr/healthprogress/internal/platform/auth"
	"github.com/ehr/healthprogress/internal/platform/db"
	"github.com/ehr/healthprogress/internal/platform/events"
	"github.com/ehr/healthprogress/internal/platform/middleware"
	"github.com/ehr/healthprogress/internal/platform/validation"
)

const version = "0.1.0"

// deps are the storage and messaging backends the HTTP surface runs on.
type deps struct {
	pinger    db.Pinger
	poolStats func() *db.PoolStats
	entries   progress.Store
	profiles  postnatal.Repository
	publisher events.Publisher
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jc.SigningKey = []byte(cfg.AuthSigningKey)
	}
	if jc.JWKSURL == "" && jc.Issuer != "" && len(jc.SigningKey) == 0 {
		jc.JWKSURL = jc.Issuer + "/protocol/openid-connect/certs"
	}
	return jc
}

func newServer(cfg *config.Config, logger zerolog.Logger, registry *condition.Registry, d deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(logger,
		middleware.Classifiers(progress.ClassifyError, postnatal.ClassifyError))

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(d.pinger, d.poolStats))

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtConfig(cfg))
	} else {
		authMW = auth.JWTMiddleware(jwtConfig(cfg))
	}
	api := e.Group("", authMW, auth.RequireRole(auth.AllRoles...))

	svc := progress.NewService(registry, d.entries, d.publisher, logger).WithAccess(auth.CanAccessPatient)
	agg := progress.NewAggregator(registry, d.entries)
	progress.NewHandler(registry, svc, agg).RegisterRoutes(api)

	postnatal.NewHandler(postnatal.NewService(d.profiles, logger)).RegisterRoutes(api)

	return e
}
