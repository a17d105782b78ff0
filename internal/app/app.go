// Package app boots the administration server: configuration, logging,
// metadata database, lookup cache and HTTP routes.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cmstools-dev/cmstools/internal/audit"
	"github.com/cmstools-dev/cmstools/internal/config"
	"github.com/cmstools-dev/cmstools/internal/db"
	admin "github.com/cmstools-dev/cmstools/internal/http/api/admin"
	"github.com/cmstools-dev/cmstools/internal/lookup"
	"github.com/cmstools-dev/cmstools/internal/router"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

// shutdownGrace bounds how long in-flight requests may finish on shutdown.
const shutdownGrace = 10 * time.Second

// setupLogging configures logrus from the configuration.
func setupLogging(cfg *config.Config) {
	level, errLevel := log.ParseLevel(cfg.Log.Level)
	if errLevel != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Log.File != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	}
}

// openMetadataDB opens and migrates the metadata database, seeding the
// bootstrap operator when credentials are configured.
func openMetadataDB(cfg *config.Config) (*gorm.DB, error) {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return nil, errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	if cfg.Seed.AdminUsername != "" && cfg.Seed.AdminPassword != "" {
		if errSeed := db.SeedDefaultOperator(conn, cfg.Seed.AdminUsername, cfg.Seed.AdminPassword); errSeed != nil {
			return nil, errSeed
		}
	}
	return conn, nil
}

// buildLookupCache selects the configured lookup cache backend.
func buildLookupCache(cfg *config.Config) lookup.Cache {
	if cfg.Lookup.Backend == "redis" {
		return lookup.NewRedisCache(cfg.Lookup.RedisAddr, cfg.Lookup.RedisDB, cfg.Lookup.TTL.Std())
	}
	return lookup.NewMemoryCache(cfg.Lookup.CacheSize, cfg.Lookup.TTL.Std())
}

// Migrate opens the metadata database and runs migrations.
func Migrate(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	setupLogging(cfg)
	if _, errOpen := openMetadataDB(cfg); errOpen != nil {
		return errOpen
	}
	log.Info("metadata database migrated")
	return nil
}

// RunServer boots the administration API and serves until ctx is cancelled.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	setupLogging(cfg)

	conn, errOpen := openMetadataDB(cfg)
	if errOpen != nil {
		return errOpen
	}

	pool := router.NewPool()
	rt := router.New(pool)
	lookups := lookup.NewService(pool, buildLookupCache(cfg))

	audit.NewRetentionCleaner(conn, cfg.Audit.RetentionDays, cfg.Audit.SweepInterval.Std()).Start(ctx)

	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	admin.RegisterAdminRoutes(engine, conn, cfg.JWT, rt, lookups)

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.ListenAddr)
		if errServe := server.ListenAndServe(); errServe != nil && errServe != http.ErrServerClosed {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("app: shutdown: %w", errShutdown)
		}
		return nil
	case errServe := <-errCh:
		return errServe
	}
}
