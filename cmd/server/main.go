// Command server runs the ZeroHunger HTTP API.
//
// Startup order: env/.env → config → logger → tracing → database (+ GORM
// tracing, migrations) → session/image/event backends → router → HTTP server.
// SIGINT/SIGTERM trigger a graceful shutdown bounded by shutdownTimeout.
//
//	@title			ZeroHunger API
//	@version		1.0
//	@description	Food-donation marketplace: providers list surplus food, receivers request it, couriers deliver it with OTP hand-offs.
//	@BasePath		/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/docs"
	"github.com/tbourn/go-zerohunger-backend/internal/config"
	"github.com/tbourn/go-zerohunger-backend/internal/events"
	httpapi "github.com/tbourn/go-zerohunger-backend/internal/http"
	"github.com/tbourn/go-zerohunger-backend/internal/observability"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
	"github.com/tbourn/go-zerohunger-backend/internal/services"
	"github.com/tbourn/go-zerohunger-backend/internal/storage"
	"github.com/tbourn/go-zerohunger-backend/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	svcVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, svcVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DBDriver, cfg.DBPath, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database open failed")
	}
	if err := observability.InstrumentDB(db, otel.GetTracerProvider()); err != nil {
		log.Fatal().Err(err).Msg("database instrumentation failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	infra, closers, err := buildInfra(ctx, cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("infrastructure setup failed")
	}

	docs.SwaggerInfo.Version = svcVersion
	docs.SwaggerInfo.BasePath = cfg.APIBasePath

	r := gin.New()
	httpapi.RegisterRoutes(r, db, infra, cfg)

	go sysutil.Every(ctx, cfg.JanitorInterval, "janitor", janitor(db, infra.Sessions))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", svcVersion).
			Str("db_driver", cfg.DBDriver).
			Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	for _, c := range closers {
		if err := c.close(); err != nil {
			log.Warn().Err(err).Str("component", c.name).Msg("close failed")
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("server stopped")
}

type closer struct {
	name  string
	close func() error
}

// buildInfra picks the session, image, and event backends from config.
// Anything it opens is returned in closers, in open order.
func buildInfra(ctx context.Context, cfg config.Config, db *gorm.DB) (httpapi.Infra, []closer, error) {
	var (
		infra   httpapi.Infra
		closers []closer
	)

	if cfg.RedisURL != "" {
		rs, err := services.NewRedisSessionStore(ctx, cfg.RedisURL)
		if err != nil {
			return infra, closers, err
		}
		infra.Sessions = rs
		closers = append(closers, closer{"redis", rs.Close})
		log.Info().Msg("sessions: redis")
	} else {
		infra.Sessions = services.NewGormSessionStore(db)
		log.Info().Msg("sessions: database")
	}

	if cfg.GCSBucket != "" {
		gs, err := storage.NewGCSImageStore(ctx, cfg.GCSBucket)
		if err != nil {
			return infra, closers, err
		}
		infra.Images = gs
		closers = append(closers, closer{"gcs", gs.Close})
		log.Info().Str("bucket", cfg.GCSBucket).Msg("images: gcs")
	} else {
		ls, err := storage.NewLocalImageStore(cfg.UploadDir, "/uploads")
		if err != nil {
			return infra, closers, err
		}
		infra.Images = ls
		infra.UploadDir = cfg.UploadDir
		log.Info().Str("dir", cfg.UploadDir).Msg("images: local")
	}

	if cfg.AMQPURL != "" {
		p, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return infra, closers, err
		}
		infra.Publisher = p
		closers = append(closers, closer{"amqp", p.Close})
		log.Info().Str("exchange", cfg.AMQPExchange).Msg("events: amqp")
	} else {
		infra.Publisher = events.Nop{}
	}

	return infra, closers, nil
}

// janitor purges expired idempotency records, plus expired sessions when
// they live in the database (Redis expires its own keys).
func janitor(db *gorm.DB, sessions services.SessionStore) func(context.Context) error {
	return func(ctx context.Context) error {
		now := time.Now().UTC()
		idem, err := repo.PurgeExpiredIdempotency(ctx, db, now)
		if err != nil {
			return err
		}
		var sess int64
		if gs, ok := sessions.(*services.GormSessionStore); ok {
			if sess, err = gs.Purge(ctx); err != nil {
				return err
			}
		}
		if idem > 0 || sess > 0 {
			log.Debug().Int64("idempotency", idem).Int64("sessions", sess).Msg("janitor purged expired rows")
		}
		return nil
	}
}
