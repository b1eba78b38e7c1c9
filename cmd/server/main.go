// Command server runs the vendor ledger HTTP API.
//
// Startup order: environment (.env) → config → logging → tracing → database
// and migrations → change notifier → gateway, feeds and live views →
// services and identity provider → router → HTTP server. SIGINT/SIGTERM
// drain the server and stop the feeds.
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
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/vendor-ledger/internal/auth"
	"github.com/tbourn/vendor-ledger/internal/config"
	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/feed"
	httpapi "github.com/tbourn/vendor-ledger/internal/http"
	"github.com/tbourn/vendor-ledger/internal/http/handlers"
	"github.com/tbourn/vendor-ledger/internal/liveview"
	"github.com/tbourn/vendor-ledger/internal/observability"
	"github.com/tbourn/vendor-ledger/internal/repo"
	"github.com/tbourn/vendor-ledger/internal/services"
	"github.com/tbourn/vendor-ledger/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=…".
var version = "dev"

const (
	viewReadyTimeout = 10 * time.Second
	purgeInterval    = time.Hour
	shutdownTimeout  = 15 * time.Second
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.ConfigureLogging(sysutil.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
	})
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	buildVersion := sysutil.BuildVersion(version)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, buildVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(repo.Options{
		Driver:  cfg.DB.Driver,
		Path:    cfg.DB.Path,
		DSN:     cfg.DB.DSN,
		Tracing: cfg.OTEL.Enabled,
		Verbose: cfg.DB.Verbose,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if !sysutil.IsTruthy(os.Getenv("SKIP_MIGRATIONS")) {
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	rdb := newRedis(ctx, cfg.Redis)
	var (
		notifier feed.Notifier = feed.NewLocalNotifier()
		locker   services.Locker
	)
	if rdb != nil {
		notifier = feed.NewRedisNotifier(rdb, cfg.Redis.Channel)
		locker = feed.NewRedisLocker(rdb, "vendor-ledger:lock:", 5*time.Second)
	}
	gw := repo.NewGateway(db, notifier, log.Logger)

	invFeed := feed.New(domain.CollectionInventory, notifier, func(ctx context.Context) ([]domain.InventoryItem, error) {
		return repo.ListAll[domain.InventoryItem](ctx, gw, domain.CollectionInventory)
	}, log.Logger)
	lifeFeed := feed.New(domain.CollectionLifetime, notifier, func(ctx context.Context) ([]domain.LifetimeVendor, error) {
		return repo.ListAll[domain.LifetimeVendor](ctx, gw, domain.CollectionLifetime)
	}, log.Logger)
	dailyFeed := feed.New(domain.CollectionDaily, notifier, func(ctx context.Context) ([]domain.DailyVendor, error) {
		return repo.ListAll[domain.DailyVendor](ctx, gw, domain.CollectionDaily)
	}, log.Logger)

	invView := liveview.Watch(ctx, invFeed, func(it domain.InventoryItem) string { return it.ID })
	lifeView := liveview.Watch(ctx, lifeFeed, func(v domain.LifetimeVendor) string { return v.ID })
	dailyView := liveview.Watch(ctx, dailyFeed, func(v domain.DailyVendor) string { return v.ID })

	runFeed(ctx, invFeed)
	runFeed(ctx, lifeFeed)
	runFeed(ctx, dailyFeed)
	waitReady(invView.Ready(), lifeView.Ready(), dailyView.Ready())

	inventory := services.NewInventoryService(gw, log.Logger)
	inventory.Lock = locker
	vendors := services.NewVendorService(gw, log.Logger)
	vendors.Lifetime = lifeView
	vendors.Daily = dailyView

	provider, err := auth.NewLocalProvider(db, auth.Config{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
		ResetTTL: cfg.Auth.ResetTTL,
	}, nil, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("identity provider")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, handlers.Deps{
		Inventory:      inventory,
		Vendors:        vendors,
		Spreadsheet:    services.NewSpreadsheetService(gw, log.Logger),
		Auth:           provider,
		InventoryView:  invView,
		LifetimeView:   lifeView,
		DailyView:      dailyView,
		DB:             db,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	go purgeIdempotency(ctx, db)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", buildVersion).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(sctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newRedis connects to REDIS_URL, or returns nil when it is unset. Change
// notifications and inventory locks go through Redis when it is configured.
func newRedis(ctx context.Context, rc config.RedisConfig) *redis.Client {
	if rc.URL == "" {
		return nil
	}
	opts, err := redis.ParseURL(rc.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse REDIS_URL")
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", opts.Addr).Msg("redis unreachable")
	}
	log.Info().Str("addr", opts.Addr).Str("channel", rc.Channel).Msg("using redis for change notifications and locks")
	return rdb
}

type runner interface {
	Run(ctx context.Context) error
	Collection() domain.Collection
}

func runFeed(ctx context.Context, f runner) {
	go func() {
		if err := f.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("collection", string(f.Collection())).Msg("feed stopped")
		}
	}()
}

func waitReady(chs ...<-chan struct{}) {
	timeout := time.After(viewReadyTimeout)
	for _, ch := range chs {
		select {
		case <-ch:
		case <-timeout:
			log.Warn().Msg("live views not ready yet; serving anyway")
			return
		}
	}
}

func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged idempotency records")
			}
		}
	}
}
