package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/analytics"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logx"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/settings"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logx.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}
	store := &postgres.Store{DB: db}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := redisx.NewCache(rdb)

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.CartTopic, 1024, log)
	prod.Start(ctx)

	set := &settings.Service{
		Store:            store,
		Cache:            cache,
		Log:              log.Named("settings"),
		Timeout:          cfg.StoreTimeout,
		DefaultThreshold: cfg.DefaultShippingThreshold,
	}
	h := &httpx.StoreHandler{
		Catalog: &catalog.Service{
			Store:         store,
			Cache:         cache,
			Log:           log.Named("catalog"),
			Timeout:       cfg.StoreTimeout,
			PageSize:      cfg.CatalogPageSize,
			AdminPageSize: cfg.AdminPageSize,
			CacheTTL:      cfg.CatalogCacheTTL,
		},
		Cart: &cart.Service{
			Store:      store,
			Events:     &kafkax.Emitter{P: prod, ServiceName: cfg.ServiceName},
			Thresholds: set,
			Log:        log.Named("cart"),
			Timeout:    cfg.StoreTimeout,
		},
		Settings: set,
		Analytics: &analytics.Service{
			Board:    redisx.NewLeaderboard(rdb, redisx.KeyMostCarted, "analytics"),
			Products: store,
			Log:      log.Named("analytics"),
		},
		Log: log,
	}
	router := httpx.NewRouter(log)
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush queued events, then close the writer
	prod.WaitClosed()
	cancel()
}
