package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/spice_shop/internal/cart"
	"github.com/Skotchmaster/spice_shop/internal/config"
	"github.com/Skotchmaster/spice_shop/internal/db"
	"github.com/Skotchmaster/spice_shop/internal/es"
	"github.com/Skotchmaster/spice_shop/internal/httpserver"
	"github.com/Skotchmaster/spice_shop/internal/logging"
	"github.com/Skotchmaster/spice_shop/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/spice_shop/internal/middleware/logging"
	"github.com/Skotchmaster/spice_shop/internal/mykafka"
	"github.com/Skotchmaster/spice_shop/internal/repo"
	"github.com/Skotchmaster/spice_shop/internal/search"
	"github.com/Skotchmaster/spice_shop/internal/service"
	"github.com/Skotchmaster/spice_shop/internal/session"
	"github.com/Skotchmaster/spice_shop/pkg/catalogclient"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.CatalogURL, "CATALOG_URL")
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.SessionSecret, "SESSION_SECRET")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db handle: %v", err)
	}

	carts := &repo.GormRepo{DB: gdb}
	registry := cart.NewRegistry(carts, logger, cart.WithTTL(cfg.CartTTL))

	catalog := catalogclient.NewClient(cfg.CatalogURL, cfg.CatalogTimeout)
	catalogSvc := &service.CatalogService{Products: catalog}

	if cfg.ESURL != "" {
		esClient, err := es.NewClient(cfg)
		if err != nil {
			logger.Warn("search disabled", "error", err)
		} else {
			catalogSvc.Searcher = &search.Searcher{ES: esClient, Index: cfg.ESIndex}
		}
	}

	cartHandler := &httpserver.CartHTTP{
		Svc:   &service.CartService{Catalog: catalogSvc, Orders: catalog},
		Carts: registry,
		Topic: cfg.KafkaCartTopic,
	}

	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		topicCtx, topicCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mykafka.EnsureTopics(topicCtx, cfg.KafkaBrokers, cfg.KafkaCartTopic); err != nil {
			logger.Warn("kafka topics not ensured", "error", err)
		}
		topicCancel()

		producer, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		cartHandler.Events = producer
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Secure())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		ProductHandler: &httpserver.ProductHTTP{Svc: catalogSvc},
		CartHandler:    cartHandler,
		Sessions:       session.NewManager(cfg.SessionSecret, cfg.SessionTTL, cfg.SessionSecure),
		CSRF:           csrf.Middleware(csrf.Config{Secure: cfg.SessionSecure}),
		Ready:          sqlDB.PingContext,
	})

	baseCtx, stopStreams := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	maintCtx, stopMaint := context.WithCancel(context.Background())
	maintDone := make(chan struct{})
	go func() {
		defer close(maintDone)
		maintain(maintCtx, logger, registry, carts, cfg.CartSweepInterval, cfg.CartIdleTTL)
	}()

	go func() {
		logger.Info("storefront listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	stopStreams()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	stopMaint()
	<-maintDone

	if err := registry.Close(shutdownCtx); err != nil {
		logger.Error("cart flush on shutdown", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close", "error", err)
		}
	}
	_ = sqlDB.Close()

	logger.Info("storefront stopped")
}

// maintain evicts idle carts from memory and purges expired ones from the
// database until ctx is cancelled.
func maintain(ctx context.Context, l *slog.Logger, registry *cart.Registry, carts *repo.GormRepo, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := registry.Sweep(ctx, idle); n > 0 {
				l.Info("cart_sweep", "evicted", n, "open", registry.Len())
			}
			n, err := carts.PurgeExpired(ctx)
			if err != nil {
				l.Error("cart_purge_failed", "error", err)
				continue
			}
			if n > 0 {
				l.Info("cart_purge", "deleted", n)
			}
		}
	}
}
