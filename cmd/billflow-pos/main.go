package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/billflow/internal/cart"
	"github.com/fjod/billflow/internal/catalog"
	"github.com/fjod/billflow/internal/checkout"
	"github.com/fjod/billflow/internal/config"
	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/internal/gateway"
	h "github.com/fjod/billflow/internal/http"
	"github.com/fjod/billflow/internal/journal"
	"github.com/fjod/billflow/internal/payment"
	"github.com/fjod/billflow/internal/publisher"
	"github.com/fjod/billflow/internal/receipt"
	"github.com/fjod/billflow/pkg/circuitbreaker"
	"github.com/fjod/billflow/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if err := run(cfg, zl); err != nil {
		zl.Fatal("billflow-pos stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup

	printer, closePrinter, err := openPrinter(cfg.ReceiptPrinterPath)
	if err != nil {
		return fmt.Errorf("receipt printer: %w", err)
	}
	defer closePrinter()

	// Backend client
	breakerCfg := circuitbreaker.DefaultConfig("billing-backend")
	breakerCfg.MaxFailures = cfg.BreakerMaxFailures
	breakerCfg.Timeout = cfg.BreakerTimeout
	token := gateway.NewSessionToken(cfg.APIToken)
	client := gateway.NewClient(cfg.APIBaseURL,
		gateway.WithTokenSource(token),
		gateway.WithUnauthorizedHandler(func() {
			zl.Warn("backend rejected token, clearing session")
			token.Clear()
		}),
		gateway.WithBreaker(circuitbreaker.New[*http.Response](breakerCfg, zl)),
		gateway.WithLogger(zl.Named("gateway")),
	)

	// Catalog
	var cache catalog.Cache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zl.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			cache = catalog.NewRedisCache(redisClient)
			zl.Info("catalog cache enabled", zap.String("redis_addr", cfg.RedisAddr))
		}
	}
	store := catalog.NewStore(client, cache, cfg.CatalogCacheScope, zl.Named("catalog"))
	go store.Load(ctx)

	if len(cfg.KafkaBrokers) > 0 && cfg.CatalogEventsTopic != "" {
		reader := catalog.NewKafkaReader(cfg.CatalogEventsTopic, cfg.CatalogEventsGroup, cfg.KafkaBrokers...)
		invalidator := catalog.NewInvalidator(reader, store, zl.Named("catalog"))
		workers.Add(1)
		go func() {
			defer workers.Done()
			invalidator.Run(ctx)
		}()
		zl.Info("catalog update listener started", zap.String("topic", cfg.CatalogEventsTopic))
	}

	// Journal
	repo, err := journal.NewRepository(cfg.JournalDriver, cfg.JournalDSN, zl.Named("journal"))
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(); err != nil {
		return fmt.Errorf("journal migrations: %w", err)
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := publisher.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...)
		poller := publisher.NewOutboxPoller(repo, writer, zl.Named("publisher"))
		workers.Add(1)
		go func() {
			defer workers.Done()
			poller.Run(ctx)
		}()
		zl.Info("outbox publisher started", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	// Payment widget
	var (
		widget payment.Widget
		bridge *payment.Bridge
	)
	switch cfg.PaymentWidget {
	case config.WidgetSimulated:
		widget = payment.NewSimulator(cfg.PaymentSimSecret, nil, zl.Named("payment"))
	default:
		bridge = payment.NewBridge(payment.BridgeConfig{TTL: cfg.PaymentTTL}, zl.Named("payment"))
		widget = bridge
	}

	// Checkout
	engine := cart.NewEngine()
	form := domain.NewCustomerForm()
	orch := checkout.New(engine, client, widget, checkout.NewLogNotifier(zl.Named("notifier")),
		checkout.Config{
			TaxRate:     cfg.TaxRate,
			Currency:    cfg.Currency,
			ProviderKey: cfg.PaymentProviderKey,
		},
		checkout.WithRecorder(repo),
		checkout.WithLogger(zl.Named("checkout")),
	)

	// registered after repo.Close, so it runs first
	defer func() {
		closePayments := func() {}
		if bridge != nil {
			closePayments = bridge.Close
		}
		dctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		drain(dctx, closePayments, orch, stop, &workers, zl)
	}()

	handlers := h.Handlers{
		Catalog:  h.NewCatalogHandler(store, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(engine, store, orch, cfg.TaxRate, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(orch, form, zl.Named("http")),
		Receipts: h.NewReceiptHandler(repo, printer, cfg.CurrencySymbol, cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(client, cfg.RequestTimeout),
	}
	if bridge != nil {
		handlers.Payments = h.NewPaymentHandler(bridge)
	}
	router := h.NewRouter(handlers, h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Logger:             zl.Named("http"),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "billflow-pos"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zl.Info("billflow-pos listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	zl.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	zl.Info("server exited")
	return nil
}

// drain ends open payment handoffs, waits for running attempts to be recorded
// and joins the background workers. The journal must stay open until it returns.
func drain(ctx context.Context, closePayments func(), orch *checkout.Orchestrator, stopWorkers context.CancelFunc, workers *sync.WaitGroup, zl *zap.Logger) {
	closePayments()
	if err := orch.Wait(ctx); err != nil {
		zl.Warn("checkout attempt still running at shutdown", zap.Error(err))
	}
	stopWorkers()

	joined := make(chan struct{})
	go func() {
		workers.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-ctx.Done():
		zl.Warn("background workers did not stop in time", zap.Error(ctx.Err()))
	}
}

// openPrinter prints to stdout unless a device or spool file path is configured.
func openPrinter(path string) (receipt.Printer, func(), error) {
	if path == "" {
		return receipt.NewWriterPrinter(os.Stdout), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return receipt.NewWriterPrinter(f), func() { f.Close() }, nil
}
