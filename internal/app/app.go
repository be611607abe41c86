// Package app wires the cart server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/cart-session/internal/domain/cart"
	"github.com/xenking/cart-session/internal/domain/product"
	"github.com/xenking/cart-session/internal/event"
	"github.com/xenking/cart-session/internal/handler"
	"github.com/xenking/cart-session/internal/session"
	"github.com/xenking/cart-session/internal/storage/postgres"
	"github.com/xenking/cart-session/pkg/health"
	"github.com/xenking/cart-session/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	defaults, err := cfg.CartDefaults()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, cfg.Cart.Table); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Repositories.
	storedRepo := postgres.NewStoredCartRepository(pool, cfg.Cart.Table)
	productRepo := postgres.NewProductRepository(pool)

	models := cart.NewModels()
	models.Register(product.ModelName, cart.ModelFinderFunc(func(ctx context.Context, id string) (any, error) {
		return productRepo.GetByID(ctx, id)
	}))

	notifier, closeNotifier, err := newNotifier(lg, m, cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	sessions := session.NewStore(cfg.SessionStoreConfig())

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("sessions", time.Second, health.CapacityCheck(sessions.Len, cfg.Session.Capacity))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()
	healthSvc.SetReady(true)

	h := handler.NewHandler(cfg.HandlerConfig(defaults), sessions, storedRepo, productRepo, notifier, models)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Router())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(mux,
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(zctx.From(ctx)),
				httpmiddleware.Recovery(),
				httpmiddleware.LogRequests(),
				httpmiddleware.RateLimit(cfg.RateLimiterConfig()),
			),
			"cart-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}

// newNotifier builds the event fan-out: request logs, the cart.events
// counter and, when brokers are configured, Kafka.
func newNotifier(lg *zap.Logger, m *app.Telemetry, cfg *Config) (cart.Notifier, func(), error) {
	metrics, err := event.NewMetricsNotifier(m.MeterProvider())
	if err != nil {
		return nil, nil, err
	}
	notifiers := event.Multi{event.LogNotifier{}, metrics}

	if len(cfg.Kafka.Brokers) == 0 {
		lg.Info("Kafka brokers not configured, event publishing disabled")
		return notifiers, func() {}, nil
	}

	w := event.NewKafkaWriter(lg, cfg.KafkaWriterConfig())
	notifiers = append(notifiers, event.NewKafkaNotifier(w, cfg.Kafka.Timeout))
	lg.Info("Publishing cart events",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	return notifiers, func() {
		if err := w.Close(); err != nil {
			lg.Warn("Close kafka writer", zap.Error(err))
		}
	}, nil
}
