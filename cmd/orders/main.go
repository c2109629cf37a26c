package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/giftorder/internal/auth"
	"github.com/joao-fontenele/giftorder/internal/config"
	"github.com/joao-fontenele/giftorder/internal/member"
	"github.com/joao-fontenele/giftorder/internal/messaging"
	"github.com/joao-fontenele/giftorder/internal/middleware"
	"github.com/joao-fontenele/giftorder/internal/option"
	"github.com/joao-fontenele/giftorder/internal/orders"
	"github.com/joao-fontenele/giftorder/internal/postgres"
	"github.com/joao-fontenele/giftorder/internal/telemetry"
)

const serviceName = "orders"

func main() {
	ctx := context.Background()

	cfg, err := config.Load("8081")
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, cfg.ServiceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, cfg.DBSchema)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	txm, err := postgres.NewTxManager(db, logger)
	if err != nil {
		logger.Error("failed to create transaction manager", "error", err)
		os.Exit(1)
	}

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, time.Hour)
	if err != nil {
		logger.Error("failed to create token verifier", "error", err)
		os.Exit(1)
	}

	optionRepo := option.NewRepository(db)
	memberRepo := member.NewRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	store := orders.NewSQLStore(txm, optionRepo, memberRepo, orderRepo, cfg.LockTimeout)

	serviceMetrics, err := orders.NewMetrics()
	if err != nil {
		logger.Error("failed to create order metrics", "error", err)
		os.Exit(1)
	}

	serviceOpts := []orders.ServiceOption{
		orders.WithMetrics(serviceMetrics),
		orders.WithTxTimeout(cfg.OrderTxTimeout),
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderPlacedTopic, "order.placed")
		defer func() { _ = producer.Close() }()
		serviceOpts = append(serviceOpts, orders.WithPublisher(producer))
	} else {
		logger.Warn("KAFKA_BROKERS not set, order placed events are disabled")
	}

	service := orders.NewService(store, logger, serviceOpts...)
	resolver := auth.NewResolver(verifier, memberRepo, logger)

	handler, err := orders.NewHandler(service, orderRepo, resolver, cfg.RuleViolationStatus, logger)
	if err != nil {
		logger.Error("failed to create orders handler", "error", err)
		os.Exit(1)
	}

	var create http.Handler = http.HandlerFunc(handler.HandleCreate)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer func() { _ = rdb.Close() }()

		limiter, err := middleware.NewRedisLimiter(rdb, "gift:ratelimit:orders:", cfg.OrderRateLimit, cfg.OrderRateWindow)
		if err != nil {
			logger.Error("failed to create rate limiter", "error", err)
			os.Exit(1)
		}
		create = middleware.RateLimit(limiter, logger)(create)
	} else {
		logger.Warn("REDIS_ADDR not set, order rate limiting is disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/orders", telemetry.WithHTTPRoute(create))
	mux.Handle("GET /api/orders", telemetry.WithHTTPRoute(http.HandlerFunc(handler.HandleList)))
	mux.Handle("GET /api/orders/{id}", telemetry.WithHTTPRoute(http.HandlerFunc(handler.HandleGet)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: cfg.Addr(),
		Handler: otelhttp.NewHandler(
			middleware.RequestID(middleware.Logging(logger)(mux)),
			serviceName,
			otelhttp.WithSpanNameFormatter(telemetry.SpanName),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
