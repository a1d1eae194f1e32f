package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/order-service/internal/health"
	"github.com/vladislavdragonenkov/order-service/internal/metrics"
	"github.com/vladislavdragonenkov/order-service/internal/service/breaker"
	"github.com/vladislavdragonenkov/order-service/internal/service/orders"
	"github.com/vladislavdragonenkov/order-service/internal/service/users"
	"github.com/vladislavdragonenkov/order-service/internal/storage/memory"
	"github.com/vladislavdragonenkov/order-service/internal/storage/postgres"
	transport "github.com/vladislavdragonenkov/order-service/internal/transport/http"
	"github.com/vladislavdragonenkov/order-service/internal/version"
)

// Run собирает зависимости и держит сервис до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	orderMetrics := metrics.NewOrderMetrics()

	// Хранилище: Postgres при наличии DSN, иначе in-memory для dev-запусков.
	repo, store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("failed to close postgres store")
			}
		}()
	}

	kafkaProducer := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer closeKafka(kafkaProducer, logger)

	userClient := users.NewClient(
		cfg.UserAPIBaseURL,
		cfg.UserAPITimeout,
		users.DefaultRetryConfig(),
		logger.WithField("component", "users-client"),
	)

	breakerSettings := breaker.DefaultSettings()
	breakerSettings.ErrorThreshold = cfg.BreakerErrorThreshold
	breakerSettings.Cooldown = cfg.BreakerCooldown
	breakerSettings.CallTimeout = cfg.BreakerCallTimeout
	breakerSettings.IsSuccessful = breaker.UserCallSuccessful
	breakerSettings.OnStateChange = func(_, to breaker.State) {
		orderMetrics.SetBreakerState(string(to))
	}
	userBreaker := breaker.New(breakerSettings, logger.WithField("component", "circuit-breaker"))
	validator := breaker.NewUserValidator(userClient, userBreaker, logger.WithField("component", "users-validator"))

	// Типизированный nil в интерфейсе сломал бы проверку "publisher == nil".
	var publisher domain.EventPublisher
	if kafkaProducer != nil {
		publisher = kafkaProducer
	}

	orderService := orders.NewService(
		repo,
		validator,
		publisher,
		orderMetrics,
		logger.WithField("component", "orders-service"),
	)

	handler := transport.NewHandler(orderService, logger.WithField("component", "http-handler"))
	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           transport.NewRouter(handler, logger.WithField("component", "http-server")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	healthHandler := healthcheck.NewHandler(version.Get().Version, 2*time.Second)
	if store != nil {
		healthHandler.Register("postgres", store.Ping)
	}
	if kafkaProducer != nil {
		healthHandler.Register("kafka", kafkaProducer.Ping)
	}

	metricsSrv := startMetricsServer(cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)

		// Дожидаемся фоновых публикаций уже созданных заказов.
		orderService.WaitPublished()

		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		orderService.WaitPublished()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчики /metrics и health probes.
func startMetricsServer(addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.Liveness)
	mux.HandleFunc("/readyz", healthHandler.Readiness)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	return srv
}

// initStorage открывает Postgres и применяет миграции; без DSN возвращает
// in-memory репозиторий.
func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (repo domain.OrderRepository, store *postgres.Store, err error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL не задан, используем in-memory хранилище")
		return memory.NewOrderRepository(), nil, nil
	}

	store, err = postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.MigrateUp(ctx, 0); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	logger.Info("postgres хранилище готово, миграции применены")
	return postgres.NewOrderRepository(store), store, nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
