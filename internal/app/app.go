package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	healthcheck "github.com/vladislavdragonenkov/subway/internal/health"
	"github.com/vladislavdragonenkov/subway/internal/metrics"
	"github.com/vladislavdragonenkov/subway/internal/service/httpapi"
	"github.com/vladislavdragonenkov/subway/internal/service/lines"
	"github.com/vladislavdragonenkov/subway/internal/service/outbox"
	"github.com/vladislavdragonenkov/subway/internal/service/stations"
	"github.com/vladislavdragonenkov/subway/internal/version"
)

// Run поднимает сервис и блокируется до отмены ctx или падения одного из серверов.
// При отмене ctx возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close runtime dependencies")
		}
	}()

	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = apiLis.Close()
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	lineService := lines.NewService(deps.store,
		lines.WithLocker(deps.locker),
		lines.WithMetrics(metrics.NewLineMetrics()),
		lines.WithLogger(logger.WithField("layer", "lines")),
		lines.WithLockWait(cfg.LockWait),
	)
	stationService := stations.NewService(deps.store, logger.WithField("layer", "stations"))

	// Без брокера события пишутся в лог; ошибка уже залогирована.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	defer closeKafkaProducer(producer, logger)

	outboxMetrics := metrics.NewOutboxMetrics()
	publisher, dlqPublisher := outboxPublishers(producer, cfg, logger)
	worker := outbox.NewWorker(deps.store.Outbox(), publisher,
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithDLQPublisher(dlqPublisher),
		outbox.WithMetrics(outboxMetrics),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	cleanup := outbox.NewCleanupWorker(deps.store.Outbox(),
		outbox.WithCleanupLogger(logger.WithField("layer", "outbox-cleanup")),
		outbox.WithCleanupMetrics(outboxMetrics),
		outbox.WithCleanupInterval(cfg.OutboxCleanupInterval),
		outbox.WithRetention(cfg.OutboxRetention),
	)
	workerCtx, cancelWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			worker.Run(workerCtx)
		}()
		go func() {
			defer wg.Done()
			cleanup.Run(workerCtx)
		}()
		wg.Wait()
	}()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	if deps.lockChecker != nil {
		healthHandler.RegisterChecker("redis", deps.lockChecker)
	}
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxChecker(deps.store.Outbox(), cfg.OutboxMaxPending, 0))
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 2)
	apiSrv := serveAPI(apiLis, httpapi.NewHandler(lineService, stationService, httpapi.Options{
		Logger:  logger.WithField("layer", "http"),
		Metrics: metrics.NewHTTPMetrics(),
	}), logger, errCh)

	grpcServer, healthServer := newGRPCServer(prometheus.DefaultRegisterer, logger)
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("сервер завершился с ошибкой")
	}

	healthServer.Shutdown()
	shutdownHTTP(apiSrv, logger, cfg.ShutdownTimeout)
	stopGRPC(grpcServer, logger, cfg.ShutdownTimeout)
	shutdownOutboxWorker(cancelWorker, workerDone, logger)
	shutdownHTTP(metricsSrv, logger, cfg.ShutdownTimeout)

	if errors.Is(runErr, grpc.ErrServerStopped) {
		return nil
	}
	return runErr
}

// stopGRPC пытается остановиться gracefully и обрывает соединения по таймауту.
func stopGRPC(server *grpc.Server, logger *log.Entry, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// shutdownOutboxWorker отменяет worker и ждёт завершения текущего цикла.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("outbox worker did not stop in time")
	}
}
