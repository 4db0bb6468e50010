package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/subway/internal/app"
	"github.com/vladislavdragonenkov/subway/internal/version"
)

// setupLogger настраивает формат и уровень логирования по LOG_FORMAT и LOG_LEVEL.
func setupLogger(format, level string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.New("unsupported LOG_FORMAT " + format)
	}

	if strings.TrimSpace(level) == "" {
		log.SetLevel(log.InfoLevel)
		return nil
	}
	parsed, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}

func main() {
	if err := setupLogger(os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL")); err != nil {
		log.WithError(err).Fatal("некорректные настройки логирования")
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"lock_driver":    cfg.LockDriver,
	}).Info("запускаем subway-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("subway-service остановлен")
}
