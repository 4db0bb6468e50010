package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/subway/internal/health"
	"github.com/vladislavdragonenkov/subway/internal/domain"
	"github.com/vladislavdragonenkov/subway/internal/lock"
	"github.com/vladislavdragonenkov/subway/internal/lock/redislock"
	"github.com/vladislavdragonenkov/subway/internal/storage/memory"
	"github.com/vladislavdragonenkov/subway/internal/storage/postgres"
)

const redisLockPrefix = "subway:lock:"

// runtimeDependencies содержит инфраструктуру, выбранную конфигурацией.
type runtimeDependencies struct {
	store          domain.Storage
	locker         lock.Locker
	storageChecker healthcheck.Checker
	lockChecker    healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies поднимает хранилище и блокировки. При ошибке всё уже открытое закрывается.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}
	var closers []func() error

	store, closeStore, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}
	deps.store = store
	deps.storageChecker = healthcheck.NewPingChecker("storage", store.Ping)

	locker, lockChecker, closeLock, err := initLocker(ctx, cfg, logger)
	if err != nil {
		_ = closeAll(closers)
		return nil, err
	}
	if closeLock != nil {
		closers = append(closers, closeLock)
	}
	deps.locker = locker
	deps.lockChecker = lockChecker
	deps.closeFn = func() error { return closeAll(closers) }

	return deps, nil
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (domain.Storage, func() error, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("используется in-memory хранилище")
		return memory.NewStore(), nil, nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, nil, errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("подключено хранилище PostgreSQL")
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initLocker(ctx context.Context, cfg Config, logger *log.Entry) (lock.Locker, healthcheck.Checker, func() error, error) {
	switch cfg.LockDriver {
	case LockDriverLocal, "":
		return lock.NewLocal(), nil, nil, nil
	case LockDriverRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		locker := redislock.New(client, redisLockPrefix, cfg.LockTTL,
			redislock.WithLogger(logger.WithField("layer", "redislock")),
		)
		if err := locker.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		logger.WithField("redis_addr", cfg.RedisAddr).Info("блокировки линий через Redis")
		return locker, healthcheck.NewPingChecker("redis", locker.Ping), client.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported lock driver %q", cfg.LockDriver)
	}
}

// closeAll закрывает ресурсы в обратном порядке.
func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
