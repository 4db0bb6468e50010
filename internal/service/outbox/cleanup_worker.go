package outbox

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/subway/internal/domain"
	"github.com/vladislavdragonenkov/subway/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	defaultRetention        = 24 * time.Hour
)

// CleanupOptions задаёт параметры очистки опубликованных сообщений outbox.
type CleanupOptions struct {
	Logger    *log.Entry
	Metrics   *metrics.OutboxMetrics
	Interval  time.Duration
	BatchSize int
	Retention time.Duration
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

// WithCleanupLogger задаёт logger для воркера очистки.
func WithCleanupLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Logger = logger
	}
}

// WithCleanupMetrics подключает метрики очистки.
func WithCleanupMetrics(m *metrics.OutboxMetrics) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Metrics = m
	}
}

// WithCleanupInterval задаёт интервал между прогонами.
func WithCleanupInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Interval = interval
	}
}

// WithCleanupBatchSize задаёт размер одного удаления.
func WithCleanupBatchSize(batchSize int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.BatchSize = batchSize
	}
}

// WithRetention задаёт, сколько хранить опубликованные сообщения.
func WithRetention(retention time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Retention = retention
	}
}

// CleanupWorker периодически удаляет опубликованные сообщения старше retention.
// Pending и failed сообщения не трогает.
type CleanupWorker struct {
	repo      domain.OutboxRepository
	logger    *log.Entry
	metrics   *metrics.OutboxMetrics
	interval  time.Duration
	batchSize int
	retention time.Duration
	now       func() time.Time
}

// NewCleanupWorker создаёт воркер очистки outbox.
func NewCleanupWorker(repo domain.OutboxRepository, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{
		Interval:  defaultCleanupInterval,
		BatchSize: defaultCleanupBatchSize,
		Retention: defaultRetention,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-cleanup-worker")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.Retention < 0 {
		opts.Retention = 0
	}

	return &CleanupWorker{
		repo:      repo,
		logger:    logger,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		retention: opts.Retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("outbox cleanup worker is disabled: repo is nil")
		return
	}

	w.cleanup(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, w.now().Add(-w.retention))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.metrics.RecordCleanup("error", deleted)
		w.logger.WithError(err).Warn("outbox cleanup run failed")
		return
	}

	w.metrics.RecordCleanup("ok", deleted)
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("outbox cleanup completed")
	}
}

// DeleteExpired удаляет опубликованные сообщения, обновлённые раньше before, порциями batchSize.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.now()
	}

	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		deleted, err := w.repo.DeleteSentBefore(ctx, before, w.batchSize)
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted < w.batchSize {
			break
		}
	}

	return totalDeleted, nil
}
