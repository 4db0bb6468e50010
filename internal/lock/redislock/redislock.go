// Package redislock реализует lock.Locker поверх Redis для запуска нескольких экземпляров сервиса.
package redislock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/subway/internal/lock"
)

const (
	defaultPrefix       = "subway:"
	defaultTTL          = 10 * time.Second
	defaultPollInterval = 50 * time.Millisecond
	unlockTimeout       = 2 * time.Second
)

// unlockScript удаляет ключ, только если им владеет вызывающий.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Locker — распределённая блокировка через SET NX PX.
type Locker struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
	logger       *log.Entry
}

// Option настраивает Locker.
type Option func(*Locker)

// WithPollInterval задаёт интервал повторных попыток захвата.
func WithPollInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(l *Locker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New создаёт Locker. ttl ограничивает время жизни блокировки, если держатель упал.
func New(client redis.UniversalClient, prefix string, ttl time.Duration, opts ...Option) *Locker {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	l := &Locker{
		client:       client,
		prefix:       prefix,
		ttl:          ttl,
		pollInterval: defaultPollInterval,
		logger:       log.WithField("component", "redis-lock"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock реализует lock.Locker.
func (l *Locker) Lock(ctx context.Context, key string) (lock.Unlock, error) {
	redisKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", lock.ErrNotAcquired, key, ctx.Err())
			}
			return nil, fmt.Errorf("redis setnx %s: %w", redisKey, err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", lock.ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlockFunc(redisKey, token string) lock.Unlock {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(redisKey, token) })
	}
}

func (l *Locker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
	defer cancel()
	if err := unlockScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		l.logger.WithError(err).WithField("key", redisKey).Warn("failed to release redis lock")
	}
}

// Ping проверяет доступность Redis для health-check.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var _ lock.Locker = (*Locker)(nil)
