// Package lock сериализует изменения одной линии между конкурентными запросами.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// ErrNotAcquired возвращается, когда блокировку не удалось получить до отмены контекста.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock освобождает ранее полученную блокировку. Повторный вызов безопасен.
type Unlock func()

// Locker выдаёт эксклюзивную блокировку по ключу.
type Locker interface {
	// Lock блокируется, пока ключ занят, либо до отмены ctx.
	Lock(ctx context.Context, key string) (Unlock, error)
}

// LineKey возвращает ключ блокировки для линии.
func LineKey(id int64) string {
	return "line:" + strconv.FormatInt(id, 10)
}

// Local — внутрипроцессный keyed mutex. Записи для ключа удаляются,
// когда их больше никто не держит и не ждёт.
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewLocal создаёт пустой локальный Locker.
func NewLocal() *Local {
	return &Local{entries: make(map[string]*entry)}
}

// Lock реализует Locker.
func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	e := l.ref(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.unref(key)
		})
	}, nil
}

// Len возвращает число ключей, которые сейчас удерживаются или ожидаются.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Local) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Local) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

var _ Locker = (*Local)(nil)
