package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	seq        int64
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxRepositoryInMemory — простое in-memory хранилище для transactional outbox.
type outboxRepositoryInMemory struct {
	store *Store
	inTx  bool
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его с идентификатором.
func (r *outboxRepositoryInMemory) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	defer r.store.acquire(r.inTx)()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.store.st.nextOutboxSeq++
	r.store.st.outbox[msg.ID] = &outboxRecord{
		msg:       msg,
		seq:       r.store.st.nextOutboxSeq,
		status:    outboxStatusPending,
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке постановки.
func (r *outboxRepositoryInMemory) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	defer r.store.acquire(r.inTx)()

	if limit <= 0 {
		limit = 100
	}

	pending := r.pendingRecords()
	if len(pending) > limit {
		pending = pending[:limit]
	}
	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats считает backlog pending-сообщений.
func (r *outboxRepositoryInMemory) Stats(_ context.Context) (domain.OutboxStats, error) {
	defer r.store.acquire(r.inTx)()

	pending := r.pendingRecords()
	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].createdAt
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepositoryInMemory) MarkSent(_ context.Context, id string) error {
	defer r.store.acquire(r.inTx)()
	return r.markStatus(id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepositoryInMemory) MarkFailed(_ context.Context, id string) error {
	defer r.store.acquire(r.inTx)()
	return r.markStatus(id, outboxStatusFailed)
}

// DeleteSentBefore удаляет старейшие опубликованные сообщения.
func (r *outboxRepositoryInMemory) DeleteSentBefore(_ context.Context, before time.Time, limit int) (int, error) {
	defer r.store.acquire(r.inTx)()

	if limit <= 0 {
		return 0, nil
	}

	expired := make([]*outboxRecord, 0)
	for _, rec := range r.store.st.outbox {
		if rec.status == outboxStatusSent && rec.updatedAt.Before(before) {
			expired = append(expired, rec)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].seq < expired[j].seq })
	if len(expired) > limit {
		expired = expired[:limit]
	}
	for _, rec := range expired {
		delete(r.store.st.outbox, rec.msg.ID)
	}
	return len(expired), nil
}

func (r *outboxRepositoryInMemory) markStatus(id, status string) error {
	record, ok := r.store.st.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = time.Now().UTC()
	return nil
}

func (r *outboxRepositoryInMemory) pendingRecords() []*outboxRecord {
	result := make([]*outboxRecord, 0, len(r.store.st.outbox))
	for _, rec := range r.store.st.outbox {
		if rec.status == outboxStatusPending {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

var _ domain.OutboxRepository = (*outboxRepositoryInMemory)(nil)
