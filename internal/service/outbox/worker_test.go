package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/vladislavdragonenkov/subway/internal/domain"
	"github.com/vladislavdragonenkov/subway/internal/metrics"
	"github.com/vladislavdragonenkov/subway/internal/storage/memory"
)

func lineMessage(id, lineID, eventType string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: domain.AggregateTypeLine,
		AggregateID:   lineID,
		EventType:     eventType,
		Payload:       []byte(`{"line_id":` + lineID + `}`),
	}
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{
		pending: []domain.OutboxMessage{lineMessage("msg-1", "1", string(domain.LineEventCreated))},
	}
	publisher := &stubPublisher{}

	worker := NewWorker(
		repo,
		publisher,
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)

	if n := worker.ProcessOnce(context.Background()); n != 1 {
		t.Fatalf("expected 1 processed message, got %d", n)
	}

	if got := len(repo.sentIDs); got != 1 {
		t.Fatalf("expected 1 sent mark, got %d", got)
	}
	if repo.sentIDs[0] != "msg-1" {
		t.Fatalf("expected sent id msg-1, got %s", repo.sentIDs[0])
	}
	if got := len(repo.failedIDs); got != 0 {
		t.Fatalf("expected 0 failed marks, got %d", got)
	}
	if got := publisher.calls(); got != 1 {
		t.Fatalf("expected 1 publish call, got %d", got)
	}
}

func TestWorker_ProcessOnce_MarkFailedAndDLQAfterRetries(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{
		pending: []domain.OutboxMessage{lineMessage("msg-2", "2", string(domain.LineEventSectionAdded))},
	}
	publisher := &stubPublisher{err: errors.New("publish failed")}
	dlqPublisher := &stubPublisher{}

	worker := NewWorker(
		repo,
		publisher,
		WithDLQPublisher(dlqPublisher),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)

	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if got := len(repo.sentIDs); got != 0 {
		t.Fatalf("expected 0 sent marks, got %d", got)
	}
	if got := len(repo.failedIDs); got != 1 {
		t.Fatalf("expected 1 failed mark, got %d", got)
	}
	if repo.failedIDs[0] != "msg-2" {
		t.Fatalf("expected failed id msg-2, got %s", repo.failedIDs[0])
	}
	if got := dlqPublisher.calls(); got != 1 {
		t.Fatalf("expected 1 DLQ publish, got %d", got)
	}

	var letter DeadLetter
	if err := json.Unmarshal(dlqPublisher.last().Payload, &letter); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if letter.OutboxID != "msg-2" || letter.AggregateID != "2" || letter.EventType != string(domain.LineEventSectionAdded) {
		t.Fatalf("unexpected dead letter: %+v", letter)
	}
	if letter.PublishError == "" || string(letter.Payload) != `{"line_id":2}` {
		t.Fatalf("dead letter must keep error and original payload: %+v", letter)
	}
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{
		pending: []domain.OutboxMessage{lineMessage("msg-3", "3", string(domain.LineEventUpdated))},
	}
	publisher := &stubPublisher{
		sequenceErrors: []error{
			errors.New("attempt 1"),
			errors.New("attempt 2"),
			nil,
		},
	}

	worker := NewWorker(
		repo,
		publisher,
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)

	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if got := len(repo.sentIDs); got != 1 {
		t.Fatalf("expected 1 sent mark, got %d", got)
	}
	if got := len(repo.failedIDs); got != 0 {
		t.Fatalf("expected 0 failed marks, got %d", got)
	}
}

func TestWorker_ProcessOnce_PullError(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pullErr: errors.New("db down")}
	worker := NewWorker(repo, &stubPublisher{})

	if n := worker.ProcessOnce(context.Background()); n != 0 {
		t.Fatalf("expected nothing processed on pull error, got %d", n)
	}
}

func TestWorker_ProcessOnce_MemoryStoreInOrder(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3"} {
		if _, err := store.Outbox().Enqueue(ctx, lineMessage("", id, string(domain.LineEventCreated))); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	publisher := &stubPublisher{}
	worker := NewWorker(store.Outbox(), publisher,
		WithBatchSize(2),
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(reg)),
	)

	if n := worker.ProcessOnce(ctx); n != 2 {
		t.Fatalf("expected batch of 2, got %d", n)
	}
	if n := worker.ProcessOnce(ctx); n != 1 {
		t.Fatalf("expected remaining 1, got %d", n)
	}
	if n := worker.ProcessOnce(ctx); n != 0 {
		t.Fatalf("expected empty outbox, got %d", n)
	}

	published := publisher.published()
	if len(published) != 3 {
		t.Fatalf("expected 3 published events, got %d", len(published))
	}
	for i, want := range []string{"1", "2", "3"} {
		if published[i].AggregateID != want {
			t.Fatalf("event %d: expected line %s, got %s", i, want, published[i].AggregateID)
		}
	}

	stats, err := store.Outbox().Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected empty backlog, got %d", stats.PendingCount)
	}
}

func TestWorker_RetryBackoff(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&stubOutboxRepo{}, &stubPublisher{}, WithRetryBaseDelay(10*time.Millisecond))

	cases := map[int]time.Duration{
		1: 10 * time.Millisecond,
		2: 20 * time.Millisecond,
		3: 40 * time.Millisecond,
	}
	for attempt, want := range cases {
		if got := worker.retryBackoff(attempt); got != want {
			t.Fatalf("attempt %d: expected %v, got %v", attempt, want, got)
		}
	}

	if got := worker.retryBackoff(200); got != time.Duration(1<<63-1) {
		t.Fatalf("expected saturation on overflow, got %v", got)
	}

	noDelay := NewWorker(&stubOutboxRepo{}, &stubPublisher{}, WithRetryBaseDelay(0))
	if got := noDelay.retryBackoff(3); got != 0 {
		t.Fatalf("expected zero delay, got %v", got)
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{}
	publisher := &stubPublisher{}

	worker := NewWorker(
		repo,
		publisher,
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestWorker_Run_DisabledWithoutPublisher(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewWorker(&stubOutboxRepo{}, nil).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker without publisher must return immediately")
	}
}

func TestLoggingPublisher_Publish(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	publisher := NewLoggingPublisher(log.NewEntry(logger), "subway.line.events")

	if err := publisher.Publish(lineMessage("msg-9", "9", string(domain.LineEventDeleted))); err != nil {
		t.Fatalf("publish: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected log entry")
	}
	if entry.Data["topic"] != "subway.line.events" || entry.Data["line_id"] != "9" {
		t.Fatalf("unexpected log fields: %v", entry.Data)
	}
}

type stubOutboxRepo struct {
	mu        sync.Mutex
	pending   []domain.OutboxMessage
	pullErr   error
	sentIDs   []string
	failedIDs []string
}

func (s *stubOutboxRepo) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, msg)
	return msg, nil
}

func (s *stubOutboxRepo) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pullErr != nil {
		return nil, s.pullErr
	}
	if limit <= 0 || limit >= len(s.pending) {
		return append([]domain.OutboxMessage(nil), s.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), s.pending[:limit]...), nil
}

func (s *stubOutboxRepo) Stats(_ context.Context) (domain.OutboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.OutboxStats{
		PendingCount: len(s.pending),
	}
	if len(s.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (s *stubOutboxRepo) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedIDs = append(s.failedIDs, id)
	return nil
}

func (s *stubOutboxRepo) DeleteSentBefore(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	callCount      int
	events         []domain.OutboxMessage
}

func (s *stubPublisher) Publish(event domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	if len(s.sequenceErrors) > 0 {
		err := s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
		if err == nil {
			s.events = append(s.events, event)
		}
		return err
	}
	if s.err == nil {
		s.events = append(s.events, event)
	}
	return s.err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubPublisher) published() []domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxMessage(nil), s.events...)
}

func (s *stubPublisher) last() domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

var _ domain.OutboxRepository = (*stubOutboxRepo)(nil)
var _ domain.OutboxPublisher = (*stubPublisher)(nil)
