package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	msgWithoutID := domain.OutboxMessage{
		AggregateType: domain.AggregateTypeLine,
		AggregateID:   "1",
		EventType:     string(domain.LineEventCreated),
		Payload:       []byte(`{"id":"1"}`),
	}
	stored1, err := repo.Enqueue(ctx, msgWithoutID)
	if err != nil {
		t.Fatalf("enqueue msg without id: %v", err)
	}
	if stored1.ID == "" {
		t.Fatal("expected generated id for outbox message")
	}

	msgWithID := domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: domain.AggregateTypeLine,
		AggregateID:   "2",
		EventType:     string(domain.LineEventSectionAdded),
		Payload:       []byte(`{"id":"2"}`),
	}
	stored2, err := repo.Enqueue(ctx, msgWithID)
	if err != nil {
		t.Fatalf("enqueue msg with id: %v", err)
	}
	if stored2.ID != msgWithID.ID {
		t.Fatalf("expected fixed id %q, got %q", msgWithID.ID, stored2.ID)
	}

	pending, err := repo.PullPending(ctx, 0)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats before marks: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected pending=2 before marks, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected oldest pending timestamp")
	}

	if err := repo.MarkSent(ctx, stored1.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(ctx, stored2.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	after, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull pending after marks: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("expected no pending after marks, got %d", len(after))
	}

	stats, err = repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats after marks: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected pending=0 after marks, got %d", stats.PendingCount)
	}
}

func TestOutboxRepository_PostgresMissingRows(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	if err := repo.MarkSent(ctx, "missing-outbox"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish on mark sent missing id, got %v", err)
	}
	if err := repo.MarkFailed(ctx, "missing-outbox"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish on mark failed missing id, got %v", err)
	}
}

func TestOutboxRepository_PostgresStatsOldestPendingOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeLine,
		AggregateID:   "10",
		EventType:     string(domain.LineEventCreated),
		Payload:       []byte(`{"id":"10"}`),
	})
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeLine,
		AggregateID:   "11",
		EventType:     string(domain.LineEventCreated),
		Payload:       []byte(`{"id":"11"}`),
	}); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected pending=2, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected non-zero oldest pending time")
	}

	if err := repo.MarkSent(ctx, first.ID); err != nil {
		t.Fatalf("mark sent first: %v", err)
	}
}

func TestOutboxRepository_PostgresDeleteSentBefore(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	var ids []string
	for _, aggregateID := range []string{"21", "22", "23"} {
		msg, err := repo.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: domain.AggregateTypeLine,
			AggregateID:   aggregateID,
			EventType:     string(domain.LineEventSectionAdded),
			Payload:       []byte(`{}`),
		})
		if err != nil {
			t.Fatalf("enqueue %s: %v", aggregateID, err)
		}
		ids = append(ids, msg.ID)
	}
	if err := repo.MarkSent(ctx, ids[0]); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(ctx, ids[1]); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	deleted, err := repo.DeleteSentBefore(ctx, time.Now().UTC().Add(-time.Hour), 10)
	if err != nil || deleted != 0 {
		t.Fatalf("recent sent message must be kept, deleted=%d err=%v", deleted, err)
	}

	deleted, err = repo.DeleteSentBefore(ctx, time.Now().UTC().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("delete sent: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("expected pending message to survive, got %d", stats.PendingCount)
	}
}
