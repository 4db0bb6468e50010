package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/subway/internal/domain"
	"github.com/vladislavdragonenkov/subway/internal/storage/memory"
)

func createStations(t *testing.T, store *memory.Store, names ...string) []domain.Station {
	t.Helper()
	result := make([]domain.Station, 0, len(names))
	for _, name := range names {
		station, err := domain.NewStation(name)
		if err != nil {
			t.Fatalf("new station: %v", err)
		}
		saved, err := store.Stations().Create(context.Background(), station)
		if err != nil {
			t.Fatalf("create station %s: %v", name, err)
		}
		result = append(result, saved)
	}
	return result
}

func newLine(t *testing.T, name string, up, down domain.Station) *domain.Line {
	t.Helper()
	line, err := domain.NewLine(name, "red", up, down, 10)
	if err != nil {
		t.Fatalf("new line: %v", err)
	}
	return line
}

func TestStore_DoCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	st := createStations(t, store, "A", "B")

	err := store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		line := newLine(t, "Сокольническая", st[0], st[1])
		if err := repos.Lines.Save(ctx, line); err != nil {
			return err
		}
		msg, err := domain.NewLineEvent(domain.LineEventCreated, line).OutboxMessage()
		if err != nil {
			return err
		}
		_, err = repos.Outbox.Enqueue(ctx, msg)
		return err
	})
	if err != nil {
		t.Fatalf("do failed: %v", err)
	}

	lines, err := store.Lines().FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	stats, err := store.Outbox().Stats(ctx)
	if err != nil {
		t.Fatalf("outbox stats: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("expected 1 pending event, got %d", stats.PendingCount)
	}
}

func TestStore_DoRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	st := createStations(t, store, "A", "B", "C")

	line := newLine(t, "Сокольническая", st[0], st[1])
	if err := store.Lines().Save(ctx, line); err != nil {
		t.Fatalf("save: %v", err)
	}

	boom := errors.New("boom")
	err := store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		loaded, err := repos.Lines.FindByID(ctx, line.ID)
		if err != nil {
			return err
		}
		if err := loaded.AddSection(st[1], st[2], 5); err != nil {
			return err
		}
		if err := repos.Lines.Save(ctx, loaded); err != nil {
			return err
		}
		if _, err := repos.Outbox.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateTypeLine}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	reloaded, err := store.Lines().FindByID(ctx, line.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(reloaded.Stations()) != 2 {
		t.Fatalf("expected rollback to 2 stations, got %d", len(reloaded.Stations()))
	}
	if reloaded.Version != 0 {
		t.Fatalf("expected version 0 after rollback, got %d", reloaded.Version)
	}
	stats, err := store.Outbox().Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected no pending events after rollback, got %d", stats.PendingCount)
	}
}

func TestStore_DoRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	st := createStations(t, store, "A", "B")

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
			if err := repos.Lines.Save(ctx, newLine(t, "Сокольническая", st[0], st[1])); err != nil {
				return err
			}
			panic("unexpected")
		})
	}()

	lines, err := store.Lines().FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no lines after panic rollback, got %d", len(lines))
	}
}

func TestStore_DoHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := memory.NewStore().Do(ctx, func(context.Context, domain.Repositories) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatal("fn must not run with canceled context")
	}
}
