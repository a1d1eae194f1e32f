package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
)

func makeOrder(id, key string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:              id,
		IdempotencyKey:  key,
		UserID:          "u1",
		ProductID:       "p1",
		Qty:             1,
		UnitPriceMinor:  500,
		TotalPriceMinor: 500,
		Status:          domain.OrderStatusCreated,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestOrderRepository_InsertAndGet(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	order := makeOrder("order-1", "k1", now)
	if err := repo.Insert(ctx, order); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetByID(ctx, "order-1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.IdempotencyKey != "k1" {
		t.Fatalf("unexpected order: %+v", got)
	}

	byKey, err := repo.GetByIdempotencyKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if byKey.ID != "order-1" {
		t.Fatalf("unexpected order by key: %+v", byKey)
	}
}

func TestOrderRepository_NotFound(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := repo.GetByIdempotencyKey(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := repo.GetByIdempotencyKey(ctx, ""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("empty key lookup must return ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_DuplicateKey(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Insert(ctx, makeOrder("order-1", "k1", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := repo.Insert(ctx, makeOrder("order-2", "k1", now))
	if !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists, got %v", err)
	}

	// Ключ по-прежнему указывает на победителя.
	winner, err := repo.GetByIdempotencyKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get winner: %v", err)
	}
	if winner.ID != "order-1" {
		t.Fatalf("expected order-1, got %s", winner.ID)
	}
}

func TestOrderRepository_EmptyKeysDoNotCollide(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Insert(ctx, makeOrder("order-1", "", now)); err != nil {
		t.Fatalf("insert first keyless: %v", err)
	}
	if err := repo.Insert(ctx, makeOrder("order-2", "", now)); err != nil {
		t.Fatalf("second keyless order must not conflict: %v", err)
	}
}

func TestOrderRepository_ListNewestFirst(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	_ = repo.Insert(ctx, makeOrder("order-1", "k1", now.Add(-2*time.Minute)))
	_ = repo.Insert(ctx, makeOrder("order-2", "k2", now.Add(-time.Minute)))
	_ = repo.Insert(ctx, makeOrder("order-3", "k3", now))

	listed, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(listed))
	}
	if listed[0].ID != "order-3" || listed[2].ID != "order-1" {
		t.Fatalf("unexpected order: %v, %v, %v", listed[0].ID, listed[1].ID, listed[2].ID)
	}
}

func TestOrderRepository_ConcurrentSameKey(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	const workers = 16
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		inserted   int
		duplicates int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := repo.Insert(ctx, makeOrder("order-"+string(rune('a'+n)), "race-key", now))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				inserted++
			case errors.Is(err, domain.ErrOrderExists):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if inserted != 1 {
		t.Fatalf("expected exactly one winner, got %d", inserted)
	}
	if duplicates != workers-1 {
		t.Fatalf("expected %d duplicates, got %d", workers-1, duplicates)
	}
}
