package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
)

func sampleOrder(key string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:              uuid.NewString(),
		IdempotencyKey:  key,
		UserID:          "u1",
		ProductID:       "p1",
		Qty:             2,
		UnitPriceMinor:  1000,
		TotalPriceMinor: 2000,
		Description:     "integration order",
		Status:          domain.OrderStatusCreated,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestOrderRepository_PostgresInsertGetList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("int-k1", now.Add(-2*time.Minute))
	order2 := sampleOrder("int-k2", now.Add(-time.Minute))

	if err := repo.Insert(ctx, order1); err != nil {
		t.Fatalf("insert order1: %v", err)
	}
	if err := repo.Insert(ctx, order2); err != nil {
		t.Fatalf("insert order2: %v", err)
	}

	got, err := repo.GetByID(ctx, order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.IdempotencyKey != order1.IdempotencyKey || got.UserID != order1.UserID ||
		got.Qty != order1.Qty || got.TotalPriceMinor != order1.TotalPriceMinor {
		t.Fatalf("unexpected order payload: %+v", got)
	}

	byKey, err := repo.GetByIdempotencyKey(ctx, "int-k2")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if byKey.ID != order2.ID {
		t.Fatalf("get by key returned wrong order: %s", byKey.ID)
	}

	listed, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(listed))
	}
	// Новые заказы идут первыми.
	if listed[0].ID != order2.ID {
		t.Fatalf("expected newest order first, got %s", listed[0].ID)
	}
}

func TestOrderRepository_PostgresDuplicateKey(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC()
	first := sampleOrder("int-dup", now)
	second := sampleOrder("int-dup", now)

	if err := repo.Insert(ctx, first); err != nil {
		t.Fatalf("insert first: %v", err)
	}
	if err := repo.Insert(ctx, second); !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists, got %v", err)
	}

	// Побеждает первая вставка; ключ указывает ровно на неё.
	winner, err := repo.GetByIdempotencyKey(ctx, "int-dup")
	if err != nil {
		t.Fatalf("get winner: %v", err)
	}
	if winner.ID != first.ID {
		t.Fatalf("expected winner %s, got %s", first.ID, winner.ID)
	}
}

func TestOrderRepository_PostgresEmptyKeysDoNotCollide(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := repo.Insert(ctx, sampleOrder("", now)); err != nil {
		t.Fatalf("insert keyless order: %v", err)
	}
	if err := repo.Insert(ctx, sampleOrder("", now)); err != nil {
		t.Fatalf("second keyless order must not conflict: %v", err)
	}
}

func TestOrderRepository_PostgresConcurrentSameKey(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC()
	const workers = 8

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		inserted   int
		duplicates int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Insert(ctx, sampleOrder("int-race", now))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				inserted++
			case errors.Is(err, domain.ErrOrderExists):
				duplicates++
			default:
				t.Errorf("unexpected insert error: %v", err)
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Fatalf("expected exactly one winning insert, got %d", inserted)
	}
	if duplicates != workers-1 {
		t.Fatalf("expected %d duplicates, got %d", workers-1, duplicates)
	}
}
