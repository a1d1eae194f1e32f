package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository для локальной
// разработки и тестов. Повторяет контракт PostgreSQL-репозитория, включая
// конфликт по непустому idempotency key.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
	byKey map[string]string
}

// NewOrderRepository возвращает пустой in-memory репозиторий.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
		byKey: make(map[string]string),
	}
}

// Insert сохраняет заказ; непустой занятый ключ даёт ErrOrderExists.
func (r *orderRepositoryInMemory) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderExists
	}
	if order.IdempotencyKey != "" {
		if _, exists := r.byKey[order.IdempotencyKey]; exists {
			return domain.ErrOrderExists
		}
		r.byKey[order.IdempotencyKey] = order.ID
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = order
	return nil
}

// GetByID возвращает заказ или ErrOrderNotFound.
func (r *orderRepositoryInMemory) GetByID(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// GetByIdempotencyKey возвращает заказ по непустому ключу или ErrOrderNotFound.
func (r *orderRepositoryInMemory) GetByIdempotencyKey(_ context.Context, key string) (domain.Order, error) {
	if key == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.items[id], nil
}

// List возвращает все заказы, новые первыми.
func (r *orderRepositoryInMemory) List(_ context.Context) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
