package domain

import "context"

// OrderRepository описывает хранилище заказов.
// Уникальное ограничение на idempotency_key в хранилище — единственная
// настоящая гарантия дедупликации; предварительное чтение лишь оптимизация.
type OrderRepository interface {
	// Insert сохраняет новый заказ. При конфликте непустого idempotency key
	// возвращает ErrOrderExists; прочие ошибки фатальны для запроса.
	Insert(ctx context.Context, order Order) error
	// GetByID возвращает заказ или ErrOrderNotFound.
	GetByID(ctx context.Context, id string) (Order, error)
	// GetByIdempotencyKey возвращает заказ по непустому ключу или ErrOrderNotFound.
	GetByIdempotencyKey(ctx context.Context, key string) (Order, error)
	// List возвращает все заказы, новые первыми.
	List(ctx context.Context) ([]Order, error)
}

// UserValidator проверяет существование пользователя во внешнем сервисе.
type UserValidator interface {
	// Validate возвращает nil, если пользователь существует;
	// ErrUserNotFound — однозначный отказ; ErrUserUnavailable — сервис недоступен.
	Validate(ctx context.Context, userID string) error
}

// EventPublisher публикует события о созданных заказах.
type EventPublisher interface {
	// PublishOrderCreated отправляет событие, ключуя его по id заказа,
	// чтобы транспорт сохранял порядок в рамках одного заказа.
	PublishOrderCreated(ctx context.Context, order Order) error
}
