package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductRequired = errors.New("product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQtyInvalid = errors.New("qty must be greater than zero")
	// Ошибка отрицательной цены за единицу.
	ErrUnitPriceInvalid = errors.New("unit price must be non-negative")
	// Ошибка некорректной итоговой суммы (<= 0).
	ErrTotalPriceInvalid = errors.New("total price must be greater than zero")
	// Ошибка неизвестного статуса заказа.
	ErrStatusInvalid = errors.New("unknown order status")
	// ErrValidation объединяет ошибки валидации входа; оборачивает конкретные замечания.
	ErrValidation = errors.New("order validation failed")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists сигнализирует о нарушении уникальности idempotency key при вставке.
	ErrOrderExists = errors.New("order with this idempotency key already exists")
	// ErrUserNotFound — user-service однозначно ответил, что пользователя нет.
	// Терминальная ошибка, повторные попытки не выполняются.
	ErrUserNotFound = errors.New("user does not exist")
	// ErrUserUnavailable — user-service недоступен: circuit breaker открыт
	// или исчерпаны повторные попытки. Клиент может повторить запрос позже.
	ErrUserUnavailable = errors.New("user service unavailable")
	// ErrPersistenceFailed — ошибка хранилища, не связанная с уникальностью ключа.
	ErrPersistenceFailed = errors.New("order persistence failed")
)

// IsDuplicateKey проверяет, является ли ошибка конфликтом idempotency key.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrOrderExists)
}

// IsValidation проверяет, относится ли ошибка к валидации входа.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
