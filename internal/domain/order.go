package domain

import "time"

// OrderStatus описывает состояние заказа.
type OrderStatus string

const (
	// OrderStatusCreated — заказ прошёл проверку пользователя и сохранён.
	OrderStatusCreated OrderStatus = "CREATED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated:
		return true
	default:
		return false
	}
}

// Order — заказ, каким он хранится и отдаётся наружу.
// После первичного сохранения заказ в этом ядре не мутируется.
type Order struct {
	// ID генерируется сервером и неизменен после присвоения.
	ID string
	// IdempotencyKey — клиентский токен логического запроса. Пустой ключ
	// означает, что запрос никогда не дедуплицируется.
	IdempotencyKey string
	// UserID — внешний идентификатор пользователя, проверяется через user-service.
	UserID string
	// ProductID — внешний идентификатор товара.
	ProductID string
	// Qty — количество единиц товара.
	Qty int32
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах.
	UnitPriceMinor int64
	// TotalPriceMinor — итоговая сумма заказа в минимальных денежных единицах.
	TotalPriceMinor int64
	// Description — необязательное описание заказа.
	Description string
	Status      OrderStatus
	// CreatedAt и UpdatedAt выставляются сервером в UTC.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
// Проверка выполняется на границе ядра, даже если транспорт уже валидировал вход.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if o.ProductID == "" {
		errs = append(errs, ErrProductRequired)
	}
	if o.Qty <= 0 {
		errs = append(errs, ErrQtyInvalid)
	}
	if o.UnitPriceMinor < 0 {
		errs = append(errs, ErrUnitPriceInvalid)
	}
	if o.TotalPriceMinor <= 0 {
		errs = append(errs, ErrTotalPriceInvalid)
	}
	if o.Status != "" && !o.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}

	return errs
}
