package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
)

// EventType определяет тип события.
type EventType string

const (
	// EventTypeOrderCreated — заказ прошёл конвейер создания и сохранён.
	EventTypeOrderCreated EventType = "order.created"
)

// TopicOrderEvents — topic по умолчанию для событий заказов.
const TopicOrderEvents = "orders.order.events"

// OrderEvent представляет событие заказа. События ключуются по order_id,
// поэтому транспорт сохраняет порядок в рамках одного заказа.
type OrderEvent struct {
	EventType       EventType `json:"event_type"`
	OrderID         string    `json:"order_id"`
	IdempotencyKey  string    `json:"idempotency_key,omitempty"`
	UserID          string    `json:"user_id"`
	ProductID       string    `json:"product_id"`
	Qty             int32     `json:"qty"`
	UnitPriceMinor  int64     `json:"unit_price_minor"`
	TotalPriceMinor int64     `json:"total_price_minor"`
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewOrderCreatedEvent создаёт событие по сохранённому заказу.
func NewOrderCreatedEvent(order domain.Order) *OrderEvent {
	return &OrderEvent{
		EventType:       EventTypeOrderCreated,
		OrderID:         order.ID,
		IdempotencyKey:  order.IdempotencyKey,
		UserID:          order.UserID,
		ProductID:       order.ProductID,
		Qty:             order.Qty,
		UnitPriceMinor:  order.UnitPriceMinor,
		TotalPriceMinor: order.TotalPriceMinor,
		Status:          string(order.Status),
		Timestamp:       time.Now().UTC(),
	}
}
