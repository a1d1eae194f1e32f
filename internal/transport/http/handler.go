package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
	"github.com/vladislavdragonenkov/order-service/internal/service/orders"
)

// OrderService — операции оркестратора, нужные транспорту.
type OrderService interface {
	Create(ctx context.Context, in orders.CreateOrderInput) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

// Handler переводит HTTP запросы в вызовы оркестратора и ошибки домена —
// в статус-коды.
type Handler struct {
	service OrderService
	logger  *log.Entry
}

// NewHandler создаёт HTTP handler заказов.
func NewHandler(service OrderService, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-handler")
	}
	return &Handler{service: service, logger: logger}
}

// createOrderRequest — тело POST /api/orders.
type createOrderRequest struct {
	IdempotencyKey  string `json:"idempotencyKey"`
	UserID          string `json:"userId"`
	ProductID       string `json:"productId"`
	Quantity        int32  `json:"quantity"`
	UnitPriceMinor  int64  `json:"unitPriceMinor"`
	TotalPriceMinor int64  `json:"totalPriceMinor"`
	Description     string `json:"description"`
	Status          string `json:"status"`
}

// validate повторяет контрактные проверки входа на границе транспорта.
// Idempotency key необязателен: запрос без ключа всегда создаёт новый заказ.
func (r createOrderRequest) validate() []string {
	var errs []string
	if r.UserID == "" {
		errs = append(errs, "User ID is required")
	}
	if r.ProductID == "" {
		errs = append(errs, "Product ID is required")
	}
	if r.Quantity <= 0 {
		errs = append(errs, "Quantity must be a positive integer")
	}
	if r.UnitPriceMinor <= 0 {
		errs = append(errs, "Unit price must be a positive number")
	}
	if r.TotalPriceMinor <= 0 {
		errs = append(errs, "Total price must be a positive number")
	}
	return errs
}

// orderResponse — представление заказа на проводе.
type orderResponse struct {
	ID              string `json:"id"`
	IdempotencyKey  string `json:"idempotencyKey,omitempty"`
	UserID          string `json:"userId"`
	ProductID       string `json:"productId"`
	Quantity        int32  `json:"quantity"`
	UnitPriceMinor  int64  `json:"unitPriceMinor"`
	TotalPriceMinor int64  `json:"totalPriceMinor"`
	Description     string `json:"description,omitempty"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

func toOrderResponse(order domain.Order) orderResponse {
	return orderResponse{
		ID:              order.ID,
		IdempotencyKey:  order.IdempotencyKey,
		UserID:          order.UserID,
		ProductID:       order.ProductID,
		Quantity:        order.Qty,
		UnitPriceMinor:  order.UnitPriceMinor,
		TotalPriceMinor: order.TotalPriceMinor,
		Description:     order.Description,
		Status:          string(order.Status),
		CreatedAt:       order.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		UpdatedAt:       order.UpdatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// CreateOrder обрабатывает POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []string{"invalid JSON body: " + err.Error()},
		})
		return
	}

	if errs := req.validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	order, err := h.service.Create(r.Context(), orders.CreateOrderInput{
		IdempotencyKey:  req.IdempotencyKey,
		UserID:          req.UserID,
		ProductID:       req.ProductID,
		Qty:             req.Quantity,
		UnitPriceMinor:  req.UnitPriceMinor,
		TotalPriceMinor: req.TotalPriceMinor,
		Description:     req.Description,
		Status:          domain.OrderStatus(req.Status),
	})
	if err != nil {
		h.writeCreateError(w, req.UserID, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// writeCreateError отображает ошибки конвейера создания в статус-коды:
// контракт нарушен — 400, пользователь не найден — 404, зависимость лежит —
// 503, хранилище — 500.
func (h *Handler) writeCreateError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []string{err.Error()},
		})
	case errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": fmt.Sprintf("Failed to create order. User ID [%s] not found!", userID),
		})
	case errors.Is(err, domain.ErrUserUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Failed to create order. User service is unavailable, try again later",
		})
	default:
		h.logger.WithError(err).Error("create order failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Failed to create order",
		})
	}
}

// ListOrders обрабатывает GET /api/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("list orders failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Failed to fetch orders",
		})
		return
	}

	out := make([]orderResponse, 0, len(list))
	for _, order := range list {
		out = append(out, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, out)
}

// Root отвечает простым текстом, чтобы видеть живой процесс без probes.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Order Service is running"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
