package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
	"github.com/vladislavdragonenkov/order-service/internal/metrics"
)

// CreateOrderInput — вход операции создания заказа.
type CreateOrderInput struct {
	IdempotencyKey  string
	UserID          string
	ProductID       string
	Qty             int32
	UnitPriceMinor  int64
	TotalPriceMinor int64
	Description     string
	Status          domain.OrderStatus
}

// Service оркестрирует конвейер создания заказа: дедупликация по idempotency
// key, проверка пользователя через breaker-обёрнутый клиент, транзакционная
// вставка и best-effort публикация события.
type Service struct {
	repo      domain.OrderRepository
	validator domain.UserValidator
	publisher domain.EventPublisher
	logger    *log.Entry
	metrics   *metrics.OrderMetrics

	publishWG sync.WaitGroup
}

// NewService конструирует сервис. publisher может быть nil — тогда публикация
// событий превращается в no-op с предупреждением; metrics может быть nil в тестах.
func NewService(
	repo domain.OrderRepository,
	validator domain.UserValidator,
	publisher domain.EventPublisher,
	m *metrics.OrderMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders-service")
	}
	return &Service{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
	}
}

// Create применяет логический запрос ровно один раз. Повторная отправка с тем
// же непустым idempotency key возвращает исходный заказ, а не ошибку. Пустой
// ключ осознанно выключает дедупликацию: такой запрос всегда новый.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	order := domain.Order{
		IdempotencyKey:  in.IdempotencyKey,
		UserID:          in.UserID,
		ProductID:       in.ProductID,
		Qty:             in.Qty,
		UnitPriceMinor:  in.UnitPriceMinor,
		TotalPriceMinor: in.TotalPriceMinor,
		Description:     in.Description,
		Status:          in.Status,
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusCreated
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		s.reject(metrics.ReasonValidation)
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrValidation, errors.Join(errs...))
	}

	// Fast-path дедупликации. Само по себе чтение гонку не закрывает:
	// настоящая гарантия — уникальный constraint хранилища, см. Insert ниже.
	if order.IdempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, order.IdempotencyKey)
		switch {
		case err == nil:
			s.duplicate(existing)
			return existing, nil
		case !errors.Is(err, domain.ErrOrderNotFound):
			s.logger.WithError(err).WithField("idempotency_key", order.IdempotencyKey).
				Warn("idempotency pre-check failed, relying on the unique constraint")
		}
	}

	if err := s.validator.Validate(ctx, order.UserID); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			s.reject(metrics.ReasonUserMissing)
			return domain.Order{}, err
		case errors.Is(err, domain.ErrUserUnavailable):
			s.reject(metrics.ReasonUnavailable)
			return domain.Order{}, err
		default:
			s.reject(metrics.ReasonUnavailable)
			return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrUserUnavailable, err)
		}
	}

	// После успешной валидации заказ доводится до конца, даже если клиент
	// отключился: зафиксированная запись не должна "откатываться" обрывом.
	persistCtx := context.WithoutCancel(ctx)

	now := time.Now().UTC()
	order.ID = uuid.NewString()
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := s.repo.Insert(persistCtx, order); err != nil {
		if domain.IsDuplicateKey(err) && order.IdempotencyKey != "" {
			// Проиграли гонку конкурирующей вставке с тем же ключом:
			// перечитываем победителя и возвращаем его как успех.
			winner, readErr := s.repo.GetByIdempotencyKey(persistCtx, order.IdempotencyKey)
			if readErr == nil {
				s.duplicate(winner)
				return winner, nil
			}
			err = fmt.Errorf("re-read after idempotency conflict: %w", readErr)
		}
		s.reject(metrics.ReasonPersistence)
		s.logger.WithError(err).WithField("idempotency_key", order.IdempotencyKey).
			Error("failed to persist order")
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}

	if s.metrics != nil {
		s.metrics.RecordCreated()
	}
	s.logger.WithFields(log.Fields{
		"order_id":        order.ID,
		"idempotency_key": order.IdempotencyKey,
	}).Info("order created")

	s.publishOrderCreated(persistCtx, order)

	return order, nil
}

// List возвращает все заказы, новые первыми.
func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}
	return orders, nil
}

// WaitPublished дожидается завершения фоновых публикаций; используется при
// остановке сервиса и в тестах.
func (s *Service) WaitPublished() {
	s.publishWG.Wait()
}

// publishOrderCreated отправляет событие в отдельной горутине: исход публикации
// никогда не влияет на результат Create и не задерживает ответ клиенту.
func (s *Service) publishOrderCreated(ctx context.Context, order domain.Order) {
	if s.publisher == nil {
		s.logger.WithField("order_id", order.ID).
			Warn("event publisher is not configured, skipping order event")
		return
	}

	s.publishWG.Add(1)
	go func() {
		defer s.publishWG.Done()
		if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
			if s.metrics != nil {
				s.metrics.RecordPublishFailure()
			}
			s.logger.WithError(err).WithField("order_id", order.ID).
				Warn("failed to publish order event")
		}
	}()
}

func (s *Service) reject(reason string) {
	if s.metrics != nil {
		s.metrics.RecordRejected(reason)
	}
}

func (s *Service) duplicate(order domain.Order) {
	if s.metrics != nil {
		s.metrics.RecordDuplicate()
	}
	s.logger.WithFields(log.Fields{
		"order_id":        order.ID,
		"idempotency_key": order.IdempotencyKey,
	}).Info("duplicate create request resolved to existing order")
}
