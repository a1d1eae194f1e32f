package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
)

// metadataClient — срез sarama.Client, нужный для проверки связности
// с кластером.
type metadataClient interface {
	RefreshMetadata(topics ...string) error
	Brokers() []*sarama.Broker
	Close() error
}

// Producer публикует события заказов в Kafka. Одно долгоживущее подключение
// создаётся на старте процесса и переиспользуется всеми вызовами Publish.
type Producer struct {
	producer sarama.SyncProducer
	client   metadataClient
	topic    string
	logger   *log.Entry
}

// NewProducer создаёт Kafka producer с подтверждением от всех реплик
// и включённой идемпотентностью: доставка at-least-once, дубликаты на
// стороне брокера не размножаются. Клиент кластера сохраняется отдельно,
// чтобы health check опрашивал живые брокеры, а не состояние producer-а.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if topic == "" {
		topic = TopicOrderEvents
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1 // требование идемпотентного producer-а

	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		client:   client,
		topic:    topic,
		logger:   log.WithField("component", "kafka-producer"),
	}, nil
}

// Ping проверяет связность с кластером: обновляет метаданные и требует хотя бы
// один доступный брокер. sarama не принимает контекст, поэтому запрос выполняется
// в горутине, а ctx ограничивает ожидание результата.
func (p *Producer) Ping(ctx context.Context) error {
	if p == nil || p.client == nil {
		return errors.New("kafka client is not initialized")
	}

	done := make(chan error, 1)
	go func() {
		done <- p.client.RefreshMetadata()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("refresh kafka metadata: %w", err)
		}
		if len(p.client.Brokers()) == 0 {
			return errors.New("no reachable kafka brokers")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishOrderCreated отправляет событие order.created, ключуя его по id заказа.
func (p *Producer) PublishOrderCreated(_ context.Context, order domain.Order) error {
	event := NewOrderCreatedEvent(order)

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(order.ID),
		Value:     sarama.ByteEncoder(eventData),
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic":    p.topic,
			"order_id": order.ID,
		}).Error("failed to send order event to kafka")
		return fmt.Errorf("send order event: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     p.topic,
		"order_id":  order.ID,
		"partition": partition,
		"offset":    offset,
	}).Debug("order event sent to kafka")

	return nil
}

// Close закрывает producer и клиент кластера. Producer создан поверх клиента
// и не закрывает его сам.
func (p *Producer) Close() error {
	var errs []error
	if err := p.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
	}
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka client: %w", err))
		}
	}
	return errors.Join(errs...)
}

var _ domain.EventPublisher = (*Producer)(nil)
