package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ewangclarkson/news-aggregator-app/internal/ingest"
	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
)

// Trigger сообщение с просьбой выполнить sweep.
type Trigger struct {
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// declare объявляет durable-очередь. Producer и Consumer используют одинаковые параметры.
func declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
}

func dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// Producer
type Producer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewProducer(url string) (*Producer, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue.NewProducer: %w", err)
	}
	return &Producer{conn, ch}, nil
}

func (p *Producer) Publish(ctx context.Context, queueName string, body []byte) error {
	if _, err := declare(p.ch, queueName); err != nil {
		return err
	}

	return p.ch.PublishWithContext(
		ctx,
		"",        // exchange
		queueName, // routing key (имя очереди)
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// PublishTrigger ставит в очередь запрос на sweep.
func (p *Producer) PublishTrigger(ctx context.Context, queueName string, t Trigger) error {
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return p.Publish(ctx, queueName, body)
}

func (p *Producer) Close() {
	p.ch.Close()
	p.conn.Close()
}

// SummaryPublisher отправляет итоги sweep в очередь событий.
type SummaryPublisher struct {
	producer *Producer
	queue    string
}

func NewSummaryPublisher(p *Producer, queueName string) *SummaryPublisher {
	return &SummaryPublisher{producer: p, queue: queueName}
}

func (s *SummaryPublisher) PublishSummary(ctx context.Context, summary ingest.Summary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.producer.Publish(ctx, s.queue, body)
}

var _ ingest.SummaryPublisher = (*SummaryPublisher)(nil)

// Consumer
type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	workers int
}

func NewConsumer(url, queue string, workers int) (*Consumer, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue.NewConsumer: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	return &Consumer{
		conn:    conn,
		ch:      ch,
		queue:   queue,
		workers: workers,
	}, nil
}

// Handler обрабатывает тело сообщения. Ошибка возвращает сообщение в очередь.
type Handler func(ctx context.Context, body []byte) error

// Consume запускает workers обработчиков и возвращается сразу.
// Обработчики завершаются при закрытии канала или отмене ctx.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	q, err := declare(c.ch, c.queue)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	logger.Log.Infof("Consuming queue: %s (messages: %d)", q.Name, q.Messages)

	// Не больше одного неподтверждённого сообщения на обработчик.
	if err := c.ch.Qos(c.workers, 0, false); err != nil {
		return fmt.Errorf("queue qos: %w", err)
	}

	msgs, err := c.ch.ConsumeWithContext(
		ctx,
		q.Name,
		"",    // consumer
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for i := 0; i < c.workers; i++ {
		go func() {
			for msg := range msgs {
				if err := handler(ctx, msg.Body); err == nil {
					msg.Ack(false)
				} else {
					msg.Nack(false, true)
					logger.Log.Errorf("Task failed: %v", err)
				}
			}
		}()
	}
	return nil
}

func (c *Consumer) Close() {
	c.ch.Close()
	c.conn.Close()
}
