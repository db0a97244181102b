package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrQueueClosed = errors.New("job queue closed")

type EvaluationJob struct {
	AnswerID uuid.UUID `json:"answer_id"`
	Force    bool      `json:"force"`
}

// JobQueue carries evaluation jobs from the API and the poller to the worker.
type JobQueue interface {
	Publish(ctx context.Context, job EvaluationJob) error
	Consume(ctx context.Context) (<-chan EvaluationJob, error)
	Close() error
}

type channelQueue struct {
	jobs chan EvaluationJob
	done chan struct{}
	once sync.Once
}

func NewChannelQueue(size int) JobQueue {
	if size <= 0 {
		size = 100
	}
	return &channelQueue{
		jobs: make(chan EvaluationJob, size),
		done: make(chan struct{}),
	}
}

func (q *channelQueue) Publish(ctx context.Context, job EvaluationJob) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.jobs <- job:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *channelQueue) Consume(_ context.Context) (<-chan EvaluationJob, error) {
	return q.jobs, nil
}

// Close stops publishing; the job channel stays open so no send can panic.
func (q *channelQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

type rabbitQueue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

// NewRabbitMQQueue declares a durable queue so jobs survive a restart.
func NewRabbitMQQueue(url, name string, prefetch int) (JobQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		name,  // queue name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if prefetch < 1 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	log.Printf("✅ Connected to RabbitMQ and declared queue %s\n", name)

	return &rabbitQueue{conn: conn, channel: ch, queue: q}, nil
}

func (r *rabbitQueue) Publish(ctx context.Context, job EvaluationJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.channel.PublishWithContext(
		ctx,
		"",           // exchange
		r.queue.Name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Consume acks a delivery once it is decoded and handed to a worker.
func (r *rabbitQueue) Consume(ctx context.Context) (<-chan EvaluationJob, error) {
	deliveries, err := r.channel.Consume(
		r.queue.Name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	jobs := make(chan EvaluationJob)
	go func() {
		defer close(jobs)
		for d := range deliveries {
			var job EvaluationJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Printf("⚠️  Invalid job format: %v\n", err)
				d.Nack(false, false)
				continue
			}

			select {
			case jobs <- job:
				d.Ack(false)
			case <-ctx.Done():
				d.Nack(false, true)
				return
			}
		}
	}()

	return jobs, nil
}

func (r *rabbitQueue) Close() error {
	if err := r.channel.Close(); err != nil {
		r.conn.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	return r.conn.Close()
}
