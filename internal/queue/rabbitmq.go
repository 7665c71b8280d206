package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dlxExchangeName  = "medtransit.dlx"
	dialTimeout      = 15 * time.Second
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
)

// ErrBrokerDisconnected is returned by Ping while no live broker connection
// exists.
var ErrBrokerDisconnected = errors.New("rabbitmq connection is not open")

// RabbitMQ owns the broker connection shared by the publisher and consumer.
// The partition queues and their dead-letter queues are declared once per
// connection.
type RabbitMQ struct {
	url    string
	queues []string

	mu          sync.RWMutex
	reconnectMu sync.Mutex
	conn        *amqp.Connection
	declared    *amqp.Connection
}

// NewRabbitMQ dials the broker and declares the given work queues.
func NewRabbitMQ(url string, queues []string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if len(queues) == 0 {
		return nil, fmt.Errorf("at least one work queue is required")
	}

	r := &RabbitMQ{url: url, queues: append([]string(nil), queues...)}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	ch, err := r.channel(ctx)
	if err != nil {
		return nil, err
	}
	_ = ch.Close()

	return r, nil
}

// Ping reports whether the connection is open. It never dials, so readiness
// checks return at once while the broker is away.
func (r *RabbitMQ) Ping(ctx context.Context) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if r == nil {
		return ErrBrokerDisconnected
	}

	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return ErrBrokerDisconnected
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.declared = nil
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// channel opens a channel on a live connection, redialing once if the
// current connection refuses it.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		r.drop(conn)
		if conn, err = r.connection(ctx); err != nil {
			return nil, err
		}
		if ch, err = conn.Channel(); err != nil {
			return nil, fmt.Errorf("failed to open rabbitmq channel after reconnect: %w", err)
		}
	}

	if err := r.ensureTopology(conn, ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()

	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}
	return r.redial(ctx)
}

// drop forgets a connection that failed to open a channel so the next caller
// redials.
func (r *RabbitMQ) drop(conn *amqp.Connection) {
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	r.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		_ = conn.Close()
	}
}

func (r *RabbitMQ) redial(ctx context.Context) (*amqp.Connection, error) {
	r.reconnectMu.Lock()
	defer r.reconnectMu.Unlock()

	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	wait := reconnectBackoff
	for {
		conn, err := amqp.Dial(r.url)
		if err == nil {
			r.mu.Lock()
			r.conn = conn
			r.mu.Unlock()
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq dial canceled: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func (r *RabbitMQ) ensureTopology(conn *amqp.Connection, ch *amqp.Channel) error {
	r.mu.RLock()
	done := r.declared == conn
	r.mu.RUnlock()
	if done {
		return nil
	}

	if err := declareTopology(ch, r.queues); err != nil {
		return err
	}

	r.mu.Lock()
	r.declared = conn
	r.mu.Unlock()
	return nil
}

// declareTopology declares every work queue with a dead-letter queue behind
// the shared DLX. Each work queue dead-letters under its own name.
func declareTopology(ch *amqp.Channel, queues []string) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", dlxExchangeName, err)
	}

	for _, name := range queues {
		dlq := DLQName(name)
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", dlq, err)
		}
		if err := ch.QueueBind(dlq, name, dlxExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q: %w", dlq, err)
		}

		if _, err := ch.QueueDeclare(name, true, false, false, false, workQueueArgs(name)); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", name, err)
		}
	}
	return nil
}

func workQueueArgs(name string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": name,
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
