package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPTransport fans signals out through a RabbitMQ fanout exchange. Every
// listener binds its own exclusive, auto-deleted queue, so each process gets
// every signal and nothing piles up for processes that went away.
type AMQPTransport struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
}

func DialAMQP(url, exchange string) (*AMQPTransport, error) {
	t := &AMQPTransport{url: url, exchange: exchange}
	if _, err := t.connection(); err != nil {
		return nil, err
	}
	return t, nil
}

// connection returns a live connection, dialing again if the last one died.
func (t *AMQPTransport) connection() (*amqp.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil && !t.conn.IsClosed() {
		return t.conn, nil
	}
	conn, err := amqp.Dial(t.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	t.conn = conn
	return conn, nil
}

func (t *AMQPTransport) channel() (*amqp.Channel, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(t.exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return ch, nil
}

func (t *AMQPTransport) Publish(ctx context.Context, origin string) error {
	ch, err := t.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, t.exchange, "", false, false, amqp.Publishing{
		ContentType: "text/plain",
		Body:        []byte(origin),
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (t *AMQPTransport) Listen(ctx context.Context, handle func(origin string)) error {
	ch, err := t.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	closeChan := ch.NotifyClose(make(chan *amqp.Error, 1))

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", t.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return errors.New("channel closed gracefully")
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("messages channel closed")
			}
			handle(string(msg.Body))
		}
	}
}

func (t *AMQPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil && !t.conn.IsClosed() {
		return t.conn.Close()
	}
	return nil
}
