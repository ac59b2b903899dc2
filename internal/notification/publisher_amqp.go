package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueName is the durable queue notifications flow through.
const QueueName = "parking.notifications"

// AMQPPublisher pushes notifications onto a RabbitMQ queue. It keeps a
// single connection and reopens the channel on failure. Publish errors are
// logged, never surfaced: notifications are best-effort side effects.
type AMQPPublisher struct {
	url    string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, logger: logger}
}

func (p *AMQPPublisher) Notify(ctx context.Context, n *Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		p.logger.Error("notification marshal failed", "error", err, "kind", n.Kind)
		return
	}
	if err := p.publish(ctx, body); err != nil {
		p.logger.Error("notification publish failed",
			"error", err, "kind", n.Kind, "user_id", n.UserID)
		return
	}
	p.logger.Debug("notification published", "kind", n.Kind, "user_id", n.UserID)
}

func (p *AMQPPublisher) publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		// Channel is likely dead; drop it so the next publish redials.
		p.reset()
		return err
	}
	return nil
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, err
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// LogNotifier is the fallback when no broker is configured: it records the
// notification in the store and logs it.
type LogNotifier struct {
	store  Store
	logger *slog.Logger
}

func NewLogNotifier(store Store, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{store: store, logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n *Notification) {
	if err := l.store.Save(ctx, n); err != nil {
		l.logger.Error("notification save failed", "error", err, "kind", n.Kind)
		return
	}
	l.logger.Info("notification delivered",
		"kind", n.Kind, "user_id", n.UserID, "message", n.Message)
}
