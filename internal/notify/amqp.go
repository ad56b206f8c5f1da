package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/config"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/metrics"
)

const (
	// ExchangeName is the topic exchange status changes are published to
	ExchangeName = "scenestudio"
	// StatusQueueName is bound to every scene.* routing key
	StatusQueueName = "scene_status"
)

// publisher is the part of *amqp.Channel used to publish
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes status changes to RabbitMQ with the event name
// as routing key
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel publisher
}

// NewAMQPPublisher connects to RabbitMQ and declares the exchange and queue
func NewAMQPPublisher(cfg config.AMQPConfig) (*AMQPPublisher, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		StatusQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(
		StatusQueueName,
		"scene.*",
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &AMQPPublisher{
		conn:    conn,
		channel: channel,
	}, nil
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Notify implements Notifier
func (p *AMQPPublisher) Notify(ctx context.Context, change StatusChange) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal status change: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		ExchangeName,
		change.Event(),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Type:         change.Event(),
			MessageId:    change.SceneID + ":" + string(change.To),
		},
	)
	metrics.RecordNotification("amqp", err)
	if err != nil {
		return fmt.Errorf("failed to publish status change: %w", err)
	}
	return nil
}
