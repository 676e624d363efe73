package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/simple-crm/utils"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys of published domain events
const (
	EventLeadCreated        = "lead.created"
	EventLeadAssigned       = "lead.assigned"
	EventLeadDeleted        = "lead.deleted"
	EventAccountRoleChanged = "account.role_changed"
)

// Event is the envelope of every published message
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// EventPublisher emits domain events after their transaction committed
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data any) error
	Close() error
}

// NewEvent wraps data into an envelope with a fresh id
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: utils.UTCNow(),
		Data:       data,
	}
}

// RabbitMQPublisher publishes events to a durable topic exchange
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
}

// NewRabbitMQPublisher dials the broker and declares the exchange
func NewRabbitMQPublisher(url, exchange string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &RabbitMQPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, eventType string, data any) error {
	event := NewEvent(eventType, data)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		eventType,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Type:         eventType,
			Timestamp:    event.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		log.Printf("Failed to close RabbitMQ channel: %v", err)
	}
	return p.conn.Close()
}

// LogEventPublisher only logs events; used when messaging is disabled
type LogEventPublisher struct{}

func NewLogEventPublisher() EventPublisher {
	return &LogEventPublisher{}
}

func (p *LogEventPublisher) Publish(_ context.Context, eventType string, data any) error {
	body, err := json.Marshal(NewEvent(eventType, data))
	if err != nil {
		return err
	}
	log.Printf("Event %s: %s", eventType, body)
	return nil
}

func (p *LogEventPublisher) Close() error {
	return nil
}
