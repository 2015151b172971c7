// Package mq publishes admission events to a RabbitMQ topic exchange.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// RoutingKeyAdmissionCreated is the routing key of committed admissions.
	RoutingKeyAdmissionCreated = "admission.created"
	exchangeKindTopic          = "topic"
	contentTypeJSON            = "application/json"
)

var ErrMissingExchange = errors.New("amqp exchange is required")

// AdmissionMessage is the JSON body of an admission.created message.
type AdmissionMessage struct {
	EventID      string `json:"event_id"`
	Kind         string `json:"kind"`
	EntityID     int64  `json:"entity_id"`
	StudentEmail string `json:"student_email"`
	SessionID    string `json:"session_id,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements admission.EventPublisher over an AMQP channel.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	newID    func() string
}

// NewPublisher dials the broker and declares a durable topic exchange.
func NewPublisher(url string, exchange string) (*Publisher, error) {
	if exchange == "" {
		return nil, ErrMissingExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, exchangeKindTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	publisher := newPublisher(ch, exchange)
	publisher.conn = conn
	return publisher, nil
}

func newPublisher(ch channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, newID: uuid.NewString}
}

// PublishAdmission sends the event as a persistent JSON message.
func (publisher *Publisher) PublishAdmission(ctx context.Context, event admission.AdmissionEvent) error {
	message := NewAdmissionMessage(publisher.newID(), event)
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode admission message: %w", err)
	}
	err = publisher.ch.PublishWithContext(ctx, publisher.exchange, RoutingKeyAdmissionCreated, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    message.EventID,
		Timestamp:    time.Unix(event.OccurredAt, 0).UTC(),
		Type:         RoutingKeyAdmissionCreated,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyAdmissionCreated, err)
	}
	return nil
}

// Close releases the channel and the connection.
func (publisher *Publisher) Close() error {
	if publisher.ch != nil {
		_ = publisher.ch.Close()
	}
	if publisher.conn != nil {
		return publisher.conn.Close()
	}
	return nil
}

// NewAdmissionMessage maps a domain event to its wire form.
func NewAdmissionMessage(eventID string, event admission.AdmissionEvent) AdmissionMessage {
	return AdmissionMessage{
		EventID:      eventID,
		Kind:         event.Kind.String(),
		EntityID:     event.EntityID,
		StudentEmail: event.StudentEmail,
		SessionID:    event.SessionID,
		OccurredAt:   time.Unix(event.OccurredAt, 0).UTC().Format(time.RFC3339),
	}
}
