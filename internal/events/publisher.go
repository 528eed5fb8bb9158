// Package events publishes checkout lifecycle events for downstream
// consumers (ticketing, finance, the expiry sweep). Delivery is best-effort;
// the saga never fails because an event could not be published.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/streadway/amqp"

	"coach/internal/domain"
)

// Exchange names. Fanout, one per outcome, so consumers subscribe to what
// they care about.
const (
	ExchangePaymentSettled = "payment_settled"
	ExchangePaymentFailed  = "payment_failed"
)

// PaymentEvent is the wire payload for payment outcome events.
type PaymentEvent struct {
	BookingID   string    `json:"booking_id"`
	PaymentID   string    `json:"payment_id"`
	Method      string    `json:"method"`
	Amount      int64     `json:"amount"`
	TripRef     string    `json:"trip_ref"`
	OccurredAt  time.Time `json:"occurred_at"`
	Description string    `json:"description,omitempty"`
}

// Publisher emits payment outcome events.
type Publisher interface {
	PaymentSettled(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error
	PaymentFailed(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error
}

// AMQPPublisher publishes events to RabbitMQ fanout exchanges.
type AMQPPublisher struct {
	channel *amqp.Channel
}

// NewAMQPPublisher opens a channel on the given connection and declares the
// exchanges.
func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	for _, exchange := range []string{ExchangePaymentSettled, ExchangePaymentFailed} {
		if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
			return nil, err
		}
	}

	return &AMQPPublisher{channel: ch}, nil
}

// Ensure publishers implement Publisher.
var (
	_ Publisher = (*AMQPPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)

// PaymentSettled publishes a settlement event.
func (p *AMQPPublisher) PaymentSettled(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	return p.publish(ExchangePaymentSettled, booking, payment, "payment settled")
}

// PaymentFailed publishes a failure event.
func (p *AMQPPublisher) PaymentFailed(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	return p.publish(ExchangePaymentFailed, booking, payment, "payment failed")
}

func (p *AMQPPublisher) publish(exchange string, booking *domain.Booking, payment *domain.Payment, description string) error {
	body, err := json.Marshal(PaymentEvent{
		BookingID:   booking.ID,
		PaymentID:   payment.ID,
		Method:      string(payment.Method),
		Amount:      payment.Amount,
		TripRef:     booking.TripRef,
		OccurredAt:  time.Now(),
		Description: description,
	})
	if err != nil {
		return err
	}

	return p.channel.Publish(exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

// LogPublisher logs events instead of publishing them. Used when RabbitMQ is
// disabled.
type LogPublisher struct{}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// PaymentSettled logs a settlement event.
func (p *LogPublisher) PaymentSettled(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	log.Printf("[EVENT] payment settled: booking=%s payment=%s method=%s amount=%d",
		booking.ID, payment.ID, payment.Method, payment.Amount)
	return nil
}

// PaymentFailed logs a failure event.
func (p *LogPublisher) PaymentFailed(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	log.Printf("[EVENT] payment failed: booking=%s payment=%s method=%s amount=%d",
		booking.ID, payment.ID, payment.Method, payment.Amount)
	return nil
}
