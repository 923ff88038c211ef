package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ngo-data-hub/internal/model"
	"github.com/iliyamo/ngo-data-hub/internal/queue"
)

// AuditPublisher forwards login attempts to downstream consumers.
// Implementations must not block the login path for long and must not fail
// it: errors are logged, never returned.
type AuditPublisher interface {
	PublishLoginAttempt(ctx context.Context, e model.LoginLogEntry)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishLoginAttempt(context.Context, model.LoginLogEntry) {}

// DefaultPublishBuffer is how many login attempts may wait for the broker.
const DefaultPublishBuffer = 256

// RabbitPublisher publishes LoginAttemptEvent messages on the durable
// login attempts queue over a single connection owned by Run.
type RabbitPublisher struct {
	URL     string
	Timeout time.Duration
	events  chan queue.LoginAttemptEvent
}

// NewRabbitPublisher returns a publisher whose queue holds at most buffer
// pending events.  Nothing is sent until Run is started.
func NewRabbitPublisher(url string, buffer int) *RabbitPublisher {
	if buffer <= 0 {
		buffer = DefaultPublishBuffer
	}
	return &RabbitPublisher{URL: url, Timeout: 3 * time.Second, events: make(chan queue.LoginAttemptEvent, buffer)}
}

// PublishLoginAttempt hands the event to Run without waiting.  When the
// buffer is full the event is dropped; the login_logs row still exists.
func (p *RabbitPublisher) PublishLoginAttempt(_ context.Context, e model.LoginLogEntry) {
	ev := queue.NewLoginAttemptEvent(e)
	select {
	case p.events <- ev:
	default:
		log.Warn().Str("email", ev.Email).Msg("rabbitmq: publish buffer full, login attempt dropped")
	}
}

// Pending reports how many events are waiting to be published.
func (p *RabbitPublisher) Pending() int { return len(p.events) }

// Run dials the broker, publishes queued events until ctx is done and
// redials with exponential backoff whenever the connection is lost.
func (p *RabbitPublisher) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(p.URL)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("rabbitmq: publisher failed to dial broker")
			if !waitFor(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = p.publishLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("rabbitmq: publisher connection lost, reconnecting")
	}
}

func (p *RabbitPublisher) publishLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.LoginAttemptsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case ev := <-p.events:
			if err := p.publish(ctx, ch, ev); err != nil {
				log.Warn().Err(err).Str("email", ev.Email).Msg("rabbitmq: publish login attempt failed")
				return err
			}
		}
	}
}

func (p *RabbitPublisher) publish(ctx context.Context, ch *amqp.Channel, ev queue.LoginAttemptEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return ch.PublishWithContext(ctx,
		"",                       // default exchange
		queue.LoginAttemptsQueue, // routing key = queue name
		false,                    // mandatory
		false,                    // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

func waitFor(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
