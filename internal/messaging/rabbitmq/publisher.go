package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Gradient-IIITS/TrackMail-UserService/internal/logger"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/messaging"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/metrics"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/tracing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FanoutPublisher announces user events on a fanout exchange named after the
// originating module. A failed attempt drops the cached connection and the
// publish is retried on a fresh one, up to maxAttempts in total.
type FanoutPublisher struct {
	conns          *ConnectionManager
	logger         logger.Logger
	module         string
	maxAttempts    int
	publishTimeout time.Duration

	// serializes use of the shared connection across request goroutines
	mu sync.Mutex
}

type PublisherOption func(*FanoutPublisher)

// WithMaxAttempts bounds the total number of attempts, including the first.
// Values below 1 are ignored.
func WithMaxAttempts(n int) PublisherOption {
	return func(p *FanoutPublisher) {
		if n >= 1 {
			p.maxAttempts = n
		}
	}
}

func WithPublishTimeout(timeout time.Duration) PublisherOption {
	return func(p *FanoutPublisher) {
		if timeout > 0 {
			p.publishTimeout = timeout
		}
	}
}

// WithModule overrides the module tag, and with it the exchange name.
func WithModule(module string) PublisherOption {
	return func(p *FanoutPublisher) {
		if module != "" {
			p.module = module
		}
	}
}

func NewFanoutPublisher(conns *ConnectionManager, log logger.Logger, options ...PublisherOption) *FanoutPublisher {
	p := &FanoutPublisher{
		conns:          conns,
		logger:         log,
		module:         messaging.ModuleUserService,
		maxAttempts:    2,
		publishTimeout: 5 * time.Second,
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

var _ messaging.Publisher = (*FanoutPublisher)(nil)

// PublishNewUserCreated broadcasts fields, tagged as a CREATE from this
// module, to every queue bound to the module's fanout exchange.
func (p *FanoutPublisher) PublishNewUserCreated(ctx context.Context, fields map[string]any) error {
	notification := messaging.NewUserCreated(fields, p.module)
	exchange := FanoutExchange(notification.Module())

	body, err := json.Marshal(notification)
	if err != nil {
		return &PublishError{
			Exchange:  exchange.Name,
			Err:       fmt.Errorf("failed to marshal notification: %w", err),
			Timestamp: time.Now(),
		}
	}

	ctx, span := tracing.StartSpan(ctx, "rabbitmq.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", exchange.Name),
		),
	)
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.DebugCtx(ctx, "Publishing user created notification",
		logger.String("exchange", exchange.Name),
		logger.Int("bytes", len(body)))

	var lastErr error
	attempts := 0
	for attempts < p.maxAttempts {
		if attempts > 0 {
			if ctx.Err() != nil {
				break
			}
			p.conns.Drop()
			metrics.BrokerReconnectsTotal.Inc()
		}
		attempts++

		lastErr = p.publishOnce(ctx, exchange, body)
		if lastErr == nil {
			metrics.BrokerPublishAttemptsTotal.WithLabelValues("success").Inc()
			tracing.AddSpanAttributes(ctx, attribute.Int("messaging.attempts", attempts))
			p.logger.InfoCtx(ctx, "Published user created notification",
				logger.String("exchange", exchange.Name),
				logger.Int("attempt", attempts))
			return nil
		}

		metrics.BrokerPublishAttemptsTotal.WithLabelValues("failure").Inc()
		p.logger.WarnCtx(ctx, "Publish attempt failed",
			logger.String("exchange", exchange.Name),
			logger.Int("attempt", attempts),
			logger.Int("max_attempts", p.maxAttempts),
			logger.Err(lastErr))
	}

	perr := &PublishError{
		Exchange:   exchange.Name,
		RoutingKey: "",
		Attempts:   attempts,
		Err:        lastErr,
		Timestamp:  time.Now(),
	}
	tracing.AddSpanAttributes(ctx, attribute.Int("messaging.attempts", attempts))
	tracing.RecordError(ctx, perr)
	p.logger.ErrorCtx(ctx, "Giving up on user created notification", logger.Err(perr))
	return perr
}

func (p *FanoutPublisher) publishOnce(ctx context.Context, exchange Exchange, body []byte) error {
	conn, err := p.conns.Acquire(ctx)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return &ChannelError{Op: "open", Err: err, Timestamp: time.Now()}
	}
	defer func() {
		if err := ch.Close(); err != nil {
			p.logger.DebugCtx(ctx, "Error closing channel", logger.Err(err))
		}
	}()

	if err := DeclareExchange(ch, exchange); err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(pubCtx,
		exchange.Name, // exchange
		"",            // routing key, ignored by fanout
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.New().String(),
			Timestamp:    time.Now(),
			Type:         messaging.KindCreate,
			AppId:        p.module,
			Headers:      tracing.InjectAMQPHeaders(ctx, nil),
		},
	)
	if err != nil {
		return &ChannelError{Op: "publish", Err: err, Timestamp: time.Now()}
	}
	return nil
}

// Close releases the broker connection.
func (p *FanoutPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns.Close()
}
