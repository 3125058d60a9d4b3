package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gradient-IIITS/TrackMail-UserService/internal/logger"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EndpointFunc resolves the broker URL from configuration. It is called on
// every (re)connect, never cached.
type EndpointFunc func() (string, error)

// StaticEndpoint returns an EndpointFunc that always yields url.
func StaticEndpoint(url string) EndpointFunc {
	return func() (string, error) { return url, nil }
}

// ConnectionManager owns at most one broker connection. The connection is
// opened lazily by Acquire and discarded by Drop; an Acquire after Drop
// always dials a fresh connection.
type ConnectionManager struct {
	endpoint       EndpointFunc
	dial           Dialer
	connectTimeout time.Duration
	logger         logger.Logger

	mu   sync.Mutex
	conn Connection
}

type ConnectionOption func(*ConnectionManager)

func WithDialer(dial Dialer) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.dial = dial
	}
}

func WithConnectTimeout(timeout time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		if timeout > 0 {
			cm.connectTimeout = timeout
		}
	}
}

func NewConnectionManager(endpoint EndpointFunc, log logger.Logger, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		endpoint:       endpoint,
		dial:           DialAMQP,
		connectTimeout: 10 * time.Second,
		logger:         log,
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm
}

// Acquire returns the cached connection if it is still open, otherwise
// establishes and caches a new one. Failures are returned as
// *ConnectionError and are not retried here.
func (cm *ConnectionManager) Acquire(ctx context.Context) (Connection, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.conn != nil {
		if !cm.conn.IsClosed() {
			return cm.conn, nil
		}
		cm.logger.WarnCtx(ctx, "Cached broker connection is closed, reconnecting")
		cm.conn = nil
	}

	raw, err := cm.endpoint()
	if err != nil {
		metrics.BrokerConnectionFailuresTotal.Inc()
		return nil, &ConnectionError{
			Op:        "resolve endpoint",
			Err:       fmt.Errorf("%w: %v", ErrInvalidConfiguration, err),
			Timestamp: time.Now(),
		}
	}

	sanitized := SanitizeURL(raw)
	if _, err := amqp.ParseURI(raw); err != nil {
		metrics.BrokerConnectionFailuresTotal.Inc()
		return nil, &ConnectionError{
			Op:        "parse endpoint",
			URL:       sanitized,
			Err:       fmt.Errorf("%w: %v", ErrInvalidConfiguration, err),
			Timestamp: time.Now(),
		}
	}

	cm.logger.InfoCtx(ctx, "Connecting to RabbitMQ", logger.String("url", sanitized))

	conn, err := cm.dial(ctx, raw, cm.connectTimeout)
	if err == nil && conn == nil {
		err = ErrNilConnection
	}
	if err != nil {
		metrics.BrokerConnectionFailuresTotal.Inc()
		cm.logger.ErrorCtx(ctx, "Failed to connect to RabbitMQ",
			logger.String("url", sanitized),
			logger.Err(err))
		return nil, &ConnectionError{
			Op:        "connect",
			URL:       sanitized,
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	cm.conn = conn
	metrics.BrokerConnectionsOpenedTotal.Inc()
	cm.logger.InfoCtx(ctx, "Connected to RabbitMQ", logger.String("url", sanitized))

	return conn, nil
}

// Drop closes and forgets the cached connection. Close failures are logged,
// not returned. Calling Drop with no connection is a no-op.
func (cm *ConnectionManager) Drop() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.conn == nil {
		return
	}

	cm.logger.Info("Closing RabbitMQ connection")
	if err := cm.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		cm.logger.Warn("Error closing RabbitMQ connection", logger.Err(err))
	}
	cm.conn = nil
	cm.logger.Info("RabbitMQ connection closed")
}

// IsConnected reports whether a live connection is cached. It never dials.
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.conn != nil && !cm.conn.IsClosed()
}

func (cm *ConnectionManager) Close() error {
	cm.Drop()
	return nil
}
