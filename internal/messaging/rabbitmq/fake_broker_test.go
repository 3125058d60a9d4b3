package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errHeartbeat = errors.New("Exception (501) Reason: \"heartbeat timeout\"")

type delivery struct {
	exchange   string
	routingKey string
	msg        amqp.Publishing
}

type fakeQueue struct {
	name       string
	deliveries []delivery
}

// fakeBroker is an in-process stand-in for RabbitMQ: exchanges, queue
// bindings and fanout delivery, plus knobs to fail dials and publishes.
type fakeBroker struct {
	mu sync.Mutex

	exchanges map[string]string
	bindings  map[string][]*fakeQueue
	declares  int

	dials       int
	failDials   int
	failPublish int
	conns       []*fakeConn
	closeErr    error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		exchanges: make(map[string]string),
		bindings:  make(map[string][]*fakeQueue),
	}
}

func (b *fakeBroker) dial(ctx context.Context, url string, timeout time.Duration) (Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if b.failDials > 0 {
		b.failDials--
		return nil, errors.New("dial tcp: connection refused")
	}
	conn := &fakeConn{broker: b}
	b.conns = append(b.conns, conn)
	return conn, nil
}

func (b *fakeBroker) bind(queue, exchange string) *fakeQueue {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := &fakeQueue{name: queue}
	b.bindings[exchange] = append(b.bindings[exchange], q)
	return q
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBroker) connection(i int) *fakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[i]
}

func (b *fakeBroker) received(q *fakeQueue) []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]delivery, len(q.deliveries))
	copy(out, q.deliveries)
	return out
}

type fakeConn struct {
	broker     *fakeBroker
	closed     bool
	closeCalls int
}

func (c *fakeConn) Channel() (Channel, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	if c.closed {
		return nil, amqp.ErrClosed
	}
	return &fakeChannel{conn: c}, nil
}

func (c *fakeConn) IsClosed() bool {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	c.closeCalls++
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	return c.broker.closeErr
}

// kill simulates the broker tearing the connection down.
func (c *fakeConn) kill() {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) closes() int {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closeCalls
}

type fakeChannel struct {
	conn   *fakeConn
	closed bool
}

func (ch *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.conn.closed || ch.closed {
		return amqp.ErrClosed
	}
	if existing, ok := b.exchanges[name]; ok && existing != kind {
		return &amqp.Error{
			Code:   amqp.PreconditionFailed,
			Reason: "PRECONDITION_FAILED - inequivalent arg 'type' for exchange '" + name + "'",
		}
	}
	b.exchanges[name] = kind
	b.declares++
	return nil
}

func (ch *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.conn.closed || ch.closed {
		return amqp.ErrClosed
	}
	if b.failPublish > 0 {
		b.failPublish--
		return errHeartbeat
	}

	kind, ok := b.exchanges[exchange]
	if !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no exchange '" + exchange + "'"}
	}
	if kind != amqp.ExchangeFanout {
		return errors.New("fake broker only routes fanout exchanges")
	}
	for _, q := range b.bindings[exchange] {
		q.deliveries = append(q.deliveries, delivery{exchange: exchange, routingKey: key, msg: msg})
	}
	return nil
}

func (ch *fakeChannel) Close() error {
	ch.closed = true
	return nil
}
