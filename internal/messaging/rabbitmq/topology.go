package rabbitmq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange describes an exchange to declare before publishing.
type Exchange struct {
	Name string
	Kind string
}

// FanoutExchange broadcasts to every bound queue; routing keys are ignored.
func FanoutExchange(name string) Exchange {
	return Exchange{Name: name, Kind: amqp.ExchangeFanout}
}

// DeclareExchange declares ex as durable and not auto-deleted. Declaring an
// existing exchange with the same arguments is a no-op at the broker.
func DeclareExchange(ch Channel, ex Exchange) error {
	err := ch.ExchangeDeclare(
		ex.Name, // name
		ex.Kind, // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return &TopologyError{
			Component: "exchange",
			Name:      ex.Name,
			Op:        "declare",
			Err:       err,
			Timestamp: time.Now(),
		}
	}
	return nil
}
