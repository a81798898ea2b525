package rabbitmq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeConnection struct {
	ch *fakeChannel
}

func (c *fakeConnection) Channel() (Channel, error)       { return c.ch, nil }
func (c *fakeConnection) Close() error                    { return nil }
func (c *fakeConnection) NotifyClose() <-chan *amqp.Error { return make(chan *amqp.Error) }
func (c *fakeConnection) IsClosed() bool                  { return false }

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	exchanges  []string
	bindings   []string
	published  []published
	deliveries chan amqp.Delivery
	closeChan  chan *amqp.Error
	closed     bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 4), closeChan: make(chan *amqp.Error, 1)}
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	c.exchanges = append(c.exchanges, name+":"+kind)
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (Queue, error) {
	return Queue{Name: "amq.gen-test"}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	c.bindings = append(c.bindings, name+"->"+exchange)
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) NotifyClose() <-chan *amqp.Error { return c.closeChan }

// fakeAcker records acknowledgements by delivery tag.
type fakeAcker struct {
	mu    sync.Mutex
	acked []uint64
	nack  []uint64
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	a.acked = append(a.acked, tag)
	a.mu.Unlock()
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	a.nack = append(a.nack, tag)
	a.mu.Unlock()
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }
