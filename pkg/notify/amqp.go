// Package notify forwards observation records to external consumers over AMQP.
//
// The sink never blocks a tool call: records are queued in memory and a single
// goroutine publishes them. When the queue is full, new records are dropped.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/teslashibe/go-pizza-agent/internal/log"
	"github.com/teslashibe/go-pizza-agent/pkg/observe"
)

const (
	// DefaultExchange is the fanout exchange tool events are published to.
	DefaultExchange = "pizza.tool_events"

	// DefaultBuffer is the number of records queued before dropping.
	DefaultBuffer = 128

	publishTimeout = 5 * time.Second
)

// publisher is the subset of *amqp.Channel the sink uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes records to a durable fanout exchange.
type AMQPSink struct {
	exchange string
	pub      publisher
	closer   func()

	queue chan observe.Record
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// DialAMQP connects to url, declares exchange as a durable fanout, and starts
// the publisher goroutine.
func DialAMQP(url, exchange string) (*AMQPSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("notify: declare %s: %w", exchange, err)
	}

	log.Component("notify").Info("amqp sink ready", "exchange", exchange)

	return newSink(ch, exchange, DefaultBuffer, func() {
		_ = ch.Close()
		_ = conn.Close()
	}), nil
}

func newSink(pub publisher, exchange string, buffer int, closer func()) *AMQPSink {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &AMQPSink{
		exchange: exchange,
		pub:      pub,
		closer:   closer,
		queue:    make(chan observe.Record, buffer),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Publish queues r for delivery. It returns false if the record is invalid,
// the queue is full, or the sink is closed.
func (s *AMQPSink) Publish(r observe.Record) bool {
	if !r.Valid() {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- r:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *AMQPSink) run() {
	defer s.wg.Done()
	logger := log.Component("notify")

	for {
		select {
		case r := <-s.queue:
			if err := s.send(r); err != nil {
				s.failed.Add(1)
				logger.Warn("publish failed", "order_id", r.OrderID, "error", err)
				continue
			}
			s.sent.Add(1)
		case <-s.done:
			// Flush what is already queued.
			for {
				select {
				case r := <-s.queue:
					if err := s.send(r); err != nil {
						s.failed.Add(1)
					} else {
						s.sent.Add(1)
					}
				default:
					return
				}
			}
		}
	}
}

func (s *AMQPSink) send(r observe.Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return s.pub.PublishWithContext(ctx, s.exchange, r.Tool, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		MessageId:    r.ID,
		Body:         body,
	})
}

// Stats reports delivery counters.
func (s *AMQPSink) Stats() (sent, dropped, failed int64) {
	return s.sent.Load(), s.dropped.Load(), s.failed.Load()
}

// Close stops accepting records, flushes the queue, and closes the connection.
// It is safe to call more than once.
func (s *AMQPSink) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		if s.closer != nil {
			s.closer()
		}
	})
	return nil
}
