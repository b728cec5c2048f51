package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/teslashibe/go-pizza-agent/pkg/observe"
)

type fakePublisher struct {
	mu    sync.Mutex
	msgs  []amqp.Publishing
	keys  []string
	block chan struct{}
	err   error
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func TestAMQPSink_Delivers(t *testing.T) {
	fp := &fakePublisher{}
	closed := false
	s := newSink(fp, DefaultExchange, 8, func() { closed = true })

	rec := observe.NewRecord("get_order_status", "1234", "Delivered", "")
	if !s.Publish(rec) {
		t.Fatal("expected record to be queued")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !closed {
		t.Error("connection not closed")
	}
	if fp.count() != 1 {
		t.Fatalf("expected 1 message, got %d", fp.count())
	}

	msg := fp.msgs[0]
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" {
		t.Errorf("unexpected publishing %+v", msg)
	}
	if fp.keys[0] != "get_order_status" {
		t.Errorf("routing key = %q", fp.keys[0])
	}
	var got observe.Record
	if err := json.Unmarshal(msg.Body, &got); err != nil {
		t.Fatal(err)
	}
	if got.OrderID != "1234" || got.Status != "Delivered" || got.ID != rec.ID {
		t.Errorf("unexpected body %+v", got)
	}

	sent, dropped, failed := s.Stats()
	if sent != 1 || dropped != 0 || failed != 0 {
		t.Errorf("stats = %d/%d/%d", sent, dropped, failed)
	}
}

func TestAMQPSink_NeverBlocks(t *testing.T) {
	fp := &fakePublisher{block: make(chan struct{})}
	s := newSink(fp, DefaultExchange, 2, nil)

	start := time.Now()
	accepted := 0
	for i := 0; i < 10; i++ {
		if s.Publish(observe.NewRecord("t", "1", "Preparing", "")) {
			accepted++
		}
	}
	if time.Since(start) > time.Second {
		t.Error("Publish blocked on a stalled broker")
	}
	// One record may be held by the stalled publisher plus two queued.
	if accepted > 3 {
		t.Errorf("accepted %d records with buffer 2", accepted)
	}
	_, dropped, _ := s.Stats()
	if dropped == 0 {
		t.Error("expected drops")
	}

	close(fp.block)
	s.Close()
}

func TestAMQPSink_RejectsInvalidAndClosed(t *testing.T) {
	fp := &fakePublisher{}
	s := newSink(fp, DefaultExchange, 4, nil)

	if s.Publish(observe.Record{Tool: "t"}) {
		t.Error("record without order id accepted")
	}
	s.Close()
	s.Close()
	if s.Publish(observe.NewRecord("t", "1", "", "")) {
		t.Error("publish after close accepted")
	}
}

func TestAMQPSink_CountsFailures(t *testing.T) {
	fp := &fakePublisher{err: errors.New("channel closed")}
	s := newSink(fp, DefaultExchange, 4, nil)

	s.Publish(observe.NewRecord("t", "1", "", ""))
	s.Close()

	if _, _, failed := s.Stats(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}
