package observe

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestChannel_PublishDrain(t *testing.T) {
	c := NewChannel(8)

	for i := 0; i < 5; i++ {
		if !c.Publish(NewRecord("get_order_status", fmt.Sprint(i), "Delivered", "")) {
			t.Fatalf("publish %d rejected", i)
		}
	}

	got := c.Drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 records, got %d", len(got))
	}
	for i, r := range got {
		if r.OrderID != fmt.Sprint(i) {
			t.Errorf("record %d out of order: %s", i, r.OrderID)
		}
	}

	if again := c.Drain(); len(again) != 0 {
		t.Errorf("expected empty drain, got %d", len(again))
	}
}

func TestChannel_RejectsMalformed(t *testing.T) {
	c := NewChannel(4)

	if c.Publish(Record{Status: "Delivered"}) {
		t.Error("record without order id should be rejected")
	}
	if c.Publish(NewRecord("get_order_status", "   ", "", "no_order_id")) {
		t.Error("whitespace order id should be rejected")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty channel, got %d", c.Len())
	}
	if c.Stats().Rejected != 2 {
		t.Errorf("expected 2 rejected, got %d", c.Stats().Rejected)
	}
}

func TestChannel_FullKeepsNewest(t *testing.T) {
	c := NewChannel(3)

	for i := 0; i < 10; i++ {
		c.Publish(NewRecord("get_order_status", fmt.Sprint(i), "Preparing", ""))
	}

	got := c.Drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if last := got[len(got)-1].OrderID; last != "9" {
		t.Errorf("newest record lost, last is %s", last)
	}
	if c.Stats().Dropped != 7 {
		t.Errorf("expected 7 dropped, got %d", c.Stats().Dropped)
	}
}

func TestChannel_DrainAtMostN(t *testing.T) {
	c := NewChannel(DefaultCapacity)

	for n := 0; n < 20; n++ {
		for i := 0; i < n; i++ {
			c.Publish(NewRecord("get_order_status", "1", "Delivered", ""))
		}
		if got := len(c.Drain()); got > n {
			t.Fatalf("after %d publishes drained %d", n, got)
		}
	}
}

func TestChannel_ConcurrentPublish(t *testing.T) {
	c := NewChannel(16)
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Publish(NewRecord("get_order_status", fmt.Sprintf("%d-%d", w, i), "Delivered", ""))
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				c.Drain()
			}
		}
	}()

	wg.Wait()
	close(done)

	if c.Len() > 16 {
		t.Errorf("channel exceeded capacity: %d", c.Len())
	}
}

func TestTracker_LatestWins(t *testing.T) {
	tr := NewTracker()

	if _, ok := tr.Current(); ok {
		t.Fatal("tracker should start empty")
	}

	records := []Record{
		NewRecord("get_order_status", "1", "Preparing", ""),
		NewRecord("get_order_status", "2", "Delivered", ""),
		{Status: "garbage"},
	}
	if !tr.Apply(records) {
		t.Fatal("expected change")
	}

	cur, ok := tr.Current()
	if !ok || cur.OrderID != "2" || cur.Status != "Delivered" {
		t.Errorf("expected order 2 Delivered, got %+v", cur)
	}

	// Nothing valid: current state stays.
	if tr.Apply([]Record{{}}) {
		t.Error("invalid batch should not change state")
	}
	if tr.Apply(nil) {
		t.Error("empty batch should not change state")
	}
	cur, _ = tr.Current()
	if cur.OrderID != "2" {
		t.Errorf("state regressed to %s", cur.OrderID)
	}
}

func TestTracker_Poll(t *testing.T) {
	c := NewChannel(8)
	tr := NewTracker()

	changed := make(chan Record, 4)
	tr.OnChange(func(r Record) { changed <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Poll(ctx, c, 10*time.Millisecond)

	c.Publish(NewRecord("get_order_status", "1111", "Preparing", ""))
	c.Publish(NewRecord("get_order_status", "5678", "Out for delivery", ""))

	select {
	case r := <-changed:
		if r.OrderID != "5678" && r.OrderID != "1111" {
			t.Fatalf("unexpected record %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("tracker never updated")
	}

	deadline := time.After(time.Second)
	for {
		cur, _ := tr.Current()
		if cur.OrderID == "5678" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected latest order 5678, got %s", cur.OrderID)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
