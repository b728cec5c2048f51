package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(t int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(data) > 0 {
		f.written = append(f.written, append([]byte(nil), data...))
	}
	return nil
}

func (f *fakeConn) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	for i, w := range f.written {
		out[i] = string(w)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test")
	go h.Run(ctx)
	waitFor(t, h.IsRunning)

	conn := newFakeConn()
	c := NewClient(h, conn)
	go c.Run()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	if err := h.BroadcastJSON(map[string]string{"status": "Delivered"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(conn.messages()) == 1 })

	if got := conn.messages()[0]; got != `{"status":"Delivered"}` {
		t.Errorf("got %s", got)
	}

	conn.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestHub_ReplaysLastOnConnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test")
	go h.Run(ctx)
	h.Broadcast([]byte(`{"n":1}`))
	h.Broadcast([]byte(`{"n":2}`))

	conn := newFakeConn()
	c := NewClient(h, conn)
	go c.Run()

	waitFor(t, func() bool { return len(conn.messages()) >= 1 })
	if got := conn.messages()[0]; got != `{"n":2}` {
		t.Errorf("first message = %s, want latest", got)
	}
	conn.Close()
}

func TestHub_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test")

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	waitFor(t, h.IsRunning)

	conn := newFakeConn()
	c := NewClient(h, conn)
	go c.writePump()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if h.IsRunning() || h.ClientCount() != 0 {
		t.Error("hub still reports clients after shutdown")
	}
	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Error("client connection not closed")
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle")
	for i := 0; i < 300; i++ {
		h.Broadcast([]byte("x"))
	}
	if string(h.Last()) != "x" {
		t.Error("last message not kept")
	}
}

func TestHub_ClientsAfterShutdownDoNotHang(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("stopped")
	go h.Run(ctx)
	waitFor(t, h.IsRunning)

	live := newFakeConn()
	liveDone := make(chan struct{})
	go func() {
		NewClient(h, live).Run()
		close(liveDone)
	}()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	<-h.Done()

	select {
	case <-liveDone:
	case <-time.After(2 * time.Second):
		t.Fatal("connected client did not return after shutdown")
	}

	late := newFakeConn()
	lateDone := make(chan struct{})
	go func() {
		NewClient(h, late).Run()
		close(lateDone)
	}()
	select {
	case <-lateDone:
	case <-time.After(2 * time.Second):
		t.Fatal("client created after shutdown blocked")
	}
}
