package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/teslashibe/go-pizza-agent/pkg/orders"
)

// countingStore is an in-memory orders.Store that counts lookups.
type countingStore struct {
	orders  map[string]string
	err     error
	lookups atomic.Int64
}

func (s *countingStore) Load(ctx context.Context) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.orders, nil
}

func (s *countingStore) Lookup(ctx context.Context, id string) (string, bool, error) {
	s.lookups.Add(1)
	if s.err != nil {
		return "", false, s.err
	}
	status, ok := s.orders[id]
	return status, ok, nil
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		orderID string
		wantErr bool
	}{
		{"nil", nil, "", false},
		{"map", map[string]any{"order_id": " 1234 "}, "1234", false},
		{"string map", map[string]string{"order_id": "42"}, "42", false},
		{"json string", `{"order_id": "5678"}`, "5678", false},
		{"json bytes", []byte(`{"order_id": "9999"}`), "9999", false},
		{"json number", `{"order_id": 1234}`, "1234", false},
		{"float", map[string]any{"order_id": float64(1111)}, "1111", false},
		{"int", map[string]any{"order_id": 7}, "7", false},
		{"null field", map[string]any{"order_id": nil}, "", false},
		{"missing field", map[string]any{"other": "x"}, "", false},
		{"blank json", "  ", "", false},
		{"bool", map[string]any{"order_id": true}, "true", false},
		{"invalid json", `{"order_id": `, "", true},
		{"json array", `["1234"]`, "", true},
		{"unsupported", 42, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseParams(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParams) {
					t.Fatalf("expected ErrInvalidParams, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := p.OrderID(); got != tt.orderID {
				t.Errorf("OrderID() = %q, want %q", got, tt.orderID)
			}
		})
	}
}

func TestGetOrderStatus_EmptyIDNeverTouchesStore(t *testing.T) {
	store := &countingStore{orders: map[string]string{"": "Delivered"}}

	for _, id := range []any{"", " ", "\t", "\n  \t", nil} {
		r := GetOrderStatus(context.Background(), store, NewParams(map[string]any{"order_id": id}))
		if r.Outcome != OutcomeNoOrderID {
			t.Errorf("id %q: expected no_order_id, got %s", id, r.Outcome)
		}
		if !errors.Is(r.Err(), ErrNoOrderID) {
			t.Errorf("id %q: expected ErrNoOrderID, got %v", id, r.Err())
		}
	}

	if n := store.lookups.Load(); n != 0 {
		t.Errorf("store touched %d times", n)
	}
}

func TestGetOrderStatus_Vocabulary(t *testing.T) {
	store := &countingStore{orders: map[string]string{}}
	for i, s := range orders.Vocabulary() {
		store.orders[string(rune('a'+i))] = string(s)
	}
	store.orders["lower"] = "delayed"
	store.orders["odd"] = "Eaten by the driver"

	for id, want := range store.orders {
		r := GetOrderStatus(context.Background(), store, NewParams(map[string]any{"order_id": id}))
		if r.Outcome != OutcomeFound {
			t.Fatalf("id %s: expected found, got %s", id, r.Outcome)
		}
		if r.Status != want {
			t.Errorf("id %s: status %q, want %q", id, r.Status, want)
		}
		if r.OrderID != id {
			t.Errorf("id %s: order id %q", id, r.OrderID)
		}
	}
}

func TestGetOrderStatus_NotFound(t *testing.T) {
	store := &countingStore{orders: map[string]string{"1": "Delivered"}}

	r := GetOrderStatus(context.Background(), store, NewParams(map[string]any{"order_id": "2"}))
	if r.Outcome != OutcomeNotFound || r.Status != "" || r.OrderID != "2" {
		t.Errorf("unexpected result %+v", r)
	}
	if !errors.Is(r.Err(), ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", r.Err())
	}
}

func TestGetOrderStatus_StoreUnavailable(t *testing.T) {
	store := &countingStore{err: orders.ErrStoreUnavailable}

	r := GetOrderStatus(context.Background(), store, NewParams(map[string]any{"order_id": "1"}))
	if r.Outcome != OutcomeSystemError {
		t.Fatalf("expected system_error, got %s", r.Outcome)
	}
	if !errors.Is(r.Err(), orders.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", r.Err())
	}
}

func TestScenario_FileStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("delivered", func(t *testing.T) {
		path := filepath.Join(dir, "one.json")
		os.WriteFile(path, []byte(`{"1": "Delivered"}`), 0644)

		reg := NewRegistry(Structured)
		if err := RegisterBuiltins(reg, orders.NewFileStore(path), nil); err != nil {
			t.Fatal(err)
		}

		res, err := reg.Call(ctx, ToolGetOrderStatus, map[string]any{"order_id": "1"})
		if err != nil {
			t.Fatal(err)
		}
		r := res.Value.(OrderStatusResult)
		if r.OrderID != "1" || r.Status != "Delivered" {
			t.Errorf("unexpected result %+v", r)
		}
		if res.Text != `{"order_id":"1","status":"Delivered"}` {
			t.Errorf("unexpected payload %s", res.Text)
		}
		if !strings.Contains(strings.ToLower(r.Speak()), "delivered") {
			t.Errorf("speakable form missing 'delivered': %s", r.Speak())
		}
	})

	t.Run("empty store", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		os.WriteFile(path, []byte(`{}`), 0644)

		r := GetOrderStatus(ctx, orders.NewFileStore(path), NewParams(map[string]any{"order_id": "9"}))
		if r.Outcome != OutcomeNotFound || r.OrderID != "9" {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("file deleted at runtime", func(t *testing.T) {
		path := filepath.Join(dir, "deleted.json")
		store := orders.NewFileStore(path)

		if r := GetOrderStatus(ctx, store, NewParams(map[string]any{"order_id": "1234"})); r.Outcome != OutcomeFound {
			t.Fatalf("seeded lookup failed: %+v", r)
		}
		os.Remove(path)

		r := GetOrderStatus(ctx, store, NewParams(map[string]any{"order_id": "1234"}))
		if r.Outcome != OutcomeSystemError {
			t.Errorf("expected system_error, got %+v", r)
		}
	})
}

func TestOrderStatusResult_JSON(t *testing.T) {
	tests := []struct {
		r    OrderStatusResult
		want string
	}{
		{OrderStatusResult{OrderID: "1", Status: "Delivered", Outcome: OutcomeFound}, `{"order_id":"1","status":"Delivered"}`},
		{OrderStatusResult{OrderID: "2", Outcome: OutcomeNotFound}, `{"order_id":"2","error":"order_not_found"}`},
		{OrderStatusResult{Outcome: OutcomeNoOrderID}, `{"error":"no_order_id"}`},
		{OrderStatusResult{OrderID: "3", Outcome: OutcomeSystemError}, `{"error":"system_error"}`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.r)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != tt.want {
			t.Errorf("got %s, want %s", data, tt.want)
		}
	}
}

func TestSpeakOrderStatus(t *testing.T) {
	tests := []struct {
		name   string
		r      OrderStatusResult
		substr string
	}{
		{"delayed", OrderStatusResult{OrderID: "9999", Status: "Delayed", Outcome: OutcomeFound}, "apologize"},
		{"delayed lowercase", OrderStatusResult{OrderID: "9999", Status: "delayed", Outcome: OutcomeFound}, "apologize"},
		{"delayed shouting", OrderStatusResult{OrderID: "9999", Status: "DELAYED", Outcome: OutcomeFound}, "apologize"},
		{"delivered", OrderStatusResult{OrderID: "1234", Status: "Delivered", Outcome: OutcomeFound}, "has been delivered"},
		{"out for delivery", OrderStatusResult{OrderID: "5678", Status: "Out for delivery", Outcome: OutcomeFound}, "should arrive soon"},
		{"preparing", OrderStatusResult{OrderID: "1111", Status: "Preparing", Outcome: OutcomeFound}, "prepared in our kitchen"},
		{"ready", OrderStatusResult{OrderID: "2", Status: "Ready for pickup", Outcome: OutcomeFound}, "ready for pickup"},
		{"cancelled", OrderStatusResult{OrderID: "3", Status: "Cancelled", Outcome: OutcomeFound}, "cancelled"},
		{"unknown status", OrderStatusResult{OrderID: "4", Status: "Boxed", Outcome: OutcomeFound}, "Order 4 status is Boxed."},
		{"not found", OrderStatusResult{OrderID: "5", Outcome: OutcomeNotFound}, "couldn't find order 5"},
		{"no id", OrderStatusResult{Outcome: OutcomeNoOrderID}, "need an order number"},
		{"system error", OrderStatusResult{OrderID: "6", Outcome: OutcomeSystemError}, "unable to access"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SpeakOrderStatus(tt.r)
			if !strings.Contains(got, tt.substr) {
				t.Errorf("%q does not contain %q", got, tt.substr)
			}
		})
	}

	// Case variants select the same branch.
	a := SpeakOrderStatus(OrderStatusResult{OrderID: "1", Status: "Delayed", Outcome: OutcomeFound})
	b := SpeakOrderStatus(OrderStatusResult{OrderID: "1", Status: "delayed", Outcome: OutcomeFound})
	if a != b {
		t.Errorf("case variants differ: %q vs %q", a, b)
	}
}

var codePattern = regexp.MustCompile(`^PIZZA5-[0-9A-F]{6}$`)

func TestGenerateDiscount(t *testing.T) {
	t.Run("deterministic reader", func(t *testing.T) {
		d, err := GenerateDiscount(bytes.NewReader([]byte{0xab, 0x01, 0xff}))
		if err != nil {
			t.Fatal(err)
		}
		if d.Code != "PIZZA5-AB01FF" {
			t.Errorf("unexpected code %s", d.Code)
		}
		if d.Amount != "$5" {
			t.Errorf("unexpected amount %s", d.Amount)
		}
	})

	t.Run("short reader", func(t *testing.T) {
		if _, err := GenerateDiscount(bytes.NewReader([]byte{0x01})); err == nil {
			t.Error("expected error from exhausted reader")
		}
	})

	t.Run("pattern and uniqueness", func(t *testing.T) {
		const n = 10000
		seen := make(map[string]struct{}, n)
		collisions := 0

		for i := 0; i < n; i++ {
			d, err := GenerateDiscount(nil)
			if err != nil {
				t.Fatal(err)
			}
			if !codePattern.MatchString(d.Code) {
				t.Fatalf("code %q does not match pattern", d.Code)
			}
			if _, dup := seen[d.Code]; dup {
				collisions++
			}
			seen[d.Code] = struct{}{}
		}

		// 10k draws from 2^24 values expect about 3 collisions.
		if collisions > 20 {
			t.Errorf("too many collisions for 24-bit entropy: %d", collisions)
		}
	})
}

func TestSpeakDiscount(t *testing.T) {
	got := SpeakDiscount(DiscountResult{Code: "PIZZA5-AB12CD", Amount: "$5"})
	want := "Your discount code is PIZZA5-AB12CD. That's PIZZA, the number 5, dash, A, B, 1, 2, C, D. You can use this for 5 dollars off your next order."
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{orders: map[string]string{"1234": "Delivered"}}

	t.Run("register errors", func(t *testing.T) {
		reg := NewRegistry(Structured)
		noop := func(ctx context.Context, p Params) Result { return Result{} }

		if err := reg.Register(Definition{}, noop); err == nil {
			t.Error("expected error for empty name")
		}
		if err := reg.Register(Definition{Name: "x"}, nil); err == nil {
			t.Error("expected error for nil handler")
		}
		if err := reg.Register(Definition{Name: "x"}, noop); err != nil {
			t.Fatal(err)
		}
		if err := reg.Register(Definition{Name: "x"}, noop); err == nil {
			t.Error("expected duplicate error")
		}
	})

	t.Run("definitions sorted", func(t *testing.T) {
		reg := NewRegistry(Structured)
		RegisterBuiltins(reg, store, nil)

		defs := reg.Definitions()
		if len(defs) != 2 || defs[0].Name != ToolGenerateDiscount || defs[1].Name != ToolGetOrderStatus {
			t.Errorf("unexpected definitions %+v", defs)
		}
		if !reg.Has(ToolGetOrderStatus) || reg.Has("order_pizza") {
			t.Error("Has mismatch")
		}
	})

	t.Run("structured dispatch", func(t *testing.T) {
		reg := NewRegistry(Structured)
		RegisterBuiltins(reg, store, bytes.NewReader([]byte{1, 2, 3}))

		out, err := reg.Dispatch(ctx, ToolGetOrderStatus, `{"order_id":"1234"}`)
		if err != nil {
			t.Fatal(err)
		}
		if out != `{"order_id":"1234","status":"Delivered"}` {
			t.Errorf("unexpected payload %s", out)
		}

		out, _ = reg.Dispatch(ctx, ToolGenerateDiscount, nil)
		if out != `{"discount_code":"PIZZA5-010203","discount_amount":"$5"}` {
			t.Errorf("unexpected discount payload %s", out)
		}
	})

	t.Run("speech dispatch", func(t *testing.T) {
		reg := NewRegistry(Speech)
		RegisterBuiltins(reg, store, bytes.NewReader([]byte{1, 2, 3}))

		out, _ := reg.Dispatch(ctx, ToolGetOrderStatus, map[string]any{"order_id": "1234"})
		if out != "Order 1234 has been delivered!" {
			t.Errorf("unexpected sentence %q", out)
		}

		out, _ = reg.Dispatch(ctx, ToolGenerateDiscount, map[string]any{})
		if !strings.HasPrefix(out, "Your discount code is PIZZA5-010203.") {
			t.Errorf("unexpected sentence %q", out)
		}
	})

	t.Run("invalid params become validation outcome", func(t *testing.T) {
		reg := NewRegistry(Structured)
		RegisterBuiltins(reg, store, nil)

		out, err := reg.Dispatch(ctx, ToolGetOrderStatus, `not json`)
		if err != nil {
			t.Fatal(err)
		}
		if out != `{"error":"no_order_id"}` {
			t.Errorf("unexpected payload %s", out)
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		reg := NewRegistry(Speech)

		out, err := reg.Dispatch(ctx, "order_pizza", nil)
		if !errors.Is(err, ErrUnknownTool) {
			t.Errorf("expected ErrUnknownTool, got %v", err)
		}
		if out == "" {
			t.Error("expected a speakable refusal")
		}
	})

	t.Run("panicking handler", func(t *testing.T) {
		reg := NewRegistry(Structured)
		reg.Register(Definition{Name: "boom"}, func(ctx context.Context, p Params) Result {
			panic("kaboom")
		})

		out, err := reg.Dispatch(ctx, "boom", nil)
		if !errors.Is(err, ErrToolFailed) {
			t.Errorf("expected ErrToolFailed, got %v", err)
		}
		if out != `{"error":"system_error"}` {
			t.Errorf("unexpected payload %s", out)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		reg := NewRegistry(Structured)
		var trace []string
		mw := func(tag string) Middleware {
			return func(name string, next Handler) Handler {
				return func(ctx context.Context, p Params) Result {
					trace = append(trace, tag+":"+name)
					return next(ctx, p)
				}
			}
		}
		reg.Use(mw("outer"), mw("inner"))
		reg.Register(Definition{Name: "t"}, func(ctx context.Context, p Params) Result {
			trace = append(trace, "handler")
			return Result{Text: "ok"}
		})

		out, _ := reg.Dispatch(ctx, "t", nil)
		if out != "ok" {
			t.Errorf("unexpected output %q", out)
		}
		want := "outer:t,inner:t,handler"
		if got := strings.Join(trace, ","); got != want {
			t.Errorf("trace %s, want %s", got, want)
		}
	})
}

func TestParseConvention(t *testing.T) {
	if c, err := ParseConvention("speech"); err != nil || c != Speech {
		t.Errorf("got %v, %v", c, err)
	}
	if _, err := ParseConvention("both"); err == nil {
		t.Error("expected error")
	}
}
