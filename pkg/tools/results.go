package tools

import (
	"encoding/json"
	"errors"

	"github.com/teslashibe/go-pizza-agent/pkg/orders"
)

// Sentinel errors describing order lookup outcomes.
var (
	// ErrNoOrderID indicates the order id was missing or blank.
	ErrNoOrderID = errors.New("tools: no order id")

	// ErrOrderNotFound indicates the id is not in the store.
	ErrOrderNotFound = errors.New("tools: order not found")
)

// Outcome is the result class of an order status lookup.
// The string values double as the wire error codes.
type Outcome string

const (
	OutcomeFound       Outcome = "found"
	OutcomeNotFound    Outcome = "order_not_found"
	OutcomeNoOrderID   Outcome = "no_order_id"
	OutcomeSystemError Outcome = "system_error"
)

// OrderStatusResult is the structured result of get_order_status.
type OrderStatusResult struct {
	OrderID string
	Status  string
	Outcome Outcome
}

// Err returns the error matching the outcome, or nil when found.
func (r OrderStatusResult) Err() error {
	switch r.Outcome {
	case OutcomeFound:
		return nil
	case OutcomeNotFound:
		return ErrOrderNotFound
	case OutcomeNoOrderID:
		return ErrNoOrderID
	default:
		return orders.ErrStoreUnavailable
	}
}

type orderStatusWire struct {
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MarshalJSON encodes the result in the payload format the agent expects:
// {"order_id","status"} when found, otherwise an "error" code.
func (r OrderStatusResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

func (r OrderStatusResult) wire() orderStatusWire {
	switch r.Outcome {
	case OutcomeFound:
		return orderStatusWire{OrderID: r.OrderID, Status: r.Status}
	case OutcomeNotFound:
		return orderStatusWire{OrderID: r.OrderID, Error: string(OutcomeNotFound)}
	case OutcomeNoOrderID:
		return orderStatusWire{Error: string(OutcomeNoOrderID)}
	default:
		return orderStatusWire{Error: string(OutcomeSystemError)}
	}
}

// Observation exposes the fields an observer needs, matching the wire payload.
func (r OrderStatusResult) Observation() (orderID, status, errCode string) {
	w := r.wire()
	return w.OrderID, w.Status, w.Error
}

// Speak renders the result as a sentence for voice delivery.
func (r OrderStatusResult) Speak() string {
	return SpeakOrderStatus(r)
}

// DiscountAmount is the fixed value of a generated discount.
const DiscountAmount = "$5"

// DiscountResult is the structured result of generate_discount.
type DiscountResult struct {
	Code   string `json:"discount_code"`
	Amount string `json:"discount_amount"`
}

// Speak renders the discount as a sentence for voice delivery.
func (d DiscountResult) Speak() string {
	return SpeakDiscount(d)
}

// SystemError is returned when a tool fails in a way the caller cannot fix.
type SystemError struct {
	Tool string
}

// MarshalJSON encodes {"error":"system_error"}.
func (e SystemError) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderStatusWire{Error: string(OutcomeSystemError)})
}

// Speak renders a generic apology.
func (e SystemError) Speak() string {
	if e.Tool == ToolGenerateDiscount {
		return "I'm sorry, I couldn't generate a discount code right now. Please try again in a moment."
	}
	return "I'm having trouble with that right now. Please try again in a moment."
}

// UnknownTool is returned when the agent calls a tool that is not registered.
type UnknownTool struct {
	Name string
}

// MarshalJSON encodes {"error":"unknown_tool","tool":name}.
func (u UnknownTool) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"error": "unknown_tool", "tool": u.Name})
}

// Speak renders a refusal.
func (u UnknownTool) Speak() string {
	return "Sorry, I can't help with that one."
}
