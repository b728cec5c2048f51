package tools

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/teslashibe/go-pizza-agent/internal/log"
	"github.com/teslashibe/go-pizza-agent/pkg/orders"
)

// Tool names exposed to the agent.
const (
	ToolGetOrderStatus   = "get_order_status"
	ToolGenerateDiscount = "generate_discount"
)

// DiscountPrefix is the fixed prefix of every discount code.
const DiscountPrefix = "PIZZA5-"

// GetOrderStatus looks up the order named by params in store.
// It never returns an error: every failure is encoded in the result's Outcome.
func GetOrderStatus(ctx context.Context, store orders.Store, params Params) OrderStatusResult {
	logger := log.Component("tools")

	orderID := params.OrderID()
	if orderID == "" {
		logger.Info("order status requested without an order id")
		return OrderStatusResult{Outcome: OutcomeNoOrderID}
	}

	logger.Info("looking up order", "order_id", orderID)

	status, found, err := store.Lookup(ctx, orderID)
	if err != nil {
		logger.Error("order store unavailable", "order_id", orderID, "error", err)
		return OrderStatusResult{OrderID: orderID, Outcome: OutcomeSystemError}
	}
	if !found {
		logger.Info("order not found", "order_id", orderID)
		return OrderStatusResult{OrderID: orderID, Outcome: OutcomeNotFound}
	}

	logger.Info("order found", "order_id", orderID, "status", status)
	return OrderStatusResult{OrderID: orderID, Status: status, Outcome: OutcomeFound}
}

// GenerateDiscount returns a fresh code: DiscountPrefix followed by 24 random
// bits as 6 uppercase hex characters. A nil reader uses crypto/rand.
func GenerateDiscount(r io.Reader) (DiscountResult, error) {
	if r == nil {
		r = rand.Reader
	}

	var b [3]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return DiscountResult{}, fmt.Errorf("tools: read entropy: %w", err)
	}

	code := DiscountPrefix + strings.ToUpper(hex.EncodeToString(b[:]))
	return DiscountResult{Code: code, Amount: DiscountAmount}, nil
}

// OrderStatusHandler adapts GetOrderStatus to a Handler.
func OrderStatusHandler(store orders.Store) Handler {
	return func(ctx context.Context, p Params) Result {
		return Result{Value: GetOrderStatus(ctx, store, p)}
	}
}

// DiscountHandler adapts GenerateDiscount to a Handler.
func DiscountHandler(r io.Reader) Handler {
	return func(ctx context.Context, p Params) Result {
		d, err := GenerateDiscount(r)
		if err != nil {
			log.Component("tools").Error("discount generation failed", "error", err)
			return Result{Value: SystemError{Tool: ToolGenerateDiscount}}
		}
		log.Component("tools").Info("discount generated", "code", d.Code)
		return Result{Value: d}
	}
}

// Definitions returns the agent-facing descriptions of the built-in tools.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        ToolGetOrderStatus,
			Description: "Look up the current status of a customer's pizza order by its order number.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"order_id": map[string]any{
						"type":        "string",
						"description": "The order number the customer gives, e.g. 1234",
					},
				},
				"required": []string{"order_id"},
			},
		},
		{
			Name:        ToolGenerateDiscount,
			Description: "Generate a one-time $5 discount code for the customer's next order, e.g. to apologize for a delay.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// RegisterBuiltins registers get_order_status and generate_discount on reg.
// A nil entropy reader uses crypto/rand.
func RegisterBuiltins(reg *Registry, store orders.Store, entropy io.Reader) error {
	defs := Definitions()
	if err := reg.Register(defs[0], OrderStatusHandler(store)); err != nil {
		return err
	}
	return reg.Register(defs[1], DiscountHandler(entropy))
}
