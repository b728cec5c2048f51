// Package orders provides the order status store consulted by the agent's tools.
//
// Orders are a flat mapping of order id to status text. The agent-facing code
// never writes to the store; the only write is materializing the default seed
// the first time the backing file is found missing.
package orders

import (
	"context"
	"errors"
)

// ErrStoreUnavailable indicates the backing store could not be read or parsed.
var ErrStoreUnavailable = errors.New("orders: store unavailable")

// Store is a read-only source of order statuses.
type Store interface {
	// Load returns the full id -> status mapping.
	Load(ctx context.Context) (map[string]string, error)

	// Lookup returns the status for id. found is false when the id is absent.
	// A non-nil error wraps ErrStoreUnavailable.
	Lookup(ctx context.Context, id string) (status string, found bool, err error)
}

// DefaultSeed returns the orders written when the backing file does not exist.
func DefaultSeed() map[string]string {
	return map[string]string{
		"1234": string(StatusDelivered),
		"5678": string(StatusOutForDelivery),
		"9999": string(StatusDelayed),
		"1111": string(StatusPreparing),
	}
}
