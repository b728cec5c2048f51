// Package observe carries tool invocation results from the agent session to
// out-of-band observers such as the dashboard.
//
// Observation is best effort: publishing never blocks the tool path, and the
// consumer only cares about the most recent well-formed record.
package observe

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is a normalized tool invocation result.
type Record struct {
	ID      string    `json:"id"`
	Tool    string    `json:"tool"`
	OrderID string    `json:"order_id"`
	Status  string    `json:"status,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// NewRecord returns a Record stamped with a fresh ID and the current time.
func NewRecord(tool, orderID, status, errCode string) Record {
	return Record{
		ID:      uuid.NewString(),
		Tool:    tool,
		OrderID: strings.TrimSpace(orderID),
		Status:  status,
		Error:   errCode,
		At:      time.Now(),
	}
}

// Valid reports whether the record may be shown. Records without an order id
// are never displayed.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.OrderID) != ""
}
