package orders

// Status is an order status as stored. The store is untyped text, so any
// string is a valid Status; the constants below are the known vocabulary.
type Status string

const (
	StatusPreparing      Status = "Preparing"
	StatusReadyForPickup Status = "Ready for pickup"
	StatusOutForDelivery Status = "Out for delivery"
	StatusDelivered      Status = "Delivered"
	StatusDelayed        Status = "Delayed"
	StatusCancelled      Status = "Cancelled"
)

var progress = map[Status]int{
	StatusPreparing:      25,
	StatusReadyForPickup: 50,
	StatusOutForDelivery: 75,
	StatusDelivered:      100,
	StatusDelayed:        40,
	StatusCancelled:      0,
}

// Progress returns the fulfillment percentage shown for a status.
// Unknown statuses map to 0.
func Progress(status string) int {
	return progress[Status(status)]
}

// Known reports whether status is part of the vocabulary.
func Known(status string) bool {
	_, ok := progress[Status(status)]
	return ok
}

// Vocabulary returns the known statuses in fulfillment order.
func Vocabulary() []Status {
	return []Status{
		StatusPreparing,
		StatusReadyForPickup,
		StatusOutForDelivery,
		StatusDelivered,
		StatusDelayed,
		StatusCancelled,
	}
}
