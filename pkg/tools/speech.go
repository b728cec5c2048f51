package tools

import (
	"fmt"
	"strings"
)

// statusPhrases selects wording by lowercased status.
var statusPhrases = map[string]func(id string) string{
	"delayed": func(id string) string {
		return fmt.Sprintf("Order %s is delayed. I apologize for the inconvenience.", id)
	},
	"delivered": func(id string) string {
		return fmt.Sprintf("Order %s has been delivered!", id)
	},
	"out for delivery": func(id string) string {
		return fmt.Sprintf("Order %s is out for delivery and should arrive soon.", id)
	},
	"preparing": func(id string) string {
		return fmt.Sprintf("Order %s is being prepared in our kitchen.", id)
	},
	"ready for pickup": func(id string) string {
		return fmt.Sprintf("Order %s is ready for pickup.", id)
	},
	"cancelled": func(id string) string {
		return fmt.Sprintf("Order %s has been cancelled.", id)
	},
}

// SpeakOrderStatus renders an order status result as a speakable sentence.
func SpeakOrderStatus(r OrderStatusResult) string {
	switch r.Outcome {
	case OutcomeFound:
		key := strings.ToLower(strings.TrimSpace(r.Status))
		if phrase, ok := statusPhrases[key]; ok {
			return phrase(r.OrderID)
		}
		return fmt.Sprintf("Order %s status is %s.", r.OrderID, r.Status)
	case OutcomeNotFound:
		return fmt.Sprintf("I couldn't find order %s in our system. Please double-check the order number.", r.OrderID)
	case OutcomeNoOrderID:
		return "I need an order number to check the status. Could you please provide your order number?"
	default:
		return "I'm unable to access the order system right now. Please try again in a moment."
	}
}

// SpeakDiscount renders a discount code spelled out for voice delivery.
func SpeakDiscount(d DiscountResult) string {
	suffix := strings.TrimPrefix(d.Code, DiscountPrefix)
	spelled := make([]string, 0, len(suffix))
	for _, c := range suffix {
		spelled = append(spelled, string(c))
	}

	return fmt.Sprintf(
		"Your discount code is %s. That's PIZZA, the number 5, dash, %s. You can use this for 5 dollars off your next order.",
		d.Code, strings.Join(spelled, ", "),
	)
}
