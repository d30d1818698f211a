// Package notify delivers trade fill notifications. Delivery is
// fire-and-forget: a slow or failing webhook never blocks or fails a runner.
package notify

import "fmt"

type EventType string

const (
	EventOpen  EventType = "open"
	EventClose EventType = "close"
)

// Event describes one fill.
type Event struct {
	Type       EventType
	Instrument string // display name
	Code       string
	Price      float64
	Qty        int
	Profit     *float64 // set on close only
}

// Notifier receives trade events and error reports. Implementations must
// not block the caller.
type Notifier interface {
	TradeEvent(ev Event)
	Error(msg, instrument string)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) TradeEvent(Event)     {}
func (Nop) Error(string, string) {}

func (ev Event) message() string {
	var emoji, verb string
	switch ev.Type {
	case EventOpen:
		emoji, verb = "\U0001F535", "Opened"
	default:
		emoji, verb = "\U0001F534", "Closed"
	}

	msg := fmt.Sprintf("%s %s position\n• Instrument: %s(%s)\n• Price: %.0f\n• Qty: %d",
		emoji, verb, ev.Instrument, ev.Code, ev.Price, ev.Qty)

	if ev.Profit != nil {
		pe := "\U0001F4B0"
		if *ev.Profit <= 0 {
			pe = "\U0001F4B8"
		}
		msg += fmt.Sprintf("\n• Profit: %s %.0f", pe, *ev.Profit)
	}
	return msg
}
