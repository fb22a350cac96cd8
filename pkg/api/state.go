package api

import "fmt"

// EventOrder checks that a sequence of events respects the stream ordering
// rules: a text delta needs an open message, an item-added event may not
// nest inside another open message, and nothing follows EventCompleted.
// The zero value is ready to use.
type EventOrder struct {
	open      bool
	completed bool
	text      string
}

// Observe records ev and returns an error if it violates the ordering rules.
func (o *EventOrder) Observe(ev Event) error {
	if o.completed {
		return NewStreamError(fmt.Sprintf("event %s after %s", ev.Type, EventCompleted))
	}

	switch ev.Type {
	case EventOutputItemAdded:
		if o.open {
			return NewStreamError("output item added while another message is open")
		}
		o.open = true
		o.text = ""
	case EventOutputTextDelta:
		if !o.open {
			return NewStreamError("text delta without an open message")
		}
		o.text += ev.Delta
	case EventOutputItemDone:
		if ev.Item != nil && ev.Item.Type == ItemTypeMessage {
			if !o.open {
				return NewStreamError("message done without a matching added event")
			}
			if got := ev.Item.Message.Text(); got != o.text {
				return NewStreamError(fmt.Sprintf("message text %q does not match deltas %q", got, o.text))
			}
			o.open = false
		} else if o.open {
			return NewStreamError("item done while a message is still open")
		}
	case EventCompleted:
		if o.open {
			return NewStreamError("completed while a message is still open")
		}
		o.completed = true
	default:
		return NewStreamError(fmt.Sprintf("unknown event type %q", ev.Type))
	}
	return nil
}

// Completed reports whether EventCompleted has been observed.
func (o *EventOrder) Completed() bool {
	return o.completed
}
