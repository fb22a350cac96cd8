package api

// EventType identifies the type of a normalized output event.
type EventType string

const (
	// EventOutputItemAdded opens an output item. Only assistant messages are
	// announced this way; text deltas follow.
	EventOutputItemAdded EventType = "response.output_item.added"
	// EventOutputTextDelta carries a text fragment of the open message.
	EventOutputTextDelta EventType = "response.output_text.delta"
	// EventOutputItemDone carries a finished item.
	EventOutputItemDone EventType = "response.output_item.done"
	// EventCompleted ends the stream and carries the final usage.
	EventCompleted EventType = "response.completed"
)

// Event is one normalized output event.
type Event struct {
	Type       EventType   `json:"type"`
	Item       *Item       `json:"item,omitempty"`
	Delta      string      `json:"delta,omitempty"`
	ResponseID string      `json:"response_id,omitempty"`
	Usage      *TokenUsage `json:"usage,omitempty"`
}

// OutputItemAdded returns an item-added event.
func OutputItemAdded(item Item) Event {
	return Event{Type: EventOutputItemAdded, Item: &item}
}

// OutputTextDelta returns a text delta event.
func OutputTextDelta(delta string) Event {
	return Event{Type: EventOutputTextDelta, Delta: delta}
}

// OutputItemDone returns an item-done event.
func OutputItemDone(item Item) Event {
	return Event{Type: EventOutputItemDone, Item: &item}
}

// Completed returns the terminal completion event.
func Completed(responseID string, usage *TokenUsage) Event {
	return Event{Type: EventCompleted, ResponseID: responseID, Usage: usage}
}
