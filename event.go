package bench

// Event is a sealed interface representing a streaming event.
// Events are purely semantic. Transport/protocol errors come from
// Next()'s error return, not from events.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventOutputStart signals that the model began an output block. It is the
// earliest observable output unit on providers that announce blocks.
type EventOutputStart struct {
	Index int
}

func (EventOutputStart) event() {}

// EventTextDelta represents a text content delta.
type EventTextDelta struct {
	Index int
	Delta string
}

func (EventTextDelta) event() {}

// EventStop is the terminal event of a stream. It carries the usage the
// provider reported at completion; Usage.Estimated is set when the
// provider reported none.
type EventStop struct {
	StopReason StopReason
	Usage      Usage
}

func (EventStop) event() {}

// IsOutput reports whether e is an incremental output unit, the kind of
// event that marks time-to-first-token.
func IsOutput(e Event) bool {
	switch e.(type) {
	case EventOutputStart, EventTextDelta:
		return true
	default:
		return false
	}
}

// Interface compliance checks.
var (
	_ Event = EventOutputStart{}
	_ Event = EventTextDelta{}
	_ Event = EventStop{}
)
