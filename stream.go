package bench

import (
	"io"
	"time"
)

// Drained is the outcome of reading a Stream to completion.
type Drained struct {
	Response Response
	// FirstOutput is when the first output event arrived; zero if the
	// stream produced no output.
	FirstOutput time.Time
	// Stop is the terminal event, nil if the stream ended without one.
	Stop *EventStop
}

// Drain reads s until io.EOF, noting the arrival time of the first output
// event. onEvent, if non-nil, receives every event. Drain does not close s.
func Drain(s Stream, now Clock, onEvent func(Event)) (Drained, error) {
	if now == nil {
		now = time.Now
	}
	var d Drained
	for {
		evt, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return d, err
		}
		if d.FirstOutput.IsZero() && IsOutput(evt) {
			d.FirstOutput = now()
		}
		if stop, ok := evt.(EventStop); ok {
			d.Stop = &stop
		}
		if onEvent != nil {
			onEvent(evt)
		}
	}
	resp, err := s.Response()
	if err != nil {
		return d, err
	}
	if d.Stop != nil {
		resp.Usage = d.Stop.Usage
	}
	d.Response = resp
	return d, nil
}
