package agent

import (
	"log/slog"
	"time"

	"monarch/pkg/api"
)

// Recorder collects the decision trace for one request and forwards each
// event to an optional sink as it happens. Sequence numbers start at 1
// and increase strictly.
type Recorder struct {
	requestID string
	sink      api.TraceSink
	events    []api.TraceEvent
}

// NewRecorder creates a recorder for one request. Sink may be nil for
// callers that only want the in-memory trace.
func NewRecorder(requestID string, sink api.TraceSink) *Recorder {
	return &Recorder{requestID: requestID, sink: sink}
}

// Emit appends one event, assigning the next sequence number. A failing
// sink is logged and never fails the request.
func (r *Recorder) Emit(kind string, detail map[string]any) {
	ev := api.TraceEvent{
		Seq:       len(r.events) + 1,
		Timestamp: time.Now().UTC(),
		RequestID: r.requestID,
		Kind:      kind,
		Detail:    detail,
	}
	r.events = append(r.events, ev)
	if r.sink != nil {
		if err := r.sink.AppendTrace(ev); err != nil {
			slog.Warn("Failed to persist trace event", "request_id", r.requestID, "kind", kind, "error", err)
		}
	}
}

// Events returns a copy of the accumulated trace in emission order.
func (r *Recorder) Events() []api.TraceEvent {
	out := make([]api.TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}
