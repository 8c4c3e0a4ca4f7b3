package agent

import (
	"errors"
	"testing"

	"monarch/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectingSink struct {
	events []api.TraceEvent
	err    error
}

func (s *collectingSink) AppendTrace(ev api.TraceEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func TestRecorderAssignsSequence(t *testing.T) {
	sink := &collectingSink{}
	rec := NewRecorder("req-1", sink)

	rec.Emit(api.TraceReasoning, map[string]any{"message": "hi"})
	rec.Emit(api.TraceFinal, nil)

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Seq)
	assert.Equal(t, 2, events[1].Seq)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.False(t, events[0].Timestamp.IsZero())

	require.Len(t, sink.events, 2)
	assert.Equal(t, events[0].Seq, sink.events[0].Seq)
}

func TestRecorderToleratesSinkFailure(t *testing.T) {
	rec := NewRecorder("req-2", &collectingSink{err: errors.New("db closed")})

	rec.Emit(api.TraceReasoning, nil)
	rec.Emit(api.TraceFinal, nil)

	assert.Len(t, rec.Events(), 2, "sink failures must not drop in-memory events")
}

func TestRecorderEventsReturnsCopy(t *testing.T) {
	rec := NewRecorder("req-3", nil)
	rec.Emit(api.TraceReasoning, nil)

	events := rec.Events()
	events[0].Kind = "mutated"
	assert.Equal(t, api.TraceReasoning, rec.Events()[0].Kind)
}
