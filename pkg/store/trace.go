package store

import (
	"context"
	"fmt"
	"time"

	"monarch/pkg/api"
)

// AppendTrace implements api.TraceSink, persisting each event as the
// engine produces it.
func (s *DB) AppendTrace(ev api.TraceEvent) error {
	detail := ""
	if len(ev.Detail) > 0 {
		b, err := json.Marshal(ev.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode trace detail: %w", err)
		}
		detail = string(b)
	}
	_, err := s.db.Exec(`
		INSERT INTO trace_events (request_id, seq, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.RequestID, ev.Seq, ev.Kind, detail, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save trace event: %w", err)
	}
	return nil
}

// TraceForRequest returns the persisted events for one request in sequence order.
func (s *DB) TraceForRequest(ctx context.Context, requestID string) ([]api.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, detail, created_at FROM trace_events
		WHERE request_id = ? ORDER BY seq ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	defer rows.Close()

	var out []api.TraceEvent
	for rows.Next() {
		var ev api.TraceEvent
		var detail string
		var created time.Time
		if err := rows.Scan(&ev.Seq, &ev.Kind, &detail, &created); err != nil {
			return nil, fmt.Errorf("failed to scan trace row: %w", err)
		}
		ev.RequestID = requestID
		ev.Timestamp = created
		if detail != "" {
			if err := json.Unmarshal([]byte(detail), &ev.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode trace detail: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
