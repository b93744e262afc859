package domain

import "time"

// CapturedRequest is an immutable record of one inbound call against a
// session's ingestion endpoint.
type CapturedRequest struct {
	ID            string            `json:"request_id"`
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	QueryParams   map[string]string `json:"query_params"`
	Headers       map[string]string `json:"headers"`
	Body          string            `json:"body"`
	IPAddress     string            `json:"ip_address"`
	UserAgent     string            `json:"user_agent"`
	Timestamp     string            `json:"timestamp"`
	ContentLength int               `json:"content_length"`
}

// TimestampLayout is the wire and storage format of every timestamp.
const TimestampLayout = time.RFC3339Nano

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }

// ScoreMillis returns the order-index score for the request. When the
// stored timestamp cannot be parsed the current wall clock is used so the
// request is never left out of the index.
func (r CapturedRequest) ScoreMillis(now time.Time) int64 {
	if ts, err := time.Parse(time.RFC3339Nano, r.Timestamp); err == nil {
		return ts.UnixMilli()
	}
	return now.UnixMilli()
}
