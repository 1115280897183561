// Package session provides bounded, expiring conversation memory for the
// research assistant. Each session keeps a rolling window of query/response
// exchanges that can be rendered back into a prompt as prior context.
package session

import (
	"encoding/json"
	"maps"
	"time"
)

// ConversationEntry is one query/response exchange.
// Entries are immutable once appended.
type ConversationEntry struct {
	// Timestamp is when the exchange was recorded.
	Timestamp time.Time `json:"timestamp"`
	// Query is the user's input.
	Query string `json:"query"`
	// Response is the assistant's final output.
	Response string `json:"response"`
	// Model names the model that produced the response.
	Model string `json:"model"`
	// Metadata carries caller-defined annotations such as tools used.
	Metadata map[string]any `json:"metadata"`
}

// clone returns a copy that shares no mutable state with e.
func (e ConversationEntry) clone() ConversationEntry {
	e.Metadata = cloneMetadata(e.Metadata)
	return e
}

// cloneMetadata deep-copies m through its JSON form, the shape the redis
// and file backends decode. A map that cannot be encoded is copied one
// level deep.
func cloneMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return map[string]any{}
	}
	if data, err := json.Marshal(m); err == nil {
		var out map[string]any
		if err := json.Unmarshal(data, &out); err == nil && out != nil {
			return out
		}
	}
	return maps.Clone(m)
}

// Summary is a read-only digest of a session.
type Summary struct {
	SessionID      string `json:"session_id"`
	TotalExchanges int    `json:"total_exchanges"`
	// StartTime and LastActivity are nil for an empty session.
	StartTime    *time.Time `json:"start_time"`
	LastActivity *time.Time `json:"last_activity"`
	// DurationMinutes is the span between the first and last exchange.
	DurationMinutes float64  `json:"duration_minutes"`
	ModelsUsed      []string `json:"models_used"`
	// Topics is advisory only.
	Topics []string `json:"topics"`
}

// Duration returns the span between the first and last exchange.
func (s Summary) Duration() time.Duration {
	if s.StartTime == nil || s.LastActivity == nil {
		return 0
	}
	return s.LastActivity.Sub(*s.StartTime)
}
