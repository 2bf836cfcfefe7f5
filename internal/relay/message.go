package relay

import "encoding/json"

// MessageType tags a request envelope. The set is closed: anything
// else is answered with a deterministic failure, never dropped.
type MessageType string

const (
	// MsgSaveMetrics asks the relay to persist one page observation.
	MsgSaveMetrics MessageType = "save-metrics"
	// MsgGetHistory asks for a page of visit history for a URL.
	MsgGetHistory MessageType = "get-history"
	// MsgGetCurrentMetrics asks the extractor for a fresh snapshot of
	// the page it is bound to.
	MsgGetCurrentMetrics MessageType = "get-current-metrics"
)

// Message is the cross-context request envelope.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the cross-context reply envelope. Success true implies
// Data carries the result (or is intentionally absent for a
// "not found" case); success false implies Error is set.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HistoryRequest is the payload of a get-history message.
type HistoryRequest struct {
	URL    string `json:"url"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
