package engine

import (
	"encoding/json"
	"time"

	"splitguard/internal/decision"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown      EventType = iota
	EventTypeDecision               // Command issued by a controller
	EventTypeSessionStart           // First playable tick after a reset
	EventTypeSessionEnd             // Game end, disconnect or operator reset
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is one line of the event log
type Event struct {
	Version    uint8           `json:"version"`
	Type       EventType       `json:"type"`
	Timestamp  int64           `json:"timestamp"` // Unix nano
	Sequence   uint64          `json:"sequence"`  // Monotonic sequence
	Frame      uint64          `json:"frame"`     // Engine frame this occurred in
	Controller string          `json:"controller"`
	Payload    json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeDecision:
		return "decision"
	case EventTypeSessionStart:
		return "session_start"
	case EventTypeSessionEnd:
		return "session_end"
	default:
		return "unknown"
	}
}

// MarshalText writes the type name so log lines stay readable.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a type name.
func (t *EventType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "decision":
		*t = EventTypeDecision
	case "session_start":
		*t = EventTypeSessionStart
	case "session_end":
		*t = EventTypeSessionEnd
	default:
		*t = EventTypeUnknown
	}
	return nil
}

// SessionPayload marks a session boundary
type SessionPayload struct {
	GameTime float64 `json:"gameTime"`
	Reason   string  `json:"reason,omitempty"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload any) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, frame uint64, controller string, payload any) Event {
	return Event{
		Version:    EventVersion,
		Type:       eventType,
		Timestamp:  time.Now().UnixNano(),
		Frame:      frame,
		Controller: controller,
		Payload:    EncodePayload(payload),
	}
}

// DecisionEvent wraps a decision record.
func DecisionEvent(frame uint64, rec decision.Record) Event {
	t := EventTypeDecision
	switch rec.Action {
	case decision.ActionSessionStart:
		t = EventTypeSessionStart
	case decision.ActionReset:
		t = EventTypeSessionEnd
	}
	if t != EventTypeDecision {
		return NewEvent(t, frame, rec.Controller, SessionPayload{GameTime: rec.GameTime, Reason: rec.Reason})
	}
	return NewEvent(t, frame, rec.Controller, rec)
}
