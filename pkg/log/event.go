package log

import (
	"time"
)

// Event represents a protocol log event captured during a DM session.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the DM conversation.
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow (meaningful for message events).
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// ServerURL is the endpoint in effect when the event occurred.
	ServerURL string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"6,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"7,keyasint,omitempty"`
	Anomaly     *AnomalyEvent     `cbor:"8,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"9,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a message received from the server.
	DirectionIn Direction = 0
	// DirectionOut indicates a message sent to the server.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message round-trip half.
	CategoryMessage Category = 0
	// CategoryState indicates a session state change.
	CategoryState Category = 1
	// CategoryAnomaly indicates tolerated, non-fatal server data
	// (unrecognized challenge, malformed descriptor field).
	CategoryAnomaly Category = 2
	// CategoryError indicates a failure that was surfaced or swallowed.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryAnomaly:
		return "ANOMALY"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures one direction of a message round trip.
type MessageEvent struct {
	// MsgID is the message counter value of the message.
	MsgID int `cbor:"1,keyasint"`

	// Commands summarises the body command list, e.g. "Status(212) Alert(1223)".
	Commands string `cbor:"2,keyasint,omitempty"`

	// Final indicates the message carried the Final marker.
	Final bool `cbor:"3,keyasint,omitempty"`

	// Authenticated indicates a credential was attached (outgoing only).
	Authenticated bool `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures session lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// AnomalyEvent captures tolerated server data problems.
type AnomalyEvent struct {
	// Context names the processing step that saw the anomaly.
	Context string `cbor:"1,keyasint"`

	// Detail describes what was wrong.
	Detail string `cbor:"2,keyasint,omitempty"`
}

// ErrorEventData captures an error event.
type ErrorEventData struct {
	// Context names the operation that failed.
	Context string `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`
}

// NewMessageEvent creates a message event.
func NewMessageEvent(sessionID string, dir Direction, serverURL string, msg MessageEvent) Event {
	return Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Direction: dir,
		Category:  CategoryMessage,
		ServerURL: serverURL,
		Message:   &msg,
	}
}

// NewStateEvent creates a state-change event.
func NewStateEvent(sessionID, oldState, newState, reason string) Event {
	return Event{
		Timestamp:   time.Now(),
		SessionID:   sessionID,
		Category:    CategoryState,
		StateChange: &StateChangeEvent{OldState: oldState, NewState: newState, Reason: reason},
	}
}

// NewAnomalyEvent creates an anomaly event.
func NewAnomalyEvent(sessionID, context, detail string) Event {
	return Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Category:  CategoryAnomaly,
		Anomaly:   &AnomalyEvent{Context: context, Detail: detail},
	}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(sessionID, context string, err error) Event {
	return Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Category:  CategoryError,
		Error:     &ErrorEventData{Context: context, Message: err.Error()},
	}
}
