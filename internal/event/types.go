package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the category of an envelope. The set is closed: the
// dashboard backend emits exactly these four channels.
type Type string

const (
	TypeModeration   Type = "moderation"
	TypeAnalytics    Type = "analytics"
	TypeUserActivity Type = "user_activity"
	TypeSystem       Type = "system"
)

// AllTypes lists every valid event type, in wire order.
func AllTypes() []Type {
	return []Type{TypeModeration, TypeAnalytics, TypeUserActivity, TypeSystem}
}

// Valid reports whether t is a member of the closed type set.
func (t Type) Valid() bool {
	switch t {
	case TypeModeration, TypeAnalytics, TypeUserActivity, TypeSystem:
		return true
	}
	return false
}

// Envelope is a single typed update delivered to subscribers. Payload stays
// opaque here; handlers decode it against the schema for their event type.
type Envelope struct {
	Type      Type            `json:"type"`
	Sequence  int64           `json:"seq"`
	Timestamp int64           `json:"ts"` // µs since epoch
	Payload   json.RawMessage `json:"payload"`
}

// Decode parses a wire message into an Envelope. Unknown event types are
// rejected so a server rollout of new channels cannot reach handlers that
// never registered for them.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	if !env.Type.Valid() {
		return Envelope{}, fmt.Errorf("unknown event type %q", env.Type)
	}
	if env.Sequence < 0 {
		return Envelope{}, fmt.Errorf("negative sequence %d", env.Sequence)
	}
	return env, nil
}

// Time converts the envelope timestamp to a time.Time.
func (e Envelope) Time() time.Time {
	return time.UnixMicro(e.Timestamp)
}
