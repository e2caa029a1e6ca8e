// Package realtime keeps the cloud-mode cache slots patched from the remote
// change-event stream, so remote mutations appear without a refetch.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/questsync/internal/record"
)

// EventType is the kind of remote change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one remote change. New carries the row for INSERT/UPDATE, Old the
// row for DELETE (matching the payloads of the change stream).
type Event[R record.Identified] struct {
	Type EventType
	New  R
	Old  R
}

// envelope is the wire format of one change event on the websocket channel.
type envelope struct {
	EventType string     `json:"eventType"`
	Table     string     `json:"table,omitempty"`
	New       record.Map `json:"new,omitempty"`
	Old       record.Map `json:"old,omitempty"`
}

// decodeEvent parses one wire frame into an Event over record.Map.
func decodeEvent(data []byte) (Event[record.Map], string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event[record.Map]{}, "", fmt.Errorf("bad change event frame: %w", err)
	}
	switch EventType(env.EventType) {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return Event[record.Map]{}, "", fmt.Errorf("unknown change event type %q", env.EventType)
	}
	return Event[record.Map]{Type: EventType(env.EventType), New: env.New, Old: env.Old}, env.Table, nil
}
