// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

// Package core contains the fan-out engine: topic registry, connection
// lifecycle, and the publish path.
package core

import (
	"encoding/json"
	"time"

	"github.com/samber/oops"
)

// RecordType discriminates the kind of content a record carries.
type RecordType string

const (
	RecordTypeText  RecordType = "text"
	RecordTypeImage RecordType = "image"
	RecordTypeVideo RecordType = "video"
)

// Valid reports whether the type is one of the known discriminators.
func (t RecordType) Valid() bool {
	switch t {
	case RecordTypeText, RecordTypeImage, RecordTypeVideo:
		return true
	}
	return false
}

// Record is a persisted entry on a topic: a chat message or a feed item.
// The ID is assigned by the store and is monotonically increasing, so it
// doubles as the delivery ordering key within a topic.
type Record struct {
	ID        int64      `json:"id"`
	Topic     string     `json:"topic"`
	AuthorID  string     `json:"author_id"`
	Author    string     `json:"author"`
	Message   string     `json:"message"`
	Type      RecordType `json:"type"`
	MediaURL  string     `json:"media_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// EventType identifies the kind of event delivered to a subscriber.
type EventType string

const (
	EventConnected EventType = "connected"
	EventHeartbeat EventType = "heartbeat"
	EventRecord    EventType = "record"
)

// Event is what a subscriber observes on its channel: the connection
// acknowledgment, a keepalive, or a broadcast record.
type Event struct {
	Type   EventType
	Record *Record // set only for EventRecord
}

// ConnectedEvent returns the event sent once when a subscription opens.
func ConnectedEvent() Event { return Event{Type: EventConnected} }

// HeartbeatEvent returns the periodic keepalive event.
func HeartbeatEvent() Event { return Event{Type: EventHeartbeat} }

// RecordEvent wraps a stored record for delivery.
func RecordEvent(r Record) Event { return Event{Type: EventRecord, Record: &r} }

// Frame renders the event as the payload of one wire frame: the literal
// tokens "connected" and "heartbeat", or the JSON encoding of the record.
func (e Event) Frame() ([]byte, error) {
	switch e.Type {
	case EventConnected:
		return []byte("connected"), nil
	case EventHeartbeat:
		return []byte("heartbeat"), nil
	case EventRecord:
		data, err := json.Marshal(e.Record)
		if err != nil {
			return nil, oops.Code("EVENT_ENCODE_FAILED").
				With("record_id", e.Record.ID).
				Wrap(err)
		}
		return data, nil
	default:
		return nil, oops.Code("EVENT_UNKNOWN_TYPE").Errorf("unknown event type %q", e.Type)
	}
}
