package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventType is the kind of row change delivered by the ledger feed.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ChangeEvent is one row change on the orders table.
type ChangeEvent struct {
	Type    EventType `json:"type"`
	Payload Order     `json:"payload"`
}

// DecodeChangeEvent parses a feed message and checks the fields required
// for its event type. Deletes only need an id.
func DecodeChangeEvent(body []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch ev.Type {
	case EventInsert, EventUpdate:
		if err := ev.Payload.Validate(); err != nil {
			return ChangeEvent{}, err
		}
	case EventDelete:
		if ev.Payload.ID == uuid.Nil {
			return ChangeEvent{}, fmt.Errorf("%w: delete without id", ErrMalformedPayload)
		}
	default:
		return ChangeEvent{}, fmt.Errorf("%w: unknown event type %q", ErrMalformedPayload, ev.Type)
	}

	return ev, nil
}
