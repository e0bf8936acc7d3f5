// Copyright 2024-2026 Aiku AI

package connector

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// EventType is a recognized Chatkit webhook event.
type EventType int

const (
	EventUnknown EventType = iota
	EventRoomsCreated
	EventRoomsDeleted
	EventMessagesCreated
	EventMessagesEdited
	EventMessagesDeleted
	EventUsersCreated
	EventUsersDeleted
	EventUsersAddedToRoom
	EventUsersRemovedFromRoom
	EventUserLeftRoom
)

var eventTags = map[EventType]string{
	EventRoomsCreated:         "v1.rooms_created",
	EventRoomsDeleted:         "v1.rooms_deleted",
	EventMessagesCreated:      "v1.messages_created",
	EventMessagesEdited:       "v1.messages_edited",
	EventMessagesDeleted:      "v1.messages_deleted",
	EventUsersCreated:         "v1.users_created",
	EventUsersDeleted:         "v1.users_deleted",
	EventUsersAddedToRoom:     "v1.users_added_to_room",
	EventUsersRemovedFromRoom: "v1.users_removed_from_room",
	EventUserLeftRoom:         "v1.user_left_room",
}

var eventTypesByTag = func() map[string]EventType {
	m := make(map[string]EventType, len(eventTags))
	for t, tag := range eventTags {
		m[tag] = t
	}
	return m
}()

// ParseEventType maps a webhook event tag to its EventType. Unrecognized
// tags yield EventUnknown.
func ParseEventType(tag string) EventType {
	return eventTypesByTag[tag]
}

func (t EventType) String() string {
	if tag, ok := eventTags[t]; ok {
		return tag
	}
	return "unknown"
}

// Event is a verified webhook delivery.
type Event struct {
	Type EventType
	// Tag is the event_type string as received.
	Tag     string
	Payload json.RawMessage
}

// ParseEvent extracts the event type and payload from a raw webhook body.
func ParseEvent(body []byte) (*Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrMalformedEvent)
	}
	tag := gjson.GetBytes(body, "metadata.event_type")
	if tag.Type != gjson.String || tag.Str == "" {
		return nil, fmt.Errorf("%w: missing metadata.event_type", ErrMalformedEvent)
	}
	evt := &Event{
		Type: ParseEventType(tag.Str),
		Tag:  tag.Str,
	}
	if payload := gjson.GetBytes(body, "payload"); payload.Exists() {
		evt.Payload = json.RawMessage(payload.Raw)
	}
	return evt, nil
}
