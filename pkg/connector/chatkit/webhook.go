// Copyright 2024-2026 Aiku AI

package chatkit

import (
	"encoding/json"
)

// Metadata is the envelope header of a webhook delivery.
type Metadata struct {
	EventType string `json:"event_type"`
	EventID   string `json:"event_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Envelope is a single webhook delivery. Payload stays raw until the event
// type is known.
type Envelope struct {
	Metadata Metadata        `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

// RoomsPayload is delivered with v1.rooms_created and v1.rooms_deleted.
type RoomsPayload struct {
	Rooms []json.RawMessage `json:"rooms"`
}

// MessagesPayload is delivered with v1.messages_created, v1.messages_edited
// and v1.messages_deleted.
type MessagesPayload struct {
	Messages []json.RawMessage `json:"messages"`
}

// UsersPayload is delivered with v1.users_created and v1.users_deleted.
type UsersPayload struct {
	Users []json.RawMessage `json:"users"`
}

// MembershipPayload is delivered with v1.users_added_to_room,
// v1.users_removed_from_room and v1.user_left_room. The last one carries a
// single user instead of a list.
type MembershipPayload struct {
	Room  Room              `json:"room"`
	Users []json.RawMessage `json:"users,omitempty"`
	User  json.RawMessage   `json:"user,omitempty"`
}

// AffectedUsers returns the raw user items of the payload, folding the
// single-user form into a one-element list.
func (p *MembershipPayload) AffectedUsers() []json.RawMessage {
	if len(p.Users) > 0 {
		return p.Users
	}
	if len(p.User) > 0 && string(p.User) != "null" {
		return []json.RawMessage{p.User}
	}
	return nil
}
