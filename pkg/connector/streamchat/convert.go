// Copyright 2024-2026 Aiku AI

package streamchat

import (
	"encoding/json"
	"fmt"

	stream "github.com/GetStream/stream-chat-go/v6"

	"github.com/aiku/chatkit-stream-sync/pkg/connector"
)

// The SDK types flatten ExtraData into the top-level object on the wire. The
// converters go through JSON so custom keys land in ExtraData and known keys
// in their typed fields.
func roundTrip(fields map[string]any, out any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// ConvertUser builds the SDK user.
func ConvertUser(user *connector.User) (*stream.User, error) {
	var out stream.User
	if err := roundTrip(user.Fields(), &out); err != nil {
		return nil, fmt.Errorf("failed to convert user %s: %w", user.ID, err)
	}
	return &out, nil
}

// ConvertAttachment builds the SDK attachment.
func ConvertAttachment(att *connector.Attachment) (*stream.Attachment, error) {
	var out stream.Attachment
	if err := roundTrip(att.Fields(), &out); err != nil {
		return nil, fmt.Errorf("failed to convert attachment %s: %w", att.ID, err)
	}
	return &out, nil
}

// ConvertMessage builds the SDK message. Unhandled parts are attached as a
// custom field.
func ConvertMessage(msg *connector.Message) (*stream.Message, error) {
	out := &stream.Message{
		ID:   msg.ID,
		Text: msg.Text,
	}
	if msg.UserID != "" {
		out.User = &stream.User{ID: msg.UserID}
	}
	for _, att := range msg.Attachments {
		converted, err := ConvertAttachment(att)
		if err != nil {
			return nil, err
		}
		out.Attachments = append(out.Attachments, converted)
	}
	if len(msg.Unhandled) > 0 {
		out.ExtraData = map[string]any{
			connector.UnhandledPartsField: msg.Unhandled,
		}
	}
	return out, nil
}
