// Copyright 2024-2026 Aiku AI

package streamchat

import (
	"encoding/json"
	"testing"

	"github.com/aiku/chatkit-stream-sync/pkg/connector"
)

func TestConvertUserKeepsCustomFields(t *testing.T) {
	t.Parallel()

	user, err := ConvertUser(&connector.User{
		ID:     "alice_1",
		Name:   "Alice",
		Image:  "https://example.com/a.png",
		Custom: map[string]any{"team": "blue"},
	})
	if err != nil {
		t.Fatalf("ConvertUser: %v", err)
	}
	if user.ID != "alice_1" || user.Name != "Alice" || user.Image != "https://example.com/a.png" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.ExtraData["team"] != "blue" {
		t.Fatalf("custom field lost: %+v", user.ExtraData)
	}
}

func TestConvertMessage(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{"type":"application/x-poll","poll":{"q":"?"}}`)
	msg, err := ConvertMessage(&connector.Message{
		ID:     "42",
		UserID: "alice",
		Text:   "hi",
		Attachments: []*connector.Attachment{{
			Type:     "image",
			MIMEType: "image/png",
			ImageURL: "https://cdn/x.png",
		}},
		Unhandled: []json.RawMessage{raw},
	})
	if err != nil {
		t.Fatalf("ConvertMessage: %v", err)
	}
	if msg.ID != "42" || msg.Text != "hi" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.User == nil || msg.User.ID != "alice" {
		t.Fatalf("unexpected author: %+v", msg.User)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(msg.Attachments))
	}
	if got := msg.Attachments[0]; got.Type != "image" || got.ImageURL != "https://cdn/x.png" {
		t.Fatalf("unexpected attachment: %+v", got)
	}
	parts, ok := msg.ExtraData[connector.UnhandledPartsField].([]json.RawMessage)
	if !ok || len(parts) != 1 || string(parts[0]) != string(raw) {
		t.Fatalf("unhandled parts not carried: %+v", msg.ExtraData)
	}
}

func TestConvertMessageWithoutUnhandledHasNoExtraData(t *testing.T) {
	t.Parallel()

	msg, err := ConvertMessage(&connector.Message{ID: "1", UserID: "bob", Text: "x"})
	if err != nil {
		t.Fatalf("ConvertMessage: %v", err)
	}
	if len(msg.ExtraData) != 0 {
		t.Fatalf("expected no extra data, got %+v", msg.ExtraData)
	}
}
