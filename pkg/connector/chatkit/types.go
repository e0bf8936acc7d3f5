// Copyright 2024-2026 Aiku AI

package chatkit

import (
	"encoding/json"
)

// User is a Chatkit user as delivered in webhook payloads and REST responses.
type User struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	AvatarURL  string         `json:"avatar_url,omitempty"`
	CustomData map[string]any `json:"custom_data,omitempty"`
	CreatedAt  string         `json:"created_at,omitempty"`
	UpdatedAt  string         `json:"updated_at,omitempty"`
}

// Room is a Chatkit room. Rooms fetched over REST are scoped to the user the
// request was made as, so MemberUserIDs may differ from the webhook copy.
type Room struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Private       bool           `json:"private"`
	CreatedByID   string         `json:"created_by_id,omitempty"`
	MemberUserIDs []string       `json:"member_user_ids,omitempty"`
	CustomData    map[string]any `json:"custom_data,omitempty"`
	CreatedAt     string         `json:"created_at,omitempty"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
}

// Message is a multipart Chatkit message.
type Message struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	RoomID    string `json:"room_id"`
	Parts     []Part `json:"parts,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// PartKind classifies a message part by the shape of its payload.
type PartKind int

const (
	PartUnknown PartKind = iota
	PartInline
	PartURL
	PartAttachment
)

func (k PartKind) String() string {
	switch k {
	case PartInline:
		return "inline"
	case PartURL:
		return "url"
	case PartAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// Part is one unit of message content. Exactly one of Content, URL and
// Attachment is expected to be set; Raw keeps the part as it was received so
// unrecognized shapes can be passed on untouched.
type Part struct {
	Type       string      `json:"type"`
	Content    *string     `json:"content,omitempty"`
	URL        *string     `json:"url,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (p *Part) UnmarshalJSON(data []byte) error {
	type rawPart Part
	if err := json.Unmarshal(data, (*rawPart)(p)); err != nil {
		return err
	}
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the part exactly as received when it came off the wire.
func (p Part) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	type rawPart Part
	return json.Marshal(rawPart(p))
}

// Kind reports which part shape p carries.
func (p *Part) Kind() PartKind {
	switch {
	case p.Attachment != nil:
		return PartAttachment
	case p.URL != nil:
		return PartURL
	case p.Content != nil:
		return PartInline
	default:
		return PartUnknown
	}
}

// Attachment references a file stored by Chatkit.
type Attachment struct {
	ID          string         `json:"id"`
	DownloadURL string         `json:"download_url"`
	RefreshURL  string         `json:"refresh_url,omitempty"`
	Expiration  string         `json:"expiration,omitempty"`
	Name        string         `json:"name,omitempty"`
	Size        int64          `json:"size,omitempty"`
	CustomData  map[string]any `json:"custom_data,omitempty"`
}

// InlinePart builds an inline text part.
func InlinePart(mimeType, content string) Part {
	return Part{Type: mimeType, Content: &content}
}

// URLPart builds a link part.
func URLPart(url string) Part {
	return Part{Type: "text/uri-list", URL: &url}
}

// AttachmentPart builds an attachment part.
func AttachmentPart(mimeType string, att Attachment) Part {
	return Part{Type: mimeType, Attachment: &att}
}
