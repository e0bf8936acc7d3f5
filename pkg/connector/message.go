// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/aiku/chatkit-stream-sync/pkg/connector/chatkit"
	"github.com/aiku/chatkit-stream-sync/pkg/connector/htmlfmt"
)

// TranslateMessage converts a Chatkit message into a Stream message, parts
// evaluated left to right:
//
//   - an inline part replaces the text, so the last one wins; HTML content
//     is rendered as markdown
//   - a URL part is appended on its own line after the text, so Stream can
//     unfurl it
//   - an attachment part is relayed into channel and appended to the
//     attachments
//   - anything else is kept verbatim in Unhandled
func (sc *SyncConnector) TranslateMessage(ctx context.Context, channel Channel, message *chatkit.Message) (*Message, error) {
	authorID := SanitizeUserID(message.UserID)
	out := &Message{
		ID:     MakeMessageID(message.ID),
		UserID: authorID,
	}

	var text string
	var links []string
	for i := range message.Parts {
		part := &message.Parts[i]
		switch part.Kind() {
		case chatkit.PartInline:
			text = htmlfmt.Text(part.Type, *part.Content)
		case chatkit.PartURL:
			links = append(links, *part.URL)
		case chatkit.PartAttachment:
			att, err := sc.RelayAttachment(ctx, channel, authorID, part)
			if err != nil {
				return nil, fmt.Errorf("failed to relay attachment %d of message %d: %w", i, message.ID, err)
			}
			out.Attachments = append(out.Attachments, att)
		default:
			raw := part.Raw
			if len(raw) == 0 {
				var err error
				if raw, err = part.MarshalJSON(); err != nil {
					return nil, fmt.Errorf("failed to keep part %d of message %d: %w", i, message.ID, err)
				}
			}
			out.Unhandled = append(out.Unhandled, raw)
			sc.logger(ctx).Debug().
				Int64("message_id", message.ID).
				Int("part_index", i).
				Str("part_type", part.Type).
				Msg("Keeping unrecognized message part")
		}
	}

	out.Text = joinText(text, links)
	return out, nil
}

func joinText(text string, links []string) string {
	if len(links) == 0 {
		return text
	}
	if text == "" {
		return strings.Join(links, "\n")
	}
	return text + "\n" + strings.Join(links, "\n")
}
