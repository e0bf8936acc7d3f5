// Copyright 2024-2026 Aiku AI

package connector

import (
	"strconv"
	"strings"

	"github.com/aiku/chatkit-stream-sync/pkg/connector/chatkit"
)

// Channel types on the destination side.
const (
	ChannelTypeMessaging  = "messaging"
	ChannelTypeLivestream = "livestream"
)

// userIDSeparator is legal in Chatkit user IDs but reserved in Stream ones.
const userIDSeparator = ":"

// SanitizeUserID maps a Chatkit user ID to a Stream-safe one. Applying it to
// an already sanitized ID is a no-op.
func SanitizeUserID(userID string) string {
	return strings.ReplaceAll(userID, userIDSeparator, "_")
}

// SanitizeUserIDs applies SanitizeUserID to every ID, dropping duplicates
// while keeping first-seen order.
func SanitizeUserIDs(userIDs []string) []string {
	out := make([]string, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		sanitized := SanitizeUserID(id)
		if _, ok := seen[sanitized]; ok {
			continue
		}
		seen[sanitized] = struct{}{}
		out = append(out, sanitized)
	}
	return out
}

// ChannelTypeForRoom derives the Stream channel type from room visibility.
func ChannelTypeForRoom(room *chatkit.Room) string {
	if room.Private {
		return ChannelTypeMessaging
	}
	return ChannelTypeLivestream
}

// MakeMessageID creates a Stream message ID from a Chatkit message ID.
func MakeMessageID(messageID int64) string {
	return strconv.FormatInt(messageID, 10)
}

// ParseMessageID extracts the Chatkit message ID from a Stream message ID.
func ParseMessageID(messageID string) (int64, error) {
	return strconv.ParseInt(messageID, 10, 64)
}
