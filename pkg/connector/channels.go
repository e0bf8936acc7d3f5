// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"

	"github.com/aiku/chatkit-stream-sync/pkg/connector/chatkit"
)

// ResolveRoom returns the room from the cache, or fetches it as seen by
// asUserID and caches it.
func (sc *SyncConnector) ResolveRoom(ctx context.Context, roomID, asUserID string) (*chatkit.Room, error) {
	if room, ok := sc.Cache.Rooms.Get(roomID); ok {
		return room, nil
	}
	room, err := sc.Source.GetRoom(ctx, roomID, asUserID)
	if err != nil {
		return nil, remoteErr(PlatformChatkit, "get room", err)
	}
	sc.Cache.Rooms.Set(roomID, room)
	sc.logger(ctx).Debug().
		Str("room_id", roomID).
		Str("as_user_id", asUserID).
		Msg("Fetched room")
	return room, nil
}

// roomToChannelRequest converts a Chatkit room to a Stream channel request.
func roomToChannelRequest(room *chatkit.Room) *ChannelRequest {
	var custom map[string]any
	if len(room.CustomData) > 0 {
		custom = make(map[string]any, len(room.CustomData))
		for k, v := range room.CustomData {
			custom[k] = v
		}
	}
	return &ChannelRequest{
		Type:        ChannelTypeForRoom(room),
		ID:          room.ID,
		Name:        room.Name,
		Members:     SanitizeUserIDs(room.MemberUserIDs),
		CreatedByID: SanitizeUserID(room.CreatedByID),
		Custom:      custom,
	}
}

// GetOrCreateChannel materializes every room member (and the creator) at the
// destination and only then gets or creates the channel, so the channel is
// never created with members that do not exist yet.
func (sc *SyncConnector) GetOrCreateChannel(ctx context.Context, room *chatkit.Room) (Channel, error) {
	userIDs := room.MemberUserIDs
	if room.CreatedByID != "" {
		userIDs = append(append(make([]string, 0, len(userIDs)+1), userIDs...), room.CreatedByID)
	}
	if err := sc.EnsureUsers(ctx, userIDs); err != nil {
		return nil, fmt.Errorf("failed to ensure members of room %s: %w", room.ID, err)
	}

	req := roomToChannelRequest(room)
	channel, err := sc.Dest.GetOrCreateChannel(ctx, req)
	if err != nil {
		return nil, remoteErr(PlatformStream, "get or create channel", err)
	}
	sc.logger(ctx).Debug().
		Str("room_id", room.ID).
		Str("channel_type", req.Type).
		Int("member_count", len(req.Members)).
		Msg("Got or created channel")
	return channel, nil
}
