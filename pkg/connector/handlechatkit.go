// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/aiku/chatkit-stream-sync/pkg/connector/chatkit"
)

// HandleEvent applies a webhook event to the destination. It returns only
// after every item of the batch has completed or failed; any failed item
// fails the whole call. Unrecognized events are logged and succeed.
func (sc *SyncConnector) HandleEvent(ctx context.Context, evt *Event) error {
	log := sc.logger(ctx).With().Str("event_type", evt.Tag).Logger()
	ctx = log.WithContext(ctx)

	switch evt.Type {
	case EventRoomsCreated:
		return sc.handleRoomsCreated(ctx, evt)
	case EventRoomsDeleted:
		// Removing the channel at the destination is not implemented; whether
		// its messages should go too is undecided.
		log.Debug().Msg("Ignoring room deletion")
		return nil
	case EventMessagesCreated:
		return sc.handleMessagesCreated(ctx, evt)
	case EventMessagesEdited:
		return sc.handleMessagesEdited(ctx, evt)
	case EventMessagesDeleted:
		return sc.handleMessagesDeleted(ctx, evt)
	case EventUsersCreated:
		return sc.handleUsersCreated(ctx, evt)
	case EventUsersDeleted:
		return sc.handleUsersDeleted(ctx, evt)
	case EventUsersAddedToRoom:
		return sc.handleMembership(ctx, evt, true)
	case EventUsersRemovedFromRoom, EventUserLeftRoom:
		return sc.handleMembership(ctx, evt, false)
	default:
		log.Info().Msg("Unhandled event type")
		return nil
	}
}

func decodePayload(evt *Event, out any) error {
	if len(evt.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrMalformedEvent, evt.Tag)
	}
	if err := json.Unmarshal(evt.Payload, out); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformedEvent, evt.Tag, err)
	}
	return nil
}

func decodeItem(item json.RawMessage, out any) error {
	if err := json.Unmarshal(item, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// forEachItem runs handle for every item with at most
// Config.BatchConcurrency items in flight and waits for all of them.
func (sc *SyncConnector) forEachItem(ctx context.Context, evt *Event, items []json.RawMessage, handle func(context.Context, json.RawMessage) error) error {
	log := sc.logger(ctx)

	var (
		mu     sync.Mutex
		failed []*ItemError
	)
	var g errgroup.Group
	g.SetLimit(sc.Config.Concurrency())
	for i, item := range items {
		g.Go(func() error {
			itemLog := log.With().Int("item_index", i).Logger()
			err := runItem(itemLog.WithContext(ctx), item, handle)
			if err != nil {
				itemLog.Error().Err(err).RawJSON("item", item).Msg("Failed to handle event item")
				mu.Lock()
				failed = append(failed, &ItemError{EventType: evt.Type, Index: i, Item: item, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == 0 {
		log.Debug().Int("items", len(items)).Msg("Handled event batch")
		return nil
	}
	sort.Slice(failed, func(a, b int) bool { return failed[a].Index < failed[b].Index })
	var result *multierror.Error
	for _, itemErr := range failed {
		result = multierror.Append(result, itemErr)
	}
	log.Warn().
		Int("items", len(items)).
		Int("failed", len(failed)).
		Msg("Event batch had failures")
	return result.ErrorOrNil()
}

// runItem turns a panic in handle into an error so one bad item cannot take
// down the process.
func runItem(ctx context.Context, item json.RawMessage, handle func(context.Context, json.RawMessage) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling item: %v", r)
		}
	}()
	return handle(ctx, item)
}

func (sc *SyncConnector) handleRoomsCreated(ctx context.Context, evt *Event) error {
	var payload chatkit.RoomsPayload
	if err := decodePayload(evt, &payload); err != nil {
		return err
	}
	return sc.forEachItem(ctx, evt, payload.Rooms, func(ctx context.Context, item json.RawMessage) error {
		var created chatkit.Room
		if err := decodeItem(item, &created); err != nil {
			return err
		}
		room, err := sc.ResolveRoom(ctx, created.ID, created.CreatedByID)
		if err != nil {
			return err
		}
		_, err = sc.GetOrCreateChannel(ctx, room)
		return err
	})
}

// channelForMessage resolves the message's room as seen by its author and
// gets or creates the matching channel.
func (sc *SyncConnector) channelForMessage(ctx context.Context, msg *chatkit.Message) (Channel, error) {
	room, err := sc.ResolveRoom(ctx, msg.RoomID, msg.UserID)
	if err != nil {
		return nil, err
	}
	return sc.GetOrCreateChannel(ctx, room)
}

func (sc *SyncConnector) handleMessagesCreated(ctx context.Context, evt *Event) error {
	var payload chatkit.MessagesPayload
	if err := decodePayload(evt, &payload); err != nil {
		return err
	}
	return sc.forEachItem(ctx, evt, payload.Messages, func(ctx context.Context, item json.RawMessage) error {
		var msg chatkit.Message
		if err := decodeItem(item, &msg); err != nil {
			return err
		}
		channel, err := sc.channelForMessage(ctx, &msg)
		if err != nil {
			return err
		}
		out, err := sc.TranslateMessage(ctx, channel, &msg)
		if err != nil {
			return err
		}
		if err := channel.SendMessage(ctx, out); err != nil {
			return remoteErr(PlatformStream, "send message", err)
		}
		sc.logger(ctx).Debug().
			Str("message_id", out.ID).
			Str("channel_id", channel.ID()).
			Msg("Sent message")
		return nil
	})
}

func (sc *SyncConnector) handleMessagesEdited(ctx context.Context, evt *Event) error {
	var payload chatkit.MessagesPayload
	if err := decodePayload(evt, &payload); err != nil {
		return err
	}
	return sc.forEachItem(ctx, evt, payload.Messages, func(ctx context.Context, item json.RawMessage) error {
		var msg chatkit.Message
		if err := decodeItem(item, &msg); err != nil {
			return err
		}
		// Attachments in the edit are uploaded into the message's channel.
		channel, err := sc.channelForMessage(ctx, &msg)
		if err != nil {
			return err
		}
		out, err := sc.TranslateMessage(ctx, channel, &msg)
		if err != nil {
			return err
		}
		if err := sc.Dest.UpdateMessage(ctx, out); err != nil {
			return remoteErr(PlatformStream, "update message", err)
		}
		return nil
	})
}

func (sc *SyncConnector) handleMessagesDeleted(ctx context.Context, evt *Event) error {
	var payload chatkit.MessagesPayload
	if err := decodePayload(evt, &payload); err != nil {
		return err
	}
	return sc.forEachItem(ctx, evt, payload.Messages, func(ctx context.Context, item json.RawMessage) error {
		var msg chatkit.Message
		if err := decodeItem(item, &msg); err != nil {
			return err
		}
		if err := sc.Dest.DeleteMessage(ctx, MakeMessageID(msg.ID)); err != nil {
			return remoteErr(PlatformStream, "delete message", err)
		}
		return nil
	})
}

func (sc *SyncConnector) handleUsersCreated(ctx context.Context, evt *Event) error {
	var payload chatkit.UsersPayload
	if err := decodePayload(evt, &payload); err != nil {
		return err
	}
	return sc.forEachItem(ctx, evt, payload.Users, func(ctx context.Context, item json.RawMessage) error {
		var user chatkit.User
		if err := decodeItem(item, &user); err != nil {
			return err
		}
		return sc.CreateUser(ctx, &user)
	})
}

func (sc *SyncConnector) handleUsersDeleted(ctx context.Context, evt *Event) error {
	var payload chatkit.UsersPayload
	if err := decodePayload(evt, &payload); err != nil {
		return err
	}
	return sc.forEachItem(ctx, evt, payload.Users, func(ctx context.Context, item json.RawMessage) error {
		var user chatkit.User
		if err := decodeItem(item, &user); err != nil {
			return err
		}
		if err := sc.Dest.DeleteUser(ctx, SanitizeUserID(user.ID)); err != nil {
			return remoteErr(PlatformStream, "delete user", err)
		}
		return nil
	})
}

// handleMembership adds or removes the payload's users as members of the
// room's channel in a single call. Users removed from a room and users
// leaving it are treated the same.
func (sc *SyncConnector) handleMembership(ctx context.Context, evt *Event, add bool) error {
	var payload chatkit.MembershipPayload
	if err := decodePayload(evt, &payload); err != nil {
		return err
	}
	items := payload.AffectedUsers()
	userIDs := make([]string, 0, len(items))
	for i, item := range items {
		var user chatkit.User
		if err := decodeItem(item, &user); err != nil {
			return &ItemError{EventType: evt.Type, Index: i, Item: item, Err: err}
		}
		userIDs = append(userIDs, user.ID)
	}
	if payload.Room.ID == "" {
		return fmt.Errorf("%w: %s payload has no room", ErrMalformedEvent, evt.Tag)
	}
	if len(userIDs) == 0 {
		sc.logger(ctx).Debug().Str("room_id", payload.Room.ID).Msg("Membership event without users")
		return nil
	}

	// The whole payload is one unit: it maps to a single member update.
	return sc.forEachItem(ctx, evt, []json.RawMessage{evt.Payload}, func(ctx context.Context, _ json.RawMessage) error {
		asUserID := payload.Room.CreatedByID
		if asUserID == "" {
			asUserID = userIDs[0]
		}
		room, err := sc.ResolveRoom(ctx, payload.Room.ID, asUserID)
		if err != nil {
			return err
		}
		channel, err := sc.GetOrCreateChannel(ctx, room)
		if err != nil {
			return err
		}
		if err := sc.EnsureUsers(ctx, userIDs); err != nil {
			return err
		}
		members := SanitizeUserIDs(userIDs)
		if add {
			err = channel.AddMembers(ctx, members)
		} else {
			err = channel.RemoveMembers(ctx, members)
		}
		if err != nil {
			op := "add members"
			if !add {
				op = "remove members"
			}
			return remoteErr(PlatformStream, op, err)
		}
		sc.logger(ctx).Debug().
			Str("channel_id", channel.ID()).
			Strs("user_ids", members).
			Bool("added", add).
			Msg("Updated channel members")
		return nil
	})
}

// onlyMalformed reports whether err consists solely of decoding failures,
// which redelivery cannot fix.
func onlyMalformed(err error) bool {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			if !errors.Is(e, ErrMalformedEvent) {
				return false
			}
		}
		return len(merr.Errors) > 0
	}
	return errors.Is(err, ErrMalformedEvent)
}
