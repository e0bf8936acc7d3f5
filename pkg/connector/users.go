// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aiku/chatkit-stream-sync/pkg/connector/chatkit"
)

// ConvertUser translates a Chatkit user into a Stream user. The result only
// depends on the input, so converting twice yields the same user.
func ConvertUser(user *chatkit.User) *User {
	var custom map[string]any
	if len(user.CustomData) > 0 {
		custom = make(map[string]any, len(user.CustomData))
		for k, v := range user.CustomData {
			custom[k] = v
		}
	}
	return &User{
		ID:     SanitizeUserID(user.ID),
		Name:   user.Name,
		Image:  user.AvatarURL,
		Custom: custom,
	}
}

// EnsureUsers makes sure every user in userIDs exists at the destination.
// Users found in the cache are skipped; the rest are fetched from Chatkit in
// one call and upserted to Stream in one call. The cache is only updated
// after the upsert succeeded.
func (sc *SyncConnector) EnsureUsers(ctx context.Context, userIDs []string) error {
	log := sc.logger(ctx)

	var missing []string
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		sanitized := SanitizeUserID(id)
		if _, ok := seen[sanitized]; ok {
			continue
		}
		seen[sanitized] = struct{}{}
		if _, ok := sc.Cache.Users.Get(sanitized); ok {
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return nil
	}

	users, err := sc.Source.GetUsersByID(ctx, missing)
	if err != nil {
		return remoteErr(PlatformChatkit, "get users", err)
	}
	if len(users) < len(missing) {
		log.Warn().
			Strs("requested", missing).
			Int("found", len(users)).
			Msg("Chatkit returned fewer users than requested")
	}
	if len(users) == 0 {
		return nil
	}

	converted := make([]*User, 0, len(users))
	for i := range users {
		converted = append(converted, ConvertUser(&users[i]))
	}
	if err := sc.Dest.UpsertUsers(ctx, converted); err != nil {
		return remoteErr(PlatformStream, "upsert users", err)
	}
	for _, user := range converted {
		sc.Cache.Users.Set(user.ID, user)
	}

	log.Debug().Int("count", len(converted)).Msg("Materialized users")
	return nil
}

// CreateUser upserts a single user without touching the cache.
func (sc *SyncConnector) CreateUser(ctx context.Context, user *chatkit.User) error {
	converted := ConvertUser(user)
	if err := sc.Dest.UpsertUser(ctx, converted); err != nil {
		return remoteErr(PlatformStream, "upsert user", err)
	}
	sc.logger(ctx).Debug().Str("user_id", converted.ID).Msg("Upserted user")
	return nil
}

// logger returns the request-scoped logger if one is attached to ctx.
func (sc *SyncConnector) logger(ctx context.Context) *zerolog.Logger {
	if log := zerolog.Ctx(ctx); log.GetLevel() != zerolog.Disabled {
		return log
	}
	return &sc.Log
}
