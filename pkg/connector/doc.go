// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package connector keeps a Stream Chat app in sync with a Chatkit instance
// by replaying Chatkit webhook events.
//
// # Core Types
//
// [SyncConnector] owns the webhook listener, the entity cache and the two
// platform adapters. [SyncConnector.HandleEvent] routes a verified [Event]
// to its handler and returns once every item of the batch has been handled.
//
// [Source] is the read side of Chatkit (rooms and users), implemented by
// the chatkit sub-package. [Destination] and [Channel] are the write side of
// Stream, implemented by the streamchat sub-package.
//
// # Ordering
//
// A channel is never created before its members exist at the destination,
// and a membership change is never applied before the affected users exist.
// Both go through [SyncConnector.EnsureUsers], which fetches and upserts all
// missing users of a request in one round trip each.
//
// # Sub-packages
//
//   - chatkit is the Chatkit REST client and webhook payload types.
//   - streamchat adapts the Stream Chat SDK.
//   - htmlfmt renders HTML inline parts as markdown.
package connector
