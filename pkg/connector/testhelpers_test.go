// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/aiku/chatkit-stream-sync/pkg/connector/chatkit"
)

var errFake = errors.New("fake remote failure")

// sourceCall records a Chatkit lookup made during a test.
type sourceCall struct {
	Op       string
	RoomID   string
	AsUserID string
	UserIDs  []string
}

// fakeSource is an in-memory Chatkit. It records calls and serves canned
// rooms and users.
type fakeSource struct {
	mu    sync.Mutex
	calls []sourceCall

	// Rooms maps room ID to the room returned by GetRoom.
	Rooms map[string]*chatkit.Room
	// Users maps user ID to the user returned by GetUsersByID.
	Users map[string]chatkit.User
	// Fail makes the named operation ("get_room", "get_users") fail.
	Fail map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		Rooms: make(map[string]*chatkit.Room),
		Users: make(map[string]chatkit.User),
		Fail:  make(map[string]bool),
	}
}

func (f *fakeSource) AddUsers(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.Users[id] = chatkit.User{ID: id, Name: "User " + id}
	}
}

func (f *fakeSource) AddRoom(room *chatkit.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rooms[room.ID] = room
}

func (f *fakeSource) GetRoom(_ context.Context, roomID, asUserID string) (*chatkit.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sourceCall{Op: "get_room", RoomID: roomID, AsUserID: asUserID})
	if f.Fail["get_room"] {
		return nil, errFake
	}
	room, ok := f.Rooms[roomID]
	if !ok {
		return nil, &chatkit.APIError{Status: http.StatusNotFound, ErrorType: "services/chatkit/not_found/room_not_found"}
	}
	cp := *room
	return &cp, nil
}

func (f *fakeSource) GetUsersByID(_ context.Context, ids []string) ([]chatkit.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sourceCall{Op: "get_users", UserIDs: append([]string(nil), ids...)})
	if f.Fail["get_users"] {
		return nil, errFake
	}
	var users []chatkit.User
	for _, id := range ids {
		if user, ok := f.Users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (f *fakeSource) Calls() []sourceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]sourceCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func (f *fakeSource) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// destCall records a Stream write made during a test.
type destCall struct {
	Op        string
	ChannelID string
	IDs       []string
	Message   *Message
	Upload    string
}

// fakeDestination is an in-memory Stream app. Channels and users it creates
// are kept so tests can check ordering invariants.
type fakeDestination struct {
	mu    sync.Mutex
	calls []destCall

	Users    map[string]*User
	Channels map[string]*fakeChannel
	// Fail makes the named operation fail, e.g. "upsert_users" or
	// "send_message".
	Fail map[string]bool
	// FailMessages makes send_message fail for the given message IDs only.
	FailMessages map[string]bool
	// UploadURL is returned by uploads. Defaults to a fixed CDN URL.
	UploadURL string

	// violations collects ordering errors observed while recording.
	violations []string
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{
		Users:        make(map[string]*User),
		Channels:     make(map[string]*fakeChannel),
		Fail:         make(map[string]bool),
		FailMessages: make(map[string]bool),
		UploadURL:    "https://cdn.example.com/uploaded",
	}
}

func (f *fakeDestination) record(c destCall) error {
	f.calls = append(f.calls, c)
	if f.Fail[c.Op] {
		return fmt.Errorf("%s: %w", c.Op, errFake)
	}
	return nil
}

func (f *fakeDestination) requireUsers(op string, ids []string) {
	for _, id := range ids {
		if _, ok := f.Users[id]; !ok {
			f.violations = append(f.violations, fmt.Sprintf("%s referenced unknown user %q", op, id))
		}
	}
}

func (f *fakeDestination) UpsertUser(_ context.Context, user *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(destCall{Op: "upsert_user", IDs: []string{user.ID}}); err != nil {
		return err
	}
	f.Users[user.ID] = user
	return nil
}

func (f *fakeDestination) UpsertUsers(_ context.Context, users []*User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	if err := f.record(destCall{Op: "upsert_users", IDs: ids}); err != nil {
		return err
	}
	for _, u := range users {
		f.Users[u.ID] = u
	}
	return nil
}

func (f *fakeDestination) DeleteUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(destCall{Op: "delete_user", IDs: []string{userID}}); err != nil {
		return err
	}
	delete(f.Users, userID)
	return nil
}

func (f *fakeDestination) GetOrCreateChannel(_ context.Context, req *ChannelRequest) (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(destCall{Op: "get_or_create_channel", ChannelID: req.ID, IDs: req.Members}); err != nil {
		return nil, err
	}
	f.requireUsers("get_or_create_channel", req.Members)
	key := req.Type + ":" + req.ID
	ch, ok := f.Channels[key]
	if !ok {
		ch = &fakeChannel{dest: f, typ: req.Type, id: req.ID, Request: req, Members: append([]string(nil), req.Members...)}
		f.Channels[key] = ch
	}
	return ch, nil
}

func (f *fakeDestination) UpdateMessage(_ context.Context, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record(destCall{Op: "update_message", Message: msg})
}

func (f *fakeDestination) DeleteMessage(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record(destCall{Op: "delete_message", IDs: []string{messageID}})
}

func (f *fakeDestination) Calls() []destCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]destCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func (f *fakeDestination) Ops() []string {
	calls := f.Calls()
	ops := make([]string, 0, len(calls))
	for _, c := range calls {
		ops = append(ops, c.Op)
	}
	return ops
}

func (f *fakeDestination) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *fakeDestination) Violations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.violations...)
}

func (f *fakeDestination) Channel(typ, id string) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Channels[typ+":"+id]
}

// fakeChannel records into its destination so call order is global.
type fakeChannel struct {
	dest    *fakeDestination
	typ, id string

	Request *ChannelRequest
	Members []string
	// Uploaded holds the bytes of every upload, in order.
	Uploaded [][]byte
}

func (c *fakeChannel) Type() string { return c.typ }
func (c *fakeChannel) ID() string   { return c.id }

func (c *fakeChannel) AddMembers(_ context.Context, userIDs []string) error {
	c.dest.mu.Lock()
	defer c.dest.mu.Unlock()
	if err := c.dest.record(destCall{Op: "add_members", ChannelID: c.id, IDs: userIDs}); err != nil {
		return err
	}
	c.dest.requireUsers("add_members", userIDs)
	c.Members = append(c.Members, userIDs...)
	return nil
}

func (c *fakeChannel) RemoveMembers(_ context.Context, userIDs []string) error {
	c.dest.mu.Lock()
	defer c.dest.mu.Unlock()
	if err := c.dest.record(destCall{Op: "remove_members", ChannelID: c.id, IDs: userIDs}); err != nil {
		return err
	}
	remove := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		remove[id] = true
	}
	kept := c.Members[:0]
	for _, id := range c.Members {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	c.Members = kept
	return nil
}

func (c *fakeChannel) SendMessage(_ context.Context, msg *Message) error {
	c.dest.mu.Lock()
	defer c.dest.mu.Unlock()
	if err := c.dest.record(destCall{Op: "send_message", ChannelID: c.id, Message: msg}); err != nil {
		return err
	}
	if c.dest.FailMessages[msg.ID] {
		return fmt.Errorf("send_message %s: %w", msg.ID, errFake)
	}
	return nil
}

func (c *fakeChannel) UploadFile(_ context.Context, upload *Upload) (string, error) {
	data, err := io.ReadAll(upload.Reader)
	if err != nil {
		return "", err
	}
	c.dest.mu.Lock()
	defer c.dest.mu.Unlock()
	op := "upload_file"
	if upload.Image {
		op = "upload_image"
	}
	if err := c.dest.record(destCall{Op: op, ChannelID: c.id, IDs: []string{upload.UserID}, Upload: upload.ContentType}); err != nil {
		return "", err
	}
	c.Uploaded = append(c.Uploaded, data)
	return c.dest.UploadURL, nil
}

func testConfig() *Config {
	cfg := &Config{
		WebhookSecret: "test-secret",
		Chatkit:       ChatkitConfig{InstanceLocator: "v1:test:instance", Key: "key:secret"},
		Stream:        StreamConfig{APIKey: "key", APISecret: "secret"},
	}
	cfg.PostProcess()
	return cfg
}

const testScratchDir = "/scratch"

// newTestConnector builds a connector over the fakes with an in-memory
// scratch filesystem.
func newTestConnector(src *fakeSource, dst *fakeDestination) *SyncConnector {
	cfg := testConfig()
	cfg.ScratchDir = testScratchDir
	sc := NewSyncConnector(cfg, src, dst, zerolog.Nop())
	sc.FS = afero.NewMemMapFs()
	_ = sc.FS.MkdirAll(testScratchDir, 0o700)
	return sc
}

// newFileServer serves body for every request and counts hits.
func newFileServer(status int, contentType string, body []byte) (*httptest.Server, *int) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	return srv, &hits
}

// scratchFiles lists the files left in the scratch directory.
func scratchFiles(sc *SyncConnector) []string {
	var files []string
	_ = afero.Walk(sc.FS, testScratchDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files
}
