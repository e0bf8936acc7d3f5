// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/aiku/chatkit-stream-sync/pkg/connector/chatkit"
)

// Source is the read side of the source platform.
type Source interface {
	GetRoom(ctx context.Context, roomID, asUserID string) (*chatkit.Room, error)
	GetUsersByID(ctx context.Context, ids []string) ([]chatkit.User, error)
}

// Destination is the write side of the destination platform.
type Destination interface {
	UpsertUser(ctx context.Context, user *User) error
	UpsertUsers(ctx context.Context, users []*User) error
	// DeleteUser removes the user but keeps the messages they sent.
	DeleteUser(ctx context.Context, userID string) error
	// GetOrCreateChannel must treat an existing channel with the same type
	// and ID as success.
	GetOrCreateChannel(ctx context.Context, req *ChannelRequest) (Channel, error)
	UpdateMessage(ctx context.Context, msg *Message) error
	DeleteMessage(ctx context.Context, messageID string) error
}

// Channel is a handle to a channel that exists at the destination.
type Channel interface {
	Type() string
	ID() string
	AddMembers(ctx context.Context, userIDs []string) error
	RemoveMembers(ctx context.Context, userIDs []string) error
	SendMessage(ctx context.Context, msg *Message) error
	// UploadFile stores the upload in the channel and returns its public URL.
	UploadFile(ctx context.Context, upload *Upload) (string, error)
}

// User is a destination-ready user.
type User struct {
	ID     string
	Name   string
	Image  string
	Custom map[string]any
}

// Fields flattens the user into a single object. Custom keys override the
// defaults, except for the ID.
func (u *User) Fields() map[string]any {
	fields := make(map[string]any, len(u.Custom)+3)
	putNonEmpty(fields, "name", u.Name)
	putNonEmpty(fields, "image", u.Image)
	for k, v := range u.Custom {
		fields[k] = v
	}
	fields["id"] = u.ID
	return fields
}

// ChannelRequest describes the channel to get or create.
type ChannelRequest struct {
	Type        string
	ID          string
	Name        string
	Members     []string
	CreatedByID string
	Custom      map[string]any
}

// Data returns the channel's custom data: the name plus custom attributes,
// which override it.
func (r *ChannelRequest) Data() map[string]any {
	data := make(map[string]any, len(r.Custom)+1)
	putNonEmpty(data, "name", r.Name)
	for k, v := range r.Custom {
		data[k] = v
	}
	return data
}

// Message is a destination message.
type Message struct {
	ID          string
	UserID      string
	Text        string
	Attachments []*Attachment
	// Unhandled holds parts that could not be translated, verbatim, so a
	// client can render them with custom handling.
	Unhandled []json.RawMessage
}

// UnhandledPartsField is the custom message field carrying Message.Unhandled.
const UnhandledPartsField = "chatkit_unhandled_parts"

// Attachment describes a file that was relayed to the destination.
type Attachment struct {
	Type      string
	ID        string
	Name      string
	MIMEType  string
	Size      int64
	ImageURL  string
	TitleLink string
	AssetURL  string
	Custom    map[string]any
}

// Fields flattens the attachment into a single object. Custom keys override
// the defaults.
func (a *Attachment) Fields() map[string]any {
	fields := make(map[string]any, len(a.Custom)+8)
	putNonEmpty(fields, "type", a.Type)
	putNonEmpty(fields, "id", a.ID)
	putNonEmpty(fields, "title", a.Name)
	putNonEmpty(fields, "mime_type", a.MIMEType)
	if a.Size > 0 {
		fields["file_size"] = a.Size
	}
	putNonEmpty(fields, "image_url", a.ImageURL)
	putNonEmpty(fields, "title_link", a.TitleLink)
	putNonEmpty(fields, "asset_url", a.AssetURL)
	for k, v := range a.Custom {
		fields[k] = v
	}
	return fields
}

// Upload is a file to store in a channel on behalf of a user.
type Upload struct {
	Reader      io.Reader
	FileName    string
	ContentType string
	UserID      string
	Image       bool
}

func putNonEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// SyncConnector replays Chatkit webhook events against Stream.
type SyncConnector struct {
	Config *Config
	Source Source
	Dest   Destination
	Cache  *EntityCache

	// FS holds scratch files for attachment relays.
	FS afero.Fs
	// HTTPClient downloads attachments from the source platform.
	HTTPClient *http.Client

	Log zerolog.Logger
}

// NewSyncConnector wires the engine with a process-wide entity cache sized
// from cfg.
func NewSyncConnector(cfg *Config, src Source, dst Destination, log zerolog.Logger) *SyncConnector {
	return &SyncConnector{
		Config:     cfg,
		Source:     src,
		Dest:       dst,
		Cache:      NewEntityCache(cfg.Cache.Rooms, cfg.Cache.Users),
		FS:         afero.NewOsFs(),
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout()},
		Log:        log,
	}
}

func (sc *SyncConnector) newServer() *http.Server {
	return &http.Server{
		Addr:         sc.Config.ListenAddr,
		Handler:      sc.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: sc.Config.BatchTimeout(),
		IdleTimeout:  60 * time.Second,
	}
}

// Run serves the webhook endpoint until ctx is cancelled, then shuts the
// server down, giving in-flight batches up to Config.BatchTimeout to finish.
func (sc *SyncConnector) Run(ctx context.Context) error {
	server := sc.newServer()

	errCh := make(chan error, 1)
	go func() {
		sc.Log.Info().
			Str("addr", server.Addr).
			Str("path", sc.Config.WebhookPath).
			Msg("Starting webhook listener")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook listener failed: %w", err)
	case <-ctx.Done():
	}

	sc.Log.Info().
		Dur("grace_period", sc.Config.BatchTimeout()).
		Msg("Shutting down webhook listener")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.Config.BatchTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down webhook listener: %w", err)
	}
	return nil
}
