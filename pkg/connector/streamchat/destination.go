// Copyright 2024-2026 Aiku AI

// Package streamchat adapts the Stream Chat server SDK to the sync engine's
// Destination and Channel interfaces.
package streamchat

import (
	"context"
	"fmt"
	"net/http"

	stream "github.com/GetStream/stream-chat-go/v6"

	"github.com/aiku/chatkit-stream-sync/pkg/connector"
)

// Destination writes to a Stream Chat app.
type Destination struct {
	client *stream.Client
}

var _ connector.Destination = (*Destination)(nil)

// New creates a destination for the app identified by apiKey. An empty
// baseURL keeps the SDK default; a nil httpClient keeps the SDK client.
func New(apiKey, apiSecret, baseURL string, httpClient *http.Client) (*Destination, error) {
	client, err := stream.NewClient(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stream client: %w", err)
	}
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	if httpClient != nil {
		client.HTTP = httpClient
	}
	return &Destination{client: client}, nil
}

func (d *Destination) UpsertUser(ctx context.Context, user *connector.User) error {
	converted, err := ConvertUser(user)
	if err != nil {
		return err
	}
	_, err = d.client.UpsertUser(ctx, converted)
	return err
}

func (d *Destination) UpsertUsers(ctx context.Context, users []*connector.User) error {
	converted := make([]*stream.User, 0, len(users))
	for _, user := range users {
		c, err := ConvertUser(user)
		if err != nil {
			return err
		}
		converted = append(converted, c)
	}
	_, err := d.client.UpsertUsers(ctx, converted...)
	return err
}

// DeleteUser soft-deletes the user, which keeps their messages.
func (d *Destination) DeleteUser(ctx context.Context, userID string) error {
	_, err := d.client.DeleteUser(ctx, userID)
	return err
}

// GetOrCreateChannel relies on channel creation being idempotent in Stream:
// creating an existing type and ID returns the existing channel.
func (d *Destination) GetOrCreateChannel(ctx context.Context, req *connector.ChannelRequest) (connector.Channel, error) {
	resp, err := d.client.CreateChannel(ctx, req.Type, req.ID, req.CreatedByID, &stream.ChannelRequest{
		Members:   req.Members,
		ExtraData: req.Data(),
	})
	if err != nil {
		return nil, err
	}
	return &Channel{ch: resp.Channel}, nil
}

func (d *Destination) UpdateMessage(ctx context.Context, msg *connector.Message) error {
	converted, err := ConvertMessage(msg)
	if err != nil {
		return err
	}
	_, err = d.client.UpdateMessage(ctx, converted, msg.ID)
	return err
}

func (d *Destination) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := d.client.DeleteMessage(ctx, messageID)
	return err
}

// Channel wraps an SDK channel handle.
type Channel struct {
	ch *stream.Channel
}

var _ connector.Channel = (*Channel)(nil)

func (c *Channel) Type() string { return c.ch.Type }
func (c *Channel) ID() string   { return c.ch.ID }

func (c *Channel) AddMembers(ctx context.Context, userIDs []string) error {
	_, err := c.ch.AddMembers(ctx, userIDs)
	return err
}

func (c *Channel) RemoveMembers(ctx context.Context, userIDs []string) error {
	_, err := c.ch.RemoveMembers(ctx, userIDs, nil)
	return err
}

func (c *Channel) SendMessage(ctx context.Context, msg *connector.Message) error {
	converted, err := ConvertMessage(msg)
	if err != nil {
		return err
	}
	_, err = c.ch.SendMessage(ctx, converted, msg.UserID)
	return err
}

// UploadFile stores the upload through the image endpoint when upload.Image
// is set and the file endpoint otherwise. Stream infers the content type from
// the file itself.
func (c *Channel) UploadFile(ctx context.Context, upload *connector.Upload) (string, error) {
	req := stream.SendFileRequest{
		Reader:   upload.Reader,
		FileName: upload.FileName,
		User:     &stream.User{ID: upload.UserID},
	}
	var (
		resp *stream.SendFileResponse
		err  error
	)
	if upload.Image {
		resp, err = c.ch.SendImage(ctx, req)
	} else {
		resp, err = c.ch.SendFile(ctx, req)
	}
	if err != nil {
		return "", err
	}
	return resp.File, nil
}
