// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"go.mau.fi/util/exmime"

	"github.com/aiku/chatkit-stream-sync/pkg/connector/chatkit"
)

const genericMIMEType = "application/octet-stream"

// RelayAttachment downloads the attachment of part into a scratch file and
// uploads it to channel on behalf of authorID. The scratch file is removed
// before returning, whatever the outcome.
func (sc *SyncConnector) RelayAttachment(ctx context.Context, channel Channel, authorID string, part *chatkit.Part) (*Attachment, error) {
	att := part.Attachment
	if att == nil {
		return nil, fmt.Errorf("part of type %q has no attachment", part.Type)
	}
	log := sc.logger(ctx).With().
		Str("attachment_id", att.ID).
		Str("channel_id", channel.ID()).
		Logger()

	file, err := afero.TempFile(sc.FS, sc.Config.ScratchDir, "attachment-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	defer func() {
		_ = file.Close()
		if err := sc.FS.Remove(file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", file.Name()).Msg("Failed to remove scratch file")
		}
	}()

	size, err := sc.download(ctx, att.DownloadURL, file)
	if err != nil {
		return nil, remoteErr(PlatformChatkit, "download attachment", err)
	}

	mimeType := normalizeMIME(part.Type)
	if mimeType == "" || mimeType == genericMIMEType {
		if mimeType, err = sniffMIME(file); err != nil {
			return nil, err
		}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind scratch file: %w", err)
	}

	isImage := strings.HasPrefix(mimeType, "image/")
	url, err := channel.UploadFile(ctx, &Upload{
		Reader:      file,
		FileName:    uploadFileName(att.Name, mimeType),
		ContentType: mimeType,
		UserID:      authorID,
		Image:       isImage,
	})
	if err != nil {
		return nil, remoteErr(PlatformStream, "upload file", err)
	}

	if att.Size > 0 {
		size = att.Size
	}
	out := &Attachment{
		Type:     coarseType(mimeType),
		ID:       att.ID,
		Name:     att.Name,
		MIMEType: mimeType,
		Size:     size,
	}
	if isImage {
		out.ImageURL = url
		out.TitleLink = url
	} else {
		out.AssetURL = url
	}
	if len(att.CustomData) > 0 {
		out.Custom = make(map[string]any, len(att.CustomData))
		for k, v := range att.CustomData {
			out.Custom[k] = v
		}
	}

	log.Debug().
		Str("mime_type", mimeType).
		Int64("size", size).
		Msg("Relayed attachment")
	return out, nil
}

// download streams url into w and returns the number of bytes written.
func (sc *SyncConnector) download(ctx context.Context, url string, w io.Writer) (int64, error) {
	if url == "" {
		return 0, errors.New("attachment has no download URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := sc.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to write scratch file: %w", err)
	}
	return n, nil
}

func sniffMIME(file afero.File) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind scratch file: %w", err)
	}
	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return "", fmt.Errorf("failed to detect MIME type: %w", err)
	}
	return normalizeMIME(detected.String()), nil
}

// normalizeMIME lowercases a MIME type and drops its parameters.
func normalizeMIME(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

// coarseType returns the top-level segment of a MIME type.
func coarseType(mimeType string) string {
	top, _, _ := strings.Cut(mimeType, "/")
	if top == "" {
		return "file"
	}
	return top
}

func uploadFileName(name, mimeType string) string {
	if name != "" {
		return name
	}
	return "attachment" + exmime.ExtensionFromMimetype(mimeType)
}
