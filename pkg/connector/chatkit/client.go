// Copyright 2024-2026 Aiku AI

package chatkit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultHost = "pusherplatform.io"
	servicePath = "/services/chatkit/v6/"
	tokenTTL    = time.Hour

	// maxErrorBody caps how much of a failed response is read for the error.
	maxErrorBody = 64 << 10
)

// Client talks to the Chatkit v6 REST API with server (sudo) tokens.
type Client struct {
	// BaseURL is the instance root, e.g.
	// https://us1.pusherplatform.io/services/chatkit/v6/<instance-id>.
	BaseURL string

	instanceID string
	keyID      string
	keySecret  []byte
	httpClient *http.Client
	now        func() time.Time
}

// APIError is a non-2xx response from Chatkit.
type APIError struct {
	Status      int    `json:"-"`
	ErrorType   string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.ErrorType == "" {
		return fmt.Sprintf("chatkit: HTTP %d", e.Status)
	}
	return fmt.Sprintf("chatkit: HTTP %d: %s: %s", e.Status, e.ErrorType, e.Description)
}

// ParseInstanceLocator splits a locator of the form v1:<cluster>:<instance-id>.
func ParseInstanceLocator(locator string) (cluster, instanceID string, err error) {
	parts := strings.Split(locator, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("invalid instance locator %q", locator)
	}
	return parts[1], parts[2], nil
}

// ParseKey splits a key of the form <key-id>:<key-secret>.
func ParseKey(key string) (keyID, keySecret string, err error) {
	keyID, keySecret, ok := strings.Cut(key, ":")
	if !ok || keyID == "" || keySecret == "" {
		return "", "", fmt.Errorf("invalid key: expected <id>:<secret>")
	}
	return keyID, keySecret, nil
}

// NewClient creates a client for the instance named by instanceLocator. If
// httpClient is nil, http.DefaultClient is used.
func NewClient(instanceLocator, key string, httpClient *http.Client) (*Client, error) {
	cluster, instanceID, err := ParseInstanceLocator(instanceLocator)
	if err != nil {
		return nil, err
	}
	keyID, keySecret, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		BaseURL:    "https://" + cluster + "." + defaultHost + servicePath + instanceID,
		instanceID: instanceID,
		keyID:      keyID,
		keySecret:  []byte(keySecret),
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Token signs a server token acting as userID. An empty userID yields a
// token without a subject, which is enough for instance-wide reads.
func (c *Client) Token(userID string) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"instance": c.instanceID,
		"iss":      "api_keys/" + c.keyID,
		"iat":      now.Unix(),
		"exp":      now.Add(tokenTTL).Unix(),
		"su":       true,
	}
	if userID != "" {
		claims["sub"] = userID
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.keySecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// GetRoom fetches a room as seen by asUserID.
func (c *Client) GetRoom(ctx context.Context, roomID, asUserID string) (*Room, error) {
	var room Room
	if err := c.get(ctx, "/rooms/"+url.PathEscape(roomID), nil, asUserID, &room); err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	return &room, nil
}

// GetUsersByID fetches all of ids in a single request.
func (c *Client) GetUsersByID(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := url.Values{}
	for _, id := range ids {
		query.Add("id", id)
	}
	var users []User
	if err := c.get(ctx, "/users_by_ids", query, "", &users); err != nil {
		return nil, fmt.Errorf("failed to get %d users: %w", len(ids), err)
	}
	return users, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, asUserID string, out any) error {
	token, err := c.Token(asUserID)
	if err != nil {
		return err
	}
	target := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
