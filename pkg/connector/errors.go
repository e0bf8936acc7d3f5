// Copyright 2024-2026 Aiku AI

package connector

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnverified means the webhook signature did not match the body.
	ErrUnverified = errors.New("webhook signature verification failed")
	// ErrMalformedEvent means the envelope or payload could not be decoded.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// Platform names used in RemoteCallError.
const (
	PlatformChatkit = "chatkit"
	PlatformStream  = "stream"
)

// RemoteCallError is a failed call to either platform. Such failures are not
// retried internally; the webhook sender redelivers the batch instead.
type RemoteCallError struct {
	Platform string
	Op       string
	Err      error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Platform, e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

func remoteErr(platform, op string, err error) error {
	return &RemoteCallError{Platform: platform, Op: op, Err: err}
}

// ItemError ties a failure to the event and raw payload item it came from.
type ItemError struct {
	EventType EventType
	Index     int
	Item      json.RawMessage
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s item %d: %v", e.EventType, e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
