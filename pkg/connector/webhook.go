// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
)

// SignatureHeader carries the hex HMAC-SHA1 of the request body.
const SignatureHeader = "Webhook-Signature"

// MaxWebhookBody is the largest webhook body accepted.
const MaxWebhookBody = 10 << 20

// Router returns the HTTP handler serving the webhook endpoint and a health
// check.
func (sc *SyncConnector) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(sc.Log))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Handled request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post(sc.Config.WebhookPath, sc.ServeWebhook)
	return r
}

// ServeWebhook verifies, decodes and handles a single webhook delivery. The
// response is written only after the whole batch has been handled, so a
// non-2xx status tells the sender to redeliver. Once accepted, a batch runs
// to completion even if the sender hangs up.
func (sc *SyncConnector) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	log := hlog.FromRequest(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn().Int64("limit", tooLarge.Limit).Msg("Rejected oversized webhook")
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Warn().Err(err).Msg("Failed to read webhook body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := VerifySignature([]byte(sc.Config.WebhookSecret), body, r.Header.Get(SignatureHeader)); err != nil {
		log.Warn().Err(err).Msg("Rejected unverified webhook")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	evt, err := ParseEvent(body)
	if err != nil {
		log.Warn().Err(err).Msg("Rejected malformed webhook")
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	if err := sc.HandleEvent(ctx, evt); err != nil {
		status := statusForError(err)
		log.Err(err).
			Str("event_type", evt.Tag).
			Int("status", status).
			Msg("Failed to handle webhook")
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrUnverified):
		return http.StatusUnauthorized
	case onlyMalformed(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Sign returns the lowercase hex HMAC-SHA1 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the HMAC-SHA1 of body in constant
// time. Hex digits are accepted in either case.
func VerifySignature(secret, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing %s header", ErrUnverified, SignatureHeader)
	}
	given, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrUnverified)
	}
	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	if !hmac.Equal(given, mac.Sum(nil)) {
		return ErrUnverified
	}
	return nil
}
