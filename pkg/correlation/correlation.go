// Package correlation carries the ambient request identifier described in
// the framework's messaging model: a logical ID that follows a call chain
// across RPCs, async calls, events, HTTP, and WebSocket frames without
// explicit plumbing by handler authors.
//
// Go has no implicit thread-local storage, so propagation is done the way
// the Design Notes prescribe: an explicit context.Context value. Every
// kernel, timer, and saga entry point installs the ID into ctx before
// calling user code, and every outbound call reads it back out.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

// HeaderName is the HTTP header carrying the correlation ID in both
// directions, per the spec's HTTP surface.
const HeaderName = "X-Correlation-ID"

type contextKey struct{}

// New mints a collision-resistant correlation ID: 128 random bits rendered
// as lowercase hex without separators.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// fixed-width zero ID rather than panicking a dispatch goroutine.
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b[:])
}

// With returns a new context carrying id as the current correlation ID.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the correlation ID carried by ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// Ensure returns ctx unchanged if it already carries a correlation ID, or a
// derived context carrying a freshly minted one otherwise. It also returns
// the resolved ID for convenience at call sites that need to log it
// immediately.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	id := New()
	return With(ctx, id), id
}

// FromRequest extracts the correlation ID from an inbound HTTP request's
// X-Correlation-ID header, minting one if absent, and returns a context
// carrying it.
func FromRequest(r *http.Request) (context.Context, string) {
	if id := r.Header.Get(HeaderName); id != "" {
		return With(r.Context(), id), id
	}
	return Ensure(r.Context())
}

// SetResponseHeader writes the current correlation ID from ctx (if any) onto
// an outbound HTTP response, so callers observe the same ID they sent or
// were assigned.
func SetResponseHeader(ctx context.Context, w http.ResponseWriter) {
	if id, ok := FromContext(ctx); ok {
		w.Header().Set(HeaderName, id)
	}
}
