// Package correlation ties log lines to the request that produced them.
// The server middleware stamps each request with a short ID; the slog
// handler here picks it up from the context so individual call sites never
// have to pass it around.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
)

const attrKey = "correlation_id"

type contextKey struct{}

// NewID returns a fresh 8-character hex ID. Collisions are acceptable,
// the ID only needs to be unique among requests close together in time.
func NewID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// WithID stores id in the context for later log enrichment.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// ID reports the ID stored in ctx, if any. An empty stored value counts
// as absent.
func ID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// Handler decorates every record passing through it with the context's
// correlation ID. Records logged without a context, or with one that was
// never stamped, pass through untouched.
type Handler struct {
	next slog.Handler
}

var _ slog.Handler = (*Handler)(nil)

func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r.AddAttrs(slog.String(attrKey, id))
	}
	return h.next.Handle(ctx, r)
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}
