package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New builds a structured logger that writes through w (typically an
// *AsyncFileWriter, already Start()ed) in addition to stderr. Components
// should log structured fields — digest, stevedore, chunk_bytes, state —
// rather than formatted strings, matching the corpus's convention of
// key/value structured logging.
func New(w io.Writer, level slog.Level) *slog.Logger {
	var out io.Writer = os.Stderr
	if w != nil {
		out = io.MultiWriter(os.Stderr, w)
	}
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// Discard is a logger that drops everything; used by components and tests
// that don't care about log output.
var Discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// WithDigest returns a child logger with the digest field pre-bound.
func WithDigest(l *slog.Logger, digestHex string) *slog.Logger {
	return l.With("digest", digestHex)
}

// Context helpers mirror the corpus's habit of threading a logger through
// context.Context on request-scoped call chains (HTTP handlers, fetches).

type ctxKey struct{}

// IntoContext attaches l to ctx.
func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or Discard if none.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return Discard
}
