// Package logging is the structured logger shared by the netlab engine, its
// control server and the demo runner.
//
// Records logged with a context that carries a request ID are stamped with
// it by the handler, so callers never add request_id by hand. A control RPC
// also parks a method-scoped logger on its context; engine code picks it up
// with FromContext.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field is a structured logging attribute.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field                 { return Field{Key: key, Value: value} }
func Int(key string, value int) Field                { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err attaches err under the "error" key. A nil error yields an empty
// string so call sites need not branch.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Op tags a record with the engine entity it concerns (device, connection,
// packet, simulation) and the operation applied to it.
func Op(entityType, operation string) []Field {
	return []Field{String("entity_type", entityType), String("operation", operation)}
}

// Logger is the logging surface used across the module.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config controls handler selection.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // json or text
	AddSource bool
	// Output receives log lines; nil means stdout.
	Output io.Writer
}

// New builds a slog-backed Logger.
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level), AddSource: cfg.AddSource}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	}
	return logger{l: slog.New(requestHandler{h})}
}

// NewFromEnv reads LOG_LEVEL and LOG_FORMAT, defaulting to text at info.
func NewFromEnv() Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		AddSource: true,
	})
}

// Noop returns a logger that drops every record.
func Noop() Logger { return logger{l: slog.New(slog.DiscardHandler)} }

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "warning") {
		name = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type logger struct {
	l *slog.Logger
}

func (g logger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return logger{l: g.l.With(args...)}
}

func (g logger) Debug(ctx context.Context, msg string, fields ...Field) {
	g.log(ctx, slog.LevelDebug, msg, fields)
}

func (g logger) Info(ctx context.Context, msg string, fields ...Field) {
	g.log(ctx, slog.LevelInfo, msg, fields)
}

func (g logger) Warn(ctx context.Context, msg string, fields ...Field) {
	g.log(ctx, slog.LevelWarn, msg, fields)
}

func (g logger) Error(ctx context.Context, msg string, fields ...Field) {
	g.log(ctx, slog.LevelError, msg, fields)
}

func (g logger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !g.l.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	g.l.LogAttrs(ctx, level, msg, attrs...)
}

// requestHandler stamps each record with the request ID carried by its
// context.
type requestHandler struct {
	slog.Handler
}

func (h requestHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := RequestIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h requestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestHandler{h.Handler.WithAttrs(attrs)}
}

func (h requestHandler) WithGroup(name string) slog.Handler {
	return requestHandler{h.Handler.WithGroup(name)}
}

// requestScope is what a control request carries on its context.
type requestScope struct {
	id  string
	log Logger
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) requestScope {
	if ctx == nil {
		return requestScope{}
	}
	sc, _ := ctx.Value(scopeKey{}).(requestScope)
	return sc
}

func withScope(ctx context.Context, sc requestScope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, sc)
}

// ContextWithRequestID records id as the request ID of ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	sc := scopeFrom(ctx)
	sc.id = id
	return withScope(ctx, sc)
}

// RequestIDFromContext returns the request ID of ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).id
}

// EnsureRequestID returns ctx with a request ID, minting a UUID when none
// is present.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return ContextWithRequestID(ctx, id), id
}

// ContextWithLogger parks l on ctx for the rest of the request.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	sc := scopeFrom(ctx)
	sc.log = l
	return withScope(ctx, sc)
}

// FromContext returns the logger parked on ctx, or fallback.
func FromContext(ctx context.Context, fallback Logger) Logger {
	if l := scopeFrom(ctx).log; l != nil {
		return l
	}
	if fallback == nil {
		return Noop()
	}
	return fallback
}
