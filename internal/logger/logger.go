// Package logger provides the structured JSON logger shared by every entry point.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	RunIDKey        contextKey = "run_id"
	AccountIDKey    contextKey = "account_id"
	IdentityKey     contextKey = "identity"
	AWSRequestIDKey contextKey = "aws_request_id"
	FunctionARNKey  contextKey = "function_arn"
)

// contextKeys lists the keys copied from the context onto every record, in output order.
var contextKeys = []contextKey{RunIDKey, AccountIDKey, IdentityKey, AWSRequestIDKey, FunctionARNKey}

var (
	level         = new(slog.LevelVar)
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
)

// SetLevel changes the minimum level. Unknown names fall back to info.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a copy of ctx carrying value under key.
func With(ctx context.Context, key contextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func Info(ctx context.Context, msg string, attrs ...any) {
	defaultLogger.InfoContext(ctx, msg, appendContextAttrs(ctx, attrs)...)
}

func Warn(ctx context.Context, msg string, attrs ...any) {
	defaultLogger.WarnContext(ctx, msg, appendContextAttrs(ctx, attrs)...)
}

func Error(ctx context.Context, msg string, attrs ...any) {
	defaultLogger.ErrorContext(ctx, msg, appendContextAttrs(ctx, attrs)...)
}

func Debug(ctx context.Context, msg string, attrs ...any) {
	defaultLogger.DebugContext(ctx, msg, appendContextAttrs(ctx, attrs)...)
}

func appendContextAttrs(ctx context.Context, attrs []any) []any {
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}
