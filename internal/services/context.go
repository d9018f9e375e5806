package services

import (
	"context"
	"time"
)

type contextKey string

const (
	dateKey        contextKey = "date"
	publicationKey contextKey = "publication"
	requestIDKey   contextKey = "request_id"
)

// DateLayout is the canonical layout for meeting dates in keys and logs.
const DateLayout = "2006-01-02"

// WithDate annotates context with the meeting date being processed.
func WithDate(ctx context.Context, date time.Time) context.Context {
	if date.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, dateKey, date.Format(DateLayout))
}

// DateFromContext returns the meeting date if present.
func DateFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(dateKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPublication annotates context with a publication key (symbol_issue_lang).
func WithPublication(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, publicationKey, key)
}

// PublicationFromContext returns the publication key if present.
func PublicationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(publicationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
