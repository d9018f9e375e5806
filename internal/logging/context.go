package logging

import (
	"context"
	"log/slog"

	"meetingmedia/internal/services"
)

// Structured field keys shared by every package.
const (
	FieldComponent     = "component"
	FieldDate          = "date"
	FieldPublication   = "publication" // symbol_issue_lang key
	FieldURL           = "url"
	FieldCorrelationID = "correlation_id" // sync run ID
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldImpact        = "impact"
)

// WithContext returns logger tagged with the meeting date, publication key
// and sync run ID carried by ctx, when present.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var attrs []Attr
	if date, ok := services.DateFromContext(ctx); ok {
		attrs = append(attrs, String(FieldDate, date))
	}
	if pub, ok := services.PublicationFromContext(ctx); ok {
		attrs = append(attrs, String(FieldPublication, pub))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldCorrelationID, id))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(Args(attrs...)...)
}
