package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Handlers and services enrich the context once (community, user, message) and every
// log line emitted further down the call chain carries them.
type LogFields struct {
	CommunityID    *string // Community (arena) the event belongs to
	UserID         *string // Authenticated author of the triggering message
	MessageID      *int64  // Message being ingested
	InterventionID *int64  // Intervention fired or resolved
	Component      string  // Component name (e.g., "facilitator.engine")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.CommunityID != nil {
		result.CommunityID = next.CommunityID
	}
	if next.UserID != nil {
		result.UserID = next.UserID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.InterventionID != nil {
		result.InterventionID = next.InterventionID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{UserID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
