package services

import "context"

type contextKey string

const (
	updateIDKey  contextKey = "update_id"
	userIDKey    contextKey = "user_id"
	chatIDKey    contextKey = "chat_id"
	requestIDKey contextKey = "request_id"
)

// WithUpdateID annotates context with the inbound update identifier.
func WithUpdateID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, updateIDKey, id)
}

// UpdateIDFromContext extracts the update identifier if present.
func UpdateIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, updateIDKey)
}

// WithUserID annotates context with the sender's user id.
func WithUserID(ctx context.Context, id int64) context.Context {
	if id == 0 {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the sender's user id if present.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, userIDKey)
}

// WithChatID annotates context with the chat the update arrived in.
func WithChatID(ctx context.Context, id int64) context.Context {
	if id == 0 {
		return ctx
	}
	return context.WithValue(ctx, chatIDKey, id)
}

// ChatIDFromContext returns the chat id if present.
func ChatIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, chatIDKey)
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

func int64Value(ctx context.Context, key contextKey) (int64, bool) {
	switch val := ctx.Value(key).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
