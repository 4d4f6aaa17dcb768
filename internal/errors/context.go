package errors

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a type for context keys
type contextKey string

const (
	taskIDKey contextKey = "task_id"
)

// GenerateTaskID generates a new unique task ID
func GenerateTaskID() string {
	return uuid.New().String()
}

// WithTaskID adds a task ID to the context
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// GetTaskID retrieves the task ID from the context
func GetTaskID(ctx context.Context) string {
	if taskID, ok := ctx.Value(taskIDKey).(string); ok {
		return taskID
	}
	return ""
}

// TaskIDOrGenerate returns the task ID from context or generates a new one
func TaskIDOrGenerate(ctx context.Context) string {
	if taskID := GetTaskID(ctx); taskID != "" {
		return taskID
	}
	return GenerateTaskID()
}
