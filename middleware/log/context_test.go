package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTraceIDContext(t *testing.T) {
	t.Run("keeps provided id", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "req-123")
		assert.Equal(t, "req-123", GetTraceID(ctx))
	})

	t.Run("generates uuid when empty", func(t *testing.T) {
		id := GetTraceID(WithTraceID(context.Background(), ""))
		_, err := uuid.Parse(id)
		require.NoError(t, err)
	})

	t.Run("preserves other values", func(t *testing.T) {
		type testKey string
		ctx := context.WithValue(context.Background(), testKey("k"), "v")
		ctx = WithTraceID(ctx, "trace-456")

		assert.Equal(t, "trace-456", GetTraceID(ctx))
		assert.Equal(t, "v", ctx.Value(testKey("k")))
	})
}

func TestGetTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetTraceID(context.WithValue(context.Background(), TraceIDKey, 12345)))
}

func TestNewTraceIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for range 100 {
		id := NewTraceID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
