package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestID(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithSubject(ctx, "alice")
	ctx = WithSessionID(ctx, "s-1")

	id, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)

	sub, ok := Subject(ctx)
	assert.True(t, ok)
	assert.Equal(t, "alice", sub)

	sid, ok := SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "s-1", sid)
}

func TestEmptyValueIsAbsent(t *testing.T) {
	_, ok := Subject(WithSubject(context.Background(), ""))
	assert.False(t, ok)
}
