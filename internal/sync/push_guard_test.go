package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPushGuard_BlocksAfterAttempts(t *testing.T) {
	t.Parallel()

	g := newPushGuard(testLogger(t))

	for i := range pushAttempts {
		assert.False(t, g.blocked("k", "edit"), "before failure %d", i+1)
		g.failure("k", "edit", "HTTP 500")
	}

	assert.True(t, g.blocked("k", "edit"))
	assert.False(t, g.blocked("other", "edit"))
}

func TestPushGuard_DifferentContentIsNotBlocked(t *testing.T) {
	t.Parallel()

	g := newPushGuard(testLogger(t))

	for range pushAttempts {
		g.failure("k", "edit", "HTTP 400")
	}

	assert.False(t, g.blocked("k", "edit again"))

	// A failure of the new content starts a fresh count.
	g.failure("k", "edit again", "HTTP 400")
	assert.False(t, g.blocked("k", "edit again"))
	assert.False(t, g.blocked("k", "edit"), "the older edit is no longer tracked")
}

func TestPushGuard_RetryAfterExpires(t *testing.T) {
	t.Parallel()

	g := newPushGuard(testLogger(t))

	now := time.Now()
	g.nowFunc = func() time.Time { return now }

	for range pushAttempts {
		g.failure("k", "edit", "timeout")
	}

	assert.True(t, g.blocked("k", "edit"))

	g.nowFunc = func() time.Time { return now.Add(pushRetryAfter + time.Second) }

	assert.False(t, g.blocked("k", "edit"))
}

func TestPushGuard_Forget(t *testing.T) {
	t.Parallel()

	g := newPushGuard(testLogger(t))

	for range pushAttempts {
		g.failure("k", "edit", "conflict")
	}

	g.forget("k")

	assert.False(t, g.blocked("k", "edit"))
}
