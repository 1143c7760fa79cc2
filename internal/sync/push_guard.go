package sync

import (
	"log/slog"
	"sync"
	"time"
)

// Automatic pushes of one edit stop after pushAttempts failures and resume
// after pushRetryAfter, or as soon as the buffer holds different content.
const (
	pushAttempts   = 3
	pushRetryAfter = 30 * time.Minute
)

// failedPush is the last edit of a note the server would not take.
type failedPush struct {
	content  string
	attempts int
	lastErr  string
	lastAt   time.Time
}

// pushGuard stops the save watcher from hammering the server with an edit
// it keeps rejecting. A failure only counts against the exact content that
// was pushed: editing the note again, or the note being refreshed from the
// server, gives it a clean slate.
type pushGuard struct {
	mu      sync.Mutex
	failed  map[string]*failedPush
	logger  *slog.Logger
	nowFunc func() time.Time
}

func newPushGuard(logger *slog.Logger) *pushGuard {
	return &pushGuard{
		failed:  make(map[string]*failedPush),
		logger:  logger,
		nowFunc: time.Now,
	}
}

// blocked reports whether pushing content as key's body already failed
// pushAttempts times within pushRetryAfter.
func (g *pushGuard) blocked(key, content string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	f, ok := g.failed[key]
	if !ok || f.content != content {
		return false
	}

	if g.nowFunc().Sub(f.lastAt) > pushRetryAfter {
		delete(g.failed, key)
		return false
	}

	return f.attempts >= pushAttempts
}

// failure counts a rejected push of content.
func (g *pushGuard) failure(key, content, errMsg string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()

	f, ok := g.failed[key]
	if !ok || f.content != content || now.Sub(f.lastAt) > pushRetryAfter {
		f = &failedPush{content: content}
		g.failed[key] = f
	}

	f.attempts++
	f.lastErr = errMsg
	f.lastAt = now

	if f.attempts == pushAttempts {
		g.logger.Warn("holding back edit after repeated push failures",
			slog.String("key", key),
			slog.Int("attempts", f.attempts),
			slog.Int("bytes", len(content)),
			slog.String("last_error", errMsg),
			slog.Duration("retry_after", pushRetryAfter),
		)
	}
}

// forget drops key's record after a successful push or a server refresh.
func (g *pushGuard) forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.failed, key)
}
