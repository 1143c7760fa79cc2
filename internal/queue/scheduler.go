package queue

import "time"

// Scheduler defers a function. The Queue uses it for its polling tick and
// for clearing the status line, so hosts that own their own event loop can
// supply their timer primitive.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// TimerScheduler runs deferred functions on time.AfterFunc goroutines.
type TimerScheduler struct{}

// AfterFunc implements Scheduler.
func (TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// StatusSink receives the text describing the current task. An empty string
// clears the status. Implementations must be safe for concurrent use.
type StatusSink interface {
	SetStatus(text string)
}

// StatusFunc adapts a function to StatusSink.
type StatusFunc func(text string)

// SetStatus implements StatusSink.
func (f StatusFunc) SetStatus(text string) {
	f(text)
}

type discardSink struct{}

func (discardSink) SetStatus(string) {}
