package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default timing, matching the one-second cadence of the host's status line.
const (
	DefaultPollInterval = time.Second
	DefaultClearDelay   = time.Second
)

// Config holds the options for New.
type Config struct {
	Sink         StatusSink    // nil discards status text
	Scheduler    Scheduler     // nil uses TimerScheduler
	PollInterval time.Duration // 0 uses DefaultPollInterval
	ClearDelay   time.Duration // 0 uses DefaultClearDelay
	Logger       *slog.Logger
}

// Queue executes Tasks strictly one at a time in FIFO order.
//
// State machine: Idle (no current task, nothing pending) and Running (a
// current task is set). Submit on an Idle queue starts the task at once and
// begins ticking. Each Tick either re-publishes the progress text of a live
// task, or joins a finished one (firing its callback), starts the next
// pending task, and stops ticking when the list is empty. A failed task never
// stops the queue.
//
// A Queue lives for the lifetime of the process; there is no terminal state.
type Queue struct {
	ctx          context.Context
	sink         StatusSink
	sched        Scheduler
	pollInterval time.Duration
	clearDelay   time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	pending []Task
	current Task
	running bool
	idle    chan struct{} // closed while Idle
}

// New creates an Idle queue. ctx is handed to every task at Start, so
// canceling it aborts in-flight remote calls.
func New(ctx context.Context, cfg Config) *Queue {
	q := &Queue{
		ctx:          ctx,
		sink:         cfg.Sink,
		sched:        cfg.Scheduler,
		pollInterval: cfg.PollInterval,
		clearDelay:   cfg.ClearDelay,
		logger:       cfg.Logger,
		idle:         make(chan struct{}),
	}

	close(q.idle)

	if q.sink == nil {
		q.sink = discardSink{}
	}

	if q.sched == nil {
		q.sched = TimerScheduler{}
	}

	if q.pollInterval <= 0 {
		q.pollInterval = DefaultPollInterval
	}

	if q.clearDelay <= 0 {
		q.clearDelay = DefaultClearDelay
	}

	if q.logger == nil {
		q.logger = slog.Default()
	}

	return q
}

// Submit appends t to the pending list. On an Idle queue the task starts
// immediately. Safe to call from callbacks.
func (q *Queue) Submit(t Task) {
	q.mu.Lock()
	q.pending = append(q.pending, t)

	if q.running {
		q.logger.Debug("queue: task enqueued",
			slog.String("task", t.Name()),
			slog.Int("pending", len(q.pending)),
		)
		q.mu.Unlock()

		return
	}

	q.running = true
	q.idle = make(chan struct{})
	q.startNextLocked()
	q.mu.Unlock()

	q.sched.AfterFunc(q.pollInterval, q.Tick)
}

// Tick inspects the current task. It never blocks on a live task and is a
// no-op when the queue is Idle.
func (q *Queue) Tick() {
	q.mu.Lock()
	cur := q.current

	if cur == nil {
		q.mu.Unlock()
		return
	}

	if !cur.IsFinished() {
		q.mu.Unlock()
		q.sink.SetStatus(cur.ProgressText())
		q.sched.AfterFunc(q.pollInterval, q.Tick)

		return
	}

	q.mu.Unlock()

	text := cur.FinishedText()

	// Join runs the callback, which may Submit further tasks. The lock is
	// released so those submissions land in pending behind this task.
	if err := cur.Join(); err != nil {
		q.logger.Warn("queue: task failed",
			slog.String("task", cur.Name()),
			slog.String("error", err.Error()),
		)
	}

	q.mu.Lock()

	if len(q.pending) > 0 {
		q.startNextLocked()
	} else {
		q.current = nil
		q.running = false
		close(q.idle)
	}

	running := q.running
	q.mu.Unlock()

	q.sink.SetStatus(text)

	if running {
		q.sched.AfterFunc(q.pollInterval, q.Tick)
		return
	}

	q.sched.AfterFunc(q.clearDelay, q.clearIfIdle)
}

// IsRunning reports whether a task is current.
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.running
}

// Pending returns the number of tasks waiting behind the current one.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// WaitIdle blocks until the queue is Idle or ctx is done. Tasks submitted by
// callbacks keep the queue Running, so this waits for whole cascades.
func (q *Queue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startNextLocked pops the head of pending and starts it. Caller holds mu.
func (q *Queue) startNextLocked() {
	t := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.current = t

	q.logger.Debug("queue: starting task",
		slog.String("task", t.Name()),
		slog.Int("pending", len(q.pending)),
	)

	t.Start(q.ctx)
}

// clearIfIdle clears the status line unless a new task started meanwhile.
func (q *Queue) clearIfIdle() {
	if q.IsRunning() {
		return
	}

	q.sink.SetStatus("")
}
