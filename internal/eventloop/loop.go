// Package eventloop provides single-threaded cooperative schedulers.
//
// A Scheduler runs posted tasks one at a time, in the order they were posted, so state that is
// only touched from scheduled tasks needs no further locking. Delayed tasks are posted to the
// same queue once they become due.
package eventloop

import (
	"log/slog"
	"sync"
	"time"

	"github.com/casualjim/chorus/pkg/slogx"
)

// Scheduler is the delayed-task abstraction shared by the dispatcher and the renderer.
type Scheduler interface {
	// Post queues fn to run after every task posted before it.
	Post(fn func())
	// AfterFunc queues fn once d has elapsed. A non-positive d behaves like Post.
	AfterFunc(d time.Duration, fn func())
	// Now reports the scheduler's notion of the current time.
	Now() time.Time
}

var _ Scheduler = (*Loop)(nil)

// Loop is a Scheduler backed by wall-clock timers. The goroutine draining the
// task queue only exists while tasks are pending, so an idle Loop costs nothing
// and needs no Close.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
}

// New creates an idle Loop.
func New() *Loop {
	return &Loop{}
}

func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	go l.drain()
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) {
	if d <= 0 {
		l.Post(fn)
		return
	}
	time.AfterFunc(d, func() { l.Post(fn) })
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}
		fn := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		run(fn)
	}
}

// run executes a single task, recovering a panic so the loop keeps draining.
func run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled task panicked", slogx.Panic(r))
		}
	}()
	fn()
}
