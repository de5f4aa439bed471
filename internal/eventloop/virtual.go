package eventloop

import (
	"container/heap"
	"sync"
	"time"
)

var _ Scheduler = (*Virtual)(nil)

// Virtual is a Scheduler with a manual clock. Nothing runs until Run or RunFor is
// called, and then everything runs on the calling goroutine. Time only moves when
// no task is ready, jumping straight to the next timer.
type Virtual struct {
	mu     sync.Mutex
	now    time.Time
	ready  []func()
	timers timerHeap
	seq    uint64
}

// NewVirtual creates a Virtual scheduler whose clock starts at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Post(fn func()) {
	if fn == nil {
		return
	}
	v.mu.Lock()
	v.ready = append(v.ready, fn)
	v.mu.Unlock()
}

func (v *Virtual) AfterFunc(d time.Duration, fn func()) {
	if d <= 0 {
		v.Post(fn)
		return
	}
	if fn == nil {
		return
	}
	v.mu.Lock()
	v.seq++
	heap.Push(&v.timers, &timer{due: v.now.Add(d), seq: v.seq, fn: fn})
	v.mu.Unlock()
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Pending reports the number of ready tasks and armed timers.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.ready) + v.timers.Len()
}

// Run executes tasks and fires timers until nothing is left.
func (v *Virtual) Run() {
	v.run(time.Time{}, false)
}

// RunFor executes tasks and fires timers due within d of the current virtual time,
// then leaves the clock at exactly now+d.
func (v *Virtual) RunFor(d time.Duration) {
	deadline := v.Now().Add(d)
	v.run(deadline, true)

	v.mu.Lock()
	if v.now.Before(deadline) {
		v.now = deadline
	}
	v.mu.Unlock()
}

func (v *Virtual) run(deadline time.Time, bounded bool) {
	for {
		fn, ok := v.next(deadline, bounded)
		if !ok {
			return
		}
		run(fn)
	}
}

func (v *Virtual) next(deadline time.Time, bounded bool) (func(), bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.ready) > 0 {
		fn := v.ready[0]
		v.ready[0] = nil
		v.ready = v.ready[1:]
		return fn, true
	}
	if v.timers.Len() == 0 {
		return nil, false
	}
	if bounded && v.timers[0].due.After(deadline) {
		return nil, false
	}
	t := heap.Pop(&v.timers).(*timer)
	if t.due.After(v.now) {
		v.now = t.due
	}
	return t.fn, true
}

type timer struct {
	due time.Time
	seq uint64
	fn  func()
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(*timer)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
