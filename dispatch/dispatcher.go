package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/casualjim/chorus/internal/eventloop"
	"github.com/casualjim/chorus/pkg/slogx"
	"github.com/casualjim/chorus/pkg/uuidx"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	DefaultMaxConcurrentRequests = 5
	DefaultRetryCount            = 2
	DefaultRetryDelay            = time.Second
)

const unknownError = "unknown error"

// ErrQueueFull is the failure recorded for jobs refused by a bounded queue.
var ErrQueueFull = errors.New("dispatch queue is full")

var (
	// MaxConcurrentRequests bounds how many invocations run at the same time.
	MaxConcurrentRequests = opts.ForName[Dispatcher, int]("maxConcurrent")
	// RetryCount is how many times a failed invocation is retried before giving up.
	RetryCount = opts.ForName[Dispatcher, int]("retryCount")
	// RetryDelay is the backoff base: retry n waits RetryDelay * 2^(n-1).
	RetryDelay = opts.ForName[Dispatcher, time.Duration]("retryDelay")
	// MaxQueued caps the number of jobs waiting for a slot. Zero leaves the queue unbounded.
	MaxQueued = opts.ForName[Dispatcher, int]("maxQueued")
)

// Scheduler replaces the event loop the dispatcher coordinates on.
func Scheduler(s eventloop.Scheduler) opts.Option[Dispatcher] {
	return opts.Type[Dispatcher](func(d *Dispatcher) error {
		if s == nil {
			return errors.New("scheduler cannot be nil")
		}
		d.scheduler = s
		return nil
	})
}

// Observe adds an observer of job transitions.
func Observe(o Observer) opts.Option[Dispatcher] {
	return opts.Type[Dispatcher](func(d *Dispatcher) error {
		if o == nil {
			return errors.New("observer cannot be nil")
		}
		d.observers = append(d.observers, o)
		return nil
	})
}

// Logger sets the logger used for retry and failure reporting.
func Logger(l *slog.Logger) opts.Option[Dispatcher] {
	return opts.Type[Dispatcher](func(d *Dispatcher) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		d.logger = l
		return nil
	})
}

// Dispatcher runs invocations under a shared concurrency budget.
// It is safe to call Dispatch from several goroutines; all batches share one queue.
type Dispatcher struct {
	maxConcurrent int
	retryCount    int
	retryDelay    time.Duration
	maxQueued     int

	scheduler eventloop.Scheduler
	observers Observers
	observer  Observer
	logger    *slog.Logger

	// owned by the scheduler
	queue  []*job
	active int
}

// New creates a Dispatcher. It panics when an option fails to apply.
func New(options ...opts.Option[Dispatcher]) *Dispatcher {
	d := &Dispatcher{
		maxConcurrent: DefaultMaxConcurrentRequests,
		retryCount:    DefaultRetryCount,
		retryDelay:    DefaultRetryDelay,
	}
	if err := opts.Apply(d, options); err != nil {
		panic(err)
	}

	if d.maxConcurrent < 1 {
		d.maxConcurrent = 1
	}
	if d.retryCount < 0 {
		d.retryCount = 0
	}
	if d.retryDelay < 0 {
		d.retryDelay = 0
	}
	if d.maxQueued < 0 {
		d.maxQueued = 0
	}
	if d.scheduler == nil {
		d.scheduler = eventloop.New()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With(slogx.LoggerName("dispatch"))

	switch len(d.observers) {
	case 0:
		d.observer = nopObserver{}
	case 1:
		d.observer = d.observers[0]
	default:
		d.observer = d.observers
	}
	return d
}

type job struct {
	id       uuid.UUID
	model    string
	invoke   Invocation
	metadata Metadata
	retries  int
	enqueued time.Time
	ctx      context.Context
	batch    *batch
}

type batch struct {
	outcomes  *orderedmap.OrderedMap[string, Outcome]
	remaining int
	future    CompletableFuture[*Results]
}

// ProcessRequests runs every request to a terminal outcome and returns them all.
func (d *Dispatcher) ProcessRequests(ctx context.Context, requests *Requests, metadata Metadata) *Results {
	results, _ := d.Dispatch(ctx, requests, metadata).Get()
	return results
}

// Dispatch enqueues every request and returns immediately. The future resolves once every
// job has succeeded or exhausted its retries; it never resolves with an error.
func (d *Dispatcher) Dispatch(ctx context.Context, requests *Requests, metadata Metadata) Future[*Results] {
	fut := NewFuture[*Results]()
	if requests == nil || requests.Len() == 0 {
		fut.Complete(newResults())
		return fut
	}

	b := &batch{
		outcomes:  orderedmap.New[string, Outcome](),
		remaining: requests.Len(),
		future:    fut,
	}
	jobs := make([]*job, 0, requests.Len())
	for pair := requests.Oldest(); pair != nil; pair = pair.Next() {
		// placeholder keeps the submission order in the results
		b.outcomes.Set(pair.Key, Outcome{Model: pair.Key})
		jobs = append(jobs, &job{
			id:       uuidx.New(),
			model:    pair.Key,
			invoke:   pair.Value,
			metadata: metadata,
			ctx:      ctx,
			batch:    b,
		})
	}

	d.scheduler.Post(func() {
		now := d.scheduler.Now()
		for _, j := range jobs {
			j.enqueued = now
			d.enqueue(j)
			// free slots take jobs before the next one counts against MaxQueued
			d.pump()
		}
	})
	return fut
}

func (d *Dispatcher) enqueue(j *job) {
	if j.invoke == nil {
		d.fail(j, errors.New("no invocation for model"))
		return
	}
	if d.maxQueued > 0 && len(d.queue) >= d.maxQueued {
		d.fail(j, ErrQueueFull)
		return
	}
	d.queue = append(d.queue, j)
}

// pump admits queued jobs while execution slots are free.
func (d *Dispatcher) pump() {
	for d.active < d.maxConcurrent && len(d.queue) > 0 {
		j := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.active++
		d.start(j)
	}
}

func (d *Dispatcher) start(j *job) {
	attempt := j.retries + 1
	d.observer.OnAdmit(j.model, attempt)

	ctx := withJob(j.ctx, JobInfo{
		ID:       j.id,
		Model:    j.model,
		Attempt:  attempt,
		Metadata: j.metadata,
	})
	go func() {
		text, err := invoke(ctx, j.invoke)
		d.scheduler.Post(func() { d.settle(j, text, err) })
	}()
}

func invoke(ctx context.Context, fn Invocation) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (d *Dispatcher) settle(j *job, text string, err error) {
	d.active--
	defer d.pump()

	if err == nil {
		d.resolve(j, Outcome{Text: text})
		return
	}

	if j.retries >= d.retryCount {
		d.fail(j, err)
		return
	}

	j.retries++
	delay := Backoff(d.retryDelay, j.retries)
	d.logger.Warn("invocation failed, retrying",
		slogx.Model(j.model),
		slogx.Job(j.id),
		slogx.Attempt(j.retries),
		slogx.Elapsed("delay_ms", delay),
		slogx.Error(err),
	)
	d.observer.OnRetry(j.model, j.retries, delay, err)
	d.scheduler.AfterFunc(delay, func() {
		// retried jobs go to the head of the line
		d.queue = slices.Insert(d.queue, 0, j)
		d.pump()
	})
}

func (d *Dispatcher) fail(j *job, err error) {
	msg := err.Error()
	if msg == "" {
		msg = unknownError
	}
	d.logger.Error("invocation failed",
		slogx.Model(j.model),
		slogx.Job(j.id),
		slogx.Attempt(j.retries+1),
		slogx.Error(err),
	)
	d.resolve(j, Outcome{Error: msg})
}

func (d *Dispatcher) resolve(j *job, o Outcome) {
	now := d.scheduler.Now()
	o.Model = j.model
	o.Attempts = j.retries + 1
	o.CompletedAt = completedAt(now)

	b := j.batch
	b.outcomes.Set(j.model, o)
	b.remaining--
	d.observer.OnSettle(j.model, o, now.Sub(j.enqueued))

	if b.remaining == 0 {
		b.future.Complete(&Results{outcomes: b.outcomes})
	}
}
