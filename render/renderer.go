// Package render paces incremental text for display.
//
// Providers deliver text in bursts of arbitrary size. A Renderer takes the latest full text
// of a response, works out what is new, and hands it to a display callback in fixed-size
// chunks at a steady rate, so a reader sees the response being typed out no matter how it
// arrived. Long deltas are typed faster, with bigger chunks, to bound their total time.
//
// All rendering state lives on a cooperative scheduler. AddText and Reset may be called from
// any goroutine and never wait for rendering.
package render

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/casualjim/chorus/internal/eventloop"
	"github.com/casualjim/chorus/pkg/slogx"
	"github.com/fogfish/opts"
)

const (
	DefaultChunkSize             = 100
	DefaultTypingSpeed           = 30 * time.Millisecond
	DefaultMaxTypingSpeed        = 5 * time.Millisecond
	DefaultLongResponseThreshold = 1000

	// DeltaPause separates the last chunk of a delta from the next delta.
	DeltaPause = 10 * time.Millisecond
)

var (
	// ChunkSize is the number of characters emitted per step.
	ChunkSize = opts.ForName[Renderer, int]("chunkSize")
	// TypingSpeed is the pause per ChunkSize characters of a regular delta.
	TypingSpeed = opts.ForName[Renderer, time.Duration]("typingSpeed")
	// MaxTypingSpeed is the pause per ChunkSize characters of a long delta.
	MaxTypingSpeed = opts.ForName[Renderer, time.Duration]("maxTypingSpeed")
	// LongResponseThreshold is the delta length, in characters, above which a delta is long.
	LongResponseThreshold = opts.ForName[Renderer, int]("longThreshold")
)

// OnChunk receives the accumulated text after every emitted chunk.
func OnChunk(fn func(text string)) opts.Option[Renderer] {
	return opts.Type[Renderer](func(r *Renderer) error {
		r.onChunk = fn
		return nil
	})
}

// OnComplete receives the final text once per session, when completion was requested and
// everything queued has been emitted.
func OnComplete(fn func(text string)) opts.Option[Renderer] {
	return opts.Type[Renderer](func(r *Renderer) error {
		r.onComplete = fn
		return nil
	})
}

// Scheduler replaces the event loop the renderer runs on.
func Scheduler(s eventloop.Scheduler) opts.Option[Renderer] {
	return opts.Type[Renderer](func(r *Renderer) error {
		if s == nil {
			return errors.New("scheduler cannot be nil")
		}
		r.scheduler = s
		return nil
	})
}

// Logger sets the logger used to report fallbacks and callback panics.
func Logger(l *slog.Logger) opts.Option[Renderer] {
	return opts.Type[Renderer](func(r *Renderer) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		r.logger = l
		return nil
	})
}

// Renderer paces one response at a time. Use Reset to retarget it to another response.
type Renderer struct {
	chunkSize      int
	typingSpeed    time.Duration
	maxTypingSpeed time.Duration
	longThreshold  int
	onChunk        func(string)
	onComplete     func(string)
	scheduler      eventloop.Scheduler
	logger         *slog.Logger

	// session is bumped by Reset; work scheduled under an older session is dropped.
	session atomic.Uint64
	text    atomic.Value

	// owned by the scheduler
	pending           []string
	current           string
	target            string
	rendering         bool
	run               uint64
	completeRequested bool
	completed         bool
	waiters           []chan struct{}
}

// New creates a Renderer. It panics when an option fails to apply.
func New(options ...opts.Option[Renderer]) *Renderer {
	r := &Renderer{
		chunkSize:      DefaultChunkSize,
		typingSpeed:    DefaultTypingSpeed,
		maxTypingSpeed: DefaultMaxTypingSpeed,
		longThreshold:  DefaultLongResponseThreshold,
	}
	if err := opts.Apply(r, options); err != nil {
		panic(err)
	}

	if r.chunkSize < 1 {
		r.chunkSize = DefaultChunkSize
	}
	if r.typingSpeed < 0 {
		r.typingSpeed = 0
	}
	if r.maxTypingSpeed < 0 {
		r.maxTypingSpeed = 0
	}
	if r.longThreshold < 0 {
		r.longThreshold = 0
	}
	if r.onChunk == nil {
		r.onChunk = func(string) {}
	}
	if r.onComplete == nil {
		r.onComplete = func(string) {}
	}
	if r.scheduler == nil {
		r.scheduler = eventloop.New()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With(slogx.LoggerName("render"))
	r.text.Store("")
	return r
}

// AddText offers the latest full text of the response. Text extending what was offered
// before is queued as a delta; anything else replaces the rendition from scratch. With
// complete set, OnComplete fires once everything queued has been shown.
func (r *Renderer) AddText(text string, complete bool) {
	session := r.session.Load()
	r.scheduler.Post(func() {
		if r.session.Load() != session {
			return
		}
		r.addText(session, text, complete)
	})
}

// Reset drops all queued text and the current rendition. Nothing scheduled before the call,
// including pending AddText calls, emits anything afterwards.
func (r *Renderer) Reset() {
	session := r.session.Add(1)
	r.text.Store("")
	r.scheduler.Post(func() {
		if r.session.Load() != session {
			return
		}
		r.pending = nil
		r.rendering = false
		r.run++
		r.completeRequested = false
		r.completed = false
		r.target = ""
		r.setCurrent("")
		r.notifyIdle()
	})
}

// Text returns the text emitted so far.
func (r *Renderer) Text() string {
	return r.text.Load().(string)
}

// Wait blocks until nothing is queued or being typed, or until ctx ends.
func (r *Renderer) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	r.scheduler.Post(func() {
		if !r.rendering && len(r.pending) == 0 {
			close(idle)
			return
		}
		r.waiters = append(r.waiters, idle)
	})

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Renderer) addText(session uint64, text string, complete bool) {
	if complete {
		r.completeRequested = true
	}

	if !utf8.ValidString(text) {
		r.logger.Warn("malformed text, rendering it in full", slog.Int("bytes", len(text)))
		r.fallback(text)
		return
	}

	if strings.HasPrefix(text, r.target) {
		if delta := text[len(r.target):]; delta != "" {
			r.pending = append(r.pending, delta)
		}
	} else {
		// the response was rewritten: start over from nothing
		r.pending = []string{text}
		r.setCurrent("")
		r.rendering = false
		r.run++
	}
	r.target = text

	if r.rendering {
		return
	}
	if len(r.pending) == 0 {
		r.finish()
		return
	}
	r.rendering = true
	r.run++
	r.nextDelta(session, r.run)
}

func (r *Renderer) live(session, run uint64) bool {
	return r.session.Load() == session && r.run == run
}

func (r *Renderer) nextDelta(session, run uint64) {
	if !r.live(session, run) {
		return
	}
	if len(r.pending) == 0 {
		r.rendering = false
		r.finish()
		return
	}

	delta := r.pending[0]
	r.pending[0] = ""
	r.pending = r.pending[1:]

	size, speed := r.chunkSize, r.typingSpeed
	if utf8.RuneCountInString(delta) > r.longThreshold {
		size, speed = r.chunkSize*2, r.maxTypingSpeed
	}
	r.emit(session, run, split(delta, size), speed)
}

func (r *Renderer) emit(session, run uint64, chunks []string, speed time.Duration) {
	if !r.live(session, run) {
		return
	}
	if len(chunks) == 0 {
		r.scheduler.AfterFunc(DeltaPause, func() { r.nextDelta(session, run) })
		return
	}

	chunk := chunks[0]
	r.setCurrent(r.current + chunk)
	if !r.call(r.onChunk, r.current) {
		r.fallback(r.target)
		return
	}

	delay := time.Duration(utf8.RuneCountInString(chunk)) * speed / time.Duration(r.chunkSize)
	rest := chunks[1:]
	r.scheduler.AfterFunc(delay, func() { r.emit(session, run, rest, speed) })
}

// finish runs when nothing is left to type.
func (r *Renderer) finish() {
	if r.completeRequested && !r.completed {
		r.completed = true
		r.call(r.onComplete, r.current)
	}
	r.notifyIdle()
}

// fallback shows text in full right away and completes the session.
func (r *Renderer) fallback(text string) {
	r.pending = nil
	r.rendering = false
	r.run++
	r.target = text
	r.setCurrent(text)
	r.call(r.onChunk, text)
	r.completeRequested = true
	r.finish()
}

// call invokes a display callback and reports whether it returned normally.
func (r *Renderer) call(fn func(string), text string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("render callback panicked", slogx.Panic(rec))
			ok = false
		}
	}()
	fn(text)
	return true
}

func (r *Renderer) setCurrent(text string) {
	r.current = text
	r.text.Store(text)
}

func (r *Renderer) notifyIdle() {
	for _, w := range r.waiters {
		close(w)
	}
	r.waiters = nil
}

// split cuts s into chunks of size characters; the last chunk may be shorter.
func split(s string, size int) []string {
	chunks := make([]string, 0, utf8.RuneCountInString(s)/size+1)
	for len(s) > 0 {
		i, n := 0, 0
		for i < len(s) && n < size {
			_, w := utf8.DecodeRuneInString(s[i:])
			i += w
			n++
		}
		chunks = append(chunks, s[:i])
		s = s[i:]
	}
	return chunks
}
