package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/casualjim/chorus/internal/eventloop"
	"github.com/fogfish/opts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	clock     *eventloop.Virtual
	chunks    []string
	completed []string
	chunkAt   []time.Duration
	doneAt    []time.Duration
}

func newRecorder() *recorder {
	return &recorder{clock: eventloop.NewVirtual(epoch)}
}

func (rec *recorder) renderer(options ...opts.Option[Renderer]) *Renderer {
	base := []opts.Option[Renderer]{
		Scheduler(rec.clock),
		OnChunk(func(text string) {
			rec.chunks = append(rec.chunks, text)
			rec.chunkAt = append(rec.chunkAt, rec.clock.Now().Sub(epoch))
		}),
		OnComplete(func(text string) {
			rec.completed = append(rec.completed, text)
			rec.doneAt = append(rec.doneAt, rec.clock.Now().Sub(epoch))
		}),
	}
	return New(append(base, options...)...)
}

func TestRenderer_EmitsOnlyTheDelta(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer()

	r.AddText("AB", false)
	rec.clock.Run()
	r.AddText("ABCD", true)
	rec.clock.Run()

	assert.Equal(t, []string{"AB", "ABCD"}, rec.chunks)
	assert.Equal(t, []string{"ABCD"}, rec.completed)
	assert.Equal(t, "ABCD", r.Text())
}

func TestRenderer_DivergentTextStartsOver(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer()

	r.AddText("AB", false)
	rec.clock.Run()
	r.AddText("XY", true)
	rec.clock.Run()

	assert.Equal(t, []string{"AB", "XY"}, rec.chunks)
	assert.Equal(t, []string{"XY"}, rec.completed)
}

func TestRenderer_CompletesOnceWhenNothingQueued(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer()

	r.AddText("", true)
	rec.clock.Run()
	r.AddText("", true)
	rec.clock.Run()

	assert.Empty(t, rec.chunks)
	assert.Equal(t, []string{""}, rec.completed)
}

func TestRenderer_CompletionRequestedMidStream(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer(ChunkSize(2), TypingSpeed(10*time.Millisecond))

	r.AddText("abcd", true)
	r.AddText("abcdef", false)
	rec.clock.Run()

	assert.Equal(t, []string{"ab", "abcd", "abcdef"}, rec.chunks)
	assert.Equal(t, []string{"abcdef"}, rec.completed, "completion waits for everything queued")
}

func TestRenderer_Pacing(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer(ChunkSize(2), TypingSpeed(10*time.Millisecond))

	r.AddText("abcdef", true)
	rec.clock.Run()

	assert.Equal(t, []string{"ab", "abcd", "abcdef"}, rec.chunks)
	assert.Equal(t, []time.Duration{0, 10 * time.Millisecond, 20 * time.Millisecond}, rec.chunkAt)
	// last chunk delay plus the pause before looking for the next delta
	assert.Equal(t, []time.Duration{30*time.Millisecond + DeltaPause}, rec.doneAt)
}

func TestRenderer_CountsCharactersNotBytes(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer(ChunkSize(2), TypingSpeed(0))

	r.AddText("héllo✓", true)
	rec.clock.Run()

	assert.Equal(t, []string{"hé", "héll", "héllo✓"}, rec.chunks)
}

func TestRenderer_LongDeltasTypeFaster(t *testing.T) {
	options := []opts.Option[Renderer]{
		ChunkSize(10),
		TypingSpeed(30 * time.Millisecond),
		MaxTypingSpeed(5 * time.Millisecond),
		LongResponseThreshold(20),
	}

	short := newRecorder()
	rs := short.renderer(options...)
	rs.AddText(strings.Repeat("s", 20), true)
	short.clock.Run()

	long := newRecorder()
	rl := long.renderer(options...)
	rl.AddText(strings.Repeat("l", 40), true)
	long.clock.Run()

	require.Len(t, short.chunks, 2)
	require.Len(t, long.chunks, 2, "long deltas use double-size chunks")
	assert.Len(t, long.chunks[0], 20)

	// 2 chunks * 30ms vs 2 chunks * 20 chars * 5ms / 10
	assert.Equal(t, []time.Duration{60*time.Millisecond + DeltaPause}, short.doneAt)
	assert.Equal(t, []time.Duration{20*time.Millisecond + DeltaPause}, long.doneAt)
}

func TestRenderer_ExtendingWhileTypingDoesNotRepeat(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer(ChunkSize(2), TypingSpeed(10*time.Millisecond))

	r.AddText("abcd", false)
	rec.clock.RunFor(5 * time.Millisecond)
	require.Equal(t, []string{"ab"}, rec.chunks)

	r.AddText("abcdef", true)
	rec.clock.Run()

	assert.Equal(t, []string{"ab", "abcd", "abcdef"}, rec.chunks)
	for i := 1; i < len(rec.chunks); i++ {
		assert.True(t, strings.HasPrefix(rec.chunks[i], rec.chunks[i-1]))
	}
	assert.Equal(t, []string{"abcdef"}, rec.completed)
}

func TestRenderer_ResetDropsScheduledWork(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer(ChunkSize(1), TypingSpeed(10*time.Millisecond))

	r.AddText("abc", true)
	rec.clock.RunFor(15 * time.Millisecond)
	require.Equal(t, []string{"a", "ab"}, rec.chunks)

	r.Reset()
	r.AddText("xy", true)
	rec.clock.Run()

	assert.Equal(t, []string{"a", "ab", "x", "xy"}, rec.chunks)
	assert.Equal(t, []string{"xy"}, rec.completed)
}

func TestRenderer_ResetDropsEarlierAddText(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer()

	r.AddText("stale", true)
	r.Reset()
	r.AddText("fresh", true)
	rec.clock.Run()

	assert.Equal(t, []string{"fresh"}, rec.chunks)
	assert.Equal(t, []string{"fresh"}, rec.completed)
}

func TestRenderer_ResetClearsText(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer()

	r.AddText("hello", true)
	rec.clock.Run()
	require.Equal(t, "hello", r.Text())

	r.Reset()
	assert.Equal(t, "", r.Text(), "cleared before the loop runs the reset")
	rec.clock.Run()
	assert.Equal(t, "", r.Text())

	r.AddText("hello", true)
	rec.clock.Run()
	assert.Equal(t, []string{"hello", "hello"}, rec.completed, "a new session completes again")
}

func TestRenderer_MalformedTextFallsBack(t *testing.T) {
	rec := newRecorder()
	r := rec.renderer()
	bad := string([]byte{'o', 'k', 0xff})

	r.AddText("ok", false)
	rec.clock.Run()
	r.AddText(bad, false)
	rec.clock.Run()

	require.NotEmpty(t, rec.chunks)
	assert.Equal(t, bad, rec.chunks[len(rec.chunks)-1])
	assert.Equal(t, []string{bad}, rec.completed)
}

func TestRenderer_CallbackPanicFallsBack(t *testing.T) {
	rec := newRecorder()
	var calls []string
	r := New(
		Scheduler(rec.clock),
		ChunkSize(2),
		OnChunk(func(text string) {
			calls = append(calls, text)
			if len(calls) == 1 {
				panic("display gone")
			}
		}),
		OnComplete(func(text string) { rec.completed = append(rec.completed, text) }),
	)

	r.AddText("abcdef", false)
	assert.NotPanics(t, rec.clock.Run)

	assert.Equal(t, []string{"ab", "abcdef"}, calls)
	assert.Equal(t, []string{"abcdef"}, rec.completed)
	assert.Equal(t, 0, rec.clock.Pending())
}

func TestRenderer_Wait(t *testing.T) {
	done := make(chan string, 1)
	r := New(
		TypingSpeed(time.Millisecond),
		OnComplete(func(text string) { done <- text }),
	)

	r.AddText("hello world", true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))

	assert.Equal(t, "hello world", r.Text())
	select {
	case text := <-done:
		assert.Equal(t, "hello world", text)
	default:
		t.Fatal("completion should have fired before the renderer went idle")
	}
}

func TestRenderer_WaitHonoursContext(t *testing.T) {
	// nothing drives the virtual clock, so the probe never runs
	r := New(Scheduler(eventloop.NewVirtual(epoch)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.Canceled)
}

func TestNew_Normalises(t *testing.T) {
	r := New(
		ChunkSize(0),
		TypingSpeed(-time.Second),
		MaxTypingSpeed(-time.Second),
		LongResponseThreshold(-1),
		Scheduler(eventloop.NewVirtual(epoch)),
	)
	assert.Equal(t, DefaultChunkSize, r.chunkSize)
	assert.Zero(t, r.typingSpeed)
	assert.Zero(t, r.maxTypingSpeed)
	assert.Zero(t, r.longThreshold)

	assert.Panics(t, func() { New(Scheduler(nil)) })
	assert.Panics(t, func() { New(Logger(nil)) })
}

func TestSplit(t *testing.T) {
	assert.Empty(t, split("", 3))
	assert.Equal(t, []string{"abc", "de"}, split("abcde", 3))
	assert.Equal(t, []string{"日本", "語"}, split("日本語", 2))
}
