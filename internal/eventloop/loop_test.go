package eventloop

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsTasksInPostOrder(t *testing.T) {
	l := New()
	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	wg.Add(100)
	for i := range 100 {
		l.Post(func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_NeverRunsTasksConcurrently(t *testing.T) {
	l := New()
	var active, peak atomic.Int32
	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				wg.Add(1)
				l.Post(func() {
					defer wg.Done()
					n := active.Add(1)
					if n > peak.Load() {
						peak.Store(n)
					}
					time.Sleep(10 * time.Microsecond)
					active.Add(-1)
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestLoop_AfterFunc(t *testing.T) {
	l := New()
	done := make(chan time.Time, 1)
	start := time.Now()
	l.AfterFunc(20*time.Millisecond, func() { done <- time.Now() })

	select {
	case at := <-done:
		assert.GreaterOrEqual(t, at.Sub(start), 20*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestLoop_SurvivesPanickingTask(t *testing.T) {
	l := New()
	done := make(chan struct{})
	l.Post(func() { panic("boom") })
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped draining after a panic")
	}
}

func TestVirtual_AdvancesToNextTimer(t *testing.T) {
	start := time.Unix(0, 0)
	v := NewVirtual(start)

	var fired []time.Duration
	record := func() { fired = append(fired, v.Now().Sub(start)) }

	v.AfterFunc(30*time.Millisecond, record)
	v.AfterFunc(10*time.Millisecond, func() {
		record()
		v.AfterFunc(5*time.Millisecond, record)
	})
	v.Post(record)

	assert.Equal(t, 3, v.Pending())
	v.Run()

	assert.Equal(t, []time.Duration{0, 10 * time.Millisecond, 15 * time.Millisecond, 30 * time.Millisecond}, fired)
	assert.Equal(t, 0, v.Pending())
}

func TestVirtual_EqualDueTimesKeepScheduleOrder(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))
	var got []string
	v.AfterFunc(time.Second, func() { got = append(got, "a") })
	v.AfterFunc(time.Second, func() { got = append(got, "b") })
	v.AfterFunc(time.Second, func() { got = append(got, "c") })
	v.Run()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestVirtual_RunForStopsAtDeadline(t *testing.T) {
	start := time.Unix(0, 0)
	v := NewVirtual(start)
	var early, late bool
	v.AfterFunc(10*time.Millisecond, func() { early = true })
	v.AfterFunc(50*time.Millisecond, func() { late = true })

	v.RunFor(20 * time.Millisecond)
	assert.True(t, early)
	assert.False(t, late)
	assert.Equal(t, 20*time.Millisecond, v.Now().Sub(start))

	v.RunFor(30 * time.Millisecond)
	assert.True(t, late)
}
