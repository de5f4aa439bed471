package broker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/casualjim/chorus/events"
	"github.com/casualjim/chorus/pkg/uuidx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingHook struct {
	*recordingHook
	release chan struct{}
}

func (h *blockingHook) OnChunk(ctx context.Context, model, text string) {
	<-h.release
	h.recordingHook.OnChunk(ctx, model, text)
}

func TestLocal_DropsSlowSubscribers(t *testing.T) {
	b := Local().(*localBroker).WithSlowSubscriberTimeout(10 * time.Millisecond)
	top := b.Topic(context.Background(), "slow")
	ctx := context.Background()

	hook := &blockingHook{recordingHook: &recordingHook{}, release: make(chan struct{})}
	sub, err := top.Subscribe(ctx, hook)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	start := time.Now()
	// one event held by the hook, a full buffer, then one that cannot be queued
	for i := 0; i < subscriptionBuffer+2; i++ {
		require.NoError(t, top.Publish(ctx, events.Chunk{RunID: uuidx.New(), Text: fmt.Sprintf("chunk-%d", i)}))
	}
	assert.Less(t, time.Since(start), 2*time.Second, "publishing must not stall on a slow subscriber")

	_, subscribed := top.(*topic).subscriptions.Get(sub.ID())
	assert.False(t, subscribed, "slow subscriber should have been dropped")
	close(hook.release)
}

func TestLocal_PublishHonoursContext(t *testing.T) {
	top := Local().Topic(context.Background(), "ctx")
	sub, err := top.Subscribe(context.Background(), &recordingHook{})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, top.Publish(ctx, events.Chunk{RunID: uuidx.New()}), context.Canceled)
}
