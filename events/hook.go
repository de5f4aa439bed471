package events

import (
	"context"
	"errors"

	"github.com/casualjim/chorus/dispatch"
)

// Hook receives what happens while a question is answered. It is called from several
// goroutines and must be safe for concurrent use. The run id is available through RunFrom.
type Hook interface {
	// OnChunk receives the paced text of a model so far.
	OnChunk(ctx context.Context, model, text string)
	// OnComplete receives the final paced text of a model.
	OnComplete(ctx context.Context, model, text string)
	// OnOutcome receives the terminal outcome of a model, success or failure.
	OnOutcome(ctx context.Context, outcome dispatch.Outcome)
	// OnError receives the failure of a model that exhausted its retries.
	OnError(ctx context.Context, model string, err error)
}

// Publisher is where a PublishingHook sends events.
type Publisher interface {
	Publish(context.Context, Event) error
}

// Deliver hands event to the matching hook method.
func Deliver(ctx context.Context, hook Hook, event Event) {
	switch e := event.(type) {
	case Chunk:
		hook.OnChunk(WithRun(ctx, e.RunID), e.Model, e.Text)
	case Complete:
		hook.OnComplete(WithRun(ctx, e.RunID), e.Model, e.Text)
	case Outcome:
		hook.OnOutcome(WithRun(ctx, e.RunID), e.Outcome)
	case Error:
		err := e.Err
		if err == nil {
			err = errors.New("unknown error")
		}
		hook.OnError(WithRun(ctx, e.RunID), e.Model, err)
	}
}
