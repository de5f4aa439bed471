package chorus

import (
	"context"
	"log/slog"
	"time"

	"github.com/casualjim/chorus/dispatch"
	"github.com/casualjim/chorus/events"
	"github.com/casualjim/chorus/pkg/slogx"
	"github.com/go-openapi/strfmt"
)

type Hook interface {
	events.Hook
	// OnResult receives every outcome of the question, in the order the models were configured.
	OnResult(context.Context, *dispatch.Results)
}

type nopHook struct{}

func (nopHook) OnChunk(context.Context, string, string)     {}
func (nopHook) OnComplete(context.Context, string, string)  {}
func (nopHook) OnOutcome(context.Context, dispatch.Outcome) {}
func (nopHook) OnError(context.Context, string, error)      {}
func (nopHook) OnResult(context.Context, *dispatch.Results) {}

// Hooks fans every call out to several hooks in order.
type Hooks []Hook

func (h Hooks) OnChunk(ctx context.Context, model, text string) {
	for _, hook := range h {
		hook.OnChunk(ctx, model, text)
	}
}

func (h Hooks) OnComplete(ctx context.Context, model, text string) {
	for _, hook := range h {
		hook.OnComplete(ctx, model, text)
	}
}

func (h Hooks) OnOutcome(ctx context.Context, outcome dispatch.Outcome) {
	for _, hook := range h {
		hook.OnOutcome(ctx, outcome)
	}
}

func (h Hooks) OnError(ctx context.Context, model string, err error) {
	for _, hook := range h {
		hook.OnError(ctx, model, err)
	}
}

func (h Hooks) OnResult(ctx context.Context, results *dispatch.Results) {
	for _, hook := range h {
		hook.OnResult(ctx, results)
	}
}

// PublishingHook forwards everything but the final results onto pub, so displays subscribed
// to a broker topic follow along. Failed publishes are logged and dropped.
func PublishingHook(pub events.Publisher) Hook {
	return &publishingHook{pub: pub, logger: slog.Default().With(slogx.LoggerName("publish"))}
}

type publishingHook struct {
	pub    events.Publisher
	logger *slog.Logger
}

func (p *publishingHook) publish(ctx context.Context, event events.Event) {
	if err := p.pub.Publish(context.WithoutCancel(ctx), event); err != nil {
		p.logger.Error("failed to publish event", slogx.Run(events.RunFrom(ctx)), slogx.Error(err))
	}
}

func now() strfmt.DateTime {
	return strfmt.DateTime(time.Now().UTC())
}

func (p *publishingHook) OnChunk(ctx context.Context, model, text string) {
	p.publish(ctx, events.Chunk{RunID: events.RunFrom(ctx), Model: model, Text: text, Timestamp: now()})
}

func (p *publishingHook) OnComplete(ctx context.Context, model, text string) {
	p.publish(ctx, events.Complete{RunID: events.RunFrom(ctx), Model: model, Text: text, Timestamp: now()})
}

func (p *publishingHook) OnOutcome(ctx context.Context, outcome dispatch.Outcome) {
	p.publish(ctx, events.Outcome{RunID: events.RunFrom(ctx), Outcome: outcome, Timestamp: now()})
}

func (p *publishingHook) OnError(ctx context.Context, model string, err error) {
	p.publish(ctx, events.Error{RunID: events.RunFrom(ctx), Model: model, Err: err, Timestamp: now()})
}

func (p *publishingHook) OnResult(context.Context, *dispatch.Results) {}
