package chorus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/chorus/api"
	"github.com/casualjim/chorus/dispatch"
	"github.com/casualjim/chorus/events"
	"github.com/casualjim/chorus/pkg/slogx"
	"github.com/casualjim/chorus/pkg/uuidx"
	"github.com/casualjim/chorus/provider"
	"github.com/casualjim/chorus/render"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
)

// ErrNoResponse is the failure of an attempt whose stream ended without a response.
var ErrNoResponse = errors.New("provider returned no response")

// Future resolves with the outcome of every model once all of them settled.
type Future = dispatch.Future[*dispatch.Results]

var (
	// Instructions is the system prompt sent to every model.
	Instructions = opts.ForName[Aggregator, string]("instructions")
	// Streaming asks providers for incremental responses. It defaults to true.
	Streaming = opts.ForName[Aggregator, bool]("streaming")
)

// Models adds the models every question is asked to. Names must be unique.
func Models(models ...api.Model) opts.Option[Aggregator] {
	return opts.Type[Aggregator](func(a *Aggregator) error {
		for _, m := range models {
			if m == nil {
				return errors.New("model cannot be nil")
			}
			for _, known := range a.models {
				if known.Name() == m.Name() {
					return fmt.Errorf("duplicate model %q", m.Name())
				}
			}
			a.models = append(a.models, m)
		}
		return nil
	})
}

// DispatchOptions configures the dispatcher shared by every question.
func DispatchOptions(options ...opts.Option[dispatch.Dispatcher]) opts.Option[Aggregator] {
	return opts.Type[Aggregator](func(a *Aggregator) error {
		a.dispatchOpts = append(a.dispatchOpts, options...)
		return nil
	})
}

// RenderOptions configures the renderer of each model. OnChunk and OnComplete are replaced
// by the aggregator, which routes them to the hook of the current question.
func RenderOptions(options ...opts.Option[render.Renderer]) opts.Option[Aggregator] {
	return opts.Type[Aggregator](func(a *Aggregator) error {
		a.renderOpts = append(a.renderOpts, options...)
		return nil
	})
}

func Logger(l *slog.Logger) opts.Option[Aggregator] {
	return opts.Type[Aggregator](func(a *Aggregator) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		a.logger = l
		return nil
	})
}

// Aggregator asks one question to several models at once, paces each answer for display and
// collects every outcome.
type Aggregator struct {
	models       []api.Model
	instructions string
	streaming    bool
	dispatchOpts []opts.Option[dispatch.Dispatcher]
	renderOpts   []opts.Option[render.Renderer]
	logger       *slog.Logger

	dispatcher *dispatch.Dispatcher
	renderers  *haxmap.Map[string, *display]
}

// New creates an Aggregator. It panics when an option fails to apply.
func New(options ...opts.Option[Aggregator]) *Aggregator {
	a := &Aggregator{streaming: true}
	if err := opts.Apply(a, options); err != nil {
		panic(err)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	a.dispatcher = dispatch.New(append([]opts.Option[dispatch.Dispatcher]{dispatch.Logger(a.logger)}, a.dispatchOpts...)...)
	a.renderers = haxmap.New[string, *display]()
	a.logger = a.logger.With(slogx.LoggerName("chorus"))
	return a
}

// ModelNames lists the models in the order they were configured.
func (a *Aggregator) ModelNames() []string {
	names := make([]string, len(a.models))
	for i, m := range a.models {
		names[i] = m.Name()
	}
	return names
}

// Ask sends prompt to every model and returns at once. Hook sees the paced text of every model
// as it is typed out, then each outcome, then the results. The future resolves after the hook
// has seen the results and never resolves with an error.
func (a *Aggregator) Ask(ctx context.Context, prompt string, hook Hook) Future {
	if hook == nil {
		hook = nopHook{}
	}
	runID := uuidx.New()
	ctx = events.WithRun(ctx, runID)

	requests := dispatch.NewRequests()
	for _, m := range a.models {
		requests.Set(m.Name(), a.invocation(runID, m, prompt, hook))
	}
	pending := a.dispatcher.Dispatch(ctx, requests, dispatch.Metadata{
		"run_id": runID.String(),
		"prompt": prompt,
	})

	fut := dispatch.NewFuture[*dispatch.Results]()
	go func() {
		results, _ := pending.Get()
		for model := range results.All() {
			if d, ok := a.renderers.Get(model); ok {
				if err := d.renderer.Wait(ctx); err != nil {
					a.logger.Warn("stopped waiting for display", slogx.Model(model), slogx.Error(err))
				}
			}
		}

		for model, outcome := range results.All() {
			hook.OnOutcome(ctx, outcome)
			if outcome.Failed() {
				hook.OnError(ctx, model, errors.New(outcome.Error))
			}
		}
		hook.OnResult(ctx, results)
		fut.Complete(results)
	}()
	return fut
}

// display pairs a model's renderer with the question it currently shows.
type display struct {
	renderer *render.Renderer
	current  atomic.Pointer[showing]
}

type showing struct {
	ctx  context.Context
	hook Hook
}

func (a *Aggregator) displayFor(model string) *display {
	d, _ := a.renderers.GetOrCompute(model, func() *display {
		d := &display{}
		options := append(append([]opts.Option[render.Renderer]{}, a.renderOpts...),
			render.Logger(a.logger),
			render.OnChunk(func(text string) {
				if s := d.current.Load(); s != nil {
					s.hook.OnChunk(s.ctx, model, text)
				}
			}),
			render.OnComplete(func(text string) {
				if s := d.current.Load(); s != nil {
					s.hook.OnComplete(s.ctx, model, text)
				}
			}),
		)
		d.renderer = render.New(options...)
		return d
	})
	return d
}

func (a *Aggregator) invocation(runID uuid.UUID, m api.Model, prompt string, hook Hook) dispatch.Invocation {
	return func(ctx context.Context) (string, error) {
		d := a.displayFor(m.Name())
		d.renderer.Reset()
		d.current.Store(&showing{ctx: ctx, hook: hook})

		stream, err := m.Provider().ChatCompletion(ctx, provider.CompletionParams{
			RunID:        runID,
			Instructions: a.instructions,
			Prompt:       prompt,
			Stream:       a.streaming,
			Model:        m,
		})
		if err != nil {
			return "", err
		}

		var (
			acc      strings.Builder
			final    string
			answered bool
			failure  error
		)
		// drain the stream so the provider goroutine can exit
		for event := range stream {
			switch e := event.(type) {
			case provider.Chunk:
				if failure == nil {
					acc.WriteString(e.Text)
					d.renderer.AddText(acc.String(), false)
				}
			case provider.Response:
				final, answered = e.Text, true
			case provider.Error:
				if failure == nil {
					failure = e.Err
					if failure == nil {
						failure = e
					}
				}
			}
		}

		if failure != nil {
			return "", failure
		}
		if !answered {
			return "", ErrNoResponse
		}
		d.renderer.AddText(final, true)
		return final, nil
	}
}
