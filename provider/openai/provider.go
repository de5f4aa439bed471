package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/casualjim/chorus/provider"
	"github.com/go-openapi/strfmt"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Temperature is sent with every request; answers from different models are compared side by
// side, so they are kept close to deterministic.
const Temperature = 0.1

type Provider struct {
	client *openai.Client
}

func New(options ...option.RequestOption) *Provider {
	client := openai.NewClient(options...)
	return &Provider{
		client: client,
	}
}

func (p *Provider) buildRequest(params *provider.CompletionParams) (openai.ChatCompletionNewParams, error) {
	if params.Model == nil {
		return openai.ChatCompletionNewParams{}, errors.New("no model in completion params")
	}
	if strings.TrimSpace(params.Prompt) == "" {
		return openai.ChatCompletionNewParams{}, errors.New("prompt cannot be empty")
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(params.Instructions) != "" {
		msgs = append(msgs, openai.SystemMessage(params.Instructions))
	}
	msgs = append(msgs, openai.UserMessageParts(openai.TextPart(params.Prompt)))

	return openai.ChatCompletionNewParams{
		Messages:    openai.F(msgs),
		Model:       openai.F(params.Model.Name()),
		N:           openai.Int(1),
		Temperature: openai.Float(Temperature),
	}, nil
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	chatParams, err := p.buildRequest(&params)
	if err != nil {
		return nil, err
	}

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, chatParams, &params, events)
		} else {
			p.runOnce(ctx, chatParams, &params, events)
		}
	}()
	return events, nil
}

func (p *Provider) runStream(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	strm := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer strm.Close()

	if err := strm.Err(); err != nil {
		events <- errorEvent(command, err)
		return
	}

	var started bool
	var acc openai.ChatCompletionAccumulator

	for strm.Next() {
		if err := ctx.Err(); err != nil {
			events <- errorEvent(command, err)
			return
		}

		if !started {
			started = true
			events <- provider.Delim{RunID: command.RunID, Delim: provider.DelimStart}
		}

		chunk := strm.Current()
		acc.AddChunk(chunk)
		if ev, ok := chunkToStreamEvent(&chunk, command); ok {
			events <- ev
		}
	}

	if err := ctx.Err(); err != nil {
		events <- errorEvent(command, err)
		return
	}
	if err := strm.Err(); err != nil {
		events <- errorEvent(command, err)
		return
	}
	if !started {
		events <- provider.Delim{RunID: command.RunID, Delim: provider.DelimEmpty}
		return
	}

	events <- provider.Delim{RunID: command.RunID, Delim: provider.DelimEnd}
	events <- completionToStreamEvent(&acc.ChatCompletion, command)
}

func (p *Provider) runOnce(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	chat, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		events <- errorEvent(command, err)
		return
	}

	events <- completionToStreamEvent(chat, command)
}

func errorEvent(command *provider.CompletionParams, err error) provider.Error {
	return provider.Error{
		RunID:     command.RunID,
		Err:       err,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

// chunkToStreamEvent reports false for fragments that carry no text, like role announcements.
func chunkToStreamEvent(chunk *openai.ChatCompletionChunk, command *provider.CompletionParams) (provider.StreamEvent, bool) {
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return nil, false
	}

	return provider.Chunk{
		RunID:     command.RunID,
		Text:      chunk.Choices[0].Delta.Content,
		Timestamp: strfmt.DateTime(time.Now()),
	}, true
}

func completionToStreamEvent(chat *openai.ChatCompletion, command *provider.CompletionParams) provider.StreamEvent {
	if len(chat.Choices) == 0 {
		return provider.Delim{RunID: command.RunID, Delim: provider.DelimEmpty}
	}

	choice := chat.Choices[0]
	text := choice.Message.Content
	if text == "" && choice.Message.Refusal != "" {
		text = choice.Message.Refusal
	}
	return provider.Response{
		RunID:        command.RunID,
		Text:         text,
		FinishReason: string(choice.FinishReason),
		Timestamp:    strfmt.DateTime(time.Now()),
	}
}
