package provider

import (
	"context"

	"github.com/google/uuid"
)

// Provider defines the interface for AI model providers (e.g., OpenAI, or anything speaking its
// protocol). Implementations handle the specifics of one service and report the response as a
// stream of events on the returned channel, which is closed when the response is over.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// CompletionParams encapsulates all parameters needed for a chat completion request.
type CompletionParams struct {
	// RunID identifies the question this completion answers; every model asked the same
	// question shares it.
	RunID uuid.UUID

	// Instructions provide the system prompt for the model
	Instructions string

	// Prompt is the user's question
	Prompt string

	// Stream indicates whether to receive responses as a stream of chunks
	// When true, responses come incrementally. When false, wait for complete response.
	Stream bool

	// Model specifies which AI model to use for this completion
	Model interface {
		Name() string
		Provider() Provider
	}

	// Prevents unkeyed literals
	_ struct{}
}
