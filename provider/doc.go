// Package provider is the abstraction over AI model providers (OpenAI and anything that speaks
// its protocol). A provider turns one question into a stream of events, so callers handle
// streamed and one-shot responses the same way.
//
// A stream is made of four event types:
//  1. Delim: boundary markers, start and end of a streamed response
//  2. Chunk: the text delta of one fragment
//  3. Response: the complete text; the last event of a successful stream
//  4. Error: the stream failed; nothing follows it
//
// Example usage:
//
//	events, err := model.Provider().ChatCompletion(ctx, provider.CompletionParams{
//	    RunID:        uuidx.New(),
//	    Instructions: "You are a helpful assistant",
//	    Prompt:       "What is a monad?",
//	    Stream:       true,
//	    Model:        model,
//	})
//	if err != nil {
//	    return err
//	}
//
//	for event := range events {
//	    switch e := event.(type) {
//	    case provider.Chunk:
//	        // Handle incremental text
//	    case provider.Response:
//	        // Handle complete text
//	    case provider.Error:
//	        // Handle error
//	    }
//	}
//
// Every event serializes to JSON with a "type" field naming it.
package provider
