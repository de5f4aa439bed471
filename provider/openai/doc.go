/*
Package openai implements provider.Provider on top of the OpenAI chat completions API, or any
service compatible with it.

Models are created lazily and cached by name; a model builds its client on first use:

	model := openai.Model("llama3.1",
		option.WithBaseURL("http://localhost:11434/v1"),
		option.WithAPIKey("unused"),
	)

GPT4oMini, GPT4o, O1Mini and O1 are shortcuts for the hosted models.

A streamed completion produces a start Delim, one Chunk per fragment with text, an end Delim,
and a Response with the accumulated text. A one-shot completion produces only the Response.
Any failure, including cancellation of the context, ends the stream with an Error.
*/
package openai
