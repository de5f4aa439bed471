// Package events defines what subscribers see while several models answer the same question:
// paced text chunks, completed texts, per-model outcomes and failures.
//
// Events travel in process through a Hook, or across processes as JSON. Every encoded event
// has a "type" field, so a consumer decodes without knowing the event in advance:
//
//	b, err := events.ToJSON(events.Chunk{RunID: run, Model: "gpt-4o", Text: "Hel"})
//	...
//	ev, err := events.FromJSON(b)
//	events.Deliver(ctx, hook, ev)
package events
