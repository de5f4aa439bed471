/*
Package chorus asks one question to several AI models at once and shows their answers side by
side as they arrive.

An Aggregator owns a dispatcher that runs the provider calls under a shared concurrency budget,
retrying failed calls with exponential backoff, and one renderer per model that types out the
streamed text at a steady pace:

	agg := chorus.New(
		chorus.Models(openai.GPT4oMini(), openai.GPT4o()),
		chorus.Instructions("Answer in one paragraph"),
		chorus.DispatchOptions(dispatch.RetryCount(3)),
	)

	results, err := agg.Ask(ctx, "Why is the sky blue?", hook).Get()

The hook sees every paced chunk, the final text of each model, each outcome and finally the
results, which hold one outcome per model in the order the models were configured. A model
that keeps failing never fails the whole question; its outcome carries the error instead.

PublishingHook forwards the display events onto a broker topic, so a UI in another process can
subscribe to them over NATS.
*/
package chorus
