// Package broker distributes events to subscribers through named topics, either in process
// or over NATS for displays running elsewhere.
//
//	b := broker.Local()
//	topic := b.Topic(ctx, "chorus.answers")
//
//	sub, err := topic.Subscribe(ctx, hook)
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
//
//	err = topic.Publish(ctx, events.Chunk{RunID: run, Model: "gpt-4o", Text: "Hel"})
//
// A topic satisfies events.Publisher, so it plugs straight into a publishing hook.
// Subscriptions end on Unsubscribe or when their context is done.
package broker
