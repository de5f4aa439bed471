// Package dispatch fans independent model invocations out under a concurrency budget,
// retrying failures with exponential backoff and collecting every outcome.
//
// A Dispatcher owns a single queue of jobs and a count of jobs in flight. Both are only
// touched from the dispatcher's scheduler, the invocations themselves run on their own
// goroutines and post their settlement back:
//
//	requests := dispatch.NewRequests()
//	requests.Set("gpt-4o-mini", askGPT4oMini)
//	requests.Set("llama-3.1-8b", askLlama)
//
//	d := dispatch.New(dispatch.MaxConcurrentRequests(2), dispatch.RetryCount(2))
//	results := d.ProcessRequests(ctx, requests, dispatch.Metadata{"user": "alice"})
//	for model, outcome := range results.All() {
//	    if outcome.Failed() {
//	        fmt.Println(model, "failed:", outcome.Error)
//	        continue
//	    }
//	    fmt.Println(model, outcome.Text)
//	}
//
// Admission is first-in first-out for fresh jobs. A failed job waits
// RetryDelay * 2^(retry-1) and is then put back at the head of the queue, ahead of any
// backlog. A batch never fails as a whole: every submitted model shows up exactly once in its
// Results, carrying either text or the message of its last failure.
//
// The dispatcher never cancels an invocation. Whatever timeout a provider call needs belongs
// in the invocation, which receives the context given to Dispatch.
package dispatch
