package dispatch

import "time"

// Observer is notified of job lifecycle transitions. Calls arrive on the dispatcher's
// scheduler, one at a time, and must not block.
type Observer interface {
	// OnAdmit fires when a job takes an execution slot. attempt starts at 1.
	OnAdmit(model string, attempt int)
	// OnRetry fires when a failed attempt is scheduled to run again after delay.
	OnRetry(model string, attempt int, delay time.Duration, err error)
	// OnSettle fires once per job, with its terminal outcome and the time since enqueue.
	OnSettle(model string, outcome Outcome, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnAdmit(string, int)                       {}
func (nopObserver) OnRetry(string, int, time.Duration, error) {}
func (nopObserver) OnSettle(string, Outcome, time.Duration)   {}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (o Observers) OnAdmit(model string, attempt int) {
	for _, obs := range o {
		obs.OnAdmit(model, attempt)
	}
}

func (o Observers) OnRetry(model string, attempt int, delay time.Duration, err error) {
	for _, obs := range o {
		obs.OnRetry(model, attempt, delay, err)
	}
}

func (o Observers) OnSettle(model string, outcome Outcome, elapsed time.Duration) {
	for _, obs := range o {
		obs.OnSettle(model, outcome, elapsed)
	}
}
