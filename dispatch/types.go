package dispatch

import (
	"context"
	"iter"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Invocation is a single provider call. It returns the response text or fails.
type Invocation func(ctx context.Context) (string, error)

// Requests maps model identifiers to their invocation. Insertion order is admission order.
type Requests = orderedmap.OrderedMap[string, Invocation]

// NewRequests creates an empty request set.
func NewRequests() *Requests {
	return orderedmap.New[string, Invocation]()
}

// Metadata travels with every job of a batch and is visible to invocations through JobFrom.
type Metadata map[string]any

// Outcome is the terminal state of one model's job: either Text or Error is meaningful,
// never both.
type Outcome struct {
	Model       string
	Text        string
	Error       string
	Attempts    int
	CompletedAt strfmt.DateTime
}

// Failed reports whether the job exhausted its retries.
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// Results holds one Outcome per submitted model, in submission order.
type Results struct {
	outcomes *orderedmap.OrderedMap[string, Outcome]
}

func newResults() *Results {
	return &Results{outcomes: orderedmap.New[string, Outcome]()}
}

// Len is the number of outcomes.
func (r *Results) Len() int {
	if r == nil || r.outcomes == nil {
		return 0
	}
	return r.outcomes.Len()
}

// Get returns the outcome of model.
func (r *Results) Get(model string) (Outcome, bool) {
	if r == nil || r.outcomes == nil {
		return Outcome{}, false
	}
	return r.outcomes.Get(model)
}

// Models returns the model identifiers in submission order.
func (r *Results) Models() []string {
	models := make([]string, 0, r.Len())
	for model := range r.All() {
		models = append(models, model)
	}
	return models
}

// All iterates outcomes in submission order.
func (r *Results) All() iter.Seq2[string, Outcome] {
	return func(yield func(string, Outcome) bool) {
		if r == nil || r.outcomes == nil {
			return
		}
		for pair := r.outcomes.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Failures counts outcomes that carry an error.
func (r *Results) Failures() int {
	var n int
	for _, o := range r.All() {
		if o.Failed() {
			n++
		}
	}
	return n
}

// MarshalJSON writes the outcomes as one object keyed by model, in submission order.
func (r *Results) MarshalJSON() ([]byte, error) {
	if r == nil || r.outcomes == nil {
		return []byte(`{}`), nil
	}
	return r.outcomes.MarshalJSON()
}

// UnmarshalJSON reads what MarshalJSON writes, keeping the key order.
func (r *Results) UnmarshalJSON(data []byte) error {
	outcomes := orderedmap.New[string, Outcome]()
	if err := outcomes.UnmarshalJSON(data); err != nil {
		return err
	}
	for pair := outcomes.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Model == "" {
			pair.Value.Model = pair.Key
		}
	}
	r.outcomes = outcomes
	return nil
}

// JobInfo describes the attempt an invocation is running as.
type JobInfo struct {
	ID       uuid.UUID
	Model    string
	Attempt  int
	Metadata Metadata
}

type jobInfoKey struct{}

// JobFrom returns the job an invocation belongs to.
func JobFrom(ctx context.Context) (JobInfo, bool) {
	info, ok := ctx.Value(jobInfoKey{}).(JobInfo)
	return info, ok
}

func withJob(ctx context.Context, info JobInfo) context.Context {
	return context.WithValue(ctx, jobInfoKey{}, info)
}
