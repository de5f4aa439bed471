package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/casualjim/chorus/dispatch"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	TypeChunk    = "chunk"
	TypeComplete = "complete"
	TypeOutcome  = "outcome"
	TypeError    = "error"
)

// Event is one of Chunk, Complete, Outcome or Error.
type Event interface {
	event()
}

// Chunk is the paced display text of one model after a chunk was emitted.
type Chunk struct {
	RunID     uuid.UUID       `json:"run_id"`
	Model     string          `json:"model"`
	Text      string          `json:"text"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

// Complete is the final display text of one model.
type Complete struct {
	RunID     uuid.UUID       `json:"run_id"`
	Model     string          `json:"model"`
	Text      string          `json:"text"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

// Outcome is the terminal result of one model.
type Outcome struct {
	RunID     uuid.UUID        `json:"run_id"`
	Outcome   dispatch.Outcome `json:"outcome"`
	Timestamp strfmt.DateTime  `json:"timestamp,omitempty"`
	Meta      gjson.Result     `json:"meta,omitempty"`
}

// Error reports a model that failed after exhausting its retries.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	Model     string          `json:"model"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Chunk) event()    {}
func (Complete) event() {}
func (Outcome) event()  {}
func (Error) event()    {}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Model, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// encoder accumulates sjson writes and keeps the first error.
type encoder struct {
	buf []byte
	err error
}

func newEncoder(kind string, runID uuid.UUID) *encoder {
	e := &encoder{buf: []byte(`{}`)}
	e.set("type", kind)
	e.set("run_id", runID.String())
	return e
}

func (e *encoder) set(path string, value any) {
	if e.err != nil {
		return
	}
	e.buf, e.err = sjson.SetBytes(e.buf, path, value)
}

func (e *encoder) raw(path string, value []byte) {
	if e.err != nil {
		return
	}
	e.buf, e.err = sjson.SetRawBytes(e.buf, path, value)
}

func (e *encoder) trailer(ts strfmt.DateTime, meta gjson.Result) ([]byte, error) {
	if !ts.IsZero() {
		e.set("timestamp", ts.String())
	}
	if meta.Exists() {
		e.raw("meta", []byte(meta.Raw))
	}
	return e.buf, e.err
}

func (c Chunk) MarshalJSON() ([]byte, error) {
	e := newEncoder(TypeChunk, c.RunID)
	e.set("model", c.Model)
	e.set("text", c.Text)
	return e.trailer(c.Timestamp, c.Meta)
}

func (c Complete) MarshalJSON() ([]byte, error) {
	e := newEncoder(TypeComplete, c.RunID)
	e.set("model", c.Model)
	e.set("text", c.Text)
	return e.trailer(c.Timestamp, c.Meta)
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(o.Outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outcome: %w", err)
	}
	e := newEncoder(TypeOutcome, o.RunID)
	e.raw("outcome", b)
	return e.trailer(o.Timestamp, o.Meta)
}

func (r Error) MarshalJSON() ([]byte, error) {
	e := newEncoder(TypeError, r.RunID)
	e.set("model", r.Model)
	msg := ""
	if r.Err != nil {
		msg = r.Err.Error()
	}
	e.set("error", msg)
	return e.trailer(r.Timestamp, r.Meta)
}

// header holds the fields every event carries.
type header struct {
	runID uuid.UUID
	ts    strfmt.DateTime
	meta  gjson.Result
}

func decodeHeader(data []byte, want string) (header, error) {
	var h header
	if !gjson.ValidBytes(data) {
		return h, fmt.Errorf("invalid json: %s", data)
	}
	if kind := gjson.GetBytes(data, "type"); kind.String() != want {
		return h, fmt.Errorf("missing or invalid type, expected '%s'", want)
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return h, errors.New("missing required field 'run_id'")
	}
	if err := h.runID.UnmarshalText([]byte(runID.String())); err != nil {
		return h, fmt.Errorf("invalid run_id: %w", err)
	}

	if ts := gjson.GetBytes(data, "timestamp"); ts.Exists() {
		if err := h.ts.UnmarshalText([]byte(ts.String())); err != nil {
			return h, fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	h.meta = gjson.GetBytes(data, "meta")
	return h, nil
}

func required(data []byte, field string) (gjson.Result, error) {
	v := gjson.GetBytes(data, field)
	if !v.Exists() {
		return v, fmt.Errorf("missing required field '%s'", field)
	}
	return v, nil
}

func (c *Chunk) UnmarshalJSON(data []byte) error {
	h, err := decodeHeader(data, TypeChunk)
	if err != nil {
		return err
	}
	text, err := required(data, "text")
	if err != nil {
		return err
	}
	*c = Chunk{RunID: h.runID, Model: gjson.GetBytes(data, "model").String(), Text: text.String(), Timestamp: h.ts, Meta: h.meta}
	return nil
}

func (c *Complete) UnmarshalJSON(data []byte) error {
	h, err := decodeHeader(data, TypeComplete)
	if err != nil {
		return err
	}
	text, err := required(data, "text")
	if err != nil {
		return err
	}
	*c = Complete{RunID: h.runID, Model: gjson.GetBytes(data, "model").String(), Text: text.String(), Timestamp: h.ts, Meta: h.meta}
	return nil
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	h, err := decodeHeader(data, TypeOutcome)
	if err != nil {
		return err
	}
	raw, err := required(data, "outcome")
	if err != nil {
		return err
	}
	var outcome dispatch.Outcome
	if err := json.Unmarshal([]byte(raw.Raw), &outcome); err != nil {
		return fmt.Errorf("invalid outcome: %w", err)
	}
	*o = Outcome{RunID: h.runID, Outcome: outcome, Timestamp: h.ts, Meta: h.meta}
	return nil
}

func (r *Error) UnmarshalJSON(data []byte) error {
	h, err := decodeHeader(data, TypeError)
	if err != nil {
		return err
	}
	msg, err := required(data, "error")
	if err != nil {
		return err
	}
	*r = Error{RunID: h.runID, Model: gjson.GetBytes(data, "model").String(), Err: errors.New(msg.String()), Timestamp: h.ts, Meta: h.meta}
	return nil
}

// ToJSON encodes any event; the "type" field tells FromJSON what to decode.
func ToJSON(event Event) ([]byte, error) {
	if event == nil {
		return nil, errors.New("event cannot be nil")
	}
	return json.Marshal(event)
}

// FromJSON decodes an event produced by ToJSON.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	var event interface {
		Event
		json.Unmarshaler
	}
	switch kind := gjson.GetBytes(data, "type").String(); kind {
	case TypeChunk:
		event = &Chunk{}
	case TypeComplete:
		event = &Complete{}
	case TypeOutcome:
		event = &Outcome{}
	case TypeError:
		event = &Error{}
	default:
		return nil, fmt.Errorf("unknown event type: %q", kind)
	}
	if err := event.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return deref(event), nil
}

func deref(event Event) Event {
	switch e := event.(type) {
	case *Chunk:
		return *e
	case *Complete:
		return *e
	case *Outcome:
		return *e
	case *Error:
		return *e
	}
	return event
}

type runKey struct{}

// WithRun attaches the run id of a question to ctx.
func WithRun(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runKey{}, id)
}

// RunFrom returns the run id attached to ctx, or the zero uuid.
func RunFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(runKey{}).(uuid.UUID)
	return id
}
