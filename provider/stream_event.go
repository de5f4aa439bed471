package provider

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	delimJSON    = []byte(`{"type":"delim"}`)
	chunkJSON    = []byte(`{"type":"chunk"}`)
	responseJSON = []byte(`{"type":"response"}`)
	errorJSON    = []byte(`{"type":"error"}`)
)

const (
	DelimStart = "start"
	DelimEnd   = "end"
	DelimEmpty = "empty"
)

type StreamEvent interface {
	streamEvent()
}

// Delim marks a boundary in the stream: start, end, or empty for a response without choices.
type Delim struct {
	RunID uuid.UUID `json:"run_id"`
	Delim string    `json:"delim"`
}

func (Delim) streamEvent() {}

// Chunk carries the text delta of one streamed fragment.
type Chunk struct {
	RunID     uuid.UUID       `json:"run_id"`
	Text      string          `json:"text"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Chunk) streamEvent() {}

// Response carries the complete text of the response. It is the last event of a successful stream.
type Response struct {
	RunID        uuid.UUID       `json:"run_id"`
	Text         string          `json:"text"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Timestamp    strfmt.DateTime `json:"timestamp,omitempty"`
	Meta         gjson.Result    `json:"meta,omitempty"`
}

func (Response) streamEvent() {}

type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("run_id: %s, timestamp: %s, error: %v", e.RunID, e.Timestamp, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements custom JSON marshaling for Delim
func (d Delim) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(delimJSON, "run_id", d.RunID.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delim", d.Delim)
}

// UnmarshalJSON implements custom JSON unmarshaling for Delim
func (d *Delim) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "delim"); err != nil {
		return err
	}
	if err := readRunID(data, &d.RunID); err != nil {
		return err
	}

	delim := gjson.GetBytes(data, "delim")
	if !delim.Exists() {
		return errors.New("missing required field 'delim'")
	}
	d.Delim = delim.String()
	return nil
}

// MarshalJSON implements custom JSON marshaling for Chunk
func (c Chunk) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(chunkJSON, "run_id", c.RunID.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "text", c.Text)
	if err != nil {
		return nil, err
	}
	return writeTrailer(result, c.Timestamp, c.Meta)
}

// UnmarshalJSON implements custom JSON unmarshaling for Chunk
func (c *Chunk) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "chunk"); err != nil {
		return err
	}
	if err := readRunID(data, &c.RunID); err != nil {
		return err
	}

	text := gjson.GetBytes(data, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	c.Text = text.String()
	return readTrailer(data, &c.Timestamp, &c.Meta)
}

// MarshalJSON implements custom JSON marshaling for Response
func (r Response) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(responseJSON, "run_id", r.RunID.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "text", r.Text)
	if err != nil {
		return nil, err
	}
	if r.FinishReason != "" {
		result, err = sjson.SetBytes(result, "finish_reason", r.FinishReason)
		if err != nil {
			return nil, err
		}
	}
	return writeTrailer(result, r.Timestamp, r.Meta)
}

// UnmarshalJSON implements custom JSON unmarshaling for Response
func (r *Response) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "response"); err != nil {
		return err
	}
	if err := readRunID(data, &r.RunID); err != nil {
		return err
	}

	text := gjson.GetBytes(data, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	r.Text = text.String()
	r.FinishReason = gjson.GetBytes(data, "finish_reason").String()
	return readTrailer(data, &r.Timestamp, &r.Meta)
}

// MarshalJSON implements custom JSON marshaling for Error
func (e Error) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(errorJSON, "run_id", e.RunID.String())
	if err != nil {
		return nil, err
	}
	if e.Err != nil {
		result, err = sjson.SetBytes(result, "error", e.Err.Error())
		if err != nil {
			return nil, err
		}
	}
	return writeTrailer(result, e.Timestamp, e.Meta)
}

// UnmarshalJSON implements custom JSON unmarshaling for Error
func (e *Error) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "error"); err != nil {
		return err
	}
	if err := readRunID(data, &e.RunID); err != nil {
		return err
	}

	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(errMsg.String())
	return readTrailer(data, &e.Timestamp, &e.Meta)
}

func checkType(data []byte, want string) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != want {
		return fmt.Errorf("missing or invalid type, expected '%s'", want)
	}
	return nil
}

func readRunID(data []byte, dst *uuid.UUID) error {
	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return errors.New("missing required field 'run_id'")
	}
	if err := dst.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}
	return nil
}

// writeTrailer appends the optional timestamp and meta fields shared by all payload events.
func writeTrailer(result []byte, ts strfmt.DateTime, meta gjson.Result) ([]byte, error) {
	var err error
	if !ts.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", ts.String())
		if err != nil {
			return nil, err
		}
	}
	if meta.Exists() {
		result, err = sjson.SetRawBytes(result, "meta", []byte(meta.Raw))
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func readTrailer(data []byte, ts *strfmt.DateTime, meta *gjson.Result) error {
	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := ts.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if m := gjson.GetBytes(data, "meta"); m.Exists() {
		*meta = m
	}
	return nil
}
