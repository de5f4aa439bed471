package dispatch

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MarshalJSON writes {"model","text"} for successes and {"model","error"} for failures.
func (o Outcome) MarshalJSON() ([]byte, error) {
	result := []byte(`{}`)

	var err error
	result, err = sjson.SetBytes(result, "model", o.Model)
	if err != nil {
		return nil, err
	}

	if o.Failed() {
		result, err = sjson.SetBytes(result, "error", o.Error)
	} else {
		result, err = sjson.SetBytes(result, "text", o.Text)
	}
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "attempts", o.Attempts)
	if err != nil {
		return nil, err
	}

	if !o.CompletedAt.IsZero() {
		result, err = sjson.SetBytes(result, "completed_at", o.CompletedAt.String())
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	text := gjson.GetBytes(data, "text")
	errMsg := gjson.GetBytes(data, "error")
	switch {
	case text.Exists() && errMsg.Exists():
		return fmt.Errorf("outcome carries both text and error")
	case !text.Exists() && !errMsg.Exists():
		return fmt.Errorf("outcome carries neither text nor error")
	}

	var out Outcome
	out.Model = gjson.GetBytes(data, "model").String()
	out.Text = text.String()
	out.Error = errMsg.String()
	if errMsg.Exists() && out.Error == "" {
		out.Error = unknownError
	}
	out.Attempts = int(gjson.GetBytes(data, "attempts").Int())

	if ts := gjson.GetBytes(data, "completed_at"); ts.Exists() {
		dt, err := strfmt.ParseDateTime(ts.String())
		if err != nil {
			return fmt.Errorf("invalid completed_at: %w", err)
		}
		out.CompletedAt = dt
	}

	*o = out
	return nil
}

// outcomeDocument mirrors the JSON form of an Outcome for schema generation.
type outcomeDocument struct {
	Model       string `json:"model" jsonschema:"description=model identifier the outcome belongs to"`
	Text        string `json:"text,omitempty" jsonschema:"description=response text, present on success"`
	Error       string `json:"error,omitempty" jsonschema:"description=last failure message, present once retries are exhausted"`
	Attempts    int    `json:"attempts" jsonschema:"minimum=1"`
	CompletedAt string `json:"completed_at,omitempty" jsonschema:"format=date-time"`
}

// ResultsSchema describes the JSON document produced by Results.MarshalJSON.
func ResultsSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(map[string]outcomeDocument{})
	schema.Title = "chorus results"
	schema.Description = "One outcome per model, keyed by model identifier, in submission order."
	return schema
}

func completedAt(t time.Time) strfmt.DateTime {
	return strfmt.DateTime(t.UTC())
}
