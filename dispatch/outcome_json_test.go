package dispatch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestOutcome_JSON(t *testing.T) {
	ts := strfmt.DateTime(time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC))

	t.Run("success carries text only", func(t *testing.T) {
		b, err := json.Marshal(Outcome{Model: "gpt-4o", Text: "hi", Attempts: 1, CompletedAt: ts})
		require.NoError(t, err)
		assert.JSONEq(t, `{"model":"gpt-4o","text":"hi","attempts":1,"completed_at":"2026-10-14T09:30:00.000Z"}`, string(b))
	})

	t.Run("failure carries error only", func(t *testing.T) {
		b, err := json.Marshal(Outcome{Model: "o1", Text: "partial", Error: "rate limited", Attempts: 3})
		require.NoError(t, err)
		assert.JSONEq(t, `{"model":"o1","error":"rate limited","attempts":3}`, string(b))
	})

	t.Run("round trip", func(t *testing.T) {
		in := Outcome{Model: "gpt-4o", Text: "", Attempts: 2, CompletedAt: ts}
		b, err := json.Marshal(in)
		require.NoError(t, err)

		var out Outcome
		require.NoError(t, json.Unmarshal(b, &out))
		assert.Equal(t, in.Model, out.Model)
		assert.Equal(t, in.Attempts, out.Attempts)
		assert.False(t, out.Failed(), "empty text is still a success")
		assert.True(t, time.Time(in.CompletedAt).Equal(time.Time(out.CompletedAt)))
	})

	t.Run("rejects ambiguous documents", func(t *testing.T) {
		var o Outcome
		assert.Error(t, json.Unmarshal([]byte(`{"model":"x","text":"a","error":"b"}`), &o))
		assert.Error(t, json.Unmarshal([]byte(`{"model":"x"}`), &o))
		assert.Error(t, o.UnmarshalJSON([]byte(`{not json`)))
		assert.Error(t, json.Unmarshal([]byte(`{"model":"x","text":"a","completed_at":"yesterday"}`), &o))
	})

	t.Run("empty error message is normalised", func(t *testing.T) {
		var o Outcome
		require.NoError(t, json.Unmarshal([]byte(`{"model":"x","error":""}`), &o))
		assert.True(t, o.Failed())
	})
}

func TestResults_JSONKeepsOrder(t *testing.T) {
	r := newResults()
	r.outcomes.Set("zeta", Outcome{Model: "zeta", Text: "z", Attempts: 1})
	r.outcomes.Set("alpha", Outcome{Model: "alpha", Error: "down", Attempts: 3})

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var keys []string
	gjson.ParseBytes(b).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	assert.Equal(t, []string{"zeta", "alpha"}, keys)

	var back Results
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, []string{"zeta", "alpha"}, back.Models())
	alpha, ok := back.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "down", alpha.Error)

	var empty *Results
	b, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
	assert.Equal(t, 0, empty.Len())
}

func TestResults_UnmarshalFillsMissingModel(t *testing.T) {
	var r Results
	require.NoError(t, json.Unmarshal([]byte(`{"gpt-4o":{"text":"hello","attempts":1}}`), &r))
	o, ok := r.Get("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", o.Model)
}

func TestResultsSchema(t *testing.T) {
	schema := ResultsSchema()
	b, err := json.Marshal(schema)
	require.NoError(t, err)

	doc := gjson.ParseBytes(b)
	assert.Equal(t, "object", doc.Get("type").String())
	assert.Equal(t, "chorus results", doc.Get("title").String())
	outcome := doc.Get("additionalProperties")
	require.True(t, outcome.Exists())
	assert.True(t, outcome.Get("properties.text").Exists())
	assert.True(t, outcome.Get("properties.error").Exists())
	assert.Equal(t, "date-time", outcome.Get("properties.completed_at.format").String())
}
