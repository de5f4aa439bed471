package provider

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestDelim_JSON(t *testing.T) {
	runID := uuid.New()

	data, err := json.Marshal(Delim{RunID: runID, Delim: DelimStart})
	require.NoError(t, err)
	result := gjson.ParseBytes(data)
	assert.Equal(t, "delim", result.Get("type").String())
	assert.Equal(t, runID.String(), result.Get("run_id").String())
	assert.Equal(t, "start", result.Get("delim").String())

	var delim Delim
	require.NoError(t, json.Unmarshal(data, &delim))
	assert.Equal(t, runID, delim.RunID)
	assert.Equal(t, DelimStart, delim.Delim)
}

func TestChunk_JSON(t *testing.T) {
	runID := uuid.New()
	timestamp := strfmt.DateTime(time.Now().UTC().Truncate(time.Millisecond))

	data, err := json.Marshal(Chunk{
		RunID:     runID,
		Text:      "test content",
		Timestamp: timestamp,
		Meta:      gjson.Parse(`{"key": "value"}`),
	})
	require.NoError(t, err)

	result := gjson.ParseBytes(data)
	assert.Equal(t, "chunk", result.Get("type").String())
	assert.Equal(t, "test content", result.Get("text").String())
	assert.Equal(t, timestamp.String(), result.Get("timestamp").String())
	assert.Equal(t, "value", result.Get("meta.key").String())

	var chunk Chunk
	require.NoError(t, json.Unmarshal(data, &chunk))
	assert.Equal(t, runID, chunk.RunID)
	assert.Equal(t, "test content", chunk.Text)
	assert.True(t, time.Time(timestamp).Equal(time.Time(chunk.Timestamp)))
	assert.Equal(t, "value", chunk.Meta.Get("key").String())
}

func TestResponse_JSON(t *testing.T) {
	runID := uuid.New()

	data, err := json.Marshal(Response{RunID: runID, Text: "full answer", FinishReason: "stop"})
	require.NoError(t, err)
	result := gjson.ParseBytes(data)
	assert.Equal(t, "response", result.Get("type").String())
	assert.False(t, result.Get("timestamp").Exists(), "zero timestamps are omitted")

	var resp Response
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, runID, resp.RunID)
	assert.Equal(t, "full answer", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestError_JSON(t *testing.T) {
	runID := uuid.New()
	cause := errors.New("rate limited")

	data, err := json.Marshal(Error{RunID: runID, Err: cause})
	require.NoError(t, err)
	assert.Equal(t, "rate limited", gjson.GetBytes(data, "error").String())

	var e Error
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, runID, e.RunID)
	assert.EqualError(t, e.Err, "rate limited")

	assert.ErrorIs(t, Error{Err: cause}, cause)
	assert.Contains(t, Error{RunID: runID, Err: cause}.Error(), runID.String())
}

func TestStreamEvent_UnmarshalErrors(t *testing.T) {
	runID := uuid.New().String()
	tests := []struct {
		name string
		data string
		into json.Unmarshaler
	}{
		{"invalid json", `{"type":`, &Chunk{}},
		{"wrong type", `{"type":"chunk","run_id":"` + runID + `","delim":"start"}`, &Delim{}},
		{"missing run id", `{"type":"chunk","text":"x"}`, &Chunk{}},
		{"bad run id", `{"type":"response","run_id":"nope","text":"x"}`, &Response{}},
		{"missing text", `{"type":"response","run_id":"` + runID + `"}`, &Response{}},
		{"missing error", `{"type":"error","run_id":"` + runID + `"}`, &Error{}},
		{"missing delim", `{"type":"delim","run_id":"` + runID + `"}`, &Delim{}},
		{"bad timestamp", `{"type":"chunk","run_id":"` + runID + `","text":"x","timestamp":"later"}`, &Chunk{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.into.UnmarshalJSON([]byte(tt.data)))
		})
	}
}
