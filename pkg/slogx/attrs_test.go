package slogx

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAttrs(t *testing.T) {
	id := uuid.MustParse("0190a8a8-7f4e-7c4a-9b3e-3f1f2d5c6b7a")

	tests := []struct {
		name string
		got  string
		key  string
		want string
	}{
		{"error", Error(errors.New("boom")).Value.String(), Error(nil).Key, "boom"},
		{"nil error", Error(nil).Value.String(), "error", ""},
		{"panic", Panic(42).Value.String(), Panic(42).Key, "42"},
		{"model", Model("gpt-4o").Value.String(), Model("").Key, "gpt-4o"},
		{"attempt", Attempt(3).Value.String(), Attempt(0).Key, "3"},
		{"job", Job(id).Value.String(), Job(id).Key, id.String()},
		{"elapsed", Elapsed("took", 1500*time.Millisecond).Value.String(), "took", "1500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
			assert.NotEmpty(t, tt.key)
		})
	}

	assert.Equal(t, KeyLoggerName, LoggerName("dispatch").Key)
	assert.Equal(t, KeyRun, Run(id).Key)
}
