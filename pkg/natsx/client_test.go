package natsx

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestResolveURL(t *testing.T) {
	t.Setenv("NATS_URL", "")
	assert.Equal(t, nats.DefaultURL, ResolveURL(""))

	t.Setenv("NATS_URL", "nats://env:4222")
	assert.Equal(t, "nats://env:4222", ResolveURL(""))
	assert.Equal(t, "nats://flag:4222", ResolveURL("nats://flag:4222"))
}
