package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestConsole_TypesDeltas(t *testing.T) {
	var out strings.Builder
	c := newConsole(&out, []string{"a", "b"}, nil)
	ctx := context.Background()

	c.OnChunk(ctx, "a", "Hel")
	c.OnChunk(ctx, "a", "Hello")
	c.OnChunk(ctx, "b", "Bon")
	c.OnChunk(ctx, "a", "Hello!")
	c.OnChunk(ctx, "a", "Hello!")

	assert.Equal(t, "a: Hello\nb: Bon\na: !", out.String())
}

func TestConsole_StartsOverWhenTextDiverges(t *testing.T) {
	var out strings.Builder
	c := newConsole(&out, []string{"a"}, nil)
	ctx := context.Background()

	c.OnChunk(ctx, "a", "draft")
	c.OnChunk(ctx, "a", "final")

	assert.Equal(t, "a: draft\na: final", out.String())
}

func TestConsole_ErrorsAndResults(t *testing.T) {
	var out strings.Builder
	c := newConsole(&out, []string{"a", "b"}, nil)
	ctx := context.Background()

	c.OnChunk(ctx, "a", "ok")
	c.OnError(ctx, "b", errors.New("rate limited"))
	c.OnChunk(ctx, "a", "ok!")
	c.OnResult(ctx, nil)

	assert.Equal(t, "a: ok\nb: rate limited\na: !\n", out.String())
}
