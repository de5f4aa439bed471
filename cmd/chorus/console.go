package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/casualjim/chorus"
	"github.com/casualjim/chorus/dispatch"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
)

var palette = []color.Attribute{color.FgCyan, color.FgMagenta, color.FgYellow, color.FgGreen, color.FgBlue}

var _ chorus.Hook = (*console)(nil)

// console types every model's paced text into one terminal. A line starts with the model's
// name whenever another model takes over the output.
type console struct {
	mu       sync.Mutex
	out      io.Writer
	colors   map[string]*color.Color
	printed  map[string]string
	last     string
	markdown *glamour.TermRenderer
}

func newConsole(out io.Writer, models []string, markdown *glamour.TermRenderer) *console {
	c := &console{
		out:      out,
		colors:   make(map[string]*color.Color, len(models)),
		printed:  make(map[string]string, len(models)),
		markdown: markdown,
	}
	for i, m := range models {
		c.colors[m] = color.New(palette[i%len(palette)], color.Bold)
	}
	return c
}

func (c *console) tag(model string) string {
	if col, ok := c.colors[model]; ok {
		return col.Sprint(model)
	}
	return model
}

// switchTo starts a new line for model unless it already owns the output.
func (c *console) switchTo(model string) {
	if c.last == model {
		return
	}
	if c.last != "" {
		fmt.Fprintln(c.out)
	}
	fmt.Fprintf(c.out, "%s: ", c.tag(model))
	c.last = model
}

func (c *console) OnChunk(_ context.Context, model, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.printed[model]
	delta, ok := strings.CutPrefix(text, before)
	if !ok {
		// the renderer started over, so does the display
		c.last = ""
		fmt.Fprintln(c.out)
		c.switchTo(model)
		delta = text
	}
	c.printed[model] = text
	if delta == "" {
		return
	}
	c.switchTo(model)
	fmt.Fprint(c.out, delta)
}

func (c *console) OnComplete(context.Context, string, string) {}

func (c *console) OnOutcome(context.Context, dispatch.Outcome) {}

func (c *console) OnError(_ context.Context, model string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = ""
	fmt.Fprintf(c.out, "\n%s: %s\n", c.tag(model), color.RedString(err.Error()))
}

func (c *console) OnResult(_ context.Context, results *dispatch.Results) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != "" {
		fmt.Fprintln(c.out)
		c.last = ""
	}

	if c.markdown != nil {
		for model, outcome := range results.All() {
			if outcome.Failed() {
				continue
			}
			fmt.Fprintf(c.out, "\n%s\n", c.tag(model))
			rendered, err := c.markdown.Render(outcome.Text)
			if err != nil {
				rendered = outcome.Text + "\n"
			}
			fmt.Fprint(c.out, rendered)
		}
	}
}
