package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/casualjim/chorus"
	"github.com/casualjim/chorus/dispatch"
	"github.com/casualjim/chorus/internal/broker"
	"github.com/casualjim/chorus/internal/config"
	"github.com/casualjim/chorus/internal/metrics"
	"github.com/casualjim/chorus/pkg/natsx"
	"github.com/casualjim/chorus/pkg/slogx"
	"github.com/casualjim/chorus/render"
	"github.com/charmbracelet/glamour"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/k0kubun/pp/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type askFlags struct {
	models       []string
	instructions string
	noStream     bool
	markdown     bool
	json         bool
	dump         bool
	metrics      bool
	subject      string
}

func newAskCmd(s *settings) *cobra.Command {
	f := &askFlags{}
	cmd := &cobra.Command{
		Use:     "ask [prompt]",
		Short:   "Ask every configured model the same question",
		Example: "  chorus ask -m gpt-4o-mini -m o1-mini \"Why is the sky blue?\"\n  echo \"Summarise this\" | chorus ask --json",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args)
			if err != nil {
				return err
			}
			cfg := f.apply(s.cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runAsk(cmd.Context(), cmd, cfg, f, prompt)
		},
	}

	cmd.Flags().StringSliceVarP(&f.models, "model", "m", nil, "Model to ask, repeatable (defaults to the configured models)")
	cmd.Flags().StringVarP(&f.instructions, "instructions", "i", "", "System prompt sent to every model")
	cmd.Flags().BoolVar(&f.noStream, "no-stream", false, "Wait for complete responses instead of streaming them")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "Render the final answers as markdown after streaming")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the results document as JSON")
	cmd.Flags().BoolVar(&f.dump, "dump", false, "Pretty print every outcome")
	cmd.Flags().BoolVar(&f.metrics, "metrics", false, "Print dispatcher metrics to stderr when done")
	cmd.Flags().StringVar(&f.subject, "nats-subject", "", "Also publish display events to this NATS subject")
	return cmd
}

// apply lays the command line over the loaded config.
func (f *askFlags) apply(cfg config.Config) config.Config {
	if len(f.models) > 0 {
		cfg.Models = f.models
	}
	if f.instructions != "" {
		cfg.Instructions = f.instructions
	}
	if f.noStream {
		cfg.Stream = false
	}
	if f.subject != "" {
		cfg.NATS.Subject = f.subject
	}
	return cfg
}

func readPrompt(args []string) (string, error) {
	var prompt string
	if len(args) == 1 {
		prompt = args[0]
	} else {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		prompt = string(b)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt cannot be empty")
	}
	return prompt, nil
}

func aggregatorOptions(cfg config.Config, models []chorus.Model, observer dispatch.Observer) []opts.Option[chorus.Aggregator] {
	return []opts.Option[chorus.Aggregator]{
		chorus.Models(models...),
		chorus.Instructions(cfg.Instructions),
		chorus.Streaming(cfg.Stream),
		chorus.DispatchOptions(
			dispatch.MaxConcurrentRequests(cfg.Dispatch.MaxConcurrent),
			dispatch.RetryCount(cfg.Dispatch.RetryCount),
			dispatch.RetryDelay(time.Duration(cfg.Dispatch.RetryDelay)),
			dispatch.MaxQueued(cfg.Dispatch.MaxQueued),
			dispatch.Observe(observer),
		),
		chorus.RenderOptions(
			render.ChunkSize(cfg.Render.ChunkSize),
			render.TypingSpeed(time.Duration(cfg.Render.TypingSpeed)),
			render.MaxTypingSpeed(time.Duration(cfg.Render.MaxTypingSpeed)),
			render.LongResponseThreshold(cfg.Render.LongResponseThreshold),
		),
	}
}

func runAsk(ctx context.Context, cmd *cobra.Command, cfg config.Config, f *askFlags, prompt string) error {
	registerModels(cfg)
	models, err := chorus.Resolve(cfg.Models...)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New()
	if err := collector.Register(reg); err != nil {
		return err
	}

	var markdown *glamour.TermRenderer
	if f.markdown {
		markdown, err = glamour.NewTermRenderer(glamour.WithAutoStyle())
		if err != nil {
			return fmt.Errorf("failed to create markdown renderer: %w", err)
		}
	}

	display := newConsole(cmd.ErrOrStderr(), cfg.Models, markdown)
	hook := chorus.Hooks{display}
	if cfg.NATS.Subject != "" {
		client, err := natsx.NewClient(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer client.Drain() //nolint:errcheck
		hook = append(hook, chorus.PublishingHook(broker.NATS(client).Topic(ctx, cfg.NATS.Subject)))
		slog.Info("publishing display events", slog.String("subject", cfg.NATS.Subject))
	}

	agg := chorus.New(aggregatorOptions(cfg, models, collector)...)
	results, err := dispatch.Await(ctx, agg.Ask(ctx, prompt, hook))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.json {
		b, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		fmt.Fprintln(out, string(b))
	}
	if f.dump {
		outcomes := make([]dispatch.Outcome, 0, results.Len())
		for _, o := range results.All() {
			outcomes = append(outcomes, o)
		}
		pp.Fprintln(out, outcomes)
	}
	if f.metrics {
		if err := metrics.WriteText(cmd.ErrOrStderr(), reg); err != nil {
			slog.Warn("failed to write metrics", slogx.Error(err))
		}
	}

	if failed := results.Failures(); failed == results.Len() {
		return fmt.Errorf("all %d models failed", failed)
	}
	return nil
}
