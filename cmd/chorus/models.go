package main

import (
	"fmt"

	"github.com/casualjim/chorus/api"
	"github.com/casualjim/chorus/internal/config"
	"github.com/casualjim/chorus/provider/models"
	"github.com/casualjim/chorus/provider/openai"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
)

func newModelsCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models chorus knows about",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registerModels(s.cfg)
			for _, name := range models.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func requestOptions(cfg config.OpenAI) []option.RequestOption {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return opts
}

// registerModels adds the well known OpenAI models and every configured name to the model
// registry. Configured names are served by the OpenAI compatible endpoint from cfg.
func registerModels(cfg config.Config) {
	opts := requestOptions(cfg.OpenAI)
	for _, m := range []api.Model{openai.GPT4oMini(opts...), openai.GPT4o(opts...), openai.O1Mini(opts...), openai.O1(opts...)} {
		models.Add(m)
	}
	for _, name := range cfg.Models {
		models.GetOrAdd(name, func() api.Model { return openai.Model(name, opts...) })
	}
}
