package main

import (
	"os"

	"github.com/casualjim/chorus/internal/config"
	"github.com/spf13/cobra"
)

// settings is filled by the root command before any subcommand runs.
type settings struct {
	configFile string
	envFiles   []string
	logLevel   string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	s := &settings{}
	root := &cobra.Command{
		Use:           "chorus",
		Short:         "Ask several AI models the same question and watch them answer side by side",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.load()
		},
	}

	root.PersistentFlags().StringVarP(&s.configFile, "config", "c", "", "Config file (.yaml, .yml, .json or .toml)")
	root.PersistentFlags().StringSliceVar(&s.envFiles, "env-file", nil, "Env files to load (defaults to ./.env)")
	root.PersistentFlags().StringVar(&s.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults CHORUS_LOG_LEVEL or info)")

	root.AddCommand(newAskCmd(s), newModelsCmd(s), newSchemaCmd())
	return root
}

func (s *settings) load() error {
	cfg := config.Default()
	if s.configFile != "" {
		loaded, err := config.Load(s.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := config.LoadDotEnv(s.envFiles...); err != nil {
		return err
	}
	if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return err
	}
	if s.logLevel != "" {
		cfg.LogLevel = s.logLevel
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logLevel.Set(level)
	s.cfg = cfg
	return nil
}
