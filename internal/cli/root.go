// Package cli provides the opsdesk command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/logging"
)

// Execute runs the opsdesk CLI.
func Execute(version string) error {
	return NewRootCmd(version).Execute()
}

// NewRootCmd builds the root command and its subcommands.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "opsdesk",
		Short:         "Operator console for the support-automation backend",
		Long:          "opsdesk composes and sends support emails, invokes backend tools, and manages chat conversations, guardrails, and evaluation logs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	cmd.PersistentFlags().String("config", "", "config file (default is $HOME/.config/opsdesk/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "override logging level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "", "override logging format (json, console)")
	cmd.PersistentFlags().Bool("json", false, "machine-readable JSON output")

	cmd.AddCommand(
		newTUICmd(),
		newSendCmd(),
		newChatCmd(),
		newHistoryCmd(),
		newToolsCmd(),
		newGuardrailsCmd(),
		newEvalsCmd(),
		newExportCmd(),
		newConfigCmd(),
	)

	return cmd
}

// runtime bundles what most commands need: loaded config and a backend
// client.
type runtime struct {
	cfg    *config.Config
	client *api.Client
}

func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	loader := config.NewLoader()
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		loader.SetConfigFile(configFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Logging.Format = format
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &runtime{
		cfg:    cfg,
		client: api.New(cfg.Backend.URL, cfg.Backend.Timeout),
	}, nil
}

func isJSONOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}
