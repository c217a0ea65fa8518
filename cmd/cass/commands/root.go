// Package commands defines all Cobra CLI commands for the cass binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/rawwerks/cass-go/internal/audit"
	"github.com/rawwerks/cass-go/internal/config"
	"github.com/rawwerks/cass-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cass",
		Short: "cass — search your coding-agent conversation history",
		Long: `cass ingests the session transcripts coding agents (Claude Code, OpenCode,
and others) leave on disk into a local SQLite corpus, indexes them for
lexical and semantic search, and answers queries over them without ever
shipping transcript content to a remote service.

Storage, embedding, and reranker backends are selected via CASS_* environment
variables or a YAML config file (~/.cass/config.yaml).
See 'cass --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.cass/config.yaml)")

	root.AddCommand(
		NewScanCmd(),
		NewIndexCmd(),
		NewSearchCmd(),
		NewExportCmd(),
		NewVerifyCmd(),
		NewUnlockCmd(),
		NewRotateKeyCmd(),
		NewKeysCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
