// Package cmd provides the CLI commands for sentinel.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
	"github.com/RajeshTechForge/sentinel-rag/internal/config"
	"github.com/RajeshTechForge/sentinel-rag/internal/engine"
	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
	"github.com/RajeshTechForge/sentinel-rag/internal/logging"
	"github.com/RajeshTechForge/sentinel-rag/pkg/version"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the sentinel CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Secure hierarchical retrieval over access-controlled documents",
		Long: `Sentinel ingests documents into a local hybrid search index and answers
queries through a compiled per-user access filter. Documents carry a
department and a classification; a static access matrix decides which
(department, classification) pairs a user's memberships grant, and the
search stores never return a chunk outside those grants.

Run 'sentinel ingest' to add documents and 'sentinel query' to search.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("sentinel version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: built-in defaults + SENTINEL_* env)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.sentinel-rag/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newMatrixCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging routes structured logs to the log file, keeping stdout
// clean for command output.
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging must never block the command itself
		slog.Warn("log file unavailable, logging to stderr only",
			slog.String("error", err.Error()))
		return nil
	}

	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// loadConfig loads the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openEngine constructs the engine from configuration. The caller must
// Close it.
func openEngine(cmd *cobra.Command, opts ...engine.Option) (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.New(cmd.Context(), cfg, opts...)
}

// parseMemberships parses repeated department:role flags.
func parseMemberships(specs []string) ([]access.Membership, error) {
	memberships := make([]access.Membership, 0, len(specs))
	for _, spec := range specs {
		department, role, ok := strings.Cut(spec, ":")
		if !ok || strings.TrimSpace(department) == "" || strings.TrimSpace(role) == "" {
			return nil, sentinelerrors.ValidationError(
				fmt.Sprintf("invalid membership %q, expected department:role", spec), nil)
		}
		memberships = append(memberships, access.Membership{
			Department: strings.TrimSpace(department),
			Role:       strings.TrimSpace(role),
		})
	}
	return memberships, nil
}

// Execute runs the root command, printing failures in the CLI error
// format.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, sentinelerrors.FormatForCLI(err))
	}
	return err
}
