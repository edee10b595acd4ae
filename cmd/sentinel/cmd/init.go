package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/RajeshTechForge/sentinel-rag/configs"
	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
	"github.com/RajeshTechForge/sentinel-rag/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write starter configuration and access matrix templates",
		Long: `Create sentinel.yaml and matrix.yaml in the given directory (default:
the data directory). The matrix template grants example departments and
roles and must be edited before real use: memberships not listed in the
matrix have no access.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir := cfg.Paths.DataDir
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return sentinelerrors.StorageError(
					fmt.Sprintf("failed to create directory %s", dir), err)
			}

			out := output.New(cmd.OutOrStdout())

			configFile := filepath.Join(dir, "sentinel.yaml")
			matrixFile := filepath.Join(dir, "matrix.yaml")

			wrote := 0
			for _, tmpl := range []struct {
				path    string
				content string
			}{
				{configFile, configs.ConfigTemplate},
				{matrixFile, configs.MatrixTemplate},
			} {
				if _, statErr := os.Stat(tmpl.path); statErr == nil && !force {
					out.Warningf("%s exists, skipping (use --force to overwrite)", tmpl.path)
					continue
				}
				if err := os.WriteFile(tmpl.path, []byte(tmpl.content), 0o644); err != nil {
					return sentinelerrors.StorageError(
						fmt.Sprintf("failed to write %s", tmpl.path), err)
				}
				out.Statusf("", "wrote %s", tmpl.path)
				wrote++
			}

			if wrote > 0 {
				out.Success("Templates written")
				out.Statusf("", "edit %s to define your grants, then set", matrixFile)
				out.Statusf("", "access.matrix_path in %s or SENTINEL_ACCESS_MATRIX", configFile)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}
