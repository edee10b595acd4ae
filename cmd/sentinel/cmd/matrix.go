package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
	"github.com/RajeshTechForge/sentinel-rag/internal/output"
)

func newMatrixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Inspect the access matrix and compiled filters",
	}

	cmd.AddCommand(newMatrixCheckCmd())
	cmd.AddCommand(newMatrixValidateCmd())

	return cmd
}

// newMatrixCheckCmd shows the (department, classification) pairs a
// user's memberships compile to, without touching any store.
func newMatrixCheckCmd() *cobra.Command {
	var members []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the filter compiled for a set of memberships",
		Long: `Compile the configured access matrix against the given memberships and
print every (department, classification) pair the filter grants. An
empty output means the memberships grant nothing: queries for this user
return no results and consult no store.

Example:
  sentinel matrix check --member engineering:engineer --member hr:hr-admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			memberships, err := parseMemberships(members)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Access.MatrixPath == "" {
				return sentinelerrors.ConfigError(
					"no access matrix configured (set access.matrix_path or SENTINEL_ACCESS_MATRIX)", nil)
			}

			matrix, err := access.LoadMatrix(cfg.Access.MatrixPath)
			if err != nil {
				return err
			}

			filter := access.Compile(access.UserContext{Memberships: memberships}, matrix)

			out := output.New(cmd.OutOrStdout())
			if filter.IsEmpty() {
				out.Warning("These memberships grant no access")
				return nil
			}

			out.Statusf("", "allowed (department, classification) pairs:")
			for _, pair := range filter.Pairs() {
				out.Statusf("", "  %s / %s", pair.Department, pair.Classification)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&members, "member", nil, "Membership as department:role (repeatable)")

	return cmd
}

// newMatrixValidateCmd parses a matrix file without installing it.
func newMatrixValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an access matrix file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matrix, err := access.LoadMatrix(args[0])
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Matrix is valid (%d classifications)", len(matrix.Classifications()))
			return nil
		},
	}
}
