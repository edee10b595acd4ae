package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RajeshTechForge/sentinel-rag/internal/embed"
	"github.com/RajeshTechForge/sentinel-rag/internal/output"
)

func newDoctorCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check index health and cross-store consistency",
		Long: `Verify that the metadata store, the keyword index, and the vector
index agree. Orphaned index entries (left behind by an interrupted
delete) can be evicted with --repair; missing entries need
'sentinel reindex'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			out := output.New(cmd.OutOrStdout())

			info := embed.GetInfo(cmd.Context(), e.Embedder())
			out.Statusf("", "embedder: %s (%s, %d dimensions, available: %t)",
				info.Provider, info.Model, info.Dimensions, info.Available)

			result, err := e.CheckConsistency(cmd.Context())
			if err != nil {
				return err
			}

			out.Statusf("", "chunks: %d metadata, %d keyword, %d vector",
				result.Checked, result.KeywordCount, result.VectorCount)

			if result.Consistent() {
				out.Success("Indexes are consistent")
				return nil
			}

			for _, issue := range result.Inconsistencies {
				out.Warningf("%s: %s", issue.Type, issue.ChunkID)
			}

			if !repair {
				out.Statusf("", "run 'sentinel doctor --repair' to evict orphans")
				return nil
			}

			evicted, err := e.RepairConsistency(cmd.Context(), result.Inconsistencies)
			if err != nil {
				return err
			}
			out.Successf("Evicted %d orphaned entries", evicted)
			if evicted < len(result.Inconsistencies) {
				out.Warning("Missing entries remain, run 'sentinel reindex' to rebuild")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Evict orphaned index entries")

	return cmd
}
