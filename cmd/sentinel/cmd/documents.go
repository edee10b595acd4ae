package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RajeshTechForge/sentinel-rag/internal/engine"
	"github.com/RajeshTechForge/sentinel-rag/internal/output"
)

func newListCmd() *cobra.Command {
	var department string
	var classification string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			docs, err := e.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			shown := 0
			for _, doc := range docs {
				if department != "" && doc.Department != department {
					continue
				}
				if classification != "" && doc.Classification != classification {
					continue
				}
				out.Statusf("", "%s  %-30s  %s/%s  %d chunks",
					doc.ID, doc.Title, doc.Department, doc.Classification, doc.ChunkCount)
				shown++
			}
			if shown == 0 {
				out.Status("", "no documents")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&department, "department", "d", "", "Only documents owned by this department")
	cmd.Flags().StringVarP(&classification, "classification", "k", "", "Only documents with this classification")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and evict it from all indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			if err := e.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}

			output.New(cmd.OutOrStdout()).Successf("Deleted document %s", args[0])
			return nil
		},
	}
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search indexes from stored documents",
		Long: `Rebuild the vector and keyword indexes from the metadata store with
the active embedding provider. Use after switching embedding models
(dimension change) or when an index file is lost or corrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(cmd, engine.WithFreshIndexes())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			count, err := e.Reindex(cmd.Context())
			if err != nil {
				return err
			}

			output.New(cmd.OutOrStdout()).Successf("Reindexed %d chunks", count)
			return nil
		},
	}
}
