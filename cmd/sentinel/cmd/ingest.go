package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RajeshTechForge/sentinel-rag/internal/engine"
	"github.com/RajeshTechForge/sentinel-rag/internal/output"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	title          string
	department     string
	classification string
	flat           bool
	metadata       map[string]string
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a document into the retrieval index",
		Long: `Ingest a text or markdown document. The document is split into a
parent/child chunk hierarchy, embedded, and indexed for hybrid search.
Every chunk inherits the document's department and classification.

Pass '-' to read the document from stdin.

Examples:
  sentinel ingest runbook.md --department engineering --classification internal
  cat policy.txt | sentinel ingest - --title "Travel Policy" --department hr --classification public
  sentinel ingest notes.txt --department sales --classification public --flat`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Document title (default: file name)")
	cmd.Flags().StringVarP(&opts.department, "department", "d", "", "Owning department (required)")
	cmd.Flags().StringVarP(&opts.classification, "classification", "k", "", "Classification label (required)")
	cmd.Flags().BoolVar(&opts.flat, "flat", false, "Single-level chunking without parent expansion")
	cmd.Flags().StringToStringVarP(&opts.metadata, "meta", "m", nil, "Additional metadata (repeatable, key=value)")
	_ = cmd.MarkFlagRequired("department")
	_ = cmd.MarkFlagRequired("classification")

	return cmd
}

func runIngest(cmd *cobra.Command, path string, opts ingestOptions) error {
	content, title, err := readDocument(path)
	if err != nil {
		return err
	}
	if opts.title != "" {
		title = opts.title
	}

	e, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	docID, err := e.Ingest(cmd.Context(), engine.IngestRequest{
		Title:          title,
		Department:     opts.department,
		Classification: opts.classification,
		Content:        content,
		Metadata:       opts.metadata,
		Flat:           opts.flat,
	})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Successf("Ingested %q", title)
	out.Statusf("", "document id: %s", docID)
	return nil
}

// readDocument reads the document content and derives a default title.
func readDocument(path string) (content, title string, err error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "stdin", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read document: %w", err)
	}

	base := filepath.Base(path)
	title = strings.TrimSuffix(base, filepath.Ext(base))
	return string(data), title, nil
}
