package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
	"github.com/RajeshTechForge/sentinel-rag/internal/engine"
	"github.com/RajeshTechForge/sentinel-rag/internal/output"
	"github.com/RajeshTechForge/sentinel-rag/internal/search"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	user    string
	members []string
	limit   int
	mode    string
	format  string // "text", "json"
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search ingested documents as a given user",
		Long: `Run a hybrid (keyword + vector) query through the access filter
compiled for the given user memberships. A user whose memberships grant
nothing receives an empty result; denied documents are filtered inside
the stores, never after ranking.

Examples:
  sentinel query "database failover" --user alice --member engineering:engineer
  sentinel query "travel policy" --user bob --member hr:hr-admin --member finance:analyst
  sentinel query "vpn setup" --user carol --member it:support --mode direct --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "User identifier for audit records (required)")
	cmd.Flags().StringSliceVar(&opts.members, "member", nil, "User membership as department:role (repeatable)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of passages")
	cmd.Flags().StringVar(&opts.mode, "mode", "parent", "Resolution mode: parent, direct")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runQuery(cmd *cobra.Command, query string, opts queryOptions) error {
	memberships, err := parseMemberships(opts.members)
	if err != nil {
		return err
	}

	e, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	result, err := e.Query(cmd.Context(), engine.QueryRequest{
		User:  access.UserContext{UserID: opts.user, Memberships: memberships},
		Query: query,
		TopK:  opts.limit,
		Mode:  search.Mode(opts.mode),
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return writeQueryJSON(cmd, result)
	}
	writeQueryText(cmd, query, result)
	return nil
}

func writeQueryText(cmd *cobra.Command, query string, result *engine.QueryResult) {
	out := output.New(cmd.OutOrStdout())

	if result.Meta.Degraded {
		out.Warning("Embedding provider unavailable, served keyword-only results")
	}
	if result.Meta.Partial {
		out.Warning("Candidate set incomplete, results may be partial")
	}

	if len(result.Passages) == 0 {
		out.Statusf("", "No results for %q", query)
		return
	}

	out.Statusf("🔍", "Found %d passages for %q (%s):", len(result.Passages), query, result.Duration.Round(1e6))
	out.Newline()

	for i, p := range result.Passages {
		out.Statusf("", "%d. %s (score: %.4f, %s/%s, %s)",
			i+1, p.Title, p.Score, p.Department, p.Classification, p.Kind)
		if p.ChildMatches > 1 {
			out.Statusf("", "   matched by %d chunks", p.ChildMatches)
		}
		for _, line := range snippet(p.Content, 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
}

func writeQueryJSON(cmd *cobra.Command, result *engine.QueryResult) error {
	type jsonPassage struct {
		ChunkID        string   `json:"chunk_id"`
		DocumentID     string   `json:"document_id"`
		Title          string   `json:"title"`
		Department     string   `json:"department"`
		Classification string   `json:"classification"`
		Kind           string   `json:"kind"`
		Score          float64  `json:"score"`
		ChildMatches   int      `json:"child_matches"`
		MatchedTerms   []string `json:"matched_terms,omitempty"`
		Content        string   `json:"content"`
	}
	type jsonResult struct {
		Passages   []jsonPassage `json:"passages"`
		Degraded   bool          `json:"degraded"`
		Partial    bool          `json:"partial"`
		DurationMS int64         `json:"duration_ms"`
	}

	payload := jsonResult{
		Passages:   make([]jsonPassage, 0, len(result.Passages)),
		Degraded:   result.Meta.Degraded,
		Partial:    result.Meta.Partial,
		DurationMS: result.Duration.Milliseconds(),
	}
	for _, p := range result.Passages {
		payload.Passages = append(payload.Passages, jsonPassage{
			ChunkID:        p.ChunkID,
			DocumentID:     p.DocumentID,
			Title:          p.Title,
			Department:     p.Department,
			Classification: p.Classification,
			Kind:           p.Kind,
			Score:          p.Score,
			ChildMatches:   p.ChildMatches,
			MatchedTerms:   p.MatchedTerms,
			Content:        p.Content,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// snippet returns the first n non-empty-trimmed lines of content.
func snippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
