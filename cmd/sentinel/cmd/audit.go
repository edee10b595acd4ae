package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RajeshTechForge/sentinel-rag/internal/audit"
	"github.com/RajeshTechForge/sentinel-rag/internal/output"
)

func newAuditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit events",
		Long:  `Show the most recent audit events (queries, ingests, deletes), newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			sink, err := audit.NewSQLiteSink(cfg.Paths.AuditDB)
			if err != nil {
				return err
			}
			defer func() { _ = sink.Close() }()

			events, err := sink.Recent(limit)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if len(events) == 0 {
				out.Status("", "no audit events")
				return nil
			}

			for _, e := range events {
				switch e.Action {
				case audit.ActionQuery:
					flags := ""
					if e.Degraded {
						flags += " degraded"
					}
					if e.Partial {
						flags += " partial"
					}
					out.Statusf("", "%s  query   user=%s results=%d %q%s",
						e.Timestamp.Format("2006-01-02 15:04:05"), e.UserID, e.ResultCount, e.Query, flags)
				default:
					out.Statusf("", "%s  %-7s doc=%s",
						e.Timestamp.Format("2006-01-02 15:04:05"), string(e.Action), e.DocumentID)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events")

	return cmd
}
