package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/api"
)

func newEvalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evals",
		Short: "Review agent-response evaluations",
	}
	cmd.AddCommand(newEvalsListCmd(), newEvalsStatsCmd(), newEvalsDeleteCmd())
	return cmd
}

func newEvalsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List evaluation logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			logs, err := rt.client.EvalLogs(cmd.Context())
			if err != nil {
				return fmt.Errorf("list eval logs: %w", err)
			}
			if isJSONOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), logs)
			}
			rows := make([][]string, 0, len(logs))
			for _, log := range logs {
				verdict := "FAIL"
				if log.Passed {
					verdict = "PASS"
				}
				rows = append(rows, []string{
					log.ID,
					verdict,
					fmt.Sprintf("%.2f", float64(log.Score)),
					truncate(log.UserInput, 60),
					log.CreatedAt,
				})
			}
			return writeTable(cmd.OutOrStdout(), []string{"ID", "VERDICT", "SCORE", "INPUT", "CREATED"}, rows)
		},
	}
}

func newEvalsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize evaluation results",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			logs, err := rt.client.EvalLogs(cmd.Context())
			if err != nil {
				return fmt.Errorf("list eval logs: %w", err)
			}

			stats := buildEvalStats(logs)
			if isJSONOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), stats)
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintf(writer, "Total:\t%d\n", stats.Total)
			fmt.Fprintf(writer, "Passed:\t%d\n", stats.Passed)
			fmt.Fprintf(writer, "Failed:\t%d\n", stats.Failed)
			fmt.Fprintf(writer, "Avg score:\t%.2f\n", stats.AvgScore)
			return writer.Flush()
		},
	}
}

func newEvalsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an evaluation log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.client.DeleteEvalLog(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete eval log: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// EvalStats aggregates evaluation outcomes.
type EvalStats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	AvgScore float64 `json:"avg_score"`
}

func buildEvalStats(logs []api.EvalLog) EvalStats {
	stats := EvalStats{Total: len(logs)}
	sum := 0.0
	for _, log := range logs {
		if log.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}
		sum += float64(log.Score)
	}
	if stats.Total > 0 {
		stats.AvgScore = sum / float64(stats.Total)
	}
	return stats
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
