package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/db"
	"github.com/opsdesk/opsdesk/internal/dispatch"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the dispatch history",
		Long:  "Export the persisted email dispatch history as CSV.",
		RunE:  runExport,
	}
	cmd.Flags().String("out", "", "write to a file instead of stdout")
	cmd.Flags().Int("limit", 0, "maximum number of records (0 for all)")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	database, err := db.Open(rt.cfg.DatabasePath(), rt.cfg.Database.BusyTimeoutMs)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.MigrateUp(ctx); err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := db.NewDispatchRepository(database).List(ctx, limit)
	if err != nil {
		return fmt.Errorf("load dispatch history: %w", err)
	}

	out := cmd.OutOrStdout()
	if outPath, _ := cmd.Flags().GetString("out"); outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer file.Close()
		out = file
	}

	return dispatch.WriteCSV(out, records)
}
