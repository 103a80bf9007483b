package cli

import (
	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/tui"
)

func newTUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive console",
		Long:  "Launch the full-screen console with chat, email compose, tool runner, and history views.",
		RunE:  runTUI,
	}

	cmd.Flags().String("conversation", "", "resume an existing conversation id")
	cmd.Flags().String("theme", "", "color theme (default, high-contrast)")

	return cmd
}

func runTUI(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	conversationID, _ := cmd.Flags().GetString("conversation")
	theme, _ := cmd.Flags().GetString("theme")

	return tui.Run(tui.Config{
		BackendURL:     rt.cfg.Backend.URL,
		UserID:         rt.cfg.Backend.UserID,
		ConversationID: conversationID,
		Timeout:        rt.cfg.Backend.Timeout,
		Theme:          theme,
		HistoryLimit:   rt.cfg.Email.HistoryLimit,
		DatabasePath:   rt.cfg.DatabasePath(),
		BusyTimeoutMs:  rt.cfg.Database.BusyTimeoutMs,
		ShowTimestamps: rt.cfg.TUI.ShowTimestamps,
		CompactMode:    rt.cfg.TUI.CompactMode,
	})
}
