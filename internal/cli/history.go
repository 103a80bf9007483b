package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/session"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "List conversations or show one transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if len(args) == 0 {
		conversations, err := rt.client.Conversations(ctx, rt.cfg.Backend.UserID)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		if isJSONOutput(cmd) {
			return writeJSON(cmd.OutOrStdout(), conversations)
		}

		rows := make([][]string, 0, len(conversations))
		for _, conv := range conversations {
			rows = append(rows, []string{
				conv.ID,
				conv.Title,
				strconv.Itoa(conv.MessageCount),
				conv.LastActivity,
			})
		}
		return writeTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "MESSAGES", "LAST ACTIVITY"}, rows)
	}

	conversationID := args[0]
	gateway := &api.ChatGateway{Client: rt.client, UserID: rt.cfg.Backend.UserID}
	controller := session.NewController()

	if err := controller.LoadHistory(ctx, gateway, conversationID); err != nil {
		// Unavailable is distinct from empty: nothing could be confirmed.
		fmt.Fprintf(cmd.ErrOrStderr(), "History for %s is unavailable.\n", conversationID)
		return err
	}

	messages, _ := controller.History(conversationID)
	if isJSONOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), messages)
	}
	if len(messages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No messages in this conversation.")
		return nil
	}
	for _, msg := range messages {
		stamp := ""
		if !msg.Timestamp.IsZero() {
			stamp = msg.Timestamp.Format("2006-01-02 15:04") + " "
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s: %s\n", stamp, msg.Role, msg.Content)
	}
	return nil
}
