package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newGuardrailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guardrails",
		Short: "Manage banned words and phrases",
	}
	cmd.AddCommand(newGuardrailsListCmd(), newGuardrailsAddCmd(), newGuardrailsDeleteCmd())
	return cmd
}

func newGuardrailsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List banned phrases",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			words, err := rt.client.BannedWords(cmd.Context())
			if err != nil {
				return fmt.Errorf("list banned words: %w", err)
			}
			if isJSONOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), words)
			}
			rows := make([][]string, 0, len(words))
			for _, word := range words {
				rows = append(rows, []string{strconv.FormatInt(word.ID, 10), word.Phrase, word.CreatedAt})
			}
			return writeTable(cmd.OutOrStdout(), []string{"ID", "PHRASE", "ADDED"}, rows)
		},
	}
}

func newGuardrailsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <phrase>",
		Short: "Add a banned phrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phrase := strings.TrimSpace(args[0])
			if phrase == "" {
				return fmt.Errorf("phrase must not be empty")
			}
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.client.AddBannedWord(cmd.Context(), phrase); err != nil {
				return fmt.Errorf("add banned phrase: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %q\n", phrase)
			return nil
		},
	}
}

func newGuardrailsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a banned phrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.client.DeleteBannedWord(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete banned phrase: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
			return nil
		},
	}
}
