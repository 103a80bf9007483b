package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/compose"
	"github.com/opsdesk/opsdesk/internal/db"
	"github.com/opsdesk/opsdesk/internal/dispatch"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [recipient]",
		Short: "Compose and send an email",
		Long: "Send an email to one recipient, or to many with --bulk.\n" +
			"A backend template can seed the subject and body; --var fills its placeholders.",
		Args: cobra.MaximumNArgs(1),
		RunE: runSend,
	}

	cmd.Flags().String("subject", "", "email subject")
	cmd.Flags().String("body", "", "email body")
	cmd.Flags().String("body-file", "", "read the body from a file")
	cmd.Flags().String("bulk", "", "multiple recipients separated by commas, semicolons, or newlines")
	cmd.Flags().String("template", "", "backend template name to compose from")
	cmd.Flags().StringArray("var", nil, "template variable as name=value (repeatable)")

	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	to := ""
	if len(args) > 0 {
		to = args[0]
	}
	bulk, _ := cmd.Flags().GetString("bulk")
	subject, _ := cmd.Flags().GetString("subject")
	body, err := resolveBody(cmd)
	if err != nil {
		return err
	}

	if templateName, _ := cmd.Flags().GetString("template"); templateName != "" {
		rendered, err := renderTemplate(ctx, rt, cmd, templateName)
		if err != nil {
			return err
		}
		if subject == "" {
			subject = rendered.Subject
		}
		if body == "" {
			body = rendered.Body
		}
	}

	database, err := db.Open(rt.cfg.DatabasePath(), rt.cfg.Database.BusyTimeoutMs)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.MigrateUp(ctx); err != nil {
		return err
	}

	dispatcher := dispatch.NewDispatcher(rt.client,
		dispatch.WithHistoryLimit(rt.cfg.Email.HistoryLimit),
		dispatch.WithStore(db.NewDispatchRepository(database)),
	)

	outcome, err := dispatcher.Send(ctx, dispatch.Draft{
		To:       to,
		Bulk:     bulk,
		BulkMode: strings.TrimSpace(bulk) != "",
		Subject:  subject,
		Body:     body,
	})
	if err != nil {
		if outcome.Record.ID != "" {
			// Dispatch failure: the failed record is already logged.
			return fmt.Errorf("send failed: %w", err)
		}
		return err
	}

	if isJSONOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), outcome.Record)
	}
	if len(outcome.Recipients) > 1 {
		fmt.Fprintf(cmd.OutOrStdout(), "Email sent to %d recipients\n", len(outcome.Recipients))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Email sent to %s\n", outcome.Recipients[0])
	}
	return nil
}

func resolveBody(cmd *cobra.Command) (string, error) {
	body, _ := cmd.Flags().GetString("body")
	bodyFile, _ := cmd.Flags().GetString("body-file")
	if body != "" && bodyFile != "" {
		return "", fmt.Errorf("provide either --body or --body-file, not both")
	}
	if bodyFile != "" {
		data, err := os.ReadFile(bodyFile)
		if err != nil {
			return "", fmt.Errorf("read body file: %w", err)
		}
		return string(data), nil
	}
	return body, nil
}

func renderTemplate(ctx context.Context, rt *runtime, cmd *cobra.Command, name string) (compose.ComposedText, error) {
	templates, err := rt.client.Templates(ctx)
	if err != nil {
		return compose.ComposedText{}, fmt.Errorf("fetch templates: %w", err)
	}
	remote, ok := templates[name]
	if !ok {
		return compose.ComposedText{}, fmt.Errorf("unknown template %q", name)
	}

	engine := compose.NewEngine()
	engine.Select(compose.Template{
		Name:         remote.Name,
		Subject:      remote.Subject,
		Body:         remote.Body,
		Placeholders: remote.Placeholders,
	})

	vars, _ := cmd.Flags().GetStringArray("var")
	for _, pair := range vars {
		name, value, found := strings.Cut(pair, "=")
		if !found {
			return compose.ComposedText{}, fmt.Errorf("invalid --var %q, expected name=value", pair)
		}
		engine.SetVar(strings.TrimSpace(name), value)
	}

	return engine.Render(), nil
}
