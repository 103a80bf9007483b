package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/form"
	"github.com/opsdesk/opsdesk/internal/schema"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List and run backend tools",
	}
	cmd.AddCommand(newToolsListCmd(), newToolsRunCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available tools and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}

			tools, err := rt.client.Tools(cmd.Context())
			if err != nil {
				return fmt.Errorf("list tools: %w", err)
			}

			if isJSONOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), tools)
			}

			rows := make([][]string, 0, len(tools))
			for _, tool := range tools {
				specs, err := schema.Normalize(tool.Parameters)
				if err != nil {
					return fmt.Errorf("tool %s: %w", tool.ID, err)
				}
				rows = append(rows, []string{
					tool.ID,
					tool.Name,
					tool.Category,
					formatParams(specs),
				})
			}
			return writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "CATEGORY", "PARAMETERS"}, rows)
		},
	}
}

func newToolsRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <tool-id>",
		Short: "Run a tool with the given parameters",
		Args:  cobra.ExactArgs(1),
		RunE:  runTool,
	}
	cmd.Flags().StringArray("param", nil, "tool parameter as name=value (repeatable)")
	return cmd
}

func runTool(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	toolID := args[0]

	tools, err := rt.client.Tools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	var tool *api.Tool
	for i := range tools {
		if tools[i].ID == toolID {
			tool = &tools[i]
			break
		}
	}
	if tool == nil {
		return fmt.Errorf("unknown tool %q", toolID)
	}

	specs, err := schema.Normalize(tool.Parameters)
	if err != nil {
		return fmt.Errorf("tool %s: %w", toolID, err)
	}

	controller := form.NewController()
	controller.SetSchema(specs)

	params, _ := cmd.Flags().GetStringArray("param")
	for _, pair := range params {
		name, value, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("invalid --param %q, expected name=value", pair)
		}
		controller.SetValue(strings.TrimSpace(name), value)
	}

	result, err := controller.Submit(ctx, form.RunnerFunc(
		func(ctx context.Context, values map[string]string) (json.RawMessage, error) {
			return rt.client.ExecuteTool(ctx, toolID, values)
		}))
	if err != nil {
		return err
	}

	if isJSONOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	if !result.OK {
		return fmt.Errorf("tool failed: %s", result.Err)
	}
	if len(result.Data) > 0 {
		pretty, err := json.MarshalIndent(json.RawMessage(result.Data), "", "  ")
		if err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
			return nil
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}

func formatParams(specs []schema.ParameterSpec) string {
	if len(specs) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(specs))
	for _, spec := range specs {
		name := spec.Name
		if !spec.Required {
			name += "?"
		}
		parts = append(parts, fmt.Sprintf("%s:%s", name, spec.Type))
	}
	return strings.Join(parts, " ")
}
