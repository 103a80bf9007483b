package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect opsdesk and backend configuration",
	}
	cmd.AddCommand(newConfigCheckCmd())
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe backend connectivity and email credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			healthErr := rt.client.Health(ctx)
			emailCfg, emailErr := rt.client.EmailConfig(ctx)

			if isJSONOutput(cmd) {
				payload := struct {
					Backend   string `json:"backend"`
					Connected bool   `json:"connected"`
					Email     any    `json:"email,omitempty"`
				}{rt.cfg.Backend.URL, healthErr == nil, nil}
				if emailErr == nil {
					payload.Email = emailCfg
				}
				return writeJSON(cmd.OutOrStdout(), payload)
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintf(writer, "Backend:\t%s\n", rt.cfg.Backend.URL)
			fmt.Fprintf(writer, "Connected:\t%s\n", yesNo(healthErr == nil))
			if emailErr == nil {
				fmt.Fprintf(writer, "Email public key:\t%s\n", configured(emailCfg.HasPublicKey))
				fmt.Fprintf(writer, "Email secret key:\t%s\n", configured(emailCfg.HasSecretKey))
				fmt.Fprintf(writer, "Email credential id:\t%s\n", configured(emailCfg.HasCredentialID))
				if emailCfg.NodeEnv != "" {
					fmt.Fprintf(writer, "Environment:\t%s\n", emailCfg.NodeEnv)
				}
			} else {
				fmt.Fprintf(writer, "Email service:\tunavailable (%v)\n", emailErr)
			}
			return writer.Flush()
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func configured(value bool) string {
	if value {
		return "configured"
	}
	return "missing"
}
