package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/logging"
	"github.com/opsdesk/opsdesk/internal/session"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a chat message to the support assistant",
		Args:  cobra.ExactArgs(1),
		RunE:  runChat,
	}

	cmd.Flags().String("conversation", "", "continue an existing conversation id")
	cmd.Flags().String("image", "", "attach an image file")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	log := logging.Component("chat")

	gateway := &api.ChatGateway{Client: rt.client, UserID: rt.cfg.Backend.UserID}
	controller := session.NewController()

	conversationID, _ := cmd.Flags().GetString("conversation")
	if conversationID != "" {
		if err := controller.LoadHistory(ctx, gateway, conversationID); err != nil {
			return fmt.Errorf("load conversation %s: %w", conversationID, err)
		}
		if err := controller.Continue(conversationID); err != nil {
			return err
		}
	} else {
		controller.NewSession()
	}

	imageBase64 := ""
	if imagePath, _ := cmd.Flags().GetString("image"); imagePath != "" {
		content, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		// Upload failures degrade to a text-only send.
		imageBase64, err = rt.client.Upload(ctx, filepath.Base(imagePath), content)
		if err != nil {
			log.Warn().Err(err).Msg("image upload failed, sending text only")
			imageBase64 = ""
		}
	}

	reply, err := controller.Send(ctx, gateway, args[0], imageBase64)
	if err != nil {
		return fmt.Errorf("chat send failed: %w", err)
	}

	if isJSONOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), struct {
			ConversationID string `json:"conversation_id"`
			Reply          string `json:"reply"`
			IssueType      string `json:"issue_type,omitempty"`
		}{controller.ActiveConversationID(), reply.Content, reply.IssueType})
	}

	fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
	if reply.IssueType != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "[issue type: %s]\n", reply.IssueType)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "(conversation %s)\n", controller.ActiveConversationID())
	return nil
}
