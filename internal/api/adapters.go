package api

import (
	"context"
	"time"

	"github.com/opsdesk/opsdesk/internal/session"
)

// ChatGateway adapts the backend client to the session controller's
// Sender and HistoryFetcher interfaces.
type ChatGateway struct {
	Client *Client
	UserID string
}

// SendChat implements session.Sender.
func (g *ChatGateway) SendChat(ctx context.Context, conversationID, text, imageBase64 string) (session.Message, error) {
	resp, err := g.Client.Chat(ctx, ChatRequest{
		Text:           text,
		ConversationID: conversationID,
		UserID:         g.UserID,
		ImageBase64:    imageBase64,
	})
	if err != nil {
		return session.Message{}, err
	}
	return session.Message{
		Role:      session.RoleAssistant,
		Content:   resp.Text,
		IssueType: resp.IssueType,
	}, nil
}

// FetchHistory implements session.HistoryFetcher. Message order is taken
// as delivered; the backend is trusted to return chronological order.
func (g *ChatGateway) FetchHistory(ctx context.Context, conversationID string) ([]session.Message, error) {
	history, err := g.Client.Conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	messages := make([]session.Message, 0, len(history))
	for _, entry := range history {
		messages = append(messages, session.Message{
			ID:        entry.ID,
			Role:      entry.Role,
			Content:   entry.Content,
			Timestamp: parseTimestamp(entry.CreatedAt),
		})
	}
	return messages, nil
}

func parseTimestamp(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
