package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SendEmailRequest is the payload for /send-email and /email/bulk.
// Emails is present only for bulk dispatch; To always carries the first
// recipient for backend compatibility.
type SendEmailRequest struct {
	To      string   `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Emails  []string `json:"emails,omitempty"`
}

// Template is a backend-provided email template.
type Template struct {
	Name         string   `json:"name"`
	Subject      string   `json:"subject"`
	Body         string   `json:"body"`
	Placeholders []string `json:"placeholders"`
}

// Tool describes a backend tool. Parameters is kept raw because the
// backend serves it either as a descriptor array or as a name->type map;
// schema.Normalize resolves the shape at the boundary.
type Tool struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest is the payload for /chat.
type ChatRequest struct {
	Text           string `json:"text,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	ImageBase64    string `json:"imageBase64,omitempty"`
}

// ChatResponse is the assistant reply from /chat.
type ChatResponse struct {
	OK        bool   `json:"ok"`
	Text      string `json:"text"`
	IssueType string `json:"issueType,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HistoryMessage is one transcript entry from /history/{id}.
type HistoryMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ConversationSummary is one row from /history?userId=.
type ConversationSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	LastMessage  string `json:"last_message"`
	MessageCount int    `json:"message_count"`
	LastActivity string `json:"last_activity"`
}

// BannedWord is a guardrail entry.
type BannedWord struct {
	ID        int64  `json:"id"`
	Phrase    string `json:"phrase"`
	CreatedAt string `json:"created_at"`
}

// EvalLog is one agent-response evaluation record.
type EvalLog struct {
	ID          string `json:"id"`
	UserInput   string `json:"user_input"`
	AgentOutput string `json:"agent_output"`
	Passed      bool   `json:"passed"`
	Score       Score  `json:"score"`
	Feedback    string `json:"feedback"`
	CreatedAt   string `json:"created_at"`
}

// Score tolerates backends that serialize scores as strings.
type Score float64

// UnmarshalJSON accepts both numeric and quoted numeric scores.
func (s *Score) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	if trimmed == "" || trimmed == "null" {
		*s = 0
		return nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fmt.Errorf("invalid score %q: %w", string(data), err)
	}
	*s = Score(value)
	return nil
}

// EmailServiceConfig reports which email credentials the backend holds.
type EmailServiceConfig struct {
	HasPublicKey    bool   `json:"hasPublicKey"`
	HasSecretKey    bool   `json:"hasSecretKey"`
	HasCredentialID bool   `json:"hasCredentialId"`
	NodeEnv         string `json:"nodeEnv"`
	ServerTime      string `json:"serverTime"`
}
