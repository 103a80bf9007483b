// Package api is the HTTP client for the support-automation backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsdesk/opsdesk/internal/logging"
)

// ErrBackendUnavailable indicates the backend could not be reached at all.
var ErrBackendUnavailable = errors.New("backend unavailable")

// APIError is a failure body returned by the backend.
type APIError struct {
	Status  int
	Message string
	Raw     json.RawMessage
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (%d)", e.Status)
}

// Client talks to the support-automation backend.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a backend client. The base URL must not have a trailing slash.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logging.Component("api"),
	}
}

// Health probes /health for connectivity.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// SendEmail posts to the single-recipient or bulk endpoint depending on
// whether req.Emails is populated. The raw response body is returned for
// dispatch-record keeping even on application failure.
func (c *Client) SendEmail(ctx context.Context, req SendEmailRequest) (json.RawMessage, error) {
	endpoint := "/send-email"
	if len(req.Emails) > 0 {
		endpoint = "/email/bulk"
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, endpoint, req, &raw); err != nil {
		return raw, err
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || !out.OK {
		return raw, newAPIError(http.StatusOK, raw)
	}
	return raw, nil
}

// Templates fetches the backend's email templates keyed by name.
func (c *Client) Templates(ctx context.Context) (map[string]Template, error) {
	var out struct {
		Templates map[string]Template `json:"templates"`
	}
	if err := c.do(ctx, http.MethodGet, "/email/templates", nil, &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

// EmailConfig fetches the backend's email credential status.
func (c *Client) EmailConfig(ctx context.Context) (*EmailServiceConfig, error) {
	var out struct {
		Config EmailServiceConfig `json:"config"`
	}
	if err := c.do(ctx, http.MethodGet, "/email/config", nil, &out); err != nil {
		return nil, err
	}
	return &out.Config, nil
}

// Tools lists the backend-defined tools.
func (c *Client) Tools(ctx context.Context) ([]Tool, error) {
	var out struct {
		OK    bool   `json:"ok"`
		Tools []Tool `json:"tools"`
	}
	if err := c.do(ctx, http.MethodGet, "/tools", nil, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// ExecuteTool invokes a tool with the given parameter values.
func (c *Client) ExecuteTool(ctx context.Context, toolID string, params map[string]string) (json.RawMessage, error) {
	req := struct {
		ToolID     string            `json:"toolId"`
		Parameters map[string]string `json:"parameters"`
	}{ToolID: toolID, Parameters: params}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/tools/execute", req, &raw); err != nil {
		return nil, err
	}
	var out struct {
		OK   bool            `json:"ok"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.OK {
		return nil, newAPIError(http.StatusOK, raw)
	}
	return out.Data, nil
}

// Chat sends a chat message and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", req, &out); err != nil {
		return nil, err
	}
	if !out.OK || out.Text == "" {
		msg := out.Error
		if msg == "" {
			msg = "no response from assistant"
		}
		return nil, &APIError{Status: http.StatusOK, Message: msg}
	}
	return &out, nil
}

// Conversation fetches the transcript of one conversation.
func (c *Client) Conversation(ctx context.Context, id string) ([]HistoryMessage, error) {
	var out struct {
		OK      bool             `json:"ok"`
		History []HistoryMessage `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/history/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, &APIError{Status: http.StatusOK, Message: "history fetch rejected"}
	}
	return out.History, nil
}

// Conversations lists conversation summaries for a user.
func (c *Client) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	var out struct {
		OK            bool                  `json:"ok"`
		Conversations []ConversationSummary `json:"conversations"`
	}
	path := "/history?userId=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// BannedWords lists the guardrail banned phrases.
func (c *Client) BannedWords(ctx context.Context) ([]BannedWord, error) {
	var out struct {
		Words []BannedWord `json:"words"`
	}
	if err := c.do(ctx, http.MethodGet, "/guardrails/banned-words", nil, &out); err != nil {
		return nil, err
	}
	return out.Words, nil
}

// AddBannedWord adds a phrase to the guardrail list.
func (c *Client) AddBannedWord(ctx context.Context, phrase string) error {
	req := struct {
		Phrase string `json:"phrase"`
	}{Phrase: phrase}
	return c.do(ctx, http.MethodPost, "/guardrails/banned-words", req, nil)
}

// DeleteBannedWord removes a phrase by id.
func (c *Client) DeleteBannedWord(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/guardrails/banned-words/%d", id), nil, nil)
}

// EvalLogs lists agent-response evaluation records.
func (c *Client) EvalLogs(ctx context.Context) ([]EvalLog, error) {
	var out struct {
		Logs []EvalLog `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, "/evals/logs", nil, &out); err != nil {
		return nil, err
	}
	return out.Logs, nil
}

// DeleteEvalLog removes an evaluation record by id.
func (c *Client) DeleteEvalLog(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/evals/logs/"+url.PathEscape(id), nil, nil)
}

// Upload sends an image and returns its base64 representation.
func (c *Client) Upload(ctx context.Context, filename string, content []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", newAPIError(resp.StatusCode, body)
	}

	var out struct {
		OK          bool   `json:"ok"`
		ImageBase64 string `json:"imageBase64"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if !out.OK || out.ImageBase64 == "" {
		return "", newAPIError(resp.StatusCode, body)
	}
	return out.ImageBase64, nil
}

// do issues a JSON request and decodes the response into out when non-nil.
// Transport failures wrap ErrBackendUnavailable; HTTP or body-level failures
// become *APIError. Callers that treat both the same just check err != nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Str("path", path).Err(err).Msg("request failed")
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("backend request")

	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if rawOut, ok := out.(*json.RawMessage); ok {
		*rawOut = json.RawMessage(raw)
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Raw: json.RawMessage(body)}
	var failure struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &failure); err == nil {
		apiErr.Message = failure.Error
	}
	return apiErr
}
