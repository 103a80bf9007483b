package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, 5*time.Second)
}

func TestSendEmailRoutesSingleAndBulk(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		io.WriteString(w, `{"ok": true}`)
	})

	_, err := client.SendEmail(context.Background(), SendEmailRequest{
		To: "a@x.com", Subject: "s", Body: "b",
	})
	require.NoError(t, err)

	_, err = client.SendEmail(context.Background(), SendEmailRequest{
		To: "a@x.com", Subject: "s", Body: "b",
		Emails: []string{"a@x.com", "b@x.com"},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"/send-email", "/email/bulk"}, paths)
}

func TestSendEmailApplicationFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok": false, "error": "quota exceeded"}`)
	})

	raw, err := client.SendEmail(context.Background(), SendEmailRequest{To: "a@x.com"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "quota exceeded", apiErr.Message)
	require.NotEmpty(t, raw, "raw body kept for the dispatch record")
}

func TestTransportFailureWrapsBackendUnavailable(t *testing.T) {
	client := New("http://127.0.0.1:1", 500*time.Millisecond)

	err := client.Health(context.Background())
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestHTTPStatusBecomesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": "missing to"}`)
	})

	err := client.Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "missing to", apiErr.Message)
}

func TestChatSuccessAndFailureShapes(t *testing.T) {
	responses := []string{
		`{"ok": true, "text": "hello there", "issueType": "billing"}`,
		`{"ok": false, "error": "model offline"}`,
		`{"ok": true, "text": ""}`,
	}
	i := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "op-1", req.UserID)
		io.WriteString(w, responses[i])
		i++
	})

	out, err := client.Chat(context.Background(), ChatRequest{Text: "hi", UserID: "op-1"})
	require.NoError(t, err)
	require.Equal(t, "hello there", out.Text)
	require.Equal(t, "billing", out.IssueType)

	_, err = client.Chat(context.Background(), ChatRequest{Text: "hi", UserID: "op-1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "model offline", apiErr.Message)

	_, err = client.Chat(context.Background(), ChatRequest{Text: "hi", UserID: "op-1"})
	require.Error(t, err, "ok with empty text is still a failure")
}

func TestExecuteToolUnwrapsData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ToolID     string            `json:"toolId"`
			Parameters map[string]string `json:"parameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "lookup_order", req.ToolID)
		require.Equal(t, "1042", req.Parameters["order_id"])
		io.WriteString(w, `{"ok": true, "data": {"status": "shipped"}}`)
	})

	data, err := client.ExecuteTool(context.Background(), "lookup_order", map[string]string{"order_id": "1042"})
	require.NoError(t, err)
	require.JSONEq(t, `{"status": "shipped"}`, string(data))
}

func TestConversationsPassesUserID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "op 1", r.URL.Query().Get("userId"))
		io.WriteString(w, `{"ok": true, "conversations": [{"id": "c1", "message_count": 4}]}`)
	})

	out, err := client.Conversations(context.Background(), "op 1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 4, out[0].MessageCount)
}

func TestUpload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "shot.png", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3}, content)
		io.WriteString(w, `{"ok": true, "imageBase64": "AQID"}`)
	})

	b64, err := client.Upload(context.Background(), "shot.png", []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, "AQID", b64)
}

func TestUploadFailureShapes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok": false, "error": "too large"}`)
	})
	_, err := client.Upload(context.Background(), "x.png", []byte{1})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "too large", apiErr.Message)
}

func TestScoreAcceptsQuotedNumbers(t *testing.T) {
	var log EvalLog
	require.NoError(t, json.Unmarshal([]byte(`{"id": "e1", "score": "0.85", "passed": true}`), &log))
	require.InDelta(t, 0.85, float64(log.Score), 1e-9)

	require.NoError(t, json.Unmarshal([]byte(`{"id": "e2", "score": 0.4}`), &log))
	require.InDelta(t, 0.4, float64(log.Score), 1e-9)
}
