package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/session"
)

func newTestHistoryView() *historyView {
	sessions := session.NewController()
	sessions.NewSession()
	return newHistoryView(sessions, &api.ChatGateway{UserID: "op-1"}, nil, renderOptions{showTimestamps: true})
}

func TestHistoryListNavigation(t *testing.T) {
	v := newTestHistoryView()
	v.Update(conversationsLoadedMsg{conversations: []api.ConversationSummary{
		{ID: "c1", Title: "refund"},
		{ID: "c2", Title: "shipping"},
	}})
	require.True(t, v.loaded)

	v.handleKey(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, 1, v.cursor)
	v.handleKey(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, 1, v.cursor, "cursor clamps at the end")
	v.handleKey(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, 0, v.cursor)
}

func TestHistoryOpenFetchesOnceAndCaches(t *testing.T) {
	v := newTestHistoryView()
	v.Update(conversationsLoadedMsg{conversations: []api.ConversationSummary{{ID: "c1"}}})

	cmd := v.openTranscript("c1")
	require.NotNil(t, cmd, "uncached transcript triggers a fetch")
	require.True(t, v.fetching)

	v.Update(historyFetchedMsg{
		conversationID: "c1",
		messages:       []session.Message{{Role: session.RoleUser, Content: "hi"}},
	})
	require.False(t, v.fetching)

	cached, status := v.sessions.History("c1")
	require.Equal(t, session.HistoryReady, status)
	require.Len(t, cached, 1)

	require.Nil(t, v.openTranscript("c1"), "cached transcript opens without refetching")
}

func TestHistoryFetchFailureKeepsCache(t *testing.T) {
	v := newTestHistoryView()
	v.sessions.BeginHistoryFetch("c1")
	v.sessions.CompleteHistoryFetch("c1", []session.Message{{Content: "kept"}}, nil)

	require.Nil(t, v.openTranscript("c1"))

	// A later forced refetch that fails leaves the cache alone.
	cmd := v.fetchTranscript("c1")
	require.NotNil(t, cmd)
	v.Update(historyFetchedMsg{conversationID: "c1", err: errors.New("down")})
	require.Contains(t, v.notice, "unavailable")

	cached, status := v.sessions.History("c1")
	require.Equal(t, session.HistoryReady, status)
	require.Len(t, cached, 1)
}

func TestHistoryContinueSwitchesToChat(t *testing.T) {
	v := newTestHistoryView()
	v.sessions.BeginHistoryFetch("c1")
	v.sessions.CompleteHistoryFetch("c1", []session.Message{{Content: "old"}}, nil)

	cmd := v.continueConversation("c1")
	require.NotNil(t, cmd)
	require.IsType(t, openChatMsg{}, cmd())

	require.Equal(t, "c1", v.sessions.ActiveConversationID())
	require.Equal(t, session.StateLive, v.sessions.State())
	require.Len(t, v.sessions.Live(), 1)
}

func TestHistoryContinueUncachedFallsBackToOpen(t *testing.T) {
	v := newTestHistoryView()
	cmd := v.continueConversation("c-unknown")
	require.NotNil(t, cmd, "uncached continue degrades to opening the transcript")
	require.NotEmpty(t, v.notice)
}

func TestHistoryTranscriptTimestampToggle(t *testing.T) {
	sessions := session.NewController()
	sessions.NewSession()
	require.NoError(t, sessions.BeginHistoryFetch("c1"))
	sessions.CompleteHistoryFetch("c1", []session.Message{{
		Role:      session.RoleUser,
		Content:   "hi",
		Timestamp: time.Date(2026, 3, 4, 9, 15, 0, 0, time.UTC),
	}}, nil)

	withStamps := newHistoryView(sessions, &api.ChatGateway{UserID: "op-1"}, nil, renderOptions{showTimestamps: true})
	require.Nil(t, withStamps.openTranscript("c1"))
	require.Contains(t, withStamps.View(80, 24, ThemeDefault), "2026-03-04 09:15")

	plain := newHistoryView(sessions, &api.ChatGateway{UserID: "op-1"}, nil, renderOptions{})
	require.Nil(t, plain.openTranscript("c1"))
	require.NotContains(t, plain.View(80, 24, ThemeDefault), "2026-03-04 09:15")
}

func TestHistoryEscResumesLive(t *testing.T) {
	v := newTestHistoryView()
	v.sessions.BeginHistoryFetch("c1")
	v.sessions.CompleteHistoryFetch("c1", nil, nil)
	require.Nil(t, v.openTranscript("c1"))
	require.Equal(t, session.StateBrowsingHistory, v.sessions.State())

	v.handleTranscriptKey(tea.KeyMsg{Type: tea.KeyEsc})
	require.Empty(t, v.openID)
	require.Equal(t, session.StateLive, v.sessions.State())
}
