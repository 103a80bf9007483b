package tui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/session"
)

type conversationsLoadedMsg struct {
	conversations []api.ConversationSummary
	err           error
}

type historyFetchedMsg struct {
	conversationID string
	messages       []session.Message
	err            error
}

type historyView struct {
	sessions *session.Controller
	gateway  *api.ChatGateway
	client   *api.Client
	opts     renderOptions

	conversations []api.ConversationSummary
	loadErr       error
	loaded        bool
	cursor        int

	openID   string // transcript being browsed, empty when listing
	offset   int
	fetching bool
	notice   string
}

func newHistoryView(sessions *session.Controller, gateway *api.ChatGateway, client *api.Client, opts renderOptions) *historyView {
	return &historyView{
		sessions: sessions,
		gateway:  gateway,
		client:   client,
		opts:     opts,
	}
}

func (v *historyView) Init() tea.Cmd {
	return v.reloadCmd()
}

func (v *historyView) reloadCmd() tea.Cmd {
	client := v.client
	userID := v.gateway.UserID
	return func() tea.Msg {
		ctx, cancel := requestContext(0)
		defer cancel()
		conversations, err := client.Conversations(ctx, userID)
		return conversationsLoadedMsg{conversations: conversations, err: err}
	}
}

func (v *historyView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case conversationsLoadedMsg:
		v.loaded = true
		v.loadErr = typed.err
		if typed.err == nil {
			v.conversations = typed.conversations
			v.cursor = clampInt(v.cursor, 0, maxInt(0, len(typed.conversations)-1))
		}
		return nil
	case historyFetchedMsg:
		v.fetching = false
		v.sessions.CompleteHistoryFetch(typed.conversationID, typed.messages, typed.err)
		if typed.err != nil {
			v.notice = "transcript unavailable: " + typed.err.Error()
			v.openID = ""
		}
		return nil
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *historyView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.openID != "" {
		return v.handleTranscriptKey(msg)
	}

	switch msg.String() {
	case "up", "k":
		v.cursor = maxInt(0, v.cursor-1)
	case "down", "j":
		v.cursor = minInt(maxInt(0, len(v.conversations)-1), v.cursor+1)
	case "enter":
		if len(v.conversations) > 0 {
			return v.openTranscript(v.conversations[v.cursor].ID)
		}
	case "c":
		if len(v.conversations) > 0 {
			return v.continueConversation(v.conversations[v.cursor].ID)
		}
	case "n":
		v.sessions.NewSession()
		return openChatCmd()
	case "R":
		return v.reloadCmd()
	}
	return nil
}

func (v *historyView) handleTranscriptKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "backspace":
		v.openID = ""
		v.offset = 0
		if err := v.sessions.ResumeLive(); err != nil {
			v.notice = err.Error()
		}
	case "up", "k":
		v.offset++
	case "down", "j":
		v.offset = maxInt(0, v.offset-1)
	case "pgup":
		v.offset += 10
	case "pgdown":
		v.offset = maxInt(0, v.offset-10)
	case "c":
		return v.continueConversation(v.openID)
	}
	return nil
}

// openTranscript shows a cached transcript immediately and refetches it
// otherwise. The cache survives failed refreshes, so a conversation read
// once stays readable offline.
func (v *historyView) openTranscript(id string) tea.Cmd {
	v.notice = ""
	v.openID = id
	v.offset = 0

	if _, status := v.sessions.History(id); status == session.HistoryReady {
		return nil
	}
	return v.fetchTranscript(id)
}

func (v *historyView) fetchTranscript(id string) tea.Cmd {
	if err := v.sessions.BeginHistoryFetch(id); err != nil {
		if errors.Is(err, session.ErrFetchInFlight) {
			return nil
		}
		v.notice = err.Error()
		return nil
	}
	v.fetching = true
	gateway := v.gateway
	return func() tea.Msg {
		ctx, cancel := requestContext(0)
		defer cancel()
		messages, err := gateway.FetchHistory(ctx, id)
		return historyFetchedMsg{conversationID: id, messages: messages, err: err}
	}
}

func (v *historyView) continueConversation(id string) tea.Cmd {
	if err := v.sessions.Continue(id); err != nil {
		if errors.Is(err, session.ErrNotCached) {
			v.notice = "transcript not loaded yet, open it first"
			return v.openTranscript(id)
		}
		v.notice = err.Error()
		return nil
	}
	v.openID = ""
	return openChatCmd()
}

func (v *historyView) View(width, height int, theme Theme) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	p := themePalette(theme)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted))
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Selected)).Bold(true)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error))
	own := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Own)).Bold(true)
	other := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Other)).Bold(true)

	if v.openID != "" {
		return v.renderTranscript(width, height, muted, errStyle, own, other)
	}
	return v.renderList(width, height, muted, accent, errStyle)
}

func (v *historyView) renderList(width, height int, muted, accent, errStyle lipgloss.Style) string {
	lines := make([]string, 0, height)
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render("HISTORY  (enter opens, c continues, n starts new, R reloads)"))

	switch {
	case !v.loaded:
		lines = append(lines, muted.Render("  loading..."))
	case v.loadErr != nil:
		lines = append(lines, errStyle.Render(truncateVis("  history unavailable: "+v.loadErr.Error(), width)))
	case len(v.conversations) == 0:
		lines = append(lines, muted.Render("  no conversations yet"))
	}

	for i, conv := range v.conversations {
		title := conv.Title
		if title == "" {
			title = shortID(conv.ID)
		}
		meta := muted.Render(fmt.Sprintf("%d msgs  %s", conv.MessageCount, conv.LastActivity))
		line := fmt.Sprintf("  %s  %s", truncate(title, maxInt(8, width/2)), meta)
		if i == v.cursor {
			line = accent.Render("> "+truncate(title, maxInt(8, width/2))) + "  " + meta
		}
		lines = append(lines, truncateVis(line, width))
		if conv.LastMessage != "" && len(lines) < height {
			lines = append(lines, muted.Render(truncateVis("      "+conv.LastMessage, width)))
		}
	}
	if v.notice != "" {
		lines = append(lines, errStyle.Render(truncateVis(v.notice, width)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, clampToHeight(lines, height)...)
}

func (v *historyView) renderTranscript(width, height int, muted, errStyle, own, other lipgloss.Style) string {
	lines := make([]string, 0, height)
	lines = append(lines, lipgloss.NewStyle().Bold(true).
		Render(truncateVis(fmt.Sprintf("TRANSCRIPT %s  (c continues, esc back)", shortID(v.openID)), width)))

	messages, status := v.sessions.History(v.openID)
	switch status {
	case session.HistoryMissing:
		if v.fetching {
			lines = append(lines, muted.Render("  loading..."))
		} else {
			lines = append(lines, muted.Render("  transcript not loaded"))
		}
	case session.HistoryUnavailable:
		lines = append(lines, errStyle.Render("  transcript unavailable"))
	case session.HistoryReady:
		if len(messages) == 0 {
			lines = append(lines, muted.Render("  (empty conversation)"))
		}
	}

	body := make([]string, 0, len(messages)*3)
	for _, msg := range messages {
		label := own.Render("you")
		if msg.Role == session.RoleAssistant {
			label = other.Render("agent")
		}
		stamp := ""
		if v.opts.showTimestamps && !msg.Timestamp.IsZero() {
			stamp = "  " + muted.Render(msg.Timestamp.Format("2006-01-02 15:04"))
		}
		body = append(body, label+stamp)
		for _, line := range wrapText(msg.Content, maxInt(1, width-2)) {
			body = append(body, "  "+line)
		}
		if !v.opts.compact {
			body = append(body, "")
		}
	}

	contentH := maxInt(0, height-len(lines))
	v.offset = clampInt(v.offset, 0, maxInt(0, len(body)-contentH))
	end := len(body) - v.offset
	start := maxInt(0, end-contentH)
	lines = append(lines, body[start:end]...)
	if v.notice != "" && len(lines) < height {
		lines = append(lines, errStyle.Render(truncateVis(v.notice, width)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, clampToHeight(lines, height)...)
}
