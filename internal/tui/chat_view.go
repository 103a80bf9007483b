package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/session"
)

type chatAttachmentMsg struct {
	text        string
	imageBase64 string
	uploadErr   error
}

type chatReplyMsg struct {
	reply session.Message
	err   error
}

type chatView struct {
	sessions *session.Controller
	gateway  *api.ChatGateway
	client   *api.Client
	opts     renderOptions

	input       string
	attachPath  string
	attachInput bool

	offset int // transcript lines scrolled up from the bottom
	notice string
}

func newChatView(sessions *session.Controller, gateway *api.ChatGateway, client *api.Client, opts renderOptions) *chatView {
	return &chatView{
		sessions: sessions,
		gateway:  gateway,
		client:   client,
		opts:     opts,
	}
}

func (v *chatView) Init() tea.Cmd {
	return nil
}

func (v *chatView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case chatAttachmentMsg:
		if typed.uploadErr != nil {
			v.notice = "image upload failed, sending text only"
		}
		return v.sendCmd(typed.text, typed.imageBase64)
	case chatReplyMsg:
		v.sessions.CompleteSend(typed.reply, typed.err)
		v.offset = 0
		return nil
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *chatView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.attachInput {
		return v.handleAttachKey(msg)
	}

	switch msg.String() {
	case "enter":
		return v.submit()
	case "ctrl+n":
		v.sessions.NewSession()
		v.offset = 0
		v.notice = "started a new conversation"
		return nil
	case "ctrl+a":
		v.attachInput = true
		return nil
	case "ctrl+x":
		v.attachPath = ""
		v.notice = ""
		return nil
	case "up":
		v.offset++
		return nil
	case "down":
		v.offset = maxInt(0, v.offset-1)
		return nil
	case "pgup":
		v.offset += 10
		return nil
	case "pgdown":
		v.offset = maxInt(0, v.offset-10)
		return nil
	case "backspace":
		if len(v.input) > 0 {
			runes := []rune(v.input)
			v.input = string(runes[:len(runes)-1])
		}
		return nil
	}

	switch msg.Type {
	case tea.KeyRunes:
		v.input += string(msg.Runes)
	case tea.KeySpace:
		v.input += " "
	}
	return nil
}

func (v *chatView) handleAttachKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		v.attachInput = false
		return nil
	case tea.KeyEnter:
		v.attachPath = strings.TrimSpace(v.attachPath)
		v.attachInput = false
		return nil
	case tea.KeyBackspace:
		if len(v.attachPath) > 0 {
			runes := []rune(v.attachPath)
			v.attachPath = string(runes[:len(runes)-1])
		}
		return nil
	case tea.KeyRunes:
		v.attachPath += string(msg.Runes)
		return nil
	}
	return nil
}

func (v *chatView) submit() tea.Cmd {
	text := strings.TrimSpace(v.input)
	if text == "" {
		return nil
	}
	if v.sessions.SendInFlight() {
		v.notice = "still waiting for the previous reply"
		return nil
	}
	if v.sessions.State() != session.StateLive {
		v.notice = "no live session yet"
		return nil
	}

	v.input = ""
	v.notice = ""

	if v.attachPath != "" {
		path := v.attachPath
		v.attachPath = ""
		// The send slot is claimed and the message appended before the
		// upload starts, so a competing send cannot slip in while the
		// image is still uploading.
		if _, err := v.sessions.BeginSend(text, ""); err != nil {
			v.notice = err.Error()
			return nil
		}
		v.offset = 0
		client := v.client
		return func() tea.Msg {
			content, err := os.ReadFile(path)
			if err != nil {
				return chatAttachmentMsg{text: text, uploadErr: err}
			}
			ctx, cancel := requestContext(0)
			defer cancel()
			imageBase64, err := client.Upload(ctx, filepath.Base(path), content)
			if err != nil {
				// Upload failures degrade to a text-only send.
				return chatAttachmentMsg{text: text, uploadErr: err}
			}
			return chatAttachmentMsg{text: text, imageBase64: imageBase64}
		}
	}
	return v.beginSend(text, "")
}

// beginSend does the optimistic append on the UI loop, then hands the
// network call to a command.
func (v *chatView) beginSend(text, imageBase64 string) tea.Cmd {
	if _, err := v.sessions.BeginSend(text, imageBase64); err != nil {
		v.notice = err.Error()
		return nil
	}
	v.offset = 0
	return v.sendCmd(text, imageBase64)
}

// sendCmd delivers a message whose send slot is already claimed.
func (v *chatView) sendCmd(text, imageBase64 string) tea.Cmd {
	gateway := v.gateway
	conversationID := v.sessions.ActiveConversationID()
	return func() tea.Msg {
		ctx, cancel := requestContext(0)
		defer cancel()
		reply, err := gateway.SendChat(ctx, conversationID, text, imageBase64)
		return chatReplyMsg{reply: reply, err: err}
	}
}

func (v *chatView) View(width, height int, theme Theme) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	p := themePalette(theme)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted))
	own := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Own)).Bold(true)
	other := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Other)).Bold(true)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error))

	titleLine := lipgloss.NewStyle().Bold(true).
		Render(truncateVis(fmt.Sprintf("CHAT  conversation %s", shortID(v.sessions.ActiveConversationID())), width))

	inputLines := v.renderInput(width, muted)

	transcriptH := height - 1 - len(inputLines)
	if transcriptH < 0 {
		transcriptH = 0
	}
	transcript := v.renderTranscript(width, transcriptH, own, other, muted, errStyle)

	lines := make([]string, 0, height)
	lines = append(lines, titleLine)
	lines = append(lines, transcript...)
	lines = append(lines, inputLines...)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (v *chatView) renderInput(width int, muted lipgloss.Style) []string {
	lines := make([]string, 0, 3)
	if v.attachInput {
		lines = append(lines, muted.Render("attach path: ")+v.attachPath+"█")
	} else if v.attachPath != "" {
		lines = append(lines, muted.Render(truncateVis("attachment: "+v.attachPath+"  (^X to remove)", width)))
	}
	if v.notice != "" {
		lines = append(lines, muted.Render(truncateVis(v.notice, width)))
	}

	prompt := "> " + v.input
	if v.sessions.SendInFlight() {
		prompt = "> " + v.input + "  " + "(sending...)"
	} else if !v.attachInput {
		prompt += "█"
	}
	lines = append(lines, truncateVis(prompt, width))
	return lines
}

func (v *chatView) renderTranscript(width, height int, own, other, muted, errStyle lipgloss.Style) []string {
	if height <= 0 {
		return nil
	}

	messages := v.sessions.Live()
	all := make([]string, 0, len(messages)*3)
	for _, msg := range messages {
		label := own.Render("you")
		if msg.Role == session.RoleAssistant {
			label = other.Render("agent")
		}
		stamp := ""
		if v.opts.showTimestamps && !msg.Timestamp.IsZero() {
			stamp = "  " + muted.Render(msg.Timestamp.Format("15:04:05"))
		}
		head := label + stamp
		if msg.IssueType != "" {
			head += "  " + muted.Render("["+msg.IssueType+"]")
		}
		all = append(all, head)

		style := lipgloss.NewStyle()
		if msg.Role == session.RoleAssistant && strings.HasPrefix(msg.Content, "Sorry, I couldn't reach the backend") {
			style = errStyle
		}
		for _, line := range wrapText(msg.Content, maxInt(1, width-2)) {
			all = append(all, style.Render("  "+line))
		}
		if msg.ImageURL != "" {
			all = append(all, muted.Render("  [image attached]"))
		}
		if !v.opts.compact {
			all = append(all, "")
		}
	}

	if len(all) == 0 {
		return []string{muted.Render("  (no messages yet, type below and press enter)")}
	}

	v.offset = clampInt(v.offset, 0, maxInt(0, len(all)-height))
	end := len(all) - v.offset
	start := maxInt(0, end-height)
	return all[start:end]
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
