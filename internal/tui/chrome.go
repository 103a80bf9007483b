package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) renderHeader() string {
	p := themePalette(m.theme)

	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Foreground)).
		Background(lipgloss.Color(p.Header)).
		Bold(true).
		Padding(0, 1)

	left := "opsdesk"
	center := fmt.Sprintf("%s  %s", viewTitle(m.activeViewID()), m.cfg.BackendURL)
	right := m.connectionStatus()
	line := joinHeader(left, center, right, m.width)
	return style.Width(maxInt(0, m.width)).Render(line)
}

func (m *Model) renderFooter() string {
	p := themePalette(m.theme)

	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Foreground)).
		Background(lipgloss.Color(p.Footer)).
		Padding(0, 1)

	base := "^T Chat  ^E Email  ^O Tools  ^R History  ^H Help  ^C Quit"
	if m.showHelp {
		base = base + "  (tab moves focus, enter submits, esc goes back)"
	}
	return style.Width(maxInt(0, m.width)).Render(truncate(base, maxInt(0, m.width-2)))
}

func (m *Model) connectionStatus() string {
	if !m.connectProbe {
		return "connecting"
	}
	if m.connected {
		return "connected"
	}
	return "disconnected"
}

func viewTitle(id ViewID) string {
	switch id {
	case ViewChat:
		return "Chat"
	case ViewCompose:
		return "Email"
	case ViewTools:
		return "Tools"
	case ViewHistory:
		return "History"
	default:
		return string(id)
	}
}

func joinHeader(left, center, right string, width int) string {
	left = strings.TrimSpace(left)
	center = strings.TrimSpace(center)
	right = strings.TrimSpace(right)
	if width <= 0 {
		return left
	}

	space := width - lipgloss.Width(left) - lipgloss.Width(center) - lipgloss.Width(right)
	if space < 2 {
		line := left
		if right != "" {
			line = left + "  " + right
		}
		return truncateVis(line, width)
	}

	leftGap := space / 2
	rightGap := space - leftGap
	return truncateVis(left+strings.Repeat(" ", leftGap)+center+strings.Repeat(" ", rightGap)+right, width)
}
