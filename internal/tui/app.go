// Package tui is the interactive operator console: a chat surface against
// the support agent, an email compose form, a tool runner, and a
// conversation history browser, all in one bubbletea program.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/db"
	"github.com/opsdesk/opsdesk/internal/dispatch"
	"github.com/opsdesk/opsdesk/internal/session"
)

type Theme string

const (
	ThemeDefault      Theme = "default"
	ThemeHighContrast Theme = "high-contrast"
)

type ViewID string

const (
	ViewChat    ViewID = "chat"
	ViewCompose ViewID = "compose"
	ViewTools   ViewID = "tools"
	ViewHistory ViewID = "history"
)

var viewSwitchKeys = map[string]ViewID{
	"ctrl+t": ViewChat,
	"ctrl+e": ViewCompose,
	"ctrl+o": ViewTools,
	"ctrl+r": ViewHistory,
}

type Config struct {
	BackendURL     string
	UserID         string
	ConversationID string
	Timeout        time.Duration
	Theme          string
	HistoryLimit   int
	DatabasePath   string
	BusyTimeoutMs  int
	ShowTimestamps bool
	CompactMode    bool
}

type Model struct {
	cfg     Config
	client  *api.Client
	gateway *api.ChatGateway

	sessions   *session.Controller
	dispatcher *dispatch.Dispatcher
	database   *db.DB
	theme      Theme

	connected    bool
	connectProbe bool

	width    int
	height   int
	showHelp bool

	viewStack []ViewID
	views     map[ViewID]viewModel
}

type viewModel interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int, theme Theme) string
}

// renderOptions carries the display preferences shared by the transcript
// views.
type renderOptions struct {
	showTimestamps bool
	compact        bool
}

type pushViewMsg struct {
	id ViewID
}

type popViewMsg struct{}

// openChatMsg switches to the chat view after the session controller has
// been repointed, e.g. when continuing a conversation from history.
type openChatMsg struct{}

type healthProbeMsg struct {
	err error
}

func pushViewCmd(id ViewID) tea.Cmd {
	return func() tea.Msg {
		return pushViewMsg{id: id}
	}
}

func popViewCmd() tea.Cmd {
	return func() tea.Msg {
		return popViewMsg{}
	}
}

func openChatCmd() tea.Cmd {
	return func() tea.Msg {
		return openChatMsg{}
	}
}

func NewModel(cfg Config) (*Model, error) {
	normalized, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	client := api.New(normalized.BackendURL, normalized.Timeout)
	gateway := &api.ChatGateway{Client: client, UserID: normalized.UserID}
	sessions := session.NewController()

	opts := []dispatch.Option{dispatch.WithHistoryLimit(normalized.HistoryLimit)}
	var database *db.DB
	if normalized.DatabasePath != "" {
		database, err = db.Open(normalized.DatabasePath, normalized.BusyTimeoutMs)
		if err != nil {
			return nil, fmt.Errorf("open dispatch store: %w", err)
		}
		opts = append(opts, dispatch.WithStore(db.NewDispatchRepository(database)))
	}
	dispatcher := dispatch.NewDispatcher(client, opts...)

	m := &Model{
		cfg:        normalized,
		client:     client,
		gateway:    gateway,
		sessions:   sessions,
		dispatcher: dispatcher,
		database:   database,
		theme:      Theme(normalized.Theme),
		viewStack:  []ViewID{ViewChat},
		views:      make(map[ViewID]viewModel),
	}
	m.initViews()
	return m, nil
}

func Run(cfg Config) error {
	model, err := NewModel(cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func (m *Model) Close() error {
	if m == nil || m.database == nil {
		return nil
	}
	return m.database.Close()
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.probeHealthCmd(), m.bootstrapCmd()}
	if view := m.activeView(); view != nil {
		cmds = append(cmds, view.Init())
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil
	case healthProbeMsg:
		m.connectProbe = true
		m.connected = typed.err == nil
		return m, nil
	case bootstrapDoneMsg:
		m.sessions.CompleteHistoryBootstrap(typed.conversationID, typed.messages, typed.err)
		return m, nil
	case openChatMsg:
		m.switchView(ViewChat)
		if view := m.activeView(); view != nil {
			return m, view.Init()
		}
		return m, nil
	case pushViewMsg:
		m.pushView(typed.id)
		if view := m.activeView(); view != nil {
			return m, view.Init()
		}
		return m, nil
	case popViewMsg:
		m.popView()
		if view := m.activeView(); view != nil {
			return m, view.Init()
		}
		return m, nil
	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(typed); handled {
			return m, cmd
		}
	}

	if active := m.activeView(); active != nil {
		return m, active.Update(msg)
	}
	return m, nil
}

func (m *Model) View() string {
	if active := m.activeView(); active != nil {
		header := m.renderHeader()
		footer := m.renderFooter()
		contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
		if contentHeight < 0 {
			contentHeight = 0
		}
		body := active.View(m.width, contentHeight, m.theme)
		return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	}
	return "no active view"
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit, true
	case "ctrl+h":
		m.showHelp = !m.showHelp
		return nil, true
	}

	if next, ok := viewSwitchKeys[msg.String()]; ok {
		m.switchView(next)
		if view := m.activeView(); view != nil {
			return view.Init(), true
		}
		return nil, true
	}
	return nil, false
}

func (m *Model) activeView() viewModel {
	return m.views[m.activeViewID()]
}

func (m *Model) activeViewID() ViewID {
	if len(m.viewStack) == 0 {
		return ViewChat
	}
	return m.viewStack[len(m.viewStack)-1]
}

func (m *Model) pushView(id ViewID) {
	if id == "" {
		return
	}
	if _, ok := m.views[id]; !ok {
		return
	}
	if m.activeViewID() == id {
		return
	}
	m.viewStack = append(m.viewStack, id)
}

// switchView replaces the stack instead of pushing, so tab-style
// navigation never grows an unbounded history of views.
func (m *Model) switchView(id ViewID) {
	if _, ok := m.views[id]; !ok {
		return
	}
	m.viewStack = []ViewID{id}
}

func (m *Model) popView() {
	if len(m.viewStack) <= 1 {
		return
	}
	m.viewStack = m.viewStack[:len(m.viewStack)-1]
}

func (m *Model) initViews() {
	opts := renderOptions{
		showTimestamps: m.cfg.ShowTimestamps,
		compact:        m.cfg.CompactMode,
	}
	m.views[ViewChat] = newChatView(m.sessions, m.gateway, m.client, opts)
	m.views[ViewCompose] = newComposeView(m.client, m.dispatcher)
	m.views[ViewTools] = newToolsView(m.client)
	m.views[ViewHistory] = newHistoryView(m.sessions, m.gateway, m.client, opts)
}

func (m *Model) probeHealthCmd() tea.Cmd {
	client := m.client
	timeout := m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := requestContext(timeout)
		defer cancel()
		return healthProbeMsg{err: client.Health(ctx)}
	}
}

type bootstrapDoneMsg struct {
	conversationID string
	messages       []session.Message
	err            error
}

// bootstrapCmd establishes the initial session. A requested conversation
// is fetched off the UI loop; an empty request starts fresh immediately.
func (m *Model) bootstrapCmd() tea.Cmd {
	id := strings.TrimSpace(m.cfg.ConversationID)
	if id == "" {
		m.sessions.NewSession()
		return nil
	}
	m.sessions.BeginHistoryBootstrap()
	gateway := m.gateway
	timeout := m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := requestContext(timeout)
		defer cancel()
		messages, err := gateway.FetchHistory(ctx, id)
		return bootstrapDoneMsg{conversationID: id, messages: messages, err: err}
	}
}

func (c Config) normalize() (Config, error) {
	c.BackendURL = strings.TrimSpace(c.BackendURL)
	c.UserID = strings.TrimSpace(c.UserID)
	if c.BackendURL == "" {
		return Config{}, fmt.Errorf("backend URL is required")
	}
	if c.UserID == "" {
		c.UserID = "operator"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = dispatch.DefaultHistoryLimit
	}
	if strings.TrimSpace(c.Theme) == "" {
		c.Theme = string(ThemeDefault)
	}
	switch Theme(c.Theme) {
	case ThemeDefault, ThemeHighContrast:
	default:
		return Config{}, fmt.Errorf("invalid theme %q", c.Theme)
	}
	return c, nil
}
