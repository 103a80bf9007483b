package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/compose"
	"github.com/opsdesk/opsdesk/internal/dispatch"
)

type composeField int

const (
	fieldTo composeField = iota
	fieldBulk
	fieldSubject
	fieldBody
	composeFieldCount
)

type templatesLoadedMsg struct {
	templates map[string]api.Template
	err       error
}

type composeSentMsg struct {
	outcome dispatch.Outcome
	err     error
}

type emailConfigMsg struct {
	cfg *api.EmailServiceConfig
	err error
}

type composeView struct {
	client     *api.Client
	dispatcher *dispatch.Dispatcher
	engine     *compose.Engine

	to      string
	bulk    string
	subject string
	body    string

	bulkMode bool
	focus    composeField
	sending  bool

	templates     map[string]api.Template
	templateNames []string
	templatesErr  error

	emailCfg *api.EmailServiceConfig

	pickerOpen   bool
	pickerCursor int

	varsOpen   bool
	varsCursor int
	varInput   string
	varEditing bool

	notice      string
	noticeIsErr bool
}

func newComposeView(client *api.Client, dispatcher *dispatch.Dispatcher) *composeView {
	return &composeView{
		client:     client,
		dispatcher: dispatcher,
		engine:     compose.NewEngine(),
	}
}

func (v *composeView) Init() tea.Cmd {
	if v.templates != nil {
		return nil
	}
	client := v.client
	return tea.Batch(
		func() tea.Msg {
			ctx, cancel := requestContext(0)
			defer cancel()
			templates, err := client.Templates(ctx)
			return templatesLoadedMsg{templates: templates, err: err}
		},
		func() tea.Msg {
			ctx, cancel := requestContext(0)
			defer cancel()
			cfg, err := client.EmailConfig(ctx)
			return emailConfigMsg{cfg: cfg, err: err}
		},
	)
}

func (v *composeView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case templatesLoadedMsg:
		v.templatesErr = typed.err
		if typed.err == nil {
			v.templates = typed.templates
			v.templateNames = sortedTemplateNames(typed.templates)
		}
		return nil
	case emailConfigMsg:
		if typed.err == nil {
			v.emailCfg = typed.cfg
		}
		return nil
	case composeSentMsg:
		v.sending = false
		if typed.err != nil {
			v.notice = "send failed: " + typed.err.Error()
			v.noticeIsErr = true
			return nil
		}
		v.noticeIsErr = false
		v.notice = fmt.Sprintf("sent to %s", typed.outcome.Record.To)
		if typed.outcome.ClearForm {
			v.clearForm()
		}
		return nil
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *composeView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.pickerOpen {
		return v.handlePickerKey(msg)
	}
	if v.varsOpen {
		return v.handleVarsKey(msg)
	}

	switch msg.String() {
	case "tab":
		v.focus = (v.focus + 1) % composeFieldCount
		return nil
	case "shift+tab":
		v.focus = (v.focus + composeFieldCount - 1) % composeFieldCount
		return nil
	case "ctrl+b":
		v.bulkMode = !v.bulkMode
		return nil
	case "ctrl+p":
		if len(v.templateNames) > 0 {
			v.pickerOpen = true
			v.pickerCursor = 0
		}
		return nil
	case "ctrl+v":
		if len(v.engine.Placeholders()) > 0 {
			v.varsOpen = true
			v.varsCursor = 0
		}
		return nil
	case "ctrl+l":
		v.clearForm()
		v.notice = "form cleared"
		v.noticeIsErr = false
		return nil
	case "ctrl+s":
		return v.send()
	case "enter":
		if v.focus == fieldBody || (v.bulkMode && v.focus == fieldBulk) {
			v.appendToFocused("\n")
			return nil
		}
		v.focus = (v.focus + 1) % composeFieldCount
		return nil
	case "backspace":
		v.backspaceFocused()
		return nil
	}

	switch msg.Type {
	case tea.KeyRunes:
		v.appendToFocused(string(msg.Runes))
	case tea.KeySpace:
		v.appendToFocused(" ")
	}
	return nil
}

func (v *composeView) handlePickerKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		v.pickerOpen = false
	case "up", "k":
		v.pickerCursor = maxInt(0, v.pickerCursor-1)
	case "down", "j":
		v.pickerCursor = minInt(len(v.templateNames)-1, v.pickerCursor+1)
	case "enter":
		v.pickerOpen = false
		v.applyTemplate(v.templateNames[v.pickerCursor])
	}
	return nil
}

func (v *composeView) handleVarsKey(msg tea.KeyMsg) tea.Cmd {
	placeholders := v.engine.Placeholders()
	if len(placeholders) == 0 {
		v.varsOpen = false
		return nil
	}

	if v.varEditing {
		switch msg.Type {
		case tea.KeyEsc:
			v.varEditing = false
		case tea.KeyEnter:
			v.engine.SetVar(placeholders[v.varsCursor], v.varInput)
			v.varEditing = false
			v.refreshFromTemplate()
		case tea.KeyBackspace:
			if len(v.varInput) > 0 {
				runes := []rune(v.varInput)
				v.varInput = string(runes[:len(runes)-1])
			}
		case tea.KeyRunes:
			v.varInput += string(msg.Runes)
		case tea.KeySpace:
			v.varInput += " "
		}
		return nil
	}

	switch msg.String() {
	case "esc":
		v.varsOpen = false
	case "up", "k":
		v.varsCursor = maxInt(0, v.varsCursor-1)
	case "down", "j":
		v.varsCursor = minInt(len(placeholders)-1, v.varsCursor+1)
	case "enter":
		v.varEditing = true
		v.varInput = v.engine.Bindings()[placeholders[v.varsCursor]]
	}
	return nil
}

func (v *composeView) applyTemplate(name string) {
	tmpl, ok := v.templates[name]
	if !ok {
		return
	}
	v.engine.Select(compose.Template{
		Name:         name,
		Subject:      tmpl.Subject,
		Body:         tmpl.Body,
		Placeholders: tmpl.Placeholders,
	})
	v.refreshFromTemplate()
	v.notice = "template " + name
	v.noticeIsErr = false
}

// refreshFromTemplate overwrites the subject and body fields with the
// engine's render. Resolution always starts from the original template
// text, so re-editing a variable never compounds earlier substitutions.
func (v *composeView) refreshFromTemplate() {
	if _, ok := v.engine.Selected(); !ok {
		return
	}
	rendered := v.engine.Render()
	v.subject = rendered.Subject
	v.body = rendered.Body
}

func (v *composeView) clearForm() {
	v.to = ""
	v.bulk = ""
	v.subject = ""
	v.body = ""
	v.engine.Clear()
	v.focus = fieldTo
}

func (v *composeView) send() tea.Cmd {
	if v.sending {
		v.notice = "a send is already in flight"
		v.noticeIsErr = true
		return nil
	}

	draft := dispatch.Draft{
		To:       v.to,
		Bulk:     v.bulk,
		BulkMode: v.bulkMode,
		Subject:  v.subject,
		Body:     v.body,
	}

	// Validation errors surface immediately, before any network hop.
	if _, err := compose.ResolveRecipients(draft.To, draft.Bulk, draft.BulkMode); err != nil {
		v.notice = err.Error()
		v.noticeIsErr = true
		return nil
	}
	if err := compose.ValidateContent(draft.Subject, draft.Body); err != nil {
		v.notice = err.Error()
		v.noticeIsErr = true
		return nil
	}

	v.sending = true
	v.notice = "sending..."
	v.noticeIsErr = false

	dispatcher := v.dispatcher
	return func() tea.Msg {
		ctx, cancel := requestContext(0)
		defer cancel()
		outcome, err := dispatcher.Send(ctx, draft)
		return composeSentMsg{outcome: outcome, err: err}
	}
}

func (v *composeView) appendToFocused(s string) {
	switch v.focus {
	case fieldTo:
		v.to += s
	case fieldBulk:
		v.bulk += s
	case fieldSubject:
		v.subject += s
	case fieldBody:
		v.body += s
	}
}

func (v *composeView) backspaceFocused() {
	chop := func(s string) string {
		if len(s) == 0 {
			return s
		}
		runes := []rune(s)
		return string(runes[:len(runes)-1])
	}
	switch v.focus {
	case fieldTo:
		v.to = chop(v.to)
	case fieldBulk:
		v.bulk = chop(v.bulk)
	case fieldSubject:
		v.subject = chop(v.subject)
	case fieldBody:
		v.body = chop(v.body)
	}
}

func (v *composeView) View(width, height int, theme Theme) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	p := themePalette(theme)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted))
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Selected)).Bold(true)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Success))

	if v.pickerOpen {
		return v.renderPicker(width, height, muted, accent)
	}
	if v.varsOpen {
		return v.renderVars(width, height, muted, accent)
	}

	lines := make([]string, 0, height)
	mode := "single"
	if v.bulkMode {
		mode = "bulk"
	}
	title := fmt.Sprintf("EMAIL  mode: %s", mode)
	if tmpl, ok := v.engine.Selected(); ok {
		title += "  template: " + tmpl.Name
	}
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render(truncateVis(title, width)))

	lines = append(lines, v.renderField("To", v.to, fieldTo, width, muted, accent))
	if v.bulkMode {
		bulkLines := v.renderMultiline("Recipients", v.bulk, fieldBulk, width, 3, muted, accent)
		lines = append(lines, bulkLines...)
	}
	lines = append(lines, v.renderField("Subject", v.subject, fieldSubject, width, muted, accent))

	bodyHeight := maxInt(3, height-len(lines)-len(v.dispatcher.History())-4)
	lines = append(lines, v.renderMultiline("Body", v.body, fieldBody, width, bodyHeight, muted, accent)...)

	if v.notice != "" {
		style := okStyle
		if v.noticeIsErr {
			style = errStyle
		}
		lines = append(lines, style.Render(truncateVis(v.notice, width)))
	}
	if v.templatesErr != nil {
		lines = append(lines, muted.Render(truncateVis("templates unavailable: "+v.templatesErr.Error(), width)))
	}
	if status := emailConfigStatus(v.emailCfg); status != "" {
		lines = append(lines, muted.Render(truncateVis(status, width)))
	}

	lines = append(lines, "")
	lines = append(lines, muted.Render("^S send  ^P template  ^V variables  ^B bulk  ^L clear"))
	lines = append(lines, v.renderHistory(width, maxInt(0, height-len(lines)), muted, errStyle, okStyle)...)

	return lipgloss.JoinVertical(lipgloss.Left, clampToHeight(lines, height)...)
}

func (v *composeView) renderField(label, value string, field composeField, width int, muted, accent lipgloss.Style) string {
	style := muted
	cursor := ""
	if v.focus == field {
		style = accent
		cursor = "█"
	}
	return truncateVis(style.Render(label+": ")+value+cursor, width)
}

func (v *composeView) renderMultiline(label, value string, field composeField, width, height int, muted, accent lipgloss.Style) []string {
	style := muted
	cursor := ""
	if v.focus == field {
		style = accent
		cursor = "█"
	}
	lines := []string{style.Render(label + ":")}
	wrapped := wrapText(value+cursor, maxInt(1, width-2))
	if len(wrapped) > height {
		wrapped = wrapped[len(wrapped)-height:]
	}
	for _, line := range wrapped {
		lines = append(lines, "  "+line)
	}
	return lines
}

func (v *composeView) renderPicker(width, height int, muted, accent lipgloss.Style) string {
	lines := make([]string, 0, height)
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render("SELECT TEMPLATE  (enter applies, esc cancels)"))
	for i, name := range v.templateNames {
		tmpl := v.templates[name]
		line := fmt.Sprintf("  %s  %s", name, muted.Render(truncate(tmpl.Subject, maxInt(0, width-len(name)-6))))
		if i == v.pickerCursor {
			line = accent.Render("> " + name + "  " + truncate(tmpl.Subject, maxInt(0, width-len(name)-6)))
		}
		lines = append(lines, truncateVis(line, width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, clampToHeight(lines, height)...)
}

func (v *composeView) renderVars(width, height int, muted, accent lipgloss.Style) string {
	placeholders := v.engine.Placeholders()
	bindings := v.engine.Bindings()

	lines := make([]string, 0, height)
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render("TEMPLATE VARIABLES  (enter edits, esc closes)"))
	for i, name := range placeholders {
		value := bindings[name]
		line := fmt.Sprintf("  {%s} = %s", name, value)
		if i == v.varsCursor {
			if v.varEditing {
				line = accent.Render(fmt.Sprintf("> {%s} = ", name)) + v.varInput + "█"
			} else {
				line = accent.Render(fmt.Sprintf("> {%s} = %s", name, value))
			}
		}
		lines = append(lines, truncateVis(line, width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, clampToHeight(lines, height)...)
}

func (v *composeView) renderHistory(width, height int, muted, errStyle, okStyle lipgloss.Style) []string {
	records := v.dispatcher.History()
	if len(records) == 0 || height <= 1 {
		return nil
	}
	lines := make([]string, 0, height)
	lines = append(lines, muted.Render("recent dispatches:"))
	for _, record := range records {
		if len(lines) >= height {
			break
		}
		style := okStyle
		if record.Status == dispatch.StatusFailed {
			style = errStyle
		}
		line := fmt.Sprintf("  %s %s  %s  %s",
			style.Render(record.Status),
			record.SentAt.Format("15:04:05"),
			truncate(record.To, 30),
			truncate(record.Subject, maxInt(0, width-50)),
		)
		lines = append(lines, truncateVis(line, width))
	}
	return lines
}

func emailConfigStatus(cfg *api.EmailServiceConfig) string {
	if cfg == nil {
		return ""
	}
	missing := make([]string, 0, 3)
	if !cfg.HasPublicKey {
		missing = append(missing, "public key")
	}
	if !cfg.HasSecretKey {
		missing = append(missing, "secret key")
	}
	if !cfg.HasCredentialID {
		missing = append(missing, "credential id")
	}
	if len(missing) == 0 {
		return "email service: credentials configured"
	}
	return "email service: missing " + strings.Join(missing, ", ")
}

func sortedTemplateNames(templates map[string]api.Template) []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clampToHeight(lines []string, height int) []string {
	if height <= 0 || len(lines) <= height {
		return lines
	}
	return lines[:height]
}
