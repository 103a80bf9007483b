package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/form"
	"github.com/opsdesk/opsdesk/internal/schema"
)

type toolsLoadedMsg struct {
	tools []api.Tool
	err   error
}

type toolRunMsg struct {
	data json.RawMessage
	err  error
}

type toolsView struct {
	client *api.Client
	form   *form.Controller

	tools    []api.Tool
	loadErr  error
	loaded   bool
	cursor   int
	selected int // index into tools, -1 when browsing the list

	fieldCursor int
	editing     bool
	editInput   string

	running    bool
	lastResult *form.Result
	notice     string
}

func newToolsView(client *api.Client) *toolsView {
	return &toolsView{
		client:   client,
		form:     form.NewController(),
		selected: -1,
	}
}

func (v *toolsView) Init() tea.Cmd {
	if v.loaded {
		return nil
	}
	client := v.client
	return func() tea.Msg {
		ctx, cancel := requestContext(0)
		defer cancel()
		tools, err := client.Tools(ctx)
		return toolsLoadedMsg{tools: tools, err: err}
	}
}

func (v *toolsView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case toolsLoadedMsg:
		v.loaded = true
		v.loadErr = typed.err
		if typed.err == nil {
			v.tools = typed.tools
		}
		return nil
	case toolRunMsg:
		v.running = false
		v.notice = ""
		result := v.form.CompleteSubmit(typed.data, typed.err)
		v.lastResult = &result
		return nil
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *toolsView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.selected >= 0 {
		return v.handleFormKey(msg)
	}

	switch msg.String() {
	case "up", "k":
		v.cursor = maxInt(0, v.cursor-1)
	case "down", "j":
		v.cursor = minInt(maxInt(0, len(v.tools)-1), v.cursor+1)
	case "enter":
		if len(v.tools) > 0 {
			v.openTool(v.cursor)
		}
	case "R":
		v.loaded = false
		return v.Init()
	}
	return nil
}

func (v *toolsView) openTool(index int) {
	tool := v.tools[index]
	specs, err := schema.Normalize(tool.Parameters)
	if err != nil {
		v.notice = fmt.Sprintf("tool %s has an invalid parameter schema: %v", tool.Name, err)
		return
	}
	v.form.SetSchema(specs)
	v.selected = index
	v.fieldCursor = 0
	v.editing = false
	v.lastResult = nil
	v.notice = ""
}

func (v *toolsView) handleFormKey(msg tea.KeyMsg) tea.Cmd {
	specs := v.form.Specs()

	if v.editing {
		switch msg.Type {
		case tea.KeyEsc:
			v.editing = false
		case tea.KeyEnter:
			v.form.SetValue(specs[v.fieldCursor].Name, v.editInput)
			v.editing = false
		case tea.KeyBackspace:
			if len(v.editInput) > 0 {
				runes := []rune(v.editInput)
				v.editInput = string(runes[:len(runes)-1])
			}
		case tea.KeyRunes:
			v.editInput += string(msg.Runes)
		case tea.KeySpace:
			v.editInput += " "
		}
		return nil
	}

	switch msg.String() {
	case "esc":
		v.selected = -1
		v.notice = ""
	case "up", "k":
		v.fieldCursor = maxInt(0, v.fieldCursor-1)
	case "down", "j":
		v.fieldCursor = minInt(maxInt(0, len(specs)-1), v.fieldCursor+1)
	case "enter":
		if len(specs) > 0 {
			v.editing = true
			v.editInput = v.form.Value(specs[v.fieldCursor].Name)
		}
	case "ctrl+s":
		return v.run()
	}
	return nil
}

// run claims the submission slot and snapshots the values on the update
// loop; only the backend call itself happens inside the command.
func (v *toolsView) run() tea.Cmd {
	if v.running {
		v.notice = "tool is already running"
		return nil
	}
	values, err := v.form.BeginSubmit()
	if err != nil {
		v.notice = err.Error()
		return nil
	}

	tool := v.tools[v.selected]
	v.running = true
	v.notice = ""

	client := v.client
	return func() tea.Msg {
		ctx, cancel := requestContext(0)
		defer cancel()
		data, err := client.ExecuteTool(ctx, tool.ID, values)
		return toolRunMsg{data: data, err: err}
	}
}

func (v *toolsView) View(width, height int, theme Theme) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	p := themePalette(theme)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted))
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Selected)).Bold(true)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Success))

	if v.selected >= 0 {
		return v.renderForm(width, height, muted, accent, errStyle, okStyle)
	}
	return v.renderList(width, height, muted, accent, errStyle)
}

func (v *toolsView) renderList(width, height int, muted, accent, errStyle lipgloss.Style) string {
	lines := make([]string, 0, height)
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render("TOOLS  (enter opens, R reloads)"))

	switch {
	case !v.loaded:
		lines = append(lines, muted.Render("  loading..."))
	case v.loadErr != nil:
		lines = append(lines, errStyle.Render(truncateVis("  tools unavailable: "+v.loadErr.Error(), width)))
	case len(v.tools) == 0:
		lines = append(lines, muted.Render("  no tools registered"))
	}

	for i, tool := range v.tools {
		name := tool.Name
		if name == "" {
			name = tool.ID
		}
		desc := muted.Render(truncate(tool.Description, maxInt(0, width-len(name)-8)))
		line := fmt.Sprintf("  %s  %s", name, desc)
		if i == v.cursor {
			line = accent.Render("> "+name) + "  " + desc
		}
		lines = append(lines, truncateVis(line, width))
	}
	if v.notice != "" {
		lines = append(lines, errStyle.Render(truncateVis(v.notice, width)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, clampToHeight(lines, height)...)
}

func (v *toolsView) renderForm(width, height int, muted, accent, errStyle, okStyle lipgloss.Style) string {
	tool := v.tools[v.selected]
	specs := v.form.Specs()

	lines := make([]string, 0, height)
	name := tool.Name
	if name == "" {
		name = tool.ID
	}
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render(truncateVis("RUN TOOL  "+name, width)))
	if tool.Description != "" {
		lines = append(lines, muted.Render(truncateVis("  "+tool.Description, width)))
	}
	lines = append(lines, "")

	if len(specs) == 0 {
		lines = append(lines, muted.Render("  (no parameters)"))
	}
	for i, spec := range specs {
		marker := " "
		if spec.Required {
			marker = "*"
		}
		value := v.form.Value(spec.Name)
		line := fmt.Sprintf("  %s%s (%s) = %s", marker, spec.Name, spec.Type, value)
		if i == v.fieldCursor {
			if v.editing {
				line = accent.Render(fmt.Sprintf("> %s%s (%s) = ", marker, spec.Name, spec.Type)) + v.editInput + "█"
			} else {
				line = accent.Render(fmt.Sprintf("> %s%s (%s) = %s", marker, spec.Name, spec.Type, value))
			}
		}
		lines = append(lines, truncateVis(line, width))
	}

	lines = append(lines, "")
	status := "^S run  enter edit  esc back"
	if v.running {
		status = "running..."
	} else if !v.form.IsSubmittable() {
		status += "  (required fields missing)"
	}
	lines = append(lines, muted.Render(truncateVis(status, width)))

	if v.notice != "" {
		lines = append(lines, errStyle.Render(truncateVis(v.notice, width)))
	}
	if v.lastResult != nil {
		lines = append(lines, v.renderResult(width, maxInt(0, height-len(lines)), muted, errStyle, okStyle)...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, clampToHeight(lines, height)...)
}

func (v *toolsView) renderResult(width, height int, muted, errStyle, okStyle lipgloss.Style) []string {
	result := v.lastResult
	lines := make([]string, 0, height)
	if result.OK {
		lines = append(lines, okStyle.Render("result: ok  ")+muted.Render(result.At.Format("15:04:05")))
		pretty := prettyJSON(result.Data)
		for _, line := range strings.Split(pretty, "\n") {
			if len(lines) >= height {
				break
			}
			lines = append(lines, truncateVis("  "+line, width))
		}
	} else {
		lines = append(lines, errStyle.Render(truncateVis("result: "+result.Err, width)))
	}
	return lines
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "(empty)"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
