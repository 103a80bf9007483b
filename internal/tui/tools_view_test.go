package tui

import (
	"encoding/json"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/form"
)

func loadedToolsView(t *testing.T) *toolsView {
	t.Helper()
	v := newToolsView(nil)
	v.Update(toolsLoadedMsg{tools: []api.Tool{
		{
			ID:         "lookup_order",
			Name:       "Order Lookup",
			Parameters: json.RawMessage(`[{"name": "order_id", "type": "string", "required": true}]`),
		},
		{
			ID:         "echo",
			Parameters: json.RawMessage(`{}`),
		},
	}})
	require.True(t, v.loaded)
	return v
}

func TestToolsOpenBuildsForm(t *testing.T) {
	v := loadedToolsView(t)

	v.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, 0, v.selected)

	specs := v.form.Specs()
	require.Len(t, specs, 1)
	require.Equal(t, "order_id", specs[0].Name)
	require.False(t, v.form.IsSubmittable())
}

func TestToolsFieldEditing(t *testing.T) {
	v := loadedToolsView(t)
	v.openTool(0)

	v.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, v.editing)
	v.handleKey(keyRunes("1042"))
	v.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.False(t, v.editing)
	require.Equal(t, "1042", v.form.Value("order_id"))
	require.True(t, v.form.IsSubmittable())
}

func TestToolsRunValidatesFirst(t *testing.T) {
	v := loadedToolsView(t)
	v.openTool(0)

	require.Nil(t, v.run(), "missing required field never reaches the network")
	require.Contains(t, v.notice, "order_id")

	v.form.SetValue("order_id", "1042")
	require.NotNil(t, v.run())
	require.True(t, v.running)
}

func TestToolsRunResult(t *testing.T) {
	v := loadedToolsView(t)
	v.openTool(1)
	v.running = true

	v.Update(toolRunMsg{data: json.RawMessage(`{"echoed": true}`)})
	require.False(t, v.running)
	require.NotNil(t, v.lastResult)
	require.True(t, v.lastResult.OK)
	require.JSONEq(t, `{"echoed": true}`, string(v.lastResult.Data))
}

func TestToolsRunSnapshotsAndGuards(t *testing.T) {
	v := loadedToolsView(t)
	v.openTool(0)
	v.form.SetValue("order_id", "1042")
	require.NotNil(t, v.run())
	require.True(t, v.running)

	// Edits made while the run is outstanding never reach it, and a
	// second run cannot start until the result folds back.
	v.form.SetValue("order_id", "edited mid-run")
	_, err := v.form.BeginSubmit()
	require.ErrorIs(t, err, form.ErrBusy)
	require.Nil(t, v.run())
	require.Contains(t, v.notice, "already running")

	v.Update(toolRunMsg{err: errors.New("backend exploded")})
	require.False(t, v.running)
	require.NotNil(t, v.lastResult)
	require.False(t, v.lastResult.OK)
	require.Equal(t, "backend exploded", v.lastResult.Err)

	_, err = v.form.BeginSubmit()
	require.NoError(t, err, "slot frees up once the result is folded")
}

func TestToolsSchemaSwitchResetsValues(t *testing.T) {
	v := loadedToolsView(t)
	v.openTool(0)
	v.form.SetValue("order_id", "1042")

	v.openTool(1)
	require.Empty(t, v.form.Value("order_id"))
	require.True(t, v.form.IsSubmittable(), "schema-less tool is always submittable")
}

func TestToolsInvalidSchemaSurfacesNotice(t *testing.T) {
	v := newToolsView(nil)
	v.Update(toolsLoadedMsg{tools: []api.Tool{
		{ID: "broken", Parameters: json.RawMessage(`"nope"`)},
	}})

	v.openTool(0)
	require.Equal(t, -1, v.selected)
	require.Contains(t, v.notice, "invalid parameter schema")
}

func TestPrettyJSON(t *testing.T) {
	require.Equal(t, "(empty)", prettyJSON(nil))
	require.Contains(t, prettyJSON(json.RawMessage(`{"a":1}`)), "\n")
	require.Equal(t, "not json", prettyJSON(json.RawMessage("not json")))
}
