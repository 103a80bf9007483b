// Package compose holds the pure composition core: template binding and
// recipient resolution. Nothing in this package touches the network.
package compose

import (
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Template is an email template with named {placeholder} tokens.
type Template struct {
	Name         string
	Subject      string
	Body         string
	Placeholders []string
}

// ComposedText is the rendered subject and body. It is always derived from
// the template plus bindings and never stored on its own.
type ComposedText struct {
	Subject string
	Body    string
}

// Resolve substitutes every {name} occurrence in the template's subject and
// body with its bound value, or the empty string when unbound. Substitution
// always starts from the original template text, so repeated calls are
// idempotent and a value containing {otherName} syntax is never expanded.
func Resolve(t Template, bindings map[string]string) ComposedText {
	return ComposedText{
		Subject: substitute(t.Subject, bindings),
		Body:    substitute(t.Body, bindings),
	}
}

func substitute(text string, bindings map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := token[1 : len(token)-1]
		return bindings[name]
	})
}

// PlaceholderNames extracts the distinct placeholder names appearing in the
// template text, in first-occurrence order. Used when the backend's declared
// placeholder list is absent or incomplete.
func PlaceholderNames(t Template) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, text := range []string{t.Subject, t.Body} {
		for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			name := match[1]
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// Engine owns the selected template and the current variable bindings.
type Engine struct {
	selected *Template
	bindings map[string]string
}

// NewEngine creates an engine with no template selected.
func NewEngine() *Engine {
	return &Engine{bindings: make(map[string]string)}
}

// Select makes t the active template. Bindings are seeded with an empty
// value only for placeholders not already present, so shared variable names
// (customerName and friends) carry over between templates.
func (e *Engine) Select(t Template) {
	copied := t
	e.selected = &copied

	for _, name := range e.placeholdersOf(t) {
		if _, ok := e.bindings[name]; !ok {
			e.bindings[name] = ""
		}
	}
}

// Clear deselects the template and discards all bindings.
func (e *Engine) Clear() {
	e.selected = nil
	e.bindings = make(map[string]string)
}

// SetVar updates one binding. Setting a variable with no selected template
// is allowed; it will be picked up by the next Select.
func (e *Engine) SetVar(name, value string) {
	e.bindings[name] = value
}

// Selected returns the active template, if any.
func (e *Engine) Selected() (Template, bool) {
	if e.selected == nil {
		return Template{}, false
	}
	return *e.selected, true
}

// Placeholders returns the active template's placeholder names in a stable
// order, or nil when no template is selected.
func (e *Engine) Placeholders() []string {
	if e.selected == nil {
		return nil
	}
	return e.placeholdersOf(*e.selected)
}

// Bindings returns a copy of the current variable bindings.
func (e *Engine) Bindings() map[string]string {
	out := make(map[string]string, len(e.bindings))
	for k, v := range e.bindings {
		out[k] = v
	}
	return out
}

// Render recomputes the composed text from the active template and the
// current bindings. With no template selected it returns empty text.
func (e *Engine) Render() ComposedText {
	if e.selected == nil {
		return ComposedText{}
	}
	return Resolve(*e.selected, e.bindings)
}

func (e *Engine) placeholdersOf(t Template) []string {
	if len(t.Placeholders) > 0 {
		names := make([]string, len(t.Placeholders))
		copy(names, t.Placeholders)
		return names
	}
	return PlaceholderNames(t)
}

// SortedBindingNames returns binding names in lexical order, for stable
// rendering of variable forms.
func (e *Engine) SortedBindingNames() []string {
	names := make([]string, 0, len(e.bindings))
	for name := range e.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TrimmedContent applies the outgoing trim to subject and body.
func TrimmedContent(subject, body string) (string, string) {
	return strings.TrimSpace(subject), strings.TrimSpace(body)
}

// ValidateContent rejects drafts whose subject or body is empty after
// trimming, independent of recipient count.
func ValidateContent(subject, body string) error {
	trimmedSubject, trimmedBody := TrimmedContent(subject, body)
	if trimmedSubject == "" || trimmedBody == "" {
		return ErrMissingContent
	}
	return nil
}
