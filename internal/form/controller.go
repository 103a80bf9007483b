// Package form drives a backend parameter schema as an editable form.
// The same controller backs tool invocation and template variable entry.
package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opsdesk/opsdesk/internal/compose"
	"github.com/opsdesk/opsdesk/internal/schema"
)

// ErrBusy means a submission is already in flight for this form.
var ErrBusy = errors.New("a submission is already in flight")

// RequiredFieldError names a required field with an empty trimmed value.
type RequiredFieldError struct {
	Name string
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("required field %q is empty", e.Name)
}

// FieldTypeError reports a value that fails its declared type's validation.
type FieldTypeError struct {
	Name string
	Type string
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q is not a valid %s", e.Name, e.Type)
}

// Runner executes the submission target with the collected values.
type Runner interface {
	Run(ctx context.Context, values map[string]string) (json.RawMessage, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, values map[string]string) (json.RawMessage, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, values map[string]string) (json.RawMessage, error) {
	return f(ctx, values)
}

// Result classifies a submission outcome. Transport failures and
// backend-reported failures land in the same shape; the renderer never has
// to tell them apart.
type Result struct {
	OK   bool
	Data json.RawMessage
	Err  string
	At   time.Time
}

// Controller maintains editable values for one parameter schema.
type Controller struct {
	specs    []schema.ParameterSpec
	values   map[string]string
	result   *Result
	inFlight bool
}

// NewController creates a controller with an empty schema, which is valid
// and always submittable.
func NewController() *Controller {
	return &Controller{values: make(map[string]string)}
}

// SetSchema swaps in a new parameter list, discarding all previous values
// and any stale result.
func (c *Controller) SetSchema(specs []schema.ParameterSpec) {
	c.specs = append([]schema.ParameterSpec(nil), specs...)
	c.values = make(map[string]string, len(specs))
	c.result = nil
}

// Specs returns the current parameter list.
func (c *Controller) Specs() []schema.ParameterSpec {
	return append([]schema.ParameterSpec(nil), c.specs...)
}

// SetValue updates one field.
func (c *Controller) SetValue(name, value string) {
	c.values[name] = value
}

// Value returns one field's current value.
func (c *Controller) Value(name string) string {
	return c.values[name]
}

// Values returns a copy of the current field values.
func (c *Controller) Values() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// IsSubmittable reports whether every required field has a non-empty
// trimmed value. Optional fields never block submission.
func (c *Controller) IsSubmittable() bool {
	for _, spec := range c.specs {
		if spec.Required && strings.TrimSpace(c.values[spec.Name]) == "" {
			return false
		}
	}
	return true
}

// Validate checks required-field completeness and per-type shape. Email
// fields get the same address validation as recipient resolution; numeric
// coercion is the submission target's job, not the form's.
func (c *Controller) Validate() error {
	for _, spec := range c.specs {
		value := strings.TrimSpace(c.values[spec.Name])
		if value == "" {
			if spec.Required {
				return &RequiredFieldError{Name: spec.Name}
			}
			continue
		}
		if spec.Type == schema.TypeEmail && !compose.ValidateAddress(value) {
			return &FieldTypeError{Name: spec.Name, Type: spec.Type}
		}
	}
	return nil
}

// BeginSubmit validates the form and claims the submission slot, returning
// a snapshot of the values for the runner. Edits made while the submission
// is outstanding never reach it.
func (c *Controller) BeginSubmit() (map[string]string, error) {
	if c.inFlight {
		return nil, ErrBusy
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.inFlight = true
	return c.Values(), nil
}

// CompleteSubmit releases the submission slot and records the classified
// result.
func (c *Controller) CompleteSubmit(data json.RawMessage, runErr error) Result {
	c.inFlight = false

	result := Result{At: time.Now()}
	if runErr != nil {
		result.Err = runErr.Error()
	} else {
		result.OK = true
		result.Data = data
	}
	c.result = &result
	return result
}

// Submit validates, runs the target, and records the classified result.
// Validation failures return an error without touching the last result.
// A second submit while one is outstanding returns ErrBusy. Callers that
// cannot block on the runner use BeginSubmit and CompleteSubmit around
// their own delivery instead.
func (c *Controller) Submit(ctx context.Context, runner Runner) (Result, error) {
	values, err := c.BeginSubmit()
	if err != nil {
		return Result{}, err
	}
	data, runErr := runner.Run(ctx, values)
	return c.CompleteSubmit(data, runErr), nil
}

// LastResult returns the most recent submission result, if any.
func (c *Controller) LastResult() (Result, bool) {
	if c.result == nil {
		return Result{}, false
	}
	return *c.result, true
}
