package form

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/schema"
)

func specsFor(t *testing.T, raw string) []schema.ParameterSpec {
	t.Helper()
	specs, err := schema.Normalize(json.RawMessage(raw))
	require.NoError(t, err)
	return specs
}

func TestIsSubmittableTracksRequiredFields(t *testing.T) {
	c := NewController()
	require.True(t, c.IsSubmittable(), "empty schema is always submittable")

	c.SetSchema(specsFor(t, `[
		{"name": "id", "type": "string", "required": true},
		{"name": "note", "type": "string", "required": false}
	]`))
	require.False(t, c.IsSubmittable())

	c.SetValue("id", "   ")
	require.False(t, c.IsSubmittable(), "whitespace does not satisfy a required field")

	c.SetValue("id", "42")
	require.True(t, c.IsSubmittable(), "optional fields never block")
}

func TestValidateEmailFields(t *testing.T) {
	c := NewController()
	c.SetSchema(specsFor(t, `[{"name": "contact", "type": "email", "required": true}]`))

	c.SetValue("contact", "not-an-address")
	var typeErr *FieldTypeError
	require.ErrorAs(t, c.Validate(), &typeErr)
	require.Equal(t, "contact", typeErr.Name)

	c.SetValue("contact", "ops@example.com")
	require.NoError(t, c.Validate())
}

func TestValidateOptionalEmptyFieldsSkipTypeCheck(t *testing.T) {
	c := NewController()
	c.SetSchema(specsFor(t, `[{"name": "cc", "type": "email", "required": false}]`))
	require.NoError(t, c.Validate())
}

func TestSetSchemaResetsValuesAndResult(t *testing.T) {
	c := NewController()
	c.SetSchema(specsFor(t, `{"a": "string"}`))
	c.SetValue("a", "1")

	_, err := c.Submit(context.Background(), RunnerFunc(
		func(ctx context.Context, values map[string]string) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		}))
	require.NoError(t, err)
	_, ok := c.LastResult()
	require.True(t, ok)

	c.SetSchema(specsFor(t, `{"b": "string"}`))
	require.Empty(t, c.Value("a"))
	_, ok = c.LastResult()
	require.False(t, ok, "stale result discarded on schema switch")
}

func TestSubmitClassifiesOutcomes(t *testing.T) {
	c := NewController()
	c.SetSchema(specsFor(t, `{"q": "string"}`))
	c.SetValue("q", "hello")

	result, err := c.Submit(context.Background(), RunnerFunc(
		func(ctx context.Context, values map[string]string) (json.RawMessage, error) {
			require.Equal(t, "hello", values["q"])
			return json.RawMessage(`{"answer": 1}`), nil
		}))
	require.NoError(t, err)
	require.True(t, result.OK)
	require.JSONEq(t, `{"answer": 1}`, string(result.Data))
	require.False(t, result.At.IsZero())

	result, err = c.Submit(context.Background(), RunnerFunc(
		func(ctx context.Context, values map[string]string) (json.RawMessage, error) {
			return nil, errors.New("backend exploded")
		}))
	require.NoError(t, err, "runner failure is a classified result, not a submit error")
	require.False(t, result.OK)
	require.Equal(t, "backend exploded", result.Err)

	last, ok := c.LastResult()
	require.True(t, ok)
	require.Equal(t, result, last)
}

func TestSubmitValidationFailurePreservesLastResult(t *testing.T) {
	c := NewController()
	c.SetSchema(specsFor(t, `{"q": "string"}`))
	c.SetValue("q", "first")

	ok := RunnerFunc(func(ctx context.Context, values map[string]string) (json.RawMessage, error) {
		return json.RawMessage(`"done"`), nil
	})
	_, err := c.Submit(context.Background(), ok)
	require.NoError(t, err)

	c.SetValue("q", "")
	_, err = c.Submit(context.Background(), ok)
	var reqErr *RequiredFieldError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, "q", reqErr.Name)

	last, present := c.LastResult()
	require.True(t, present, "validation failure leaves the previous result visible")
	require.True(t, last.OK)
}

func TestBeginSubmitSnapshotsValues(t *testing.T) {
	c := NewController()
	c.SetSchema(specsFor(t, `{"q": "string"}`))
	c.SetValue("q", "first")

	values, err := c.BeginSubmit()
	require.NoError(t, err)

	c.SetValue("q", "second")
	require.Equal(t, "first", values["q"], "later edits never reach an outstanding submission")

	_, err = c.BeginSubmit()
	require.ErrorIs(t, err, ErrBusy)

	result := c.CompleteSubmit(json.RawMessage(`{"done": true}`), nil)
	require.True(t, result.OK)
	last, ok := c.LastResult()
	require.True(t, ok)
	require.Equal(t, result, last)

	_, err = c.BeginSubmit()
	require.NoError(t, err, "slot is free again after completion")
}

func TestCompleteSubmitClassifiesFailure(t *testing.T) {
	c := NewController()
	c.SetSchema(specsFor(t, `{"q": "string"}`))
	c.SetValue("q", "x")

	_, err := c.BeginSubmit()
	require.NoError(t, err)

	result := c.CompleteSubmit(nil, errors.New("backend exploded"))
	require.False(t, result.OK)
	require.Equal(t, "backend exploded", result.Err)
	require.False(t, result.At.IsZero())
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	c := NewController()
	c.SetSchema(specsFor(t, `{"q": "string"}`))
	c.SetValue("q", "x")

	var inner error
	_, err := c.Submit(context.Background(), RunnerFunc(
		func(ctx context.Context, values map[string]string) (json.RawMessage, error) {
			_, inner = c.Submit(ctx, RunnerFunc(
				func(context.Context, map[string]string) (json.RawMessage, error) {
					return nil, nil
				}))
			return json.RawMessage(`{}`), nil
		}))
	require.NoError(t, err)
	require.ErrorIs(t, inner, ErrBusy)
}
