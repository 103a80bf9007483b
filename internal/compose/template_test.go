package compose

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveSubstitutesBindings(t *testing.T) {
	tmpl := Template{
		Subject: "Your order {orderId}",
		Body:    "Hi {customerName},\n\nOrder {orderId} has shipped.",
	}

	out := Resolve(tmpl, map[string]string{"orderId": "1042", "customerName": "Dana"})
	require.Equal(t, "Your order 1042", out.Subject)
	require.Equal(t, "Hi Dana,\n\nOrder 1042 has shipped.", out.Body)
}

func TestResolveUnboundPlaceholderBecomesEmpty(t *testing.T) {
	tmpl := Template{Subject: "Re: {ticketId}", Body: "Hello {customerName}"}

	out := Resolve(tmpl, map[string]string{"ticketId": "T-9"})
	require.Equal(t, "Re: T-9", out.Subject)
	require.Equal(t, "Hello ", out.Body)
}

func TestResolveIsIdempotentAndNeverReExpands(t *testing.T) {
	tmpl := Template{Subject: "{a}", Body: "{a} {b}"}
	bindings := map[string]string{"a": "{b}", "b": "beta"}

	// A bound value containing placeholder syntax is inserted literally.
	out := Resolve(tmpl, bindings)
	require.Equal(t, "{b}", out.Subject)
	require.Equal(t, "{b} beta", out.Body)

	again := Resolve(tmpl, bindings)
	require.Equal(t, out, again)
}

func TestPlaceholderNamesFirstOccurrenceOrder(t *testing.T) {
	tmpl := Template{
		Subject: "{second} then {first}",
		Body:    "{first} again, plus {third}",
	}
	require.Equal(t, []string{"second", "first", "third"}, PlaceholderNames(tmpl))
}

func TestEngineSelectSeedsOnlyMissingBindings(t *testing.T) {
	engine := NewEngine()
	engine.SetVar("customerName", "Dana")

	engine.Select(Template{Name: "shipped", Body: "Hi {customerName}, order {orderId}"})

	bindings := engine.Bindings()
	require.Equal(t, "Dana", bindings["customerName"], "existing binding carries over")
	require.Equal(t, "", bindings["orderId"], "new placeholder seeded empty")
}

func TestEngineRenderTracksVarChanges(t *testing.T) {
	engine := NewEngine()
	engine.Select(Template{Subject: "Order {orderId}", Body: "Ref {orderId}"})

	engine.SetVar("orderId", "7")
	require.Equal(t, "Order 7", engine.Render().Subject)

	// Re-editing resolves from the original template, not the prior render.
	engine.SetVar("orderId", "8")
	require.Equal(t, "Order 8", engine.Render().Subject)
	require.Equal(t, "Ref 8", engine.Render().Body)
}

func TestEngineClearDiscardsEverything(t *testing.T) {
	engine := NewEngine()
	engine.Select(Template{Name: "x", Subject: "{a}"})
	engine.SetVar("a", "1")

	engine.Clear()

	_, ok := engine.Selected()
	require.False(t, ok)
	require.Empty(t, engine.Bindings())
	require.Equal(t, ComposedText{}, engine.Render())
}

func TestEngineDeclaredPlaceholdersWin(t *testing.T) {
	engine := NewEngine()
	engine.Select(Template{
		Subject:      "{fromText}",
		Placeholders: []string{"declared"},
	})
	require.Equal(t, []string{"declared"}, engine.Placeholders())
}

func TestValidateContent(t *testing.T) {
	require.NoError(t, ValidateContent("s", "b"))
	require.ErrorIs(t, ValidateContent("  ", "b"), ErrMissingContent)
	require.ErrorIs(t, ValidateContent("s", "\n\t"), ErrMissingContent)
}
