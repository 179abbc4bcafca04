package render

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderWithFilters(t *testing.T) {
	e := New()
	data := map[string]any{
		"contact": map[string]any{"first_name": "", "last_name": "lovelace", "company": "analytical engines ltd"},
	}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "fallback on blank", src: `Hi {{ contact.first_name | fallback: "there" }}`, want: "Hi there"},
		{name: "titlecase", src: `{{ contact.company | titlecase }}`, want: "Analytical Engines Ltd"},
		{name: "initial", src: `{{ contact.last_name | initial }}`, want: "L."},
		{name: "missing var renders empty", src: `[{{ contact.nickname }}]`, want: "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Render(tt.src, data)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRenderPartsNamesFailingField(t *testing.T) {
	e := New()
	_, err := e.RenderParts(Parts{Subject: "ok", Body: "{% if vip %}unterminated"}, nil)
	require.Error(t, err)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "body", rerr.Field)
}

func TestRenderPartsSkipsEmpty(t *testing.T) {
	e := New()
	out, err := e.RenderParts(Parts{Subject: "Hello {{ name }}", Body: "<p>{{ name }}</p>"}, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	require.Equal(t, "Hello Ada", out.Subject)
	require.Equal(t, "<p>Ada</p>", out.Body)
	require.Empty(t, out.Signature)
}

func TestRenderCachedReusesParse(t *testing.T) {
	e := New()
	first, err := e.RenderCached("k", "{{ n }}", map[string]any{"n": 1})
	require.NoError(t, err)
	require.Equal(t, "1", first)

	second, err := e.RenderCached("k", "ignored {{ other }}", map[string]any{"n": 2})
	require.NoError(t, err)
	require.Equal(t, "2", second)
}

func TestValidate(t *testing.T) {
	e := New()
	require.NoError(t, e.Validate("{% for x in items %}{{ x }}{% endfor %}"))
	require.Error(t, e.Validate("{% for x in items %}"))
}
