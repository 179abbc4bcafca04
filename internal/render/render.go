// Package render evaluates Liquid templates for campaign content and
// notification emails.
package render

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/osteele/liquid"
)

// Engine wraps a liquid engine with the CRM's filters and a parse cache.
type Engine struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// Error reports a template that failed to parse or render.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New() *Engine {
	e := &Engine{engine: liquid.NewEngine()}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// {{ contact.first_name | fallback: "there" }}
	e.engine.RegisterFilter("fallback", func(value any, alt string) any {
		if value == nil {
			return alt
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return alt
		}
		return value
	})

	e.engine.RegisterFilter("titlecase", func(s string) string {
		words := strings.Fields(strings.ToLower(s))
		for i, w := range words {
			r := []rune(w)
			r[0] = unicode.ToUpper(r[0])
			words[i] = string(r)
		}
		return strings.Join(words, " ")
	})

	e.engine.RegisterFilter("initial", func(s string) string {
		for _, r := range strings.TrimSpace(s) {
			return string(unicode.ToUpper(r)) + "."
		}
		return ""
	})
}

// Validate parses src without rendering it.
func (e *Engine) Validate(src string) error {
	if _, err := e.engine.ParseString(src); err != nil {
		return &Error{Err: err}
	}
	return nil
}

// Render parses and renders src against data.
func (e *Engine) Render(src string, data map[string]any) (string, error) {
	tpl, err := e.engine.ParseString(src)
	if err != nil {
		return "", &Error{Err: err}
	}
	out, err := tpl.RenderString(data)
	if err != nil {
		return "", &Error{Err: err}
	}
	return out, nil
}

// RenderCached is Render with the parsed template kept under key. Callers
// own the key space and must change the key when src changes.
func (e *Engine) RenderCached(key, src string, data map[string]any) (string, error) {
	if cached, ok := e.cache.Load(key); ok {
		out, err := cached.(*liquid.Template).RenderString(data)
		if err != nil {
			return "", &Error{Err: err}
		}
		return out, nil
	}
	tpl, err := e.engine.ParseString(src)
	if err != nil {
		return "", &Error{Err: err}
	}
	e.cache.Store(key, tpl)
	out, err := tpl.RenderString(data)
	if err != nil {
		return "", &Error{Err: err}
	}
	return out, nil
}

// Parts is the renderable surface of a message template.
type Parts struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Preheader string `json:"preheader"`
	Signature string `json:"signature"`
}

// RenderParts renders every non-empty part. The first failure is returned
// as an *Error naming the part.
func (e *Engine) RenderParts(p Parts, data map[string]any) (Parts, error) {
	fields := []struct {
		name string
		src  string
		dst  *string
	}{
		{"subject", p.Subject, &p.Subject},
		{"body", p.Body, &p.Body},
		{"preheader", p.Preheader, &p.Preheader},
		{"signature", p.Signature, &p.Signature},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		out, err := e.Render(f.src, data)
		if err != nil {
			var rerr *Error
			if errors.As(err, &rerr) {
				rerr.Field = f.name
			}
			return Parts{}, err
		}
		*f.dst = out
	}
	return p, nil
}
