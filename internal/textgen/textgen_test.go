package textgen

import (
	"context"
	"errors"
	"testing"
)

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), "", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("NewGemini() error = %v, want ErrNotConfigured", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	type draft struct {
		Subject string `json:"subject"`
	}
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain", raw: `{"subject":"Hi"}`, want: "Hi"},
		{name: "fenced", raw: "```json\n{\"subject\":\"Hey\"}\n```", want: "Hey"},
		{name: "bare fence", raw: "```\n{\"subject\":\"Yo\"}\n```", want: "Yo"},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "prose", raw: "Sure! Here is your template.", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out draft
			err := DecodeJSON(tc.raw, &out)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidOutput) {
					t.Fatalf("DecodeJSON() error = %v, want ErrInvalidOutput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON() error = %v", err)
			}
			if out.Subject != tc.want {
				t.Fatalf("subject = %q, want %q", out.Subject, tc.want)
			}
		})
	}
}

func TestFuncPropagatesErrors(t *testing.T) {
	boom := errors.New("quota")
	gen := Func(func(context.Context, string) (string, error) { return "", boom })
	var out map[string]any
	if err := gen.GenerateJSON(context.Background(), "p", &out); !errors.Is(err, boom) {
		t.Fatalf("GenerateJSON() error = %v, want quota", err)
	}
}
