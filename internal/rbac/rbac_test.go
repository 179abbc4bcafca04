package rbac

import (
	"net/http"
	"reflect"
	"testing"
)

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		scope  Scope
		action Action
		allow  bool
	}{
		{name: "read read", scope: ScopeRead, action: ActionRead, allow: true},
		{name: "read write", scope: ScopeRead, action: ActionWrite, allow: false},
		{name: "read admin", scope: ScopeRead, action: ActionAdmin, allow: false},
		{name: "write write", scope: ScopeWrite, action: ActionWrite, allow: true},
		{name: "write admin", scope: ScopeWrite, action: ActionAdmin, allow: false},
		{name: "admin admin", scope: ScopeAdmin, action: ActionAdmin, allow: true},
		{name: "unknown read", scope: Scope("owner"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.scope, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.scope, tc.action, got, tc.allow)
			}
		})
	}
}

func TestAllowedAndMethodMapping(t *testing.T) {
	if !Allowed([]string{"read", "write"}, ActionForMethod(http.MethodPost)) {
		t.Fatal("write scope should allow POST")
	}
	if Allowed([]string{"read"}, ActionForMethod(http.MethodDelete)) {
		t.Fatal("read scope must not allow DELETE")
	}
	if Allowed(nil, ActionRead) {
		t.Fatal("no scopes must allow nothing")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]string{"write", "bogus", "write", "admin"})
	if !reflect.DeepEqual(got, []string{"write", "admin"}) {
		t.Fatalf("Normalize() = %v", got)
	}
	if got := Normalize(nil); !reflect.DeepEqual(got, []string{"read"}) {
		t.Fatalf("Normalize(nil) = %v", got)
	}
}
