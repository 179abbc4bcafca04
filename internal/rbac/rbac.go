package rbac

import "net/http"

// Scope is a permission carried by an API key.
type Scope string
type Action string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
	ScopeAdmin Scope = "admin"
)

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionAdmin Action = "admin"
)

func Can(scope Scope, action Action) bool {
	switch scope {
	case ScopeAdmin:
		return true
	case ScopeWrite:
		return action == ActionRead || action == ActionWrite
	case ScopeRead:
		return action == ActionRead
	default:
		return false
	}
}

// Allowed reports whether any of scopes permits action.
func Allowed(scopes []string, action Action) bool {
	for _, s := range scopes {
		if Can(Scope(s), action) {
			return true
		}
	}
	return false
}

// ActionForMethod maps an HTTP method to the action it needs.
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	default:
		return ActionWrite
	}
}

// Normalize drops unknown scopes and duplicates, defaulting to read.
func Normalize(scopes []string) []string {
	seen := make(map[Scope]bool, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		switch scope := Scope(s); scope {
		case ScopeRead, ScopeWrite, ScopeAdmin:
			if !seen[scope] {
				seen[scope] = true
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return []string{string(ScopeRead)}
	}
	return out
}
