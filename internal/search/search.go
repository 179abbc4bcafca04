package search

import "context"

// ContactRecord is the document pushed to the index for one contact.
type ContactRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	WorkspaceID string `json:"workspaceId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Company     string `json:"company"`
}

// Result is a single contact hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Company     string `json:"company,omitempty"`
	Snippet     string `json:"snippet"`
}

// Query describes a search request. UserID is mandatory; every backend
// scopes hits to it.
type Query struct {
	Text        string
	UserID      string
	WorkspaceID string
	Limit       int
	Offset      int
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

type Indexer interface {
	IndexContact(c ContactRecord) error
	IndexContacts(cs []ContactRecord) error
	DeleteContact(id string) error
}

// Index is a backend that can both serve queries and accept documents.
type Index interface {
	Searcher
	Indexer
}

func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func displayName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
