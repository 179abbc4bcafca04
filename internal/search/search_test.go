package search

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

type fakeIndex struct {
	mu        sync.Mutex
	healthy   bool
	searchErr error
	results   []Result
	indexed   chan ContactRecord
	deleted   chan string
	bulk      []ContactRecord
	lastQuery Query
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(_ context.Context, q Query) ([]Result, int, error) {
	f.mu.Lock()
	f.lastQuery = q
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, 0, f.searchErr
	}
	return f.results, len(f.results), nil
}

func (f *fakeIndex) IndexContact(c ContactRecord) error {
	f.indexed <- c
	return nil
}

func (f *fakeIndex) IndexContacts(cs []ContactRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulk = append(f.bulk, cs...)
	return nil
}

func (f *fakeIndex) DeleteContact(id string) error {
	f.deleted <- id
	return nil
}

func TestServiceUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &fakeIndex{healthy: true, results: []Result{{ID: "c1", Name: "Ada Lovelace"}}}
	svc := NewService(primary, nil, nil)

	resp := svc.Search(context.Background(), Query{Text: "ada", UserID: "u1"})
	if resp.Backend != "meilisearch" || resp.Total != 1 || resp.Results[0].ID != "c1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if primary.lastQuery.UserID != "u1" {
		t.Fatalf("query not scoped to user: %+v", primary.lastQuery)
	}
}

func TestServiceFallsBackToPgFTS(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM contacts c WHERE c.fts @@ plainto_tsquery('simple', $1) AND c.user_id = $2 AND c.workspace_id = $3`)).
		WithArgs("ada", "u1", "ws1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT c.id`).
		WithArgs("ada", "u1", "ws1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "first_name", "last_name", "email", "phone", "company", "snippet"}).
			AddRow("c1", "ws1", "Ada", "Lovelace", "ada@example.com", "", "Analytical", "<b>Ada</b> Lovelace"))

	primary := &fakeIndex{healthy: true, searchErr: errors.New("connection refused")}
	svc := NewService(primary, NewPgFTS(db), nil)

	resp := svc.Search(context.Background(), Query{Text: "ada", UserID: "u1", WorkspaceID: "ws1"})
	if resp.Backend != "pgfts" || resp.Total != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Results[0].Name != "Ada Lovelace" || resp.Results[0].Email != "ada@example.com" {
		t.Fatalf("unexpected result: %+v", resp.Results[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPgFTSBlankQueryShortCircuits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	results, total, err := NewPgFTS(db).Search(context.Background(), Query{Text: "   ", UserID: "u1"})
	if err != nil || total != 0 || len(results) != 0 {
		t.Fatalf("Search() = %v, %d, %v", results, total, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries: %v", err)
	}
}

func TestServiceWithoutBackendsReturnsEmpty(t *testing.T) {
	resp := NewService(nil, nil, nil).Search(context.Background(), Query{Text: "x", UserID: "u1"})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %+v", resp)
	}
}

func TestIndexingIsAsynchronous(t *testing.T) {
	primary := &fakeIndex{healthy: true, indexed: make(chan ContactRecord, 1), deleted: make(chan string, 1)}
	svc := NewService(primary, nil, nil)

	svc.IndexContact(ContactRecord{ID: "c1", UserID: "u1"})
	select {
	case got := <-primary.indexed:
		if got.ID != "c1" {
			t.Fatalf("indexed %q, want c1", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("contact was not indexed")
	}

	svc.DeleteContact("c1")
	select {
	case got := <-primary.deleted:
		if got != "c1" {
			t.Fatalf("deleted %q, want c1", got)
		}
	case <-time.After(time.Second):
		t.Fatal("contact was not removed")
	}
}

func TestIndexingSkipsUnhealthyPrimary(t *testing.T) {
	primary := &fakeIndex{healthy: false, indexed: make(chan ContactRecord, 1)}
	NewService(primary, nil, nil).IndexContact(ContactRecord{ID: "c1"})
	select {
	case <-primary.indexed:
		t.Fatal("unhealthy index should not receive documents")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestQueryNormalization(t *testing.T) {
	q := Query{Limit: 500, Offset: -3}.normalized()
	if q.Limit != 100 || q.Offset != 0 {
		t.Fatalf("normalized() = %+v", q)
	}
	if got := (Query{}).normalized().Limit; got != 20 {
		t.Fatalf("default limit = %d, want 20", got)
	}
}

func TestMeiliFiltersAlwaysScopeToUser(t *testing.T) {
	got := meiliFilters(Query{UserID: "u1", WorkspaceID: "ws1"})
	if len(got) != 2 || got[0] != `userId = "u1"` || got[1] != `workspaceId = "ws1"` {
		t.Fatalf("meiliFilters() = %v", got)
	}
}
