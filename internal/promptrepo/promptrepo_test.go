package promptrepo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestPromptLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	created, err := svc.Create("ws1", Input{
		Name:        "Follow Up: Warm Leads!",
		Description: "second touch",
		Tags:        []string{"email"},
		Content:     "Hi {{ first_name }},\n",
	}, "Avery")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Filename != "ws1-global-follow-up-warm-leads.md" {
		t.Fatalf("filename = %q", created.Filename)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "ws1", "global", created.Filename)); err != nil {
		t.Fatalf("prompt file missing: %v", err)
	}

	got, err := svc.Get("ws1", created.Filename)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Follow Up: Warm Leads!" || got.Content != "Hi {{ first_name }},\n" || got.WorkspaceID != "ws1" {
		t.Fatalf("unexpected prompt: %+v", got)
	}
	if got.ListID != nil {
		t.Fatalf("expected global prompt, got list %q", *got.ListID)
	}

	updated, err := svc.Update("ws1", created.Filename, Patch{Content: strPtr("Hello again")}, "Avery")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Content != "Hello again" || updated.Description != "second touch" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("createdAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	history, err := svc.History("ws1", created.Filename, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	if !strings.HasPrefix(history[0].Message, "Update prompt") || history[0].Author != "Avery" {
		t.Fatalf("unexpected newest commit: %+v", history[0])
	}

	if err := svc.Delete("ws1", created.Filename, "Avery"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get("ws1", created.Filename); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Create("ws1", Input{Name: "Intro", Content: "a"}, "Avery"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create("ws1", Input{Name: "intro", Content: "b"}, "Avery"); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate Create() error = %v, want ErrExists", err)
	}
	// Same name under a list is a different file.
	if _, err := svc.Create("ws1", Input{Name: "Intro", ListID: strPtr("list1"), Content: "c"}, "Avery"); err != nil {
		t.Fatalf("list Create() error = %v", err)
	}
}

func TestListFiltersByList(t *testing.T) {
	svc := New(t.TempDir())
	for _, in := range []Input{
		{Name: "Bravo", Content: "x"},
		{Name: "Alpha", ListID: strPtr("list1"), Content: "y"},
		{Name: "Charlie", ListID: strPtr("list2"), Content: "z"},
	} {
		if _, err := svc.Create("ws1", in, "Avery"); err != nil {
			t.Fatalf("Create(%s) error = %v", in.Name, err)
		}
	}

	all, err := svc.List("ws1", nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].Name != "Alpha" || all[2].Name != "Charlie" {
		t.Fatalf("unexpected list: %+v", all)
	}

	scoped, err := svc.List("ws1", strPtr("list1"))
	if err != nil {
		t.Fatalf("List(list1) error = %v", err)
	}
	if len(scoped) != 1 || scoped[0].Name != "Alpha" {
		t.Fatalf("unexpected scoped list: %+v", scoped)
	}

	empty, err := svc.List("ws-none", nil)
	if err != nil {
		t.Fatalf("List(empty) error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no prompts, got %d", len(empty))
	}
}

func TestGetRejectsForeignOrTraversalFilenames(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Create("ws1", Input{Name: "Intro", Content: "a"}, "Avery"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for _, name := range []string{
		"../ws1/global/ws1-global-intro.md",
		"ws2-global-intro.md",
		"ws1-global-intro.txt",
	} {
		if _, err := svc.Get("ws1", name); !errors.Is(err, ErrInvalidFilename) {
			t.Fatalf("Get(%q) error = %v, want ErrInvalidFilename", name, err)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":         "hello-world",
		"  Spaced   out  ":    "spaced-out",
		"Q&A -- Round 2":      "qa-round-2",
		strings.Repeat("a", 120): strings.Repeat("a", 100),
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConcurrentCreatesInOneWorkspace(t *testing.T) {
	svc := New(t.TempDir())
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create("ws1", Input{Name: "prompt " + string(rune('a'+i)), Content: "x"}, "Avery")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Create() error = %v", err)
		}
	}
	all, err := svc.List("ws1", nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 8 {
		t.Fatalf("prompt count = %d, want 8", len(all))
	}
}
