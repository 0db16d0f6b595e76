package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTouchAndList(t *testing.T) {
	s := openTestStore(t)

	if err := s.Touch("/repos/alpha", "alpha"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := s.Touch("/repos/beta", "beta"); err != nil {
		t.Fatal(err)
	}

	repos, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 2 {
		t.Fatalf("repos = %d, want 2", len(repos))
	}
	// Most recently used first.
	if repos[0].Name != "beta" {
		t.Errorf("first = %q, want beta", repos[0].Name)
	}
}

func TestTouchUpdatesExisting(t *testing.T) {
	s := openTestStore(t)

	if err := s.Touch("/repos/alpha", "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := s.Touch("/repos/alpha", "alpha-renamed"); err != nil {
		t.Fatal(err)
	}

	repos, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 1 {
		t.Fatalf("repos = %d, want 1", len(repos))
	}
	if repos[0].Name != "alpha-renamed" {
		t.Errorf("name = %q", repos[0].Name)
	}
}

func TestDraftLifecycle(t *testing.T) {
	s := openTestStore(t)

	id, err := s.SaveDraft("/repos/alpha", "feat: add x", "feat: add x\n\nAdd x.", false, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.MarkCommitted(id); err != nil {
		t.Fatal(err)
	}

	drafts, err := s.RecentDrafts("/repos/alpha", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	d := drafts[0]
	if d.Title != "feat: add x" || !d.Committed || d.Fallback {
		t.Errorf("draft = %+v", d)
	}
}

func TestRecentDraftsScopedByRepo(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.SaveDraft("/repos/alpha", "a", "a", false, true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveDraft("/repos/beta", "b", "b", true, false); err != nil {
		t.Fatal(err)
	}

	drafts, err := s.RecentDrafts("/repos/beta", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 1 || drafts[0].Title != "b" || !drafts[0].Fallback {
		t.Errorf("drafts = %+v", drafts)
	}
}
