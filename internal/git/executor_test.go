package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"gitsmart/internal/faults"
)

// initTestRepo creates a real git repository with one committed file.
func initTestRepo(t *testing.T) *Repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", "README.md")
	run("commit", "-m", "initial")

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return repo
}

func writeFile(t *testing.T, repo *Repo, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(repo.Root(), name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestStageAndSnapshot(t *testing.T) {
	repo := initTestRepo(t)
	e := NewExecutor(repo, time.Second)
	ctx := context.Background()

	writeFile(t, repo, "feature.go", "package main\n\nfunc feature() {}\n")

	cs, err := e.Stage(ctx, []string{"feature.go"})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if cs.Len() != 1 {
		t.Fatalf("staged files = %d, want 1", cs.Len())
	}
	if got := cs.Files()[0].Kind; got != KindAdded {
		t.Errorf("kind = %q, want added", got)
	}
}

func TestStageMissingPathIsValidationError(t *testing.T) {
	repo := initTestRepo(t)
	e := NewExecutor(repo, time.Second)

	_, err := e.Stage(context.Background(), []string{"does-not-exist.go"})
	if !faults.Is(err, faults.KindValidation) {
		t.Fatalf("err = %v, want validation fault", err)
	}
}

func TestUnstage(t *testing.T) {
	repo := initTestRepo(t)
	e := NewExecutor(repo, time.Second)
	ctx := context.Background()

	writeFile(t, repo, "feature.go", "package main\n")
	if _, err := e.Stage(ctx, []string{"feature.go"}); err != nil {
		t.Fatal(err)
	}

	cs, err := e.Unstage(ctx, []string{"feature.go"})
	if err != nil {
		t.Fatalf("Unstage: %v", err)
	}
	if !cs.Empty() {
		t.Fatalf("expected empty ChangeSet after unstage, got %d files", cs.Len())
	}
}

func TestCommitNothingStaged(t *testing.T) {
	repo := initTestRepo(t)
	e := NewExecutor(repo, time.Second)

	_, err := e.Commit(context.Background(), "feat: nothing")
	if !faults.Is(err, faults.KindGitOperation) {
		t.Fatalf("err = %v, want git operation fault", err)
	}
}

func TestCommitEmptyMessage(t *testing.T) {
	repo := initTestRepo(t)
	e := NewExecutor(repo, time.Second)

	_, err := e.Commit(context.Background(), "   ")
	if !faults.Is(err, faults.KindValidation) {
		t.Fatalf("err = %v, want validation fault", err)
	}
}

func TestCommitFlow(t *testing.T) {
	repo := initTestRepo(t)
	e := NewExecutor(repo, time.Second)
	ctx := context.Background()

	writeFile(t, repo, "feature.go", "package main\n")
	if _, err := e.Stage(ctx, []string{"feature.go"}); err != nil {
		t.Fatal(err)
	}

	cs, err := e.Commit(ctx, "feat: add feature")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !cs.Empty() {
		t.Fatalf("ChangeSet not empty after commit: %d files", cs.Len())
	}

	commits, err := repo.History(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != 2 {
		t.Fatalf("history = %d commits, want 2", len(commits))
	}
	if got := commits[0].Message; got != "feat: add feature\n" && got != "feat: add feature" {
		t.Errorf("head message = %q", got)
	}
}

func TestLockContention(t *testing.T) {
	repo := initTestRepo(t)
	e := NewExecutor(repo, 50*time.Millisecond)
	ctx := context.Background()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = e.WithLock(ctx, func(tx *Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	_, err := e.Stage(ctx, []string{"README.md"})
	if !faults.Is(err, faults.KindRepositoryBusy) {
		t.Fatalf("err = %v, want repository busy fault", err)
	}
	close(release)
}

func TestLockReleasedAfterError(t *testing.T) {
	repo := initTestRepo(t)
	e := NewExecutor(repo, time.Second)
	ctx := context.Background()

	// A failing operation must not leave the lock held.
	if _, err := e.Stage(ctx, []string{"missing.go"}); err == nil {
		t.Fatal("expected error")
	}
	writeFile(t, repo, "ok.go", "package main\n")
	if _, err := e.Stage(ctx, []string{"ok.go"}); err != nil {
		t.Fatalf("lock not released: %v", err)
	}
}

func TestPathExistsTrackedDeletion(t *testing.T) {
	repo := initTestRepo(t)
	ctx := context.Background()

	// README.md is tracked; deleting it from the worktree must keep it a
	// valid staging target.
	if err := os.Remove(filepath.Join(repo.Root(), "README.md")); err != nil {
		t.Fatal(err)
	}
	if !repo.PathExists(ctx, "README.md") {
		t.Fatal("tracked deleted file should remain a valid target")
	}

	e := NewExecutor(repo, time.Second)
	cs, err := e.Stage(ctx, []string{"README.md"})
	if err != nil {
		t.Fatalf("Stage deletion: %v", err)
	}
	if cs.Len() != 1 || cs.Files()[0].Kind != KindDeleted {
		t.Fatalf("unexpected ChangeSet: %+v", cs.Files())
	}
}
