package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"gitsmart/internal/faults"
	"gitsmart/internal/logging"
)

// Repo wraps a single git repository. Mutations go through the git binary,
// matching git's own index semantics exactly; read-only history access uses
// go-git so no pager or porcelain parsing is involved.
type Repo struct {
	root string
}

// Open locates the repository containing dir and returns a Repo bound to its
// toplevel directory.
func Open(dir string) (*Repo, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	out, err := runGit(context.Background(), abs, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, faults.Wrap(faults.KindGitOperation, err, "not a git repository: %s", abs)
	}
	root := strings.TrimSpace(out)
	logging.GitDebug("opened repository %s", root)
	return &Repo{root: root}, nil
}

// Root returns the repository's toplevel directory.
func (r *Repo) Root() string { return r.root }

// Name returns the repository name (the toplevel directory's base name).
func (r *Repo) Name() string { return filepath.Base(r.root) }

// GitDir returns the path of the .git directory.
func (r *Repo) GitDir() string { return filepath.Join(r.root, ".git") }

// Branch returns the current branch name, or the short HEAD hash when detached.
func (r *Repo) Branch(ctx context.Context) (string, error) {
	out, err := runGit(ctx, r.root, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", faults.Wrap(faults.KindGitOperation, err, "failed to resolve HEAD")
	}
	return strings.TrimSpace(out), nil
}

// StagedDiff returns the raw unified diff of the index against HEAD.
func (r *Repo) StagedDiff(ctx context.Context) (string, error) {
	out, err := runGit(ctx, r.root, "diff", "--cached")
	if err != nil {
		return "", faults.Wrap(faults.KindGitOperation, err, "failed to read staged diff")
	}
	return out, nil
}

// UnstagedDiff returns the raw unified diff of the working tree against the index.
func (r *Repo) UnstagedDiff(ctx context.Context) (string, error) {
	out, err := runGit(ctx, r.root, "diff")
	if err != nil {
		return "", faults.Wrap(faults.KindGitOperation, err, "failed to read unstaged diff")
	}
	return out, nil
}

// Snapshot captures the current staged ChangeSet.
func (r *Repo) Snapshot(ctx context.Context) (*ChangeSet, error) {
	diff, err := r.StagedDiff(ctx)
	if err != nil {
		return nil, err
	}
	cs := ParseDiff(diff)
	files, add, del := cs.Totals()
	logging.GitDebug("snapshot: %d files +%d -%d", files, add, del)
	return cs, nil
}

// UntrackedFiles lists files unknown to git.
func (r *Repo) UntrackedFiles(ctx context.Context) ([]string, error) {
	out, err := runGit(ctx, r.root, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, faults.Wrap(faults.KindGitOperation, err, "failed to list untracked files")
	}
	return splitLines(out), nil
}

// IsTracked reports whether path is known to the index.
func (r *Repo) IsTracked(ctx context.Context, path string) (bool, error) {
	out, err := runGit(ctx, r.root, "ls-files", "--", path)
	if err != nil {
		return false, faults.Wrap(faults.KindGitOperation, err, "failed to query index for %s", path)
	}
	return strings.TrimSpace(out) != "", nil
}

// PathExists reports whether path exists in the working tree or the index.
// Paths deleted from the working tree but still tracked are valid targets for
// staging the deletion.
func (r *Repo) PathExists(ctx context.Context, path string) bool {
	if _, err := os.Stat(filepath.Join(r.root, path)); err == nil {
		return true
	}
	tracked, err := r.IsTracked(ctx, path)
	return err == nil && tracked
}

// Remotes returns configured remote names mapped to their first URL.
func (r *Repo) Remotes(ctx context.Context) (map[string]string, error) {
	out, err := runGit(ctx, r.root, "remote", "-v")
	if err != nil {
		return nil, faults.Wrap(faults.KindGitOperation, err, "failed to list remotes")
	}
	remotes := make(map[string]string)
	for _, line := range splitLines(out) {
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			if _, ok := remotes[parts[0]]; !ok {
				remotes[parts[0]] = parts[1]
			}
		}
	}
	return remotes, nil
}

// CommitInfo is one entry of the repository history.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
	Message string    `json:"message"`
}

// History returns the most recent n commits, newest first.
func (r *Repo) History(n int) ([]CommitInfo, error) {
	repo, err := gogit.PlainOpen(r.root)
	if err != nil {
		return nil, faults.Wrap(faults.KindGitOperation, err, "failed to open repository")
	}

	head, err := repo.Head()
	if err != nil {
		// Fresh repository with no commits yet.
		return nil, nil
	}

	iter, err := repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, faults.Wrap(faults.KindGitOperation, err, "failed to read log")
	}
	defer iter.Close()

	var commits []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, CommitInfo{
			Hash:    c.Hash.String(),
			Author:  c.Author.Name,
			When:    c.Author.When,
			Message: c.Message,
		})
		if len(commits) >= n {
			return errStopIteration
		}
		return nil
	})
	if err != nil && err != errStopIteration {
		return nil, faults.Wrap(faults.KindGitOperation, err, "failed to walk history")
	}
	return commits, nil
}

var errStopIteration = fmt.Errorf("stop iteration")

// runGit executes a git command in dir and returns its stdout.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		logging.GitError("git %s: %s", strings.Join(args, " "), msg)
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
