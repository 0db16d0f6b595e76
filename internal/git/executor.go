package git

import (
	"context"
	"strings"
	"time"

	"gitsmart/internal/faults"
	"gitsmart/internal/logging"
)

// Executor performs stage/unstage/commit mutations against one repository.
// All mutations are serialized by a single non-reentrant lock scoped to the
// full logical operation: a compound operation (stage → analyze → generate →
// commit) holds the lock from first read to last write. Contention blocks up
// to lockTimeout, then fails with RepositoryBusyError.
type Executor struct {
	repo        *Repo
	lock        chan struct{} // capacity 1; holding the token = holding the lock
	lockTimeout time.Duration
}

// NewExecutor creates an executor bound to repo.
func NewExecutor(repo *Repo, lockTimeout time.Duration) *Executor {
	return &Executor{
		repo:        repo,
		lock:        make(chan struct{}, 1),
		lockTimeout: lockTimeout,
	}
}

// Repo returns the bound repository.
func (e *Executor) Repo() *Repo { return e.repo }

// Tx gives lock holders access to the mutation primitives. A Tx is only valid
// inside the WithLock callback that produced it.
type Tx struct {
	e *Executor
}

// WithLock acquires the repository mutation lock, runs fn, and releases the
// lock after fn returns (including on error). Acquisition blocks up to the
// configured timeout; on expiry the call fails with RepositoryBusyError and
// fn never runs.
func (e *Executor) WithLock(ctx context.Context, fn func(tx *Tx) error) error {
	timer := time.NewTimer(e.lockTimeout)
	defer timer.Stop()

	select {
	case e.lock <- struct{}{}:
	case <-timer.C:
		logging.GitInfo("lock acquisition timed out after %v", e.lockTimeout)
		return faults.RepositoryBusy("repository %s is locked by another operation", e.repo.Name())
	case <-ctx.Done():
		return faults.Wrap(faults.KindRepositoryBusy, ctx.Err(), "cancelled waiting for repository lock")
	}
	defer func() { <-e.lock }()

	return fn(&Tx{e: e})
}

// Stage stages the given paths and returns the resulting ChangeSet.
func (e *Executor) Stage(ctx context.Context, paths []string) (*ChangeSet, error) {
	var cs *ChangeSet
	err := e.WithLock(ctx, func(tx *Tx) error {
		var err error
		cs, err = tx.Stage(ctx, paths)
		return err
	})
	return cs, err
}

// Unstage unstages the given paths and returns the resulting ChangeSet.
func (e *Executor) Unstage(ctx context.Context, paths []string) (*ChangeSet, error) {
	var cs *ChangeSet
	err := e.WithLock(ctx, func(tx *Tx) error {
		var err error
		cs, err = tx.Unstage(ctx, paths)
		return err
	})
	return cs, err
}

// Commit records the staged changes with the given message and returns the
// (now empty) ChangeSet.
func (e *Executor) Commit(ctx context.Context, message string) (*ChangeSet, error) {
	var cs *ChangeSet
	err := e.WithLock(ctx, func(tx *Tx) error {
		var err error
		cs, err = tx.Commit(ctx, message)
		return err
	})
	return cs, err
}

// Snapshot captures the staged ChangeSet. Lock-free: reads that will not be
// acted on do not need serialization.
func (e *Executor) Snapshot(ctx context.Context) (*ChangeSet, error) {
	return e.repo.Snapshot(ctx)
}

// Stage validates each path against the working tree and index, stages them,
// and snapshots the result. A path that exists nowhere is a ValidationError
// and nothing is staged.
func (tx *Tx) Stage(ctx context.Context, paths []string) (*ChangeSet, error) {
	if len(paths) == 0 {
		return nil, faults.Validation("no paths given to stage")
	}
	for _, p := range paths {
		if !tx.e.repo.PathExists(ctx, p) {
			return nil, faults.Validation("path does not exist in working tree: %s", p)
		}
	}

	args := append([]string{"add", "--"}, paths...)
	if _, err := runGit(ctx, tx.e.repo.root, args...); err != nil {
		return nil, faults.GitOperation(err, "failed to stage %s", strings.Join(paths, ", "))
	}
	logging.GitInfo("staged %d path(s)", len(paths))
	return tx.e.repo.Snapshot(ctx)
}

// Unstage validates each path against the index, resets them, and snapshots
// the result.
func (tx *Tx) Unstage(ctx context.Context, paths []string) (*ChangeSet, error) {
	if len(paths) == 0 {
		return nil, faults.Validation("no paths given to unstage")
	}
	for _, p := range paths {
		if !tx.e.repo.PathExists(ctx, p) {
			return nil, faults.Validation("path does not exist in working tree: %s", p)
		}
	}

	args := append([]string{"reset", "--"}, paths...)
	if _, err := runGit(ctx, tx.e.repo.root, args...); err != nil {
		return nil, faults.GitOperation(err, "failed to unstage %s", strings.Join(paths, ", "))
	}
	logging.GitInfo("unstaged %d path(s)", len(paths))
	return tx.e.repo.Snapshot(ctx)
}

// Commit records the staged changes. Committing with nothing staged is a
// GitOperationError.
func (tx *Tx) Commit(ctx context.Context, message string) (*ChangeSet, error) {
	if strings.TrimSpace(message) == "" {
		return nil, faults.Validation("commit message is empty")
	}

	cs, err := tx.e.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if cs.Empty() {
		return nil, faults.New(faults.KindGitOperation, "nothing staged to commit")
	}

	if _, err := runGit(ctx, tx.e.repo.root, "commit", "-m", message); err != nil {
		return nil, faults.GitOperation(err, "commit rejected")
	}
	logging.GitInfo("committed %d file(s)", cs.Len())
	return tx.e.repo.Snapshot(ctx)
}

// Snapshot captures the staged ChangeSet under the held lock.
func (tx *Tx) Snapshot(ctx context.Context) (*ChangeSet, error) {
	return tx.e.repo.Snapshot(ctx)
}

// Push pushes the current branch to the named remote.
func (e *Executor) Push(ctx context.Context, remote string) error {
	return e.WithLock(ctx, func(tx *Tx) error {
		if _, err := runGit(ctx, e.repo.root, "push", remote); err != nil {
			return faults.GitOperation(err, "failed to push to %s", remote)
		}
		logging.GitInfo("pushed to %s", remote)
		return nil
	})
}
