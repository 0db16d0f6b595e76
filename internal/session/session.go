// Package session tracks per-repository state shared between the interactive
// surface and the tool server: the bound repository, the most recent staged
// ChangeSet observed, and the most recent commit message draft.
package session

import (
	"sync"
	"time"

	"gitsmart/internal/git"
	"gitsmart/internal/pipeline"
)

// RepositorySession is the mutable state for one bound repository. All
// repository mutations themselves go through the executor's lock; the session
// only records what was last seen.
type RepositorySession struct {
	mu sync.RWMutex

	repo     *git.Repo
	executor *git.Executor

	lastChangeSet *git.ChangeSet
	lastDraft     *pipeline.CommitMessage
	lastActivity  time.Time
}

// New creates a session bound to repo.
func New(repo *git.Repo, executor *git.Executor) *RepositorySession {
	return &RepositorySession{
		repo:         repo,
		executor:     executor,
		lastActivity: time.Now(),
	}
}

// Repo returns the bound repository.
func (s *RepositorySession) Repo() *git.Repo { return s.repo }

// Executor returns the repository's mutation executor.
func (s *RepositorySession) Executor() *git.Executor { return s.executor }

// RecordChangeSet stores the most recent observed ChangeSet.
func (s *RepositorySession) RecordChangeSet(cs *git.ChangeSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastChangeSet = cs
	s.lastActivity = time.Now()
}

// RecordDraft stores the most recent commit message draft.
func (s *RepositorySession) RecordDraft(msg *pipeline.CommitMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDraft = msg
	s.lastActivity = time.Now()
}

// LastChangeSet returns the most recent observed ChangeSet, or nil.
func (s *RepositorySession) LastChangeSet() *git.ChangeSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastChangeSet
}

// LastDraft returns the most recent draft, or nil.
func (s *RepositorySession) LastDraft() *pipeline.CommitMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDraft
}

// LastActivity returns the time of the last recorded state change.
func (s *RepositorySession) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}
