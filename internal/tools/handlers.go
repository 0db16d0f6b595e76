package tools

import (
	"context"
	"strings"

	"gitsmart/internal/events"
	"gitsmart/internal/faults"
	"gitsmart/internal/git"
	"gitsmart/internal/logging"
	"gitsmart/internal/pipeline"
	"gitsmart/internal/session"
	"gitsmart/internal/store"
)

// Handlers binds the registered tools to a repository session, the reasoning
// pipeline, the event broadcaster, and the registry store.
type Handlers struct {
	Session     *session.RepositorySession
	Pipeline    *pipeline.Pipeline
	Broadcaster *events.Broadcaster
	Store       *store.Store
}

// RegisterAll registers every tool on r.
func (h *Handlers) RegisterAll(r *Registry) {
	r.MustRegister(&Tool{
		Name:        "stage_file",
		Description: "Stage one or more files for commit",
		Schema: Schema{
			Required: []string{"files"},
			Properties: map[string]Property{
				"files": {Type: "array", Description: "Paths to stage, relative to the repository root", Items: &PropertyItems{Type: "string"}},
			},
		},
		Execute: h.stageFile,
	})
	r.MustRegister(&Tool{
		Name:        "unstage_file",
		Description: "Remove one or more files from the staging area",
		Schema: Schema{
			Required: []string{"files"},
			Properties: map[string]Property{
				"files": {Type: "array", Description: "Paths to unstage, relative to the repository root", Items: &PropertyItems{Type: "string"}},
			},
		},
		Execute: h.unstageFile,
	})
	r.MustRegister(&Tool{
		Name:        "generate_commit_and_commit",
		Description: "Generate a commit message from the staged changes and commit them; an explicit message bypasses generation",
		Schema: Schema{
			Properties: map[string]Property{
				"message": {Type: "string", Description: "Optional caller-supplied commit message"},
			},
		},
		Execute: h.generateAndCommit,
	})
	r.MustRegister(&Tool{
		Name:        "list_repositories",
		Description: "List repositories known to the registry, most recently used first",
		Schema:      Schema{},
		Execute:     h.listRepositories,
	})
	r.MustRegister(&Tool{
		Name:        "repository_status",
		Description: "Report the bound repository's branch and staged/unstaged change summary",
		Schema:      Schema{},
		Execute:     h.repositoryStatus,
	})
}

func (h *Handlers) stageFile(ctx context.Context, args map[string]any) (any, error) {
	files, err := StringSlice(args["files"])
	if err != nil {
		return nil, err
	}

	cs, err := h.Session.Executor().Stage(ctx, files)
	if err != nil {
		h.publishError(err)
		return nil, err
	}
	h.Session.RecordChangeSet(cs)
	h.Broadcaster.Publish(events.TypeStaged, cs.Summarize())
	return map[string]any{"staged": files, "change_set": cs.Summarize()}, nil
}

func (h *Handlers) unstageFile(ctx context.Context, args map[string]any) (any, error) {
	files, err := StringSlice(args["files"])
	if err != nil {
		return nil, err
	}

	cs, err := h.Session.Executor().Unstage(ctx, files)
	if err != nil {
		h.publishError(err)
		return nil, err
	}
	h.Session.RecordChangeSet(cs)
	h.Broadcaster.Publish(events.TypeUnstaged, cs.Summarize())
	return map[string]any{"unstaged": files, "change_set": cs.Summarize()}, nil
}

// generateAndCommit runs snapshot, generation, and commit as one serialized
// operation: the lock is held from the first read of the ChangeSet to the
// commit, so no other mutation can interleave.
func (h *Handlers) generateAndCommit(ctx context.Context, args map[string]any) (any, error) {
	custom, _ := args["message"].(string)
	custom = strings.TrimSpace(custom)

	var result map[string]any
	err := h.Session.Executor().WithLock(ctx, func(tx *git.Tx) error {
		cs, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}
		if cs.Empty() {
			return faults.New(faults.KindGitOperation, "nothing staged to commit")
		}
		h.Session.RecordChangeSet(cs)

		message := custom
		var draft *pipeline.CommitMessage
		if message == "" {
			draft, err = h.Pipeline.Generate(ctx, cs)
			if err != nil {
				return err
			}
			h.Session.RecordDraft(draft)
			h.Broadcaster.Publish(events.TypeDraftReady, draft)
			message = draft.Render()
		}

		after, err := tx.Commit(ctx, message)
		if err != nil {
			return err
		}
		h.Session.RecordChangeSet(after)

		if h.Store != nil && draft != nil {
			if id, serr := h.Store.SaveDraft(h.Session.Repo().Root(), draft.Title, message, draft.Fallback, true); serr != nil {
				logging.StoreDebug("failed to save draft: %v", serr)
			} else if serr := h.Store.MarkCommitted(id); serr != nil {
				logging.StoreDebug("failed to flag draft: %v", serr)
			}
		}

		result = map[string]any{
			"committed":  true,
			"message":    message,
			"change_set": after.Summarize(),
		}
		h.Broadcaster.Publish(events.TypeCommitted, map[string]any{
			"message":    message,
			"repository": h.Session.Repo().Root(),
		})
		return nil
	})
	if err != nil {
		h.publishError(err)
		return nil, err
	}
	return result, nil
}

func (h *Handlers) listRepositories(ctx context.Context, args map[string]any) (any, error) {
	if h.Store == nil {
		return map[string]any{"repositories": []store.Repository{}}, nil
	}
	repos, err := h.Store.List()
	if err != nil {
		return nil, err
	}
	return map[string]any{"repositories": repos}, nil
}

func (h *Handlers) repositoryStatus(ctx context.Context, args map[string]any) (any, error) {
	repo := h.Session.Repo()

	branch, err := repo.Branch(ctx)
	if err != nil {
		return nil, err
	}
	staged, err := repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	unstagedDiff, err := repo.UnstagedDiff(ctx)
	if err != nil {
		return nil, err
	}
	untracked, err := repo.UntrackedFiles(ctx)
	if err != nil {
		return nil, err
	}
	h.Session.RecordChangeSet(staged)

	return map[string]any{
		"repository": repo.Root(),
		"name":       repo.Name(),
		"branch":     branch,
		"staged":     staged.Summarize(),
		"unstaged":   git.ParseDiff(unstagedDiff).Summarize(),
		"untracked":  untracked,
	}, nil
}

func (h *Handlers) publishError(err error) {
	h.Broadcaster.Publish(events.TypeError, map[string]any{
		"kind":    string(faults.KindOf(err)),
		"message": err.Error(),
	})
}
