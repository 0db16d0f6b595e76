package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"gitsmart/internal/faults"
	"gitsmart/internal/git"
	"gitsmart/internal/logging"
)

// Generate runs the full pipeline over cs and returns a CommitMessage draft.
// An empty ChangeSet is a ValidationError and an invalid credential surfaces
// as AuthenticationError; every other generation failure degrades to the
// statistics fallback, so the caller is never left without a draft.
func (p *Pipeline) Generate(ctx context.Context, cs *git.ChangeSet) (*CommitMessage, error) {
	chunks, err := p.chunker.Chunk(cs)
	if err != nil {
		return nil, err
	}
	logging.PipelineInfo("generating commit message from %d chunk(s)", len(chunks))

	summaries := make([]ChunkSummary, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, chunk := range chunks {
		g.Go(func() error {
			s, err := p.summarizeChunk(gctx, chunk)
			if err != nil {
				return err
			}
			summaries[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if faults.Is(err, faults.KindAuthentication) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, faults.Wrap(faults.KindTimeout, ctx.Err(), "generation cancelled")
		}
		logging.PipelineError("generation failed (%v); building fallback draft", err)
		return Fallback(p.table, cs), nil
	}

	msg := Merge(p.table, summaries)
	if !msg.Valid() {
		logging.PipelineError("merged draft invalid; building fallback draft")
		return Fallback(p.table, cs), nil
	}
	logging.PipelineInfo("draft ready: %q tags=%v", msg.Title, msg.Tags)
	return msg, nil
}
