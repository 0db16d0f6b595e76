// Package analyzer turns a ChangeSet into bounded-size DiffChunks suitable
// for model consumption. Chunking is deterministic for a given ChangeSet and
// budget: files are ordered by path and packed greedily, so repeated runs
// against an unchanged ChangeSet produce an identical partition.
package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"gitsmart/internal/faults"
	"gitsmart/internal/git"
	"gitsmart/internal/logging"
)

// DiffChunk is one bounded partition of a ChangeSet. The union of all chunks'
// Files equals the ChangeSet's files exactly once each.
type DiffChunk struct {
	Index  int // zero-based position within the partition
	Total  int // total number of chunks in the partition
	Files  []git.FileChange
	Tokens int // estimated encoded size
}

// Chunker partitions ChangeSets under a token budget.
type Chunker struct {
	// Budget is the maximum estimated tokens per chunk, derived from the
	// generation service's context limit minus the prompt margin.
	Budget int
}

// NewChunker creates a Chunker. maxTokens is the model's per-request budget;
// margin is reserved for prompts and the model's reply.
func NewChunker(maxTokens, margin int) *Chunker {
	budget := maxTokens - margin
	if budget < 1 {
		budget = 1
	}
	return &Chunker{Budget: budget}
}

// Chunk partitions cs into DiffChunks none of which exceeds the budget.
// An empty ChangeSet is a ValidationError.
func (c *Chunker) Chunk(cs *git.ChangeSet) ([]DiffChunk, error) {
	if cs == nil || cs.Empty() {
		return nil, faults.Validation("change set is empty; nothing to analyze")
	}

	files := cs.Files()
	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	var chunks []DiffChunk
	var cur []git.FileChange
	curTokens := 0

	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, DiffChunk{Files: cur, Tokens: curTokens})
			cur = nil
			curTokens = 0
		}
	}

	for _, fc := range files {
		fc := c.bound(fc)
		cost := EstimateTokens(fc.Diff)
		if curTokens+cost > c.Budget && len(cur) > 0 {
			flush()
		}
		cur = append(cur, fc)
		curTokens += cost
	}
	flush()

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}

	logging.AnalyzerDebug("chunked %d file(s) into %d chunk(s) (budget %d)", len(files), len(chunks), c.Budget)
	return chunks, nil
}

// bound reduces a single file's diff to fit the budget on its own. Binary
// files already carry the constant placeholder; oversized textual diffs keep
// their head and tail lines around an elision marker. Counts are untouched.
func (c *Chunker) bound(fc git.FileChange) git.FileChange {
	if fc.Kind == git.KindBinary {
		fc.Diff = git.BinaryPlaceholder
		return fc
	}
	if EstimateTokens(fc.Diff) <= c.Budget {
		return fc
	}

	lines := strings.Split(fc.Diff, "\n")
	avg := float64(EstimateTokens(fc.Diff)) / float64(max(len(lines), 1))
	keep := int(float64(c.Budget) / max(avg, 1))
	if keep < 2 {
		keep = 2
	}
	if keep >= len(lines) {
		return fc
	}

	head := lines[:keep/2]
	tail := lines[len(lines)-(keep-keep/2):]
	fc.Diff = strings.Join(head, "\n") + "\n...\n" + strings.Join(tail, "\n")
	logging.AnalyzerDebug("truncated oversized diff for %s to ~%d lines", fc.Path, keep)
	return fc
}

// Totals sums the addition and deletion counts across the chunk's files.
func (ch *DiffChunk) Totals() (additions, deletions int) {
	for _, fc := range ch.Files {
		additions += fc.Additions
		deletions += fc.Deletions
	}
	return additions, deletions
}

// Weight is the chunk's change volume, used to pick the dominant chunk when
// merging.
func (ch *DiffChunk) Weight() int {
	add, del := ch.Totals()
	return add + del
}

// Render formats the chunk for inclusion in a prompt.
func (ch *DiffChunk) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chunk %d of %d\n\n", ch.Index+1, ch.Total)
	for _, fc := range ch.Files {
		fmt.Fprintf(&b, "--- %s (%s, +%d -%d) ---\n", fc.Path, fc.Kind, fc.Additions, fc.Deletions)
		b.WriteString(fc.Diff)
		if !strings.HasSuffix(fc.Diff, "\n") {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// EstimateTokens approximates the token count of text. Whitespace-delimited
// words undercount subword splits, so a small multiplier is applied.
func EstimateTokens(text string) int {
	words := 0
	inWord := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				words++
				inWord = true
			}
		}
	}
	return words + words/3
}
