// Package pipeline synthesizes structured commit messages from diff chunks.
// Each chunk passes through three model stages (Observe, Classify, Compose)
// and a Merge stage folds the chunk-local drafts into one CommitMessage.
// Every external call goes through the RetryPolicy; if generation fails
// outright the pipeline still returns a fallback draft built from change
// statistics, so callers always get a usable message.
package pipeline

import (
	"fmt"
	"strings"

	"gitsmart/internal/analyzer"
	"gitsmart/internal/git"
	"gitsmart/internal/taxonomy"
)

// FileDetail is one DETAILS line: an affected file, its change kind, and a
// short stated impact.
type FileDetail struct {
	Path   string        `json:"path"`
	Kind   git.ChangeKind `json:"kind"`
	Impact string        `json:"impact,omitempty"`
}

// CommitMessage is the final artifact of the pipeline. It starts life as a
// draft; committing or discarding it is the caller's decision.
type CommitMessage struct {
	Tags    []taxonomy.Tag `json:"tags"`
	Title   string         `json:"title"`
	What    string         `json:"what"`
	Why     string         `json:"why"`
	Details []FileDetail   `json:"details"`

	// Fallback marks a draft built from statistics alone because generation
	// was unavailable.
	Fallback bool `json:"fallback,omitempty"`
}

// ChunkSummary is the retained intermediate result for one chunk.
type ChunkSummary struct {
	Chunk        analyzer.DiffChunk
	Observations string
	Tags         []taxonomy.Tag
	Rationale    string
	Draft        *CommitMessage
}

// Render formats the message as commit text: a tagged title line, a blank
// line, the WHAT and WHY paragraphs, and the DETAILS list.
func (m *CommitMessage) Render() string {
	var b strings.Builder

	if len(m.Tags) > 0 {
		parts := make([]string, len(m.Tags))
		for i, t := range m.Tags {
			parts[i] = string(t)
		}
		fmt.Fprintf(&b, "%s: %s\n", strings.Join(parts, "/"), m.Title)
	} else {
		b.WriteString(m.Title + "\n")
	}

	if m.What != "" {
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(m.What))
	}
	if m.Why != "" {
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(m.Why))
	}
	if len(m.Details) > 0 {
		b.WriteString("\n")
		for _, d := range m.Details {
			if d.Impact != "" {
				fmt.Fprintf(&b, "- %s (%s): %s\n", d.Path, d.Kind, d.Impact)
			} else {
				fmt.Fprintf(&b, "- %s (%s)\n", d.Path, d.Kind)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Valid reports whether the message satisfies the draft invariants: at least
// one taxonomy tag and a non-empty title.
func (m *CommitMessage) Valid() bool {
	return m != nil && len(m.Tags) > 0 && strings.TrimSpace(m.Title) != ""
}
