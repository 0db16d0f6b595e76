package pipeline

import (
	"strings"

	"gitsmart/internal/taxonomy"
)

// Merge folds chunk summaries into one CommitMessage. With a single chunk it
// is the identity transform over the chunk-local draft. With several, tags
// are the precedence-ordered union, the title comes from the dominant chunk
// (largest additions+deletions), WHAT and WHY are joined narratively, and
// DETAILS lists every affected file exactly once.
func Merge(table *taxonomy.Table, summaries []ChunkSummary) *CommitMessage {
	if len(summaries) == 0 {
		return nil
	}
	if len(summaries) == 1 {
		msg := summaries[0].Draft
		msg.Tags = ensureTagged(table, msg.Tags, summaries)
		return msg
	}

	var tags []taxonomy.Tag
	dominant := 0
	var whats, whys []string
	seen := make(map[string]bool)
	var details []FileDetail

	for i, s := range summaries {
		tags = append(tags, s.Tags...)
		if s.Chunk.Weight() > summaries[dominant].Chunk.Weight() {
			dominant = i
		}
		if w := strings.TrimSpace(s.Draft.What); w != "" {
			whats = append(whats, w)
		}
		if w := strings.TrimSpace(s.Draft.Why); w != "" {
			whys = append(whys, w)
		}
		for _, d := range s.Draft.Details {
			if !seen[d.Path] {
				seen[d.Path] = true
				details = append(details, d)
			}
		}
	}

	return &CommitMessage{
		Tags:    ensureTagged(table, tags, summaries),
		Title:   summaries[dominant].Draft.Title,
		What:    joinNarrative(whats),
		Why:     joinNarrative(whys),
		Details: details,
	}
}

// ensureTagged sorts and dedupes tags, inferring one from file paths when the
// set would otherwise be empty. A CommitMessage always carries at least one
// tag.
func ensureTagged(table *taxonomy.Table, tags []taxonomy.Tag, summaries []ChunkSummary) []taxonomy.Tag {
	sorted := table.Sort(tags)
	if len(sorted) > 0 {
		return sorted
	}
	for _, s := range summaries {
		for _, fc := range s.Chunk.Files {
			if tag := table.InferFromPath(fc.Path); tag != "" {
				return []taxonomy.Tag{tag}
			}
		}
	}
	return sorted
}

// joinNarrative joins sentences into one paragraph, deduplicating exact
// repeats from chunks that described the same intent.
func joinNarrative(parts []string) string {
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		if !strings.HasSuffix(p, ".") {
			p += "."
		}
		out = append(out, p)
	}
	return strings.Join(out, " ")
}
