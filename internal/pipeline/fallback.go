package pipeline

import (
	"fmt"

	"gitsmart/internal/git"
	"gitsmart/internal/taxonomy"
)

// Fallback builds a templated CommitMessage from ChangeSet statistics alone.
// Used when the retry budget is exhausted; the caller always gets a usable
// draft even with the generation service down.
func Fallback(table *taxonomy.Table, cs *git.ChangeSet) *CommitMessage {
	files := cs.Files()

	var tags []taxonomy.Tag
	for _, fc := range files {
		if tag := table.InferFromPath(fc.Path); tag != "" {
			tags = append(tags, tag)
		}
	}
	tags = table.Sort(tags)

	details := make([]FileDetail, 0, len(files))
	for _, fc := range files {
		details = append(details, FileDetail{Path: fc.Path, Kind: fc.Kind})
	}

	count, additions, deletions := cs.Totals()
	noun := "files"
	if count == 1 {
		noun = "file"
	}

	return &CommitMessage{
		Tags:     tags,
		Title:    fmt.Sprintf("update %d %s (+%d -%d)", count, noun, additions, deletions),
		What:     fmt.Sprintf("Modify %d %s with %d additions and %d deletions.", count, noun, additions, deletions),
		Why:      "Describe staged changes; automatic analysis was unavailable.",
		Details:  details,
		Fallback: true,
	}
}
