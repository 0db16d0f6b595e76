package pipeline

import (
	"fmt"
	"strings"

	"gitsmart/internal/analyzer"
	"gitsmart/internal/taxonomy"
)

const systemPrompt = `You are an expert author of Git commit messages. You analyze staged diffs
step by step, identify WHAT was changed and WHY it was necessary, and follow
the Conventional Commit convention. Use present tense and imperative mood
(e.g. "Add helper function", not "Added helper function"). Keep lines under
74 characters where possible. Respond only in the format each task requests.`

const observeInstructions = `Review the diff below carefully and identify ALL changes. For each change,
note WHAT was modified (new functions, logic updates, removals) and its
apparent purpose. Do not write a commit message yet.

Respond with JSON only, in this exact shape:
{"observations": ["<one factual observation per entry>"]}`

const classifyInstructions = `Based on the observations and the diff below, select the commit category
tag(s) that best reflect the primary purpose of the changes. Prioritize the
main intent; use more than one tag only when the changes are genuinely split
between equally important purposes.

Allowed tags:
%s

Respond with JSON only, in this exact shape:
{"tags": ["<tag>"], "rationale": "<one line justifying the chosen tag(s)>"}`

const composeInstructions = `Compose the commit message for the diff below using your observations and
chosen tags. Structure it exactly as:

<COMMIT_MESSAGE>
<concise summary line, no tag prefix>
WHAT: <brief description of the main changes>
WHY: <reason these changes were necessary>
DETAILS:
- <file path>: <stated impact of the change to that file>
</COMMIT_MESSAGE>

List every file in the diff exactly once under DETAILS. Place the final
message between the <COMMIT_MESSAGE> tags and output nothing else.`

const strictFormatReminder = `

Your previous response did not match the required format. Respond again,
following the requested format exactly, with no surrounding prose.`

const summarizeSystemPrompt = `You are a version control expert summarizing a series of commit messages
into one concise, professional narrative. Group related commits into unified
themes, describe the primary changes and their purpose, and conclude with the
overall impact. Do not list each commit separately. Write a single cohesive
paragraph under 300 words for a general technical audience.`

// observePrompt builds the Observe user message for one chunk.
func observePrompt(chunk analyzer.DiffChunk) string {
	return observeInstructions + "\n\n" + chunk.Render()
}

// classifyPrompt builds the Classify user message. The allowed tag list comes
// from the taxonomy table, so configured tables steer the model directly.
func classifyPrompt(table *taxonomy.Table, chunk analyzer.DiffChunk, observations string) string {
	var tags strings.Builder
	for _, tag := range table.Tags() {
		e, _ := table.Get(tag)
		fmt.Fprintf(&tags, "- %s: %s\n", tag, e.Description)
	}
	return fmt.Sprintf(classifyInstructions, strings.TrimRight(tags.String(), "\n")) +
		"\n\nObservations:\n" + observations + "\n\n" + chunk.Render()
}

// composePrompt builds the Compose user message.
func composePrompt(chunk analyzer.DiffChunk, s ChunkSummary) string {
	var b strings.Builder
	b.WriteString(composeInstructions)
	b.WriteString("\n\nObservations:\n")
	b.WriteString(s.Observations)
	if s.Rationale != "" {
		b.WriteString("\n\nRationale: ")
		b.WriteString(s.Rationale)
	}
	b.WriteString("\n\n")
	b.WriteString(chunk.Render())
	return b.String()
}

// summarizePrompt builds the commit-series summary user message.
func summarizePrompt(messages []string) string {
	var b strings.Builder
	b.WriteString("Commit messages, newest first:\n\n")
	for i, m := range messages {
		fmt.Fprintf(&b, "--- commit %d ---\n%s\n\n", i+1, strings.TrimSpace(m))
	}
	return b.String()
}
