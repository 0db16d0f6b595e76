package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"gitsmart/internal/analyzer"
	"gitsmart/internal/faults"
	"gitsmart/internal/git"
	"gitsmart/internal/llm"
	"gitsmart/internal/logging"
	"gitsmart/internal/taxonomy"
)

// replyTokens caps the model's reply; chunk budgeting already bounds the input.
const replyTokens = 2048

// Pipeline drives the Observe, Classify, Compose, and Merge stages.
type Pipeline struct {
	client      llm.Client
	table       *taxonomy.Table
	chunker     *analyzer.Chunker
	policy      RetryPolicy
	temperature float64
}

// New creates a pipeline.
func New(client llm.Client, table *taxonomy.Table, chunker *analyzer.Chunker, policy RetryPolicy, temperature float64) *Pipeline {
	return &Pipeline{
		client:      client,
		table:       table,
		chunker:     chunker,
		policy:      policy,
		temperature: temperature,
	}
}

// Table returns the taxonomy table the pipeline classifies against.
func (p *Pipeline) Table() *taxonomy.Table { return p.table }

// call makes one retried generation call and parses the reply. A reply that
// fails to parse triggers exactly one re-prompt with a stricter instruction
// before the call fails with MalformedResponseError.
func (p *Pipeline) call(ctx context.Context, user string, parse func(string) error) error {
	complete := func(prompt string) (string, error) {
		return p.policy.Execute(ctx, func(ctx context.Context) (string, error) {
			return p.client.Complete(ctx, llm.Request{
				System:      systemPrompt,
				User:        prompt,
				MaxTokens:   replyTokens,
				Temperature: p.temperature,
			})
		})
	}

	out, err := complete(user)
	if err != nil {
		return err
	}
	if perr := parse(out); perr != nil {
		logging.PipelineDebug("reply did not parse (%v); re-prompting once", perr)
		out, err = complete(user + strictFormatReminder)
		if err != nil {
			return err
		}
		if perr = parse(out); perr != nil {
			return faults.Wrap(faults.KindMalformedResponse, perr, "reply did not parse after re-prompt")
		}
	}
	return nil
}

// Observe produces a factual, structural description of the chunk's changes.
func (p *Pipeline) Observe(ctx context.Context, chunk analyzer.DiffChunk) (string, error) {
	var observations string
	err := p.call(ctx, observePrompt(chunk), func(reply string) error {
		var parsed struct {
			Observations []string `json:"observations"`
		}
		if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
			return err
		}
		if len(parsed.Observations) == 0 {
			return faults.New(faults.KindMalformedResponse, "no observations in reply")
		}
		observations = "- " + strings.Join(parsed.Observations, "\n- ")
		return nil
	})
	return observations, err
}

// Classify selects taxonomy tags and a one-line rationale for the chunk.
func (p *Pipeline) Classify(ctx context.Context, chunk analyzer.DiffChunk, observations string) ([]taxonomy.Tag, string, error) {
	var tags []taxonomy.Tag
	var rationale string
	err := p.call(ctx, classifyPrompt(p.table, chunk, observations), func(reply string) error {
		var parsed struct {
			Tags      []string `json:"tags"`
			Rationale string   `json:"rationale"`
		}
		if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
			return err
		}
		tags = tags[:0]
		for _, raw := range parsed.Tags {
			if tag := p.table.Normalize(raw); tag != "" {
				tags = append(tags, tag)
			}
		}
		if len(tags) == 0 {
			return faults.New(faults.KindMalformedResponse, "no recognized tags in reply")
		}
		tags = p.table.Sort(tags)
		rationale = strings.TrimSpace(parsed.Rationale)
		return nil
	})
	return tags, rationale, err
}

// Compose produces the chunk-local draft.
func (p *Pipeline) Compose(ctx context.Context, chunk analyzer.DiffChunk, summary ChunkSummary) (*CommitMessage, error) {
	var draft *CommitMessage
	err := p.call(ctx, composePrompt(chunk, summary), func(reply string) error {
		body, ok := extractTagged(reply)
		if !ok {
			return faults.New(faults.KindMalformedResponse, "missing commit message tags")
		}
		d, err := parseDraft(body, chunk)
		if err != nil {
			return err
		}
		d.Tags = summary.Tags
		draft = d
		return nil
	})
	return draft, err
}

// summarizeChunk runs the three per-chunk stages in order.
func (p *Pipeline) summarizeChunk(ctx context.Context, chunk analyzer.DiffChunk) (ChunkSummary, error) {
	s := ChunkSummary{Chunk: chunk}

	obs, err := p.Observe(ctx, chunk)
	if err != nil {
		return s, err
	}
	s.Observations = obs

	tags, rationale, err := p.Classify(ctx, chunk, obs)
	if err != nil {
		return s, err
	}
	s.Tags = tags
	s.Rationale = rationale

	draft, err := p.Compose(ctx, chunk, s)
	if err != nil {
		return s, err
	}
	s.Draft = draft
	return s, nil
}

// SummarizeCommits condenses a series of commit messages into one narrative
// paragraph.
func (p *Pipeline) SummarizeCommits(ctx context.Context, messages []string) (string, error) {
	if len(messages) == 0 {
		return "", faults.Validation("no commit messages to summarize")
	}
	return p.policy.Execute(ctx, func(ctx context.Context) (string, error) {
		return p.client.Complete(ctx, llm.Request{
			System:      summarizeSystemPrompt,
			User:        summarizePrompt(messages),
			MaxTokens:   replyTokens,
			Temperature: p.temperature,
		})
	})
}

// extractJSON pulls the outermost JSON object out of a reply that may be
// wrapped in code fences or prose.
func extractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return s[i : j+1]
		}
	}
	return s
}

// extractTagged pulls the body between <COMMIT_MESSAGE> delimiters.
func extractTagged(reply string) (string, bool) {
	const open, close = "<COMMIT_MESSAGE>", "</COMMIT_MESSAGE>"
	i := strings.Index(reply, open)
	if i < 0 {
		return "", false
	}
	rest := reply[i+len(open):]
	j := strings.Index(rest, close)
	if j < 0 {
		return "", false
	}
	body := strings.TrimSpace(rest[:j])
	return body, body != ""
}

// parseDraft splits a composed body into title, WHAT, WHY, and DETAILS.
// Details are rebuilt from the chunk's files so every file appears exactly
// once; model-stated impacts are matched by path.
func parseDraft(body string, chunk analyzer.DiffChunk) (*CommitMessage, error) {
	msg := &CommitMessage{}
	impacts := make(map[string]string)

	section := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "WHAT:"):
			section = "what"
			msg.What = strings.TrimSpace(strings.TrimPrefix(trimmed, "WHAT:"))
		case strings.HasPrefix(trimmed, "WHY:"):
			section = "why"
			msg.Why = strings.TrimSpace(strings.TrimPrefix(trimmed, "WHY:"))
		case strings.HasPrefix(trimmed, "DETAILS:"):
			section = "details"
		case trimmed == "":
			continue
		case msg.Title == "" && section == "":
			msg.Title = trimmed
		case section == "what":
			msg.What += " " + trimmed
		case section == "why":
			msg.Why += " " + trimmed
		case section == "details" && strings.HasPrefix(trimmed, "- "):
			entry := strings.TrimPrefix(trimmed, "- ")
			if path, impact, ok := strings.Cut(entry, ":"); ok {
				impacts[strings.TrimSpace(path)] = strings.TrimSpace(impact)
			} else {
				impacts[strings.TrimSpace(entry)] = ""
			}
		}
	}

	if msg.Title == "" {
		return nil, faults.New(faults.KindMalformedResponse, "composed draft has no title line")
	}

	msg.Details = detailsFor(chunk.Files, impacts)
	return msg, nil
}

// detailsFor builds one FileDetail per file, in file order.
func detailsFor(files []git.FileChange, impacts map[string]string) []FileDetail {
	details := make([]FileDetail, 0, len(files))
	for _, fc := range files {
		details = append(details, FileDetail{
			Path:   fc.Path,
			Kind:   fc.Kind,
			Impact: impacts[fc.Path],
		})
	}
	return details
}
