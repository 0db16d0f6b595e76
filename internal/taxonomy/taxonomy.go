// Package taxonomy defines the change-category tag table used to classify
// commits. The table is data, not code: a YAML file can replace or extend the
// built-in set, and precedence ordering comes from the table itself.
package taxonomy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tag is a short category symbol such as "feat" or "fix".
type Tag string

// Entry describes one tag in the table.
type Entry struct {
	Tag         Tag    `yaml:"tag"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon,omitempty"`
	// Precedence orders tags in a merged message; lower sorts first.
	Precedence int `yaml:"precedence"`
}

// Table is an ordered set of tag entries.
type Table struct {
	entries map[Tag]Entry
}

// Default returns the built-in conventional-commit table.
func Default() *Table {
	t := &Table{entries: make(map[Tag]Entry)}
	for _, e := range defaultEntries {
		t.entries[e.Tag] = e
	}
	return t
}

var defaultEntries = []Entry{
	{Tag: "hotfix", Description: "Urgent fix that should be deployed immediately", Icon: "🚑", Precedence: 0},
	{Tag: "feat", Description: "Introduces new functionality", Icon: "✨", Precedence: 1},
	{Tag: "fix", Description: "Resolves a bug or unexpected behavior", Icon: "🐛", Precedence: 2},
	{Tag: "refactor", Description: "Improves code structure without changing functionality", Icon: "♻️", Precedence: 3},
	{Tag: "test", Description: "Adds or updates tests", Icon: "✅", Precedence: 4},
	{Tag: "config", Description: "Adds or updates configuration files or settings", Icon: "🔧", Precedence: 5},
	{Tag: "cleanup", Description: "Improves readability or removes unused code", Icon: "🧹", Precedence: 6},
	{Tag: "docs", Description: "Adds or updates documentation", Icon: "📝", Precedence: 7},
	{Tag: "deps", Description: "Adds, removes, or upgrades dependencies", Icon: "⬆️", Precedence: 8},
}

// Load reads a table from a YAML file. An empty path yields the default table.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy table: %w", err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy table: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("taxonomy table %s has no entries", path)
	}

	t := &Table{entries: make(map[Tag]Entry, len(entries))}
	for _, e := range entries {
		if e.Tag == "" {
			return nil, fmt.Errorf("taxonomy entry with empty tag in %s", path)
		}
		t.entries[e.Tag] = e
	}
	return t, nil
}

// Has reports whether the table knows the tag.
func (t *Table) Has(tag Tag) bool {
	_, ok := t.entries[tag]
	return ok
}

// Get returns the entry for a tag.
func (t *Table) Get(tag Tag) (Entry, bool) {
	e, ok := t.entries[tag]
	return e, ok
}

// Tags returns all tags ordered by precedence.
func (t *Table) Tags() []Tag {
	tags := make([]Tag, 0, len(t.entries))
	for tag := range t.entries {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		return t.entries[tags[i]].Precedence < t.entries[tags[j]].Precedence
	})
	return tags
}

// Sort orders tags by table precedence, dropping unknown tags and duplicates.
// The first element of the result is the most impactful category.
func (t *Table) Sort(tags []Tag) []Tag {
	seen := make(map[Tag]bool, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, tag := range tags {
		if !t.Has(tag) || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return t.entries[out[i]].Precedence < t.entries[out[j]].Precedence
	})
	return out
}

// Normalize maps a raw model-emitted label to a table tag, or "" on miss.
// Matching is case-insensitive and tolerates a few common aliases.
func (t *Table) Normalize(raw string) Tag {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, ":")
	if t.Has(Tag(s)) {
		return Tag(s)
	}
	switch s {
	case "feature", "features":
		s = "feat"
	case "bugfix", "bug":
		s = "fix"
	case "doc", "documentation":
		s = "docs"
	case "tests", "testing":
		s = "test"
	case "chore":
		s = "cleanup"
	case "dependency", "dependencies", "upgrade":
		s = "deps"
	case "style":
		s = "cleanup"
	}
	if t.Has(Tag(s)) {
		return Tag(s)
	}
	return ""
}

// InferFromPath guesses a tag from a file path alone. Used by the fallback
// message builder when generation is unavailable.
func (t *Table) InferFromPath(path string) Tag {
	base := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(base)

	var guess Tag
	switch {
	case strings.HasSuffix(base, "_test.go"), strings.Contains(path, "test/"),
		strings.HasPrefix(base, "test_"):
		guess = "test"
	case ext == ".md" || ext == ".rst" || ext == ".txt":
		guess = "docs"
	case base == "go.mod" || base == "go.sum" || base == "package.json" ||
		base == "requirements.txt" || base == "cargo.toml":
		guess = "deps"
	case ext == ".yaml" || ext == ".yml" || ext == ".toml" || ext == ".ini" ||
		ext == ".json" || strings.Contains(base, "config"):
		guess = "config"
	default:
		guess = "feat"
	}
	if t.Has(guess) {
		return guess
	}
	// Configured tables may drop built-ins; fall back to the highest precedence tag.
	tags := t.Tags()
	if len(tags) > 0 {
		return tags[0]
	}
	return ""
}
