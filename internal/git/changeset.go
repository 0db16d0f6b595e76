package git

import (
	"strings"
	"time"
)

// ChangeKind classifies a single file's change.
type ChangeKind string

const (
	KindAdded    ChangeKind = "added"
	KindModified ChangeKind = "modified"
	KindDeleted  ChangeKind = "deleted"
	KindRenamed  ChangeKind = "renamed"
	KindBinary   ChangeKind = "binary"
)

// BinaryPlaceholder stands in for binary content in diffs handed to the
// reasoning pipeline.
const BinaryPlaceholder = "[binary file change]"

// FileChange is one file's change within a ChangeSet.
type FileChange struct {
	Path      string     `json:"path"`
	PriorPath string     `json:"prior_path,omitempty"` // set when renamed
	Kind      ChangeKind `json:"kind"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	// Diff holds the raw unified diff text for this file, or
	// BinaryPlaceholder when Kind is KindBinary.
	Diff string `json:"-"`
}

// ChangeSet is an immutable snapshot of staged modifications at one instant.
// Construct via ParseDiff or NewChangeSet; never mutate the returned value.
type ChangeSet struct {
	files []FileChange
	taken time.Time
}

// NewChangeSet builds a ChangeSet from an ordered list of file changes.
func NewChangeSet(files []FileChange) *ChangeSet {
	cp := make([]FileChange, len(files))
	copy(cp, files)
	return &ChangeSet{files: cp, taken: time.Now()}
}

// Files returns the ordered file changes. The slice is a copy; mutating it
// does not affect the ChangeSet.
func (cs *ChangeSet) Files() []FileChange {
	cp := make([]FileChange, len(cs.files))
	copy(cp, cs.files)
	return cp
}

// Len returns the number of changed files.
func (cs *ChangeSet) Len() int { return len(cs.files) }

// Empty reports whether no files are staged.
func (cs *ChangeSet) Empty() bool { return len(cs.files) == 0 }

// Taken returns the instant the snapshot was captured.
func (cs *ChangeSet) Taken() time.Time { return cs.taken }

// Totals derives the file, addition, and deletion counts. Totals are never
// stored; they are always computed from the files themselves.
func (cs *ChangeSet) Totals() (files, additions, deletions int) {
	for _, fc := range cs.files {
		additions += fc.Additions
		deletions += fc.Deletions
	}
	return len(cs.files), additions, deletions
}

// Summary is the wire representation of a ChangeSet used in events and tool
// results.
type Summary struct {
	Files     int          `json:"files"`
	Additions int          `json:"additions"`
	Deletions int          `json:"deletions"`
	Entries   []FileChange `json:"entries"`
}

// Summarize produces the wire summary of the ChangeSet.
func (cs *ChangeSet) Summarize() Summary {
	files, add, del := cs.Totals()
	return Summary{Files: files, Additions: add, Deletions: del, Entries: cs.Files()}
}

// ParseDiff parses `git diff --cached` output into a ChangeSet. File order
// follows the diff, which git emits in stable path order.
func ParseDiff(diff string) *ChangeSet {
	var files []FileChange

	blocks := splitFileBlocks(diff)
	for _, block := range blocks {
		fc := parseFileBlock(block)
		if fc.Path != "" {
			files = append(files, fc)
		}
	}
	return NewChangeSet(files)
}

// splitFileBlocks splits a full diff into per-file blocks, each starting with
// a "diff --git" header line.
func splitFileBlocks(diff string) []string {
	var blocks []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			if cur.Len() > 0 {
				blocks = append(blocks, cur.String())
				cur.Reset()
			}
		}
		if cur.Len() > 0 || strings.HasPrefix(line, "diff --git ") {
			cur.WriteString(line)
		}
	}
	if cur.Len() > 0 {
		blocks = append(blocks, cur.String())
	}
	return blocks
}

func parseFileBlock(block string) FileChange {
	fc := FileChange{Kind: KindModified}
	lines := strings.Split(block, "\n")
	if len(lines) == 0 {
		return fc
	}

	oldPath, newPath := parseGitHeader(lines[0])
	fc.Path = newPath

	inBody := false
	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "@@"):
			inBody = true
		case !inBody && strings.HasPrefix(line, "new file mode"):
			fc.Kind = KindAdded
		case !inBody && strings.HasPrefix(line, "deleted file mode"):
			fc.Kind = KindDeleted
			fc.Path = oldPath
		case !inBody && strings.HasPrefix(line, "rename from "):
			fc.Kind = KindRenamed
			fc.PriorPath = strings.TrimPrefix(line, "rename from ")
		case !inBody && strings.HasPrefix(line, "rename to "):
			fc.Path = strings.TrimPrefix(line, "rename to ")
		case !inBody && (strings.HasPrefix(line, "Binary files ") || strings.HasPrefix(line, "GIT binary patch")):
			fc.Kind = KindBinary
		case inBody && strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			fc.Additions++
		case inBody && strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			fc.Deletions++
		}
	}

	if fc.Kind == KindBinary {
		fc.Diff = BinaryPlaceholder
	} else {
		fc.Diff = block
	}
	return fc
}

// parseGitHeader extracts old and new paths from a "diff --git a/x b/y" line.
// Quoted paths (spaces, unicode escapes) keep their quoting; callers treat
// the path as opaque.
func parseGitHeader(header string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(header, "diff --git ")
	// Common case: "a/path b/path" with no spaces inside paths.
	if i := strings.Index(rest, " b/"); i >= 0 {
		oldPath = strings.TrimPrefix(rest[:i], "a/")
		newPath = rest[i+3:]
		return oldPath, newPath
	}
	parts := strings.Fields(rest)
	if len(parts) == 2 {
		oldPath = strings.TrimPrefix(parts[0], "a/")
		newPath = strings.TrimPrefix(parts[1], "b/")
	}
	return oldPath, newPath
}
