package taxonomy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTableHasConventionalTags(t *testing.T) {
	table := Default()
	for _, tag := range []Tag{"feat", "fix", "refactor", "docs", "config", "cleanup", "test", "hotfix"} {
		if !table.Has(tag) {
			t.Errorf("default table missing %s", tag)
		}
	}
}

func TestSortPrecedence(t *testing.T) {
	table := Default()
	got := table.Sort([]Tag{"docs", "fix", "feat", "docs", "nonsense"})
	want := []Tag{"feat", "fix", "docs"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	table := Default()
	tests := []struct {
		raw  string
		want Tag
	}{
		{"feat", "feat"},
		{"FEAT", "feat"},
		{"feature", "feat"},
		{"bugfix", "fix"},
		{"documentation", "docs"},
		{"tests", "test"},
		{"chore", "cleanup"},
		{"style", "cleanup"},
		{"dependencies", "deps"},
		{"fix:", "fix"},
		{"  hotfix  ", "hotfix"},
		{"gibberish", ""},
	}
	for _, tt := range tests {
		if got := table.Normalize(tt.raw); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestInferFromPath(t *testing.T) {
	table := Default()
	tests := []struct {
		path string
		want Tag
	}{
		{"internal/server/server_test.go", "test"},
		{"README.md", "docs"},
		{"go.mod", "deps"},
		{"config.yaml", "config"},
		{"settings.toml", "config"},
		{"internal/server/server.go", "feat"},
	}
	for _, tt := range tests {
		if got := table.InferFromPath(tt.path); got != tt.want {
			t.Errorf("InferFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLoadYAMLTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	content := `
- tag: breaking
  description: Incompatible API change
  precedence: 0
- tag: feat
  description: New functionality
  precedence: 1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !table.Has("breaking") || !table.Has("feat") {
		t.Fatal("loaded table missing entries")
	}
	if table.Has("fix") {
		t.Fatal("loaded table should replace the default set")
	}

	got := table.Sort([]Tag{"feat", "breaking"})
	if got[0] != "breaking" {
		t.Errorf("precedence order = %v", got)
	}
}

func TestLoadEmptyPathYieldsDefault(t *testing.T) {
	table, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !table.Has("feat") {
		t.Fatal("default table expected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/no/such/table.yaml"); err == nil {
		t.Fatal("expected error")
	}
}

func TestInferFromPathRestrictedTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	content := `
- tag: change
  description: Any change
  precedence: 0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	table, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := table.InferFromPath("main.go"); got != "change" {
		t.Errorf("got %q, want the table's only tag", got)
	}
}
