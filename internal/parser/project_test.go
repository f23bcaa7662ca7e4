package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/jera/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseProject_SortedMultiFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.wbs.md", "# Beta\n")
	writeFile(t, dir, "a.wbs.md", "# Alpha\n")

	project := ParseProject(dir, nil)
	if len(project.Documents) != 2 {
		t.Fatalf("documents = %d, want 2", len(project.Documents))
	}
	if project.Documents[0].RootNodes[0].Title != "Alpha" {
		t.Errorf("first document = %q, want Alpha (sorted order)", project.Documents[0].RootNodes[0].Title)
	}
}

func TestParseProject_EmptyDir(t *testing.T) {
	project := ParseProject(t.TempDir(), nil)
	if len(project.Documents) != 0 {
		t.Errorf("documents = %d, want 0", len(project.Documents))
	}
	if !hasWarning(project.Warnings, "No .wbs.md files") {
		t.Errorf("missing warning: %v", project.Warnings)
	}
}

func TestValidateProject_DuplicateTitles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.wbs.md", "# Setup\n# Setup\n")

	project := ParseProject(dir, nil)
	if !hasWarning(project.Warnings, "Duplicate title 'Setup'") {
		t.Errorf("missing duplicate warning: %v", project.Warnings)
	}
}

func TestValidateProject_DanglingDepends(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.wbs.md", "# A\n| depends |\n| --- |\n| Ghost |\n")

	project := ParseProject(dir, nil)
	if !hasWarning(project.Warnings, "which does not exist") {
		t.Errorf("missing dangling warning: %v", project.Warnings)
	}
}

func TestValidateProject_CircularDepends(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.wbs.md",
		"# A\n| depends |\n| --- |\n| B |\n# B\n| depends |\n| --- |\n| A |\n")

	project := ParseProject(dir, nil)
	if !hasWarning(project.Warnings, "Circular dependency") {
		t.Errorf("missing cycle warning: %v", project.Warnings)
	}
}

func TestValidateProject_CleanProjectNoWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.wbs.md",
		"# A\n# B\n| depends |\n| --- |\n| A |\n")

	project := ParseProject(dir, nil)
	if len(project.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", project.Warnings)
	}
}

func TestValidateProject_CrossFileDepends(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.wbs.md", "# Alpha\n")
	writeFile(t, dir, "b.wbs.md", "# Beta\n| depends |\n| --- |\n| Alpha |\n")

	project := ParseProject(dir, nil)
	if len(project.Warnings) != 0 {
		t.Errorf("cross-file depends should resolve: %v", project.Warnings)
	}
	if n := project.FindNodeByTitle("Beta"); n == nil || n.DependsList()[0] != "Alpha" {
		t.Errorf("Beta lookup failed: %v", n)
	}
}

func TestParseFile_MissingFile(t *testing.T) {
	doc := ParseFile(filepath.Join(t.TempDir(), "missing.wbs.md"), nil)
	if len(doc.RootNodes) != 0 {
		t.Errorf("roots = %d, want 0", len(doc.RootNodes))
	}
	if !hasWarning(doc.Warnings, "Cannot read file") {
		t.Errorf("missing read warning: %v", doc.Warnings)
	}
}

func TestBuildMetaTable_ColumnOrder(t *testing.T) {
	n := models.NewNode("T", 1)
	n.Status = models.StatusDone
	n.Assignee = "bob"
	n.CustomFields = []models.CustomField{{Key: "zeta", Value: "1"}, {Key: "alpha", Value: "2"}}

	lines := BuildMetaTable(n)
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[0] != "| status | assignee | priority | alpha | zeta |" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "| DONE | bob | MEDIUM | 2 | 1 |" {
		t.Errorf("data = %q", lines[2])
	}
}
