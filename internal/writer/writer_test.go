package writer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/parser"
	"github.com/starford/jera/internal/tree"
)

var roundTripInputs = map[string]string{
	"heading only":         "# Root\n",
	"heading and table":    "# Root\n| status | priority |\n| --- | --- |\n| DONE | HIGH |\n",
	"table and memo":       "# Root\n| status |\n| --- |\n| TODO |\n\nsome memo text\n",
	"nested":               "# A\n## B\n### C\n## D\n",
	"multiple roots":       "# One\n# Two\n## Two-A\n",
	"blank lines in body":  "# A\n\nfirst\n\n\nsecond\n",
	"unicode":              "# 計画\n| status |\n| --- |\n| DONE |\n\nメモです\n",
	"no trailing newline":  "# A\n## B",
	"odd alignment hints":  "# A\n| status | priority |\n|:---|---:|\n| DONE | LOW |\n",
	"empty cells":          "# A\n| status | assignee |\n| --- | --- |\n|  | alice |\n",
	"extra data cells":     "# A\n| status |\n| --- |\n| DONE | stray |\n",
	"table without sep":    "# A\n| status |\n| DONE |\n",
	"windows-free content": "# A\nplain body line\n* a list item\n",
}

// An unmodified document must serialize to its exact original bytes.
func TestSerialize_UnmodifiedIsByteIdentical(t *testing.T) {
	for name, input := range roundTripInputs {
		doc := parser.Parse(input, "t.wbs.md", nil)
		if got := Serialize(doc); got != input {
			t.Errorf("%s: round trip mismatch:\n got: %q\nwant: %q", name, got, input)
		}
	}
}

// Even on the regeneration path, nodes that were never touched must emit
// their raw captured lines verbatim.
func TestSerialize_ModifiedFlagAloneKeepsRawFragments(t *testing.T) {
	for name, input := range roundTripInputs {
		doc := parser.Parse(input, "t.wbs.md", nil)
		doc.Modified = true
		got := Serialize(doc)
		if strings.TrimRight(got, "\n") != strings.TrimRight(input, "\n") {
			t.Errorf("%s: raw fragment mismatch:\n got: %q\nwant: %q", name, got, input)
		}
	}
}

// Serialize trusts the Modified flag: with it false, even a tampered tree
// yields the original text.
func TestSerialize_TrustsModifiedFlag(t *testing.T) {
	input := "# Root\n## Child\n"
	doc := parser.Parse(input, "t.wbs.md", nil)
	doc.RootNodes = nil
	if got := Serialize(doc); got != input {
		t.Errorf("got %q, want original raw content", got)
	}
}

func TestSerialize_RegeneratesOnlyEditedNode(t *testing.T) {
	input := "# Root\n| status |\n| --- |\n| TODO |\n\nroot memo\n\n## Child\n| status |\n| --- |\n| DONE |\n"
	doc := parser.Parse(input, "t.wbs.md", nil)

	child := doc.RootNodes[0].Children[0]
	roots, ok := tree.Update(doc.RootNodes, child.ID, func(n *models.Node) {
		n.Status = models.StatusInProgress
	})
	if !ok {
		t.Fatal("update failed")
	}
	doc.RootNodes = roots
	doc.Modified = true

	got := Serialize(doc)

	// Root section is untouched raw text.
	if !strings.Contains(got, "# Root\n| status |\n| --- |\n| TODO |\n\nroot memo\n") {
		t.Errorf("root section was regenerated:\n%s", got)
	}
	// Child section is regenerated with the new status.
	if !strings.Contains(got, "## Child") {
		t.Errorf("missing child heading:\n%s", got)
	}
	if !strings.Contains(got, "IN_PROGRESS") {
		t.Errorf("missing updated status:\n%s", got)
	}
	if strings.Contains(got, "| DONE |") {
		t.Errorf("stale child table survived:\n%s", got)
	}

	// The regenerated text parses back to the same semantic state.
	reparsed := parser.Parse(got, "t.wbs.md", nil)
	if reparsed.RootNodes[0].Children[0].Status != models.StatusInProgress {
		t.Errorf("reparse status = %v", reparsed.RootNodes[0].Children[0].Status)
	}
}

func TestWriteDocument_AtomicWriteAndBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.wbs.md")
	original := "# Root\n"
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := parser.ParseFile(path, nil)
	roots, _ := tree.Update(doc.RootNodes, doc.RootNodes[0].ID, func(n *models.Node) {
		n.Status = models.StatusDone
	})
	doc.RootNodes = roots
	doc.Modified = true

	if err := WriteDocument(doc, true); err != nil {
		t.Fatal(err)
	}

	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(written), "| DONE |") {
		t.Errorf("written content missing update:\n%s", written)
	}

	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if string(backup) != original {
		t.Errorf("backup = %q, want original", backup)
	}

	if doc.Modified {
		t.Error("Modified not reset after save")
	}
	if doc.RawContent != string(written) {
		t.Error("RawContent not refreshed after save")
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".jera-tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestWriteProject_SkipsUnmodified(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.wbs.md")
	bPath := filepath.Join(dir, "b.wbs.md")
	if err := os.WriteFile(aPath, []byte("# A\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bPath, []byte("# B\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	project := parser.ParseProject(dir, nil)
	docB := project.Documents[1]
	roots, _ := tree.Update(docB.RootNodes, docB.RootNodes[0].ID, func(n *models.Node) {
		n.Assignee = "carol"
	})
	docB.RootNodes = roots
	docB.Modified = true

	if err := WriteProject(project, false); err != nil {
		t.Fatal(err)
	}

	aStat, _ := os.ReadFile(aPath)
	if string(aStat) != "# A\n" {
		t.Errorf("unmodified file rewritten: %q", aStat)
	}
	bContent, _ := os.ReadFile(bPath)
	if !strings.Contains(string(bContent), "carol") {
		t.Errorf("modified file not written: %q", bContent)
	}
	if _, err := os.Stat(bPath + ".bak"); err == nil {
		t.Error("backup written with backup=false")
	}
}

func TestSerialize_NewNodeEmitsTableAndMemo(t *testing.T) {
	n := models.NewNode("Fresh", 2)
	n.Memo = "line a\nline b"
	doc := &models.Document{
		FilePath:  "t.wbs.md",
		RootNodes: []*models.Node{n},
		Modified:  true,
	}

	got := Serialize(doc)
	want := "## Fresh\n| status | priority |\n| --- | --- |\n| TODO | MEDIUM |\n\nline a\nline b\n"
	if got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}
