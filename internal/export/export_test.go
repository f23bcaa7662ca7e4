package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/starford/jera/internal/models"
)

func sampleProject() *models.Project {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	child := models.NewNode("Design", 2)
	child.Status = models.StatusInProgress
	child.Assignee = "alice"
	child.Start = &start
	child.End = &end
	child.CustomFields = []models.CustomField{{Key: "cost", Value: "500"}}

	root := models.NewNode("Project Phoenix", 1)
	root.Children = []*models.Node{child}

	return &models.Project{
		Dir: "/p",
		Documents: []*models.Document{{
			FilePath:  "/p/plan.wbs.md",
			RootNodes: []*models.Node{root},
		}},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"json":     FormatJSON,
		"CSV":      FormatCSV,
		"mmd":      FormatMermaid,
		"gantt":    FormatMermaid,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Error("unknown format should error")
	}
}

func TestJSON_NestedTreeWithCustomFields(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleProject()); err != nil {
		t.Fatal(err)
	}

	var payload struct {
		ProjectDir string `json:"project_dir"`
		Documents  []struct {
			File  string           `json:"file"`
			Nodes []map[string]any `json:"nodes"`
		} `json:"documents"`
	}
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.ProjectDir != "/p" || len(payload.Documents) != 1 {
		t.Fatalf("payload = %+v", payload)
	}
	root := payload.Documents[0].Nodes[0]
	if root["title"] != "Project Phoenix" {
		t.Errorf("root title = %v", root["title"])
	}
	children, ok := root["children"].([]any)
	if !ok || len(children) != 1 {
		t.Fatalf("children = %v", root["children"])
	}
	child := children[0].(map[string]any)
	if child["cost"] != "500" {
		t.Errorf("custom field not flattened: %v", child["cost"])
	}
	if child["start"] != "2026-03-01" {
		t.Errorf("start = %v", child["start"])
	}
}

func TestCSV_FlatRows(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, sampleProject()); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header + 2 rows", len(records))
	}
	if records[0][0] != "title" {
		t.Errorf("header = %v", records[0])
	}
	if records[2][0] != "Design" || records[2][2] != "IN_PROGRESS" {
		t.Errorf("child row = %v", records[2])
	}
}

func TestMermaid_SectionsAndTasks(t *testing.T) {
	var buf bytes.Buffer
	if err := Mermaid(&buf, sampleProject()); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "gantt\n") {
		t.Errorf("missing gantt header:\n%s", got)
	}
	if !strings.Contains(got, "section Project Phoenix") {
		t.Errorf("missing section:\n%s", got)
	}
	if !strings.Contains(got, "Design :active, Design, 2026-03-01, 2026-03-10") {
		t.Errorf("missing task line:\n%s", got)
	}
}

func TestMermaid_SkipsUndatedTasks(t *testing.T) {
	p := sampleProject()
	undated := models.NewNode("Later", 3)
	p.Documents[0].RootNodes[0].Children[0].Children = []*models.Node{undated}

	var buf bytes.Buffer
	if err := Mermaid(&buf, p); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Later") {
		t.Errorf("undated task exported:\n%s", buf.String())
	}
}

func TestMermaid_NormalizesDurationUnits(t *testing.T) {
	p := sampleProject()
	start := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	build := models.NewNode("Build", 3)
	build.Start = &start
	build.Duration = "2w"
	p.Documents[0].RootNodes[0].Children[0].Children = []*models.Node{build}

	var buf bytes.Buffer
	if err := Mermaid(&buf, p); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Build : Build, 2026-03-12, 14d") {
		t.Errorf("duration not normalized to days:\n%s", buf.String())
	}
}

func TestMarkdownTable_IndentsByLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := MarkdownTable(&buf, sampleProject()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4", len(lines))
	}
	if !strings.Contains(lines[2], "| Project Phoenix |") {
		t.Errorf("root row = %q", lines[2])
	}
	if !strings.Contains(lines[3], "|   Design |") {
		t.Errorf("child row not indented: %q", lines[3])
	}
}

func TestExport_Dispatch(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatCSV, FormatMermaid, FormatMarkdown} {
		var buf bytes.Buffer
		if err := Export(&buf, sampleProject(), f); err != nil {
			t.Errorf("Export(%s): %v", f, err)
		}
		if buf.Len() == 0 {
			t.Errorf("Export(%s): empty output", f)
		}
	}
	if err := Export(&bytes.Buffer{}, sampleProject(), Format("bogus")); err == nil {
		t.Error("bogus format should error")
	}
}
