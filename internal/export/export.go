// Package export renders a WBS project to interchange formats: JSON,
// CSV, Mermaid Gantt, and a flat markdown table.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/starford/jera/internal/models"
)

// Format identifies an export output format.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMermaid  Format = "mermaid"
	FormatMarkdown Format = "markdown"
)

// ParseFormat maps a user-supplied format name (and common aliases) to a
// Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "mermaid", "mmd", "gantt":
		return FormatMermaid, nil
	case "markdown", "md", "table":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("export: unknown format %q", s)
}

// Export writes the project to w in the given format.
func Export(w io.Writer, project *models.Project, format Format) error {
	switch format {
	case FormatJSON:
		return JSON(w, project)
	case FormatCSV:
		return CSV(w, project)
	case FormatMermaid:
		return Mermaid(w, project)
	case FormatMarkdown:
		return MarkdownTable(w, project)
	}
	return fmt.Errorf("export: unknown format %q", format)
}

// ContentType returns the MIME type for a format.
func ContentType(format Format) string {
	switch format {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

func nodeToMap(n *models.Node) map[string]any {
	m := map[string]any{
		"id":          n.ID,
		"title":       n.Title,
		"level":       n.Level,
		"status":      string(n.Status),
		"priority":    string(n.Priority),
		"assignee":    n.Assignee,
		"duration":    n.Duration,
		"depends":     n.Depends,
		"start":       dateString(n.Start),
		"end":         dateString(n.End),
		"milestone":   n.Milestone,
		"progress":    n.Progress,
		"memo":        n.Memo,
		"source_file": n.SourceFile,
	}
	for _, f := range n.CustomFields {
		m[f.Key] = f.Value
	}
	if len(n.Children) > 0 {
		children := make([]map[string]any, len(n.Children))
		for i, c := range n.Children {
			children[i] = nodeToMap(c)
		}
		m["children"] = children
	}
	return m
}

// JSON writes the full nested tree, one entry per document.
func JSON(w io.Writer, project *models.Project) error {
	docs := make([]map[string]any, len(project.Documents))
	for i, doc := range project.Documents {
		nodes := make([]map[string]any, len(doc.RootNodes))
		for j, root := range doc.RootNodes {
			nodes[j] = nodeToMap(root)
		}
		docs[i] = map[string]any{
			"file":  doc.FilePath,
			"nodes": nodes,
		}
	}
	payload := map[string]any{
		"project_dir": project.Dir,
		"documents":   docs,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(payload)
}

var csvHeaders = []string{
	"title", "level", "status", "priority", "assignee",
	"duration", "depends", "start", "end", "milestone",
	"progress", "memo", "source_file",
}

// CSV writes every node as a flat row.
func CSV(w io.Writer, project *models.Project) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	for _, n := range project.AllNodes() {
		progress := ""
		if n.Progress != nil {
			progress = fmt.Sprintf("%d", *n.Progress)
		}
		row := []string{
			n.Title,
			fmt.Sprintf("%d", n.Level),
			string(n.Status),
			string(n.Priority),
			n.Assignee,
			n.Duration,
			n.Depends,
			dateString(n.Start),
			dateString(n.End),
			fmt.Sprintf("%t", n.Milestone),
			progress,
			strings.ReplaceAll(n.Memo, "\n", " "),
			n.SourceFile,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Mermaid writes a Gantt chart. Level-1/2 titles become sections; only
// nodes with a start date become tasks.
func Mermaid(w io.Writer, project *models.Project) error {
	lines := []string{"gantt", "    dateFormat YYYY-MM-DD", ""}

	currentSection := ""
	for _, n := range project.AllNodes() {
		if n.Level <= 2 {
			if n.Title != currentSection {
				lines = append(lines, "    section "+n.Title)
				currentSection = n.Title
			}
			if n.Level == 1 {
				continue
			}
		}

		if n.Start == nil {
			continue
		}
		statusTag := mermaidStatus(n)
		taskID := safeMermaidID(n.Title)
		start := n.Start.Format(models.DateLayout)

		switch {
		case n.End != nil:
			lines = append(lines, fmt.Sprintf("    %s :%s %s, %s, %s",
				n.Title, statusTag, taskID, start, n.End.Format(models.DateLayout)))
		case n.Duration != "":
			lines = append(lines, fmt.Sprintf("    %s :%s %s, %s, %s",
				n.Title, statusTag, taskID, start, mermaidDuration(n.Duration)))
		default:
			lines = append(lines, fmt.Sprintf("    %s :%s %s, %s, 1d",
				n.Title, statusTag, taskID, start))
		}
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

// mermaidDuration normalizes w/h/m units to days, which every Mermaid
// version renders. Unparseable durations pass through untouched.
func mermaidDuration(duration string) string {
	days, ok := models.DurationToDays(duration)
	if !ok {
		return duration
	}
	return models.DaysToDuration(days)
}

func mermaidStatus(n *models.Node) string {
	switch n.Status {
	case models.StatusDone:
		return "done,"
	case models.StatusInProgress:
		return "active,"
	}
	return ""
}

// safeMermaidID strips characters Mermaid chokes on and caps the length.
func safeMermaidID(title string) string {
	r := strings.NewReplacer(" ", "_", ":", "", "(", "", ")", "")
	id := r.Replace(title)
	if len(id) > 30 {
		id = id[:30]
	}
	return id
}

// MarkdownTable writes a flat markdown table with titles indented by
// level.
func MarkdownTable(w io.Writer, project *models.Project) error {
	headers := []string{"Title", "Status", "Priority", "Assignee", "Duration", "Start", "End", "Progress"}
	seps := make([]string, len(headers))
	for i, h := range headers {
		seps[i] = strings.Repeat("-", len(h))
	}

	lines := []string{
		"| " + strings.Join(headers, " | ") + " |",
		"| " + strings.Join(seps, " | ") + " |",
	}
	for _, n := range project.AllNodes() {
		progress := ""
		if n.Progress != nil {
			progress = fmt.Sprintf("%d%%", *n.Progress)
		}
		row := []string{
			strings.Repeat("  ", n.Level-1) + n.Title,
			string(n.Status),
			string(n.Priority),
			n.Assignee,
			n.Duration,
			dateString(n.Start),
			dateString(n.End),
			progress,
		}
		lines = append(lines, "| "+strings.Join(row, " | ")+" |")
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(models.DateLayout)
}
