package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/jera/internal/models"
)

var (
	tableRowRe = regexp.MustCompile(`^\|.*\|\s*$`)
	tableSepRe = regexp.MustCompile(`^\|[\s\-:|]+\|\s*$`)
)

// isTableRow reports whether line has the pipe-delimited row shape.
func isTableRow(line string) bool {
	return tableRowRe.MatchString(line)
}

// isTableSeparator reports whether line is a separator row (dashes, colons,
// pipes, whitespace only). A separator must contain at least one dash so a
// data row of blank cells is not mistaken for one.
func isTableSeparator(line string) bool {
	return tableSepRe.MatchString(line) && strings.Contains(line, "-")
}

// splitCells breaks a table row into trimmed cell values.
func splitCells(row string) []string {
	trimmed := strings.TrimSpace(row)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// decodeMetaTable zips a header row and a data row into a key→value map,
// lower-casing keys. Cells beyond the shorter row are ignored. The header
// order is returned so callers can preserve column order.
func decodeMetaTable(headerLine, dataLine string) (map[string]string, []string) {
	keys := splitCells(headerLine)
	values := splitCells(dataLine)

	meta := make(map[string]string, len(keys))
	var order []string
	for i, k := range keys {
		if i >= len(values) {
			break
		}
		key := strings.ToLower(k)
		if key == "" {
			continue
		}
		meta[key] = values[i]
		order = append(order, key)
	}
	return meta, order
}

// BuildMetaTable renders a node's fields as a 3-line metadata table.
// Column order is fixed: status, milestone (if true), assignee, duration,
// priority, start, end, depends, progress (each if present), then custom
// fields sorted by key. Status and priority are always emitted so every
// node round-trips with at least those two columns.
func BuildMetaTable(n *models.Node) []string {
	type col struct{ key, value string }
	cols := []col{{"status", string(n.Status)}}

	if n.Milestone {
		cols = append(cols, col{"milestone", "true"})
	}
	if n.Assignee != "" {
		cols = append(cols, col{"assignee", n.Assignee})
	}
	if n.Duration != "" {
		cols = append(cols, col{"duration", n.Duration})
	}
	cols = append(cols, col{"priority", string(n.Priority)})
	if n.Start != nil {
		cols = append(cols, col{"start", n.Start.Format(models.DateLayout)})
	}
	if n.End != nil {
		cols = append(cols, col{"end", n.End.Format(models.DateLayout)})
	}
	if n.Depends != "" {
		cols = append(cols, col{"depends", n.Depends})
	}
	if n.Progress != nil {
		cols = append(cols, col{"progress", fmt.Sprintf("%d", *n.Progress)})
	}

	custom := append([]models.CustomField(nil), n.CustomFields...)
	sort.Slice(custom, func(i, j int) bool { return custom[i].Key < custom[j].Key })
	for _, f := range custom {
		cols = append(cols, col{f.Key, f.Value})
	}

	header := make([]string, len(cols))
	sep := make([]string, len(cols))
	data := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.key
		sep[i] = "---"
		data[i] = c.value
	}
	return []string{
		"| " + strings.Join(header, " | ") + " |",
		"| " + strings.Join(sep, " | ") + " |",
		"| " + strings.Join(data, " | ") + " |",
	}
}
