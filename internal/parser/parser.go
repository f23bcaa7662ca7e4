// Package parser converts the Jera WBS markdown dialect (ATX headings, an
// optional 3-line metadata table per heading, free-text body) into a node
// tree, preserving raw text fragments for byte-exact round-trips.
//
// The parser never fails on malformed input: every anomaly is recorded as a
// models.Warning and parsing continues with field defaults.
package parser

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/jera/internal/models"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// builtinFields are the metadata keys mapped to typed node fields; any
// other key is captured as a custom field.
var builtinFields = map[string]struct{}{
	"status": {}, "assignee": {}, "duration": {}, "priority": {},
	"depends": {}, "start": {}, "end": {}, "milestone": {}, "progress": {},
}

// section is one heading-delimited slice of the input, before tree assembly.
type section struct {
	lineNum     int
	level       int
	title       string
	headingLine string
	metaLines   []string // the 3 raw table lines, or nil
	meta        map[string]string
	metaOrder   []string
	bodyLines   []string
}

// Parse parses markdown content into a Document.
//
// knownCustomFields is the set of custom column IDs declared in the project
// config. It is accepted for interface stability but does not filter
// capture: unrecognized keys always pass through into CustomFields.
func Parse(content, filePath string, knownCustomFields map[string]struct{}) *models.Document {
	_ = knownCustomFields

	var warnings []models.Warning
	sections := scanSections(content)

	if len(sections) == 0 {
		warnings = append(warnings, models.Warning{File: filePath, Line: 0, Message: "No headings found in file"})
		return &models.Document{FilePath: filePath, RawContent: content, Warnings: warnings}
	}

	nodes := make([]*models.Node, len(sections))
	lines := make([]int, len(sections))
	for i, sec := range sections {
		nodes[i] = buildNode(sec, filePath, &warnings)
		lines[i] = sec.lineNum
	}

	roots := buildTree(nodes, lines, filePath, &warnings)

	return &models.Document{
		FilePath:   filePath,
		RootNodes:  roots,
		RawContent: content,
		Warnings:   warnings,
	}
}

// scanSections splits content into heading-delimited sections. Directly
// after each heading it skips blank lines and looks ahead for a row /
// separator / row metadata table; skipped blank lines stay in the body.
func scanSections(content string) []*section {
	lines := strings.Split(content, "\n")
	var sections []*section

	for i := 0; i < len(lines); i++ {
		m := headingRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		sec := &section{
			lineNum:     i + 1,
			level:       len(m[1]),
			title:       strings.TrimSpace(m[2]),
			headingLine: lines[i],
		}

		j := i + 1
		var leadingBlanks []string
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			leadingBlanks = append(leadingBlanks, lines[j])
			j++
		}
		if hasMetaTable(lines, j) {
			sec.bodyLines = append(sec.bodyLines, leadingBlanks...)
			sec.metaLines = []string{lines[j], lines[j+1], lines[j+2]}
			sec.meta, sec.metaOrder = decodeMetaTable(lines[j], lines[j+2])
			j += 3
		} else {
			sec.bodyLines = append(sec.bodyLines, leadingBlanks...)
		}

		for ; j < len(lines); j++ {
			if headingRe.MatchString(lines[j]) {
				break
			}
			sec.bodyLines = append(sec.bodyLines, lines[j])
		}
		sections = append(sections, sec)
		i = j - 1
	}
	return sections
}

// hasMetaTable reports whether lines[at], lines[at+1], lines[at+2] form a
// data row, a separator, and a data row.
func hasMetaTable(lines []string, at int) bool {
	if at+2 >= len(lines) {
		return false
	}
	return isTableRow(lines[at]) &&
		isTableSeparator(lines[at+1]) &&
		isTableRow(lines[at+2]) &&
		!isTableSeparator(lines[at+2])
}

// buildNode converts a scanned section into a Node, applying per-field
// fallbacks with warnings.
func buildNode(sec *section, filePath string, warnings *[]models.Warning) *models.Node {
	warn := func(msg string) {
		*warnings = append(*warnings, models.Warning{File: filePath, Line: sec.lineNum, Message: msg})
	}

	n := models.NewNode(sec.title, sec.level)
	n.SourceFile = filePath
	n.RawHeadingLine = sec.headingLine
	n.RawMetaLines = sec.metaLines
	n.RawBodyLines = sec.bodyLines
	n.MetaModified = false

	if v, ok := sec.meta["status"]; ok {
		st, valid := models.StatusFromString(v)
		if !valid {
			warn(fmt.Sprintf("Invalid status: '%s', defaulting to TODO", strings.ToUpper(strings.TrimSpace(v))))
		}
		n.Status = st
	}
	if v, ok := sec.meta["priority"]; ok {
		pr, valid := models.PriorityFromString(v)
		if !valid {
			warn(fmt.Sprintf("Invalid priority: '%s', defaulting to MEDIUM", strings.ToUpper(strings.TrimSpace(v))))
		}
		n.Priority = pr
	}
	n.Assignee = strings.TrimSpace(sec.meta["assignee"])
	n.Duration = strings.TrimSpace(sec.meta["duration"])
	n.Depends = strings.TrimSpace(sec.meta["depends"])
	n.Start = parseDate(sec.meta["start"], warn)
	n.End = parseDate(sec.meta["end"], warn)
	n.Milestone = parseBool(sec.meta["milestone"])

	if raw := strings.TrimSpace(sec.meta["progress"]); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			if v < 0 {
				v = 0
			}
			if v > 100 {
				v = 100
			}
			n.Progress = &v
		} else {
			warn(fmt.Sprintf("Invalid progress: '%s'", raw))
		}
	}

	// Custom fields in header column order.
	for _, key := range sec.metaOrder {
		if _, builtin := builtinFields[key]; builtin {
			continue
		}
		n.CustomFields = append(n.CustomFields, models.CustomField{Key: key, Value: sec.meta[key]})
	}

	n.Memo = strings.TrimSpace(strings.Join(sec.bodyLines, "\n"))
	return n
}

func parseDate(value string, warn func(string)) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		warn(fmt.Sprintf("Invalid date format: '%s'", value))
		return nil
	}
	return &t
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// buildTree assembles a flat heading sequence into a forest using a stack
// of open ancestors. A heading deeper than parent level+1 is attached to
// the nearest open ancestor with a warning, never rejected.
func buildTree(flat []*models.Node, lineNums []int, filePath string, warnings *[]models.Warning) []*models.Node {
	var roots []*models.Node
	type frame struct {
		node  *models.Node
		level int
	}
	var stack []frame

	for i, n := range flat {
		for len(stack) > 0 && stack[len(stack)-1].level >= n.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			if n.Level > parent.level+1 {
				*warnings = append(*warnings, models.Warning{
					File: filePath,
					Line: lineNums[i],
					Message: fmt.Sprintf("Heading level skip: h%d -> h%d for '%s', attaching to '%s'",
						parent.level, n.Level, n.Title, parent.node.Title),
				})
			}
			parent.node.Children = append(parent.node.Children, n)
		}
		stack = append(stack, frame{node: n, level: n.Level})
	}
	return roots
}

// ParseFile reads and parses a single .wbs.md file. Read errors, binary
// content, and invalid UTF-8 all yield an empty document with one warning.
func ParseFile(filePath string, knownCustomFields map[string]struct{}) *models.Document {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return &models.Document{FilePath: filePath, Warnings: []models.Warning{
			{File: filePath, Line: 0, Message: fmt.Sprintf("Cannot read file: %v", err)},
		}}
	}
	return ParseBytes(raw, filePath, knownCustomFields)
}

// ParseBytes sniffs raw content for binary/invalid encoding before parsing.
func ParseBytes(raw []byte, filePath string, knownCustomFields map[string]struct{}) *models.Document {
	if isBinary(raw) {
		return &models.Document{FilePath: filePath, Warnings: []models.Warning{
			{File: filePath, Line: 0, Message: "File appears to be binary, skipping"},
		}}
	}
	if !utf8.Valid(raw) {
		return &models.Document{FilePath: filePath, Warnings: []models.Warning{
			{File: filePath, Line: 0, Message: "File is not valid UTF-8, skipping"},
		}}
	}
	return Parse(string(raw), filePath, knownCustomFields)
}

// isBinary checks for null bytes in the first 8KB.
func isBinary(content []byte) bool {
	limit := len(content)
	if limit > 8192 {
		limit = 8192
	}
	return bytes.IndexByte(content[:limit], 0) >= 0
}
