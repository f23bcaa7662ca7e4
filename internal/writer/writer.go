// Package writer serializes WBS documents back to markdown and persists
// them with backup and atomic rename.
//
// Round-trip contract: an unmodified document serializes to its exact
// original text. In a modified document, untouched nodes emit their raw
// captured lines verbatim; only nodes whose metadata was edited are
// regenerated.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/parser"
)

// Serialize renders a document to markdown text.
func Serialize(doc *models.Document) string {
	if !doc.Modified {
		return doc.RawContent
	}

	var lines []string
	for _, root := range doc.RootNodes {
		serializeNode(root, &lines)
	}

	result := strings.Join(lines, "\n")
	if strings.HasSuffix(doc.RawContent, "\n") && !strings.HasSuffix(result, "\n") {
		result += "\n"
	}
	return result
}

func serializeNode(n *models.Node, lines *[]string) {
	if !n.MetaModified {
		*lines = append(*lines, n.RawHeadingLine)
		*lines = append(*lines, n.RawMetaLines...)
		*lines = append(*lines, n.RawBodyLines...)
	} else {
		*lines = append(*lines, strings.Repeat("#", n.Level)+" "+n.Title)
		*lines = append(*lines, parser.BuildMetaTable(n)...)
		*lines = append(*lines, "")
		if n.Memo != "" {
			*lines = append(*lines, strings.Split(n.Memo, "\n")...)
			*lines = append(*lines, "")
		}
	}

	for _, child := range n.Children {
		serializeNode(child, lines)
	}
}

// WriteDocument serializes doc and writes it to its file path: optional
// .bak snapshot of the current file, then write-to-temp and atomic rename.
// On success doc.Modified is reset.
func WriteDocument(doc *models.Document, backup bool) error {
	content := Serialize(doc)
	target := doc.FilePath
	dir := filepath.Dir(target)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("writer: mkdir: %w", err)
	}

	if backup {
		if existing, err := os.ReadFile(target); err == nil {
			// Best effort; a failed backup never blocks the save.
			_ = os.WriteFile(target+".bak", existing, 0o644)
		}
	}

	tmp, err := os.CreateTemp(dir, ".jera-tmp-*")
	if err != nil {
		return fmt.Errorf("writer: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		return fmt.Errorf("writer: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("writer: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writer: close temp: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("writer: rename: %w", err)
	}
	success = true

	doc.Modified = false
	doc.RawContent = content
	return nil
}

// WriteProject writes every modified document in the project.
func WriteProject(project *models.Project, backup bool) error {
	for _, doc := range project.Documents {
		if !doc.Modified {
			continue
		}
		if err := WriteDocument(doc, backup); err != nil {
			return err
		}
	}
	return nil
}
