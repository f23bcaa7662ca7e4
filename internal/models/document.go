package models

import (
	"fmt"
	"time"
)

// DocumentInfo is lightweight file metadata used by the storage layer and
// index reconciler to detect changed documents without parsing them.
type DocumentInfo struct {
	Path      string    `json:"path"` // relative to project dir
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Warning is a non-fatal diagnostic produced while parsing or validating.
type Warning struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s:%d: %s", w.File, w.Line, w.Message)
}

// Document is one parsed .wbs.md file.
type Document struct {
	FilePath   string
	RootNodes  []*Node
	RawContent string // exact original text; writer fast path when unmodified
	Modified   bool
	Warnings   []Warning
}

// AllNodes returns every node in the document in pre-order.
func (d *Document) AllNodes() []*Node {
	var out []*Node
	for _, root := range d.RootNodes {
		out = append(out, root.AllNodes()...)
	}
	return out
}

// Snapshot returns a shallow copy suitable for undo stacks: the node tree
// is shared (nodes are immutable), only the document-level slices are
// duplicated.
func (d *Document) Snapshot() *Document {
	return &Document{
		FilePath:   d.FilePath,
		RootNodes:  append([]*Node(nil), d.RootNodes...),
		RawContent: d.RawContent,
		Modified:   d.Modified,
		Warnings:   append([]Warning(nil), d.Warnings...),
	}
}

// Project is a directory of WBS documents.
type Project struct {
	Dir       string
	Documents []*Document
	Warnings  []Warning
}

// AllNodes returns every node across all documents in pre-order.
func (p *Project) AllNodes() []*Node {
	var out []*Node
	for _, doc := range p.Documents {
		out = append(out, doc.AllNodes()...)
	}
	return out
}

// AllRootNodes returns the root nodes of all documents.
func (p *Project) AllRootNodes() []*Node {
	var out []*Node
	for _, doc := range p.Documents {
		out = append(out, doc.RootNodes...)
	}
	return out
}

// FindNodeByTitle returns the first node with the given title, or nil.
func (p *Project) FindNodeByTitle(title string) *Node {
	for _, n := range p.AllNodes() {
		if n.Title == title {
			return n
		}
	}
	return nil
}

// TitleMap returns a map from title to the first node carrying it.
func (p *Project) TitleMap() map[string]*Node {
	m := make(map[string]*Node)
	for _, n := range p.AllNodes() {
		if _, ok := m[n.Title]; !ok {
			m[n.Title] = n
		}
	}
	return m
}
