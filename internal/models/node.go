// Package models defines the domain types for Jera: WBS nodes, documents,
// projects, and parse warnings.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format for start/end dates.
const DateLayout = "2006-01-02"

// Status is the completion state of a node.
type Status string

// Node statuses.
const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// StatusFromString parses a status value. Returns false for unknown values.
func StatusFromString(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusTodo:
		return StatusTodo, true
	case StatusInProgress:
		return StatusInProgress, true
	case StatusDone:
		return StatusDone, true
	}
	return StatusTodo, false
}

// Priority is the importance of a node.
type Priority string

// Node priorities.
const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// PriorityFromString parses a priority value. Returns false for unknown values.
func PriorityFromString(s string) (Priority, bool) {
	switch Priority(strings.ToUpper(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityLow:
		return PriorityLow, true
	}
	return PriorityMedium, false
}

// CustomField is one project-defined key/value pair. Order is preserved
// as captured from the metadata table.
type CustomField struct {
	Key   string
	Value string
}

// Node is one heading-delimited task in a WBS document.
//
// Nodes are immutable by convention: every edit goes through Clone (or the
// tree package), producing a new value. This keeps whole-document snapshots
// cheap and makes concurrent reads safe.
type Node struct {
	ID    string
	Title string
	Level int // heading depth, 1..6

	Status    Status
	Priority  Priority
	Assignee  string
	Duration  string // free-form, e.g. "5d", "2w"
	Depends   string // semicolon-separated titles
	Start     *time.Time
	End       *time.Time
	Milestone bool
	Progress  *int // 0..100; nil = derive from children
	Memo      string

	CustomFields []CustomField
	Children     []*Node
	SourceFile   string

	// Round-trip fragments, owned by the parser/writer boundary. When
	// MetaModified is false the writer emits the raw lines verbatim;
	// when true it regenerates heading, metadata table, and memo.
	RawHeadingLine string
	RawMetaLines   []string
	RawBodyLines   []string
	MetaModified   bool
}

// NewNode creates a fresh node with a generated ID. Fresh nodes carry no
// raw fragments and always regenerate their output.
func NewNode(title string, level int) *Node {
	return &Node{
		ID:           uuid.NewString(),
		Title:        title,
		Level:        level,
		Status:       StatusTodo,
		Priority:     PriorityMedium,
		MetaModified: true,
	}
}

// Clone returns a shallow copy with its own slices for CustomFields and
// Children. The ID is preserved.
func (n *Node) Clone() *Node {
	c := *n
	if n.CustomFields != nil {
		c.CustomFields = append([]CustomField(nil), n.CustomFields...)
	}
	if n.Children != nil {
		c.Children = append([]*Node(nil), n.Children...)
	}
	return &c
}

// WithChild returns a copy of n with child appended.
func (n *Node) WithChild(child *Node) *Node {
	c := n.Clone()
	c.Children = append(c.Children, child)
	return c
}

// ReplaceChild returns a copy of n with the direct child matching oldID
// replaced.
func (n *Node) ReplaceChild(oldID string, replacement *Node) *Node {
	c := n.Clone()
	for i, ch := range c.Children {
		if ch.ID == oldID {
			c.Children[i] = replacement
		}
	}
	return c
}

// AllNodes returns n and all descendants in pre-order.
func (n *Node) AllNodes() []*Node {
	out := []*Node{n}
	for _, ch := range n.Children {
		out = append(out, ch.AllNodes()...)
	}
	return out
}

// CustomField returns the value for key and whether it is present.
func (n *Node) CustomField(key string) (string, bool) {
	for _, f := range n.CustomFields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// SetCustomField returns a copy with key set to value, preserving the
// position of an existing key.
func (n *Node) SetCustomField(key, value string) *Node {
	c := n.Clone()
	for i, f := range c.CustomFields {
		if f.Key == key {
			c.CustomFields[i].Value = value
			return c
		}
	}
	c.CustomFields = append(c.CustomFields, CustomField{Key: key, Value: value})
	return c
}

// ComputedProgress returns the explicit progress if set, otherwise derives
// it: leaves report 100/0 by status, parents report the ratio of DONE
// children.
func (n *Node) ComputedProgress() int {
	if n.Progress != nil {
		return *n.Progress
	}
	if len(n.Children) == 0 {
		if n.Status == StatusDone {
			return 100
		}
		return 0
	}
	done := 0
	for _, c := range n.Children {
		if c.Status == StatusDone {
			done++
		}
	}
	return done * 100 / len(n.Children)
}

// DependsList splits the Depends field into individual titles.
func (n *Node) DependsList() []string {
	if strings.TrimSpace(n.Depends) == "" {
		return nil
	}
	var out []string
	for _, d := range strings.Split(n.Depends, ";") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// HasIncompleteDependencies reports whether any dependency of node is
// missing from titleMap or not DONE.
func HasIncompleteDependencies(node *Node, titleMap map[string]*Node) bool {
	for _, title := range node.DependsList() {
		dep, ok := titleMap[title]
		if !ok || dep.Status != StatusDone {
			return true
		}
	}
	return false
}
