// Package tree implements pure structural operations over WBS node
// forests. No node is ever mutated in place: each operation rebuilds the
// ancestor chain of the target with copies and leaves unrelated subtrees
// aliased, so callers can keep old snapshots for undo.
package tree

import (
	"github.com/starford/jera/internal/models"
)

// ReplaceNode returns a new forest with the node matching id replaced.
// The second result reports whether the id was found.
func ReplaceNode(roots []*models.Node, id string, replacement *models.Node) ([]*models.Node, bool) {
	out := append([]*models.Node(nil), roots...)
	for i, root := range out {
		if newRoot, ok := replaceInTree(root, id, replacement); ok {
			out[i] = newRoot
			return out, true
		}
	}
	return roots, false
}

func replaceInTree(n *models.Node, id string, replacement *models.Node) (*models.Node, bool) {
	if n.ID == id {
		return replacement, true
	}
	for i, child := range n.Children {
		if newChild, ok := replaceInTree(child, id, replacement); ok {
			c := n.Clone()
			c.Children[i] = newChild
			return c, true
		}
	}
	return n, false
}

// Update clones the node matching id, applies patch to the clone, marks it
// MetaModified, and splices it back into the forest.
func Update(roots []*models.Node, id string, patch func(*models.Node)) ([]*models.Node, bool) {
	target := Find(roots, id)
	if target == nil {
		return roots, false
	}
	clone := target.Clone()
	patch(clone)
	clone.MetaModified = true
	return ReplaceNode(roots, id, clone)
}

// Find returns the node matching id via depth-first search, or nil.
func Find(roots []*models.Node, id string) *models.Node {
	for _, root := range roots {
		for _, n := range root.AllNodes() {
			if n.ID == id {
				return n
			}
		}
	}
	return nil
}

// FindParent returns the direct parent of the node matching id, or nil if
// the node is a root (or absent).
func FindParent(roots []*models.Node, id string) *models.Node {
	var walk func(n *models.Node) *models.Node
	walk = func(n *models.Node) *models.Node {
		for _, child := range n.Children {
			if child.ID == id {
				return n
			}
			if p := walk(child); p != nil {
				return p
			}
		}
		return nil
	}
	for _, root := range roots {
		if p := walk(root); p != nil {
			return p
		}
	}
	return nil
}

// InsertChild appends child to the children of the node matching parentID.
func InsertChild(roots []*models.Node, parentID string, child *models.Node) ([]*models.Node, bool) {
	parent := Find(roots, parentID)
	if parent == nil {
		return roots, false
	}
	return ReplaceNode(roots, parentID, parent.WithChild(child))
}

// InsertSiblingAfter splices newNode immediately after the node matching
// anchorID, at whatever depth the anchor sits.
func InsertSiblingAfter(roots []*models.Node, anchorID string, newNode *models.Node) ([]*models.Node, bool) {
	if out, ok := insertAfterInList(roots, anchorID, newNode); ok {
		return out, true
	}
	return roots, false
}

func insertAfterInList(nodes []*models.Node, anchorID string, newNode *models.Node) ([]*models.Node, bool) {
	for i, n := range nodes {
		if n.ID == anchorID {
			out := make([]*models.Node, 0, len(nodes)+1)
			out = append(out, nodes[:i+1]...)
			out = append(out, newNode)
			out = append(out, nodes[i+1:]...)
			return out, true
		}
		if newChildren, ok := insertAfterInList(n.Children, anchorID, newNode); ok {
			c := n.Clone()
			c.Children = newChildren
			out := append([]*models.Node(nil), nodes...)
			out[i] = c
			return out, true
		}
	}
	return nodes, false
}

// RemoveNode excises the node matching id (and its whole subtree).
func RemoveNode(roots []*models.Node, id string) ([]*models.Node, bool) {
	if out, ok := removeFromList(roots, id); ok {
		return out, true
	}
	return roots, false
}

func removeFromList(nodes []*models.Node, id string) ([]*models.Node, bool) {
	for i, n := range nodes {
		if n.ID == id {
			out := make([]*models.Node, 0, len(nodes)-1)
			out = append(out, nodes[:i]...)
			out = append(out, nodes[i+1:]...)
			return out, true
		}
		if newChildren, ok := removeFromList(n.Children, id); ok {
			c := n.Clone()
			c.Children = newChildren
			out := append([]*models.Node(nil), nodes...)
			out[i] = c
			return out, true
		}
	}
	return nodes, false
}

// SwapWithSibling exchanges the node matching id with its adjacent direct
// sibling: direction -1 swaps upward, +1 downward. A swap past either end
// of the sibling list is a no-op (found=true, swapped=false).
func SwapWithSibling(roots []*models.Node, id string, direction int) (out []*models.Node, found, swapped bool) {
	out, found, swapped = swapInList(roots, id, direction)
	return out, found, swapped
}

func swapInList(nodes []*models.Node, id string, direction int) ([]*models.Node, bool, bool) {
	for i, n := range nodes {
		if n.ID == id {
			j := i + direction
			if j < 0 || j >= len(nodes) {
				return nodes, true, false
			}
			out := append([]*models.Node(nil), nodes...)
			out[i], out[j] = out[j], out[i]
			return out, true, true
		}
		if newChildren, found, swapped := swapInList(n.Children, id, direction); found {
			if !swapped {
				return nodes, true, false
			}
			c := n.Clone()
			c.Children = newChildren
			out := append([]*models.Node(nil), nodes...)
			out[i] = c
			return out, true, true
		}
	}
	return nodes, false, false
}

// ChangeLevel returns a copy of node with its heading level shifted by
// delta, clamped to a minimum of 1. This is a field update only: the node
// keeps its position in the tree, and the caller owns any structural
// re-nesting the new level implies.
func ChangeLevel(node *models.Node, delta int) *models.Node {
	newLevel := node.Level + delta
	if newLevel < 1 {
		newLevel = 1
	}
	if newLevel == node.Level {
		return node
	}
	c := node.Clone()
	c.Level = newLevel
	c.MetaModified = true
	return c
}
