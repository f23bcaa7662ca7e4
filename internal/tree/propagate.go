package tree

import (
	"time"

	"github.com/starford/jera/internal/models"
)

// PropagateDates walks upward from the node matching id, recomputing each
// ancestor's start as the minimum child start and end as the maximum child
// end. It stops as soon as an ancestor needs no change, so repeated calls
// are idempotent. Returns the (possibly new) forest and whether anything
// changed.
func PropagateDates(roots []*models.Node, id string) ([]*models.Node, bool) {
	changed := false
	currentID := id

	for {
		parent := FindParent(roots, currentID)
		if parent == nil || len(parent.Children) == 0 {
			break
		}

		minStart, maxEnd := childDateSpan(parent)

		needsStart := minStart != nil && (parent.Start == nil || !parent.Start.Equal(*minStart))
		needsEnd := maxEnd != nil && (parent.End == nil || !parent.End.Equal(*maxEnd))
		if !needsStart && !needsEnd {
			break
		}

		parentID := parent.ID
		roots, _ = Update(roots, parentID, func(n *models.Node) {
			if needsStart {
				n.Start = minStart
			}
			if needsEnd {
				n.End = maxEnd
			}
		})
		changed = true
		currentID = parentID
	}

	return roots, changed
}

func childDateSpan(parent *models.Node) (minStart, maxEnd *time.Time) {
	for _, child := range parent.Children {
		if child.Start != nil && (minStart == nil || child.Start.Before(*minStart)) {
			minStart = child.Start
		}
		if child.End != nil && (maxEnd == nil || child.End.After(*maxEnd)) {
			maxEnd = child.End
		}
	}
	return minStart, maxEnd
}
