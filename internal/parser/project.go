package parser

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/starford/jera/internal/models"
)

// ParseProject parses every *.wbs.md file in dir (sorted by name) and runs
// cross-file depends validation.
func ParseProject(dir string, knownCustomFields map[string]struct{}) *models.Project {
	project := &models.Project{Dir: dir}

	files, _ := filepath.Glob(filepath.Join(dir, "*.wbs.md"))
	sort.Strings(files)
	if len(files) == 0 {
		project.Warnings = append(project.Warnings, models.Warning{
			File: dir, Line: 0, Message: "No .wbs.md files found in directory",
		})
		return project
	}

	for _, f := range files {
		doc := ParseFile(f, knownCustomFields)
		project.Documents = append(project.Documents, doc)
		project.Warnings = append(project.Warnings, doc.Warnings...)
	}

	project.Warnings = append(project.Warnings, ValidateProject(project)...)
	return project
}

// ValidateProject checks cross-node references over the whole project:
// duplicate titles, depends pointing at missing titles, and dependency
// cycles. All findings are warnings; nothing blocks loading or editing.
func ValidateProject(project *models.Project) []models.Warning {
	var warnings []models.Warning
	all := project.AllNodes()

	titleCount := make(map[string]int)
	var titleOrder []string
	for _, n := range all {
		if titleCount[n.Title] == 0 {
			titleOrder = append(titleOrder, n.Title)
		}
		titleCount[n.Title]++
	}
	for _, title := range titleOrder {
		if c := titleCount[title]; c > 1 {
			warnings = append(warnings, models.Warning{
				Message: fmt.Sprintf("Duplicate title '%s' found %d times, depends may be ambiguous", title, c),
			})
		}
	}

	for _, n := range all {
		for _, dep := range n.DependsList() {
			if titleCount[dep] == 0 {
				warnings = append(warnings, models.Warning{
					File:    n.SourceFile,
					Message: fmt.Sprintf("Node '%s' depends on '%s' which does not exist", n.Title, dep),
				})
			}
		}
	}

	warnings = append(warnings, findCycles(all)...)
	return warnings
}

// findCycles runs a DFS with a recursion stack over the title-keyed
// dependency graph. The warning names the edge where the cycle was
// detected, not necessarily the full cycle.
func findCycles(all []*models.Node) []models.Warning {
	deps := make(map[string][]string, len(all))
	var order []string
	for _, n := range all {
		if _, seen := deps[n.Title]; !seen {
			order = append(order, n.Title)
		}
		deps[n.Title] = append(deps[n.Title], n.DependsList()...)
	}

	var warnings []models.Warning
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var visit func(title string) bool
	visit = func(title string) bool {
		visited[title] = true
		recStack[title] = true
		for _, dep := range deps[title] {
			if !visited[dep] {
				if visit(dep) {
					return true
				}
			} else if recStack[dep] {
				warnings = append(warnings, models.Warning{
					Message: fmt.Sprintf("Circular dependency detected involving '%s' -> '%s'", title, dep),
				})
				return true
			}
		}
		delete(recStack, title)
		return false
	}

	for _, title := range order {
		if !visited[title] {
			visit(title)
		}
	}
	return warnings
}
