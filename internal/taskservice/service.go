// Package taskservice coordinates the in-memory WBS project with storage,
// the search index, and the writer. It is the single mutation point: every
// edit flows through here, is persisted atomically, and re-indexed.
package taskservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/checksum"
	"github.com/starford/jera/internal/export"
	"github.com/starford/jera/internal/index"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/parser"
	"github.com/starford/jera/internal/storage"
	"github.com/starford/jera/internal/tree"
	"github.com/starford/jera/internal/writer"
)

// TaskDetail is the full representation of a task.
type TaskDetail struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Level     int               `json:"level"`
	Status    string            `json:"status"`
	Priority  string            `json:"priority"`
	Assignee  string            `json:"assignee"`
	Duration  string            `json:"duration"`
	Depends   []string          `json:"depends"`
	Start     string            `json:"start,omitempty"`
	End       string            `json:"end,omitempty"`
	Milestone bool              `json:"milestone"`
	Progress  int               `json:"progress"`
	Memo      string            `json:"memo"`
	Custom    map[string]string `json:"custom,omitempty"`
	Path      string            `json:"path"`
	Children  []string          `json:"children"`
}

// TaskPatch carries the fields of an update request. Nil pointers leave
// the field untouched; empty-string dates clear them.
type TaskPatch struct {
	Title     *string `json:"title,omitempty"`
	Status    *string `json:"status,omitempty"`
	Priority  *string `json:"priority,omitempty"`
	Assignee  *string `json:"assignee,omitempty"`
	Duration  *string `json:"duration,omitempty"`
	Depends   *string `json:"depends,omitempty"`
	Start     *string `json:"start,omitempty"`
	End       *string `json:"end,omitempty"`
	Milestone *bool   `json:"milestone,omitempty"`
	Progress  *int    `json:"progress,omitempty"`
	Memo      *string `json:"memo,omitempty"`
}

// Service owns the in-memory project. A single RWMutex serializes
// mutations; reads take the shared lock and work on immutable node trees,
// so handed-out pointers stay safe after release.
type Service struct {
	mu      sync.RWMutex
	project *models.Project

	store       storage.Provider
	db          *index.DB
	logger      *slog.Logger
	knownFields map[string]struct{}
	backup      bool

	// notify, when set, is called after a successful mutation with the
	// event kind and the task's id and title.
	notify func(kind, id, title string)
}

// SetNotifier installs a task-event callback, typically the SSE broker.
func (s *Service) SetNotifier(fn func(kind, id, title string)) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *Service) notifyTask(kind, id, title string) {
	if s.notify != nil {
		s.notify(kind, id, title)
	}
}

// NewService creates the task service and loads the project from disk.
func NewService(store storage.Provider, db *index.DB, logger *slog.Logger, knownFields map[string]struct{}, backup bool) *Service {
	s := &Service{
		store:       store,
		db:          db,
		logger:      logger,
		knownFields: knownFields,
		backup:      backup,
	}
	s.Reload(context.Background())
	return s
}

// Reload re-parses the whole project directory, replacing the in-memory
// state. Called at startup and when the watcher reports external changes.
func (s *Service) Reload(_ context.Context) {
	root := "."
	if fs, ok := s.store.(*storage.FS); ok {
		root = fs.Root()
	}
	project := parser.ParseProject(root, s.knownFields)

	s.mu.Lock()
	s.project = project
	// The index is rebuilt from these exact trees so the IDs it stores
	// are the ones we hand out.
	if err := index.Sync(s.db, project, s.logger); err != nil {
		s.logger.Warn("index sync failed", slog.String("error", err.Error()))
	}
	s.mu.Unlock()

	s.logger.Info("project loaded",
		slog.Int("documents", len(project.Documents)),
		slog.Int("warnings", len(project.Warnings)))
}

// ReloadFile re-parses a single document after an external change. When
// the on-disk bytes match the in-memory document the event is the echo of
// our own save and is dropped: a re-parse would mint fresh node IDs and
// invalidate every ID a client just received.
func (s *Service) ReloadFile(_ context.Context, path string) {
	data, err := s.store.Read(path)
	if err != nil {
		s.logger.Warn("reload read failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	abs := path
	if fs, ok := s.store.(*storage.FS); ok {
		abs = filepath.Join(fs.Root(), path)
	}

	idx := -1
	for i, d := range s.project.Documents {
		if d.FilePath == abs {
			idx = i
			break
		}
	}
	if idx >= 0 && checksum.Sum(data) == checksum.Sum([]byte(s.project.Documents[idx].RawContent)) {
		s.logger.Debug("reload skipped, own save", slog.String("path", path))
		return
	}

	doc := parser.ParseBytes(data, abs, s.knownFields)
	if idx >= 0 {
		s.project.Documents[idx] = doc
	} else {
		s.project.Documents = append(s.project.Documents, doc)
	}
	if err := s.indexDocLocked(doc); err != nil {
		s.logger.Warn("reindex failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	s.revalidateLocked()
}

// RemoveFile drops a document from the in-memory project after an external
// delete.
func (s *Service) RemoveFile(_ context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := path
	if fs, ok := s.store.(*storage.FS); ok {
		abs = filepath.Join(fs.Root(), path)
	}
	for i, d := range s.project.Documents {
		if d.FilePath == abs {
			s.project.Documents = append(s.project.Documents[:i], s.project.Documents[i+1:]...)
			break
		}
	}
	if err := s.db.DeleteFile(path); err != nil {
		s.logger.Warn("index delete failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	s.revalidateLocked()
}

// revalidateLocked recomputes cross-document warnings. Caller holds mu.
func (s *Service) revalidateLocked() {
	var warnings []models.Warning
	for _, d := range s.project.Documents {
		warnings = append(warnings, d.Warnings...)
	}
	warnings = append(warnings, parser.ValidateProject(s.project)...)
	s.project.Warnings = warnings
}

// ListTasks returns every task, optionally filtered by status.
func (s *Service) ListTasks(_ context.Context, status string) []TaskDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []TaskDetail
	for _, doc := range s.project.Documents {
		for _, n := range doc.AllNodes() {
			if status != "" && string(n.Status) != status {
				continue
			}
			out = append(out, detailFromNode(n, doc.FilePath))
		}
	}
	return out
}

// GetTask returns one task by node ID.
func (s *Service) GetTask(_ context.Context, id string) (*TaskDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, n := s.findLocked(id)
	if n == nil {
		return nil, apperr.ErrNotFound
	}
	d := detailFromNode(n, doc.FilePath)
	return &d, nil
}

// UpdateTask applies a patch to a task, propagates date spans to
// ancestors, rewrites dependent references on rename, saves, and
// re-indexes. Returns the updated task.
func (s *Service) UpdateTask(ctx context.Context, id string, patch TaskPatch) (*TaskDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, target := s.findLocked(id)
	if target == nil {
		return nil, apperr.ErrNotFound
	}

	oldTitle := target.Title
	var applyErr error
	roots, ok := tree.Update(doc.RootNodes, id, func(n *models.Node) {
		applyErr = applyPatch(n, patch)
	})
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if applyErr != nil {
		return nil, applyErr
	}
	doc.RootNodes = roots
	doc.Modified = true

	// Ancestor date spans follow the edited node.
	if patch.Start != nil || patch.End != nil {
		doc.RootNodes, _ = tree.PropagateDates(doc.RootNodes, id)
	}

	// A rename rewrites every depends reference to the old title.
	if patch.Title != nil && *patch.Title != oldTitle {
		s.renameDependsLocked(oldTitle, *patch.Title)
	}

	if err := s.saveDocLocked(ctx, doc); err != nil {
		return nil, err
	}
	s.revalidateLocked()

	_, n := s.findLocked(id)
	s.notifyTask("updated", id, n.Title)
	d := detailFromNode(n, doc.FilePath)
	return &d, nil
}

// CycleStatus advances a task TODO → IN_PROGRESS → DONE → TODO. Advancing
// out of TODO is refused while a dependency is incomplete; a direct
// UpdateTask with an explicit status remains the override.
func (s *Service) CycleStatus(ctx context.Context, id string) (*TaskDetail, error) {
	s.mu.RLock()
	_, n := s.findLocked(id)
	if n == nil {
		s.mu.RUnlock()
		return nil, apperr.ErrNotFound
	}
	next := nextStatus(n.Status)
	if next != models.StatusTodo {
		titleMap := make(map[string]*models.Node)
		for _, node := range s.project.AllNodes() {
			titleMap[node.Title] = node
		}
		if models.HasIncompleteDependencies(n, titleMap) {
			s.mu.RUnlock()
			return nil, fmt.Errorf("task %q has incomplete dependencies: %w", n.Title, apperr.ErrConflict)
		}
	}
	s.mu.RUnlock()

	status := string(next)
	return s.UpdateTask(ctx, id, TaskPatch{Status: &status})
}

// AdjustDuration bumps a task's duration by delta units, keeping the
// existing unit ("3d" + 1 = "4d", "2w" - 1 = "1w"). A malformed duration
// is left untouched and returned as-is.
func (s *Service) AdjustDuration(ctx context.Context, id string, delta int) (*TaskDetail, error) {
	s.mu.RLock()
	_, n := s.findLocked(id)
	if n == nil {
		s.mu.RUnlock()
		return nil, apperr.ErrNotFound
	}
	adjusted := models.AdjustDuration(n.Duration, delta)
	current := n.Duration
	s.mu.RUnlock()

	if adjusted == current {
		return s.GetTask(ctx, id)
	}
	return s.UpdateTask(ctx, id, TaskPatch{Duration: &adjusted})
}

func nextStatus(st models.Status) models.Status {
	switch st {
	case models.StatusTodo:
		return models.StatusInProgress
	case models.StatusInProgress:
		return models.StatusDone
	default:
		return models.StatusTodo
	}
}

// AddChild creates a new task under parentID.
func (s *Service) AddChild(ctx context.Context, parentID, title string) (*TaskDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, parent := s.findLocked(parentID)
	if parent == nil {
		return nil, apperr.ErrNotFound
	}

	level := parent.Level + 1
	if level > 6 {
		level = 6
	}
	child := models.NewNode(title, level)
	child.SourceFile = doc.FilePath

	roots, ok := tree.InsertChild(doc.RootNodes, parentID, child)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	doc.RootNodes = roots
	doc.Modified = true

	if err := s.saveDocLocked(ctx, doc); err != nil {
		return nil, err
	}
	s.revalidateLocked()

	s.notifyTask("created", child.ID, child.Title)
	d := detailFromNode(child, doc.FilePath)
	return &d, nil
}

// AddSibling creates a new task immediately after anchorID at the same
// level.
func (s *Service) AddSibling(ctx context.Context, anchorID, title string) (*TaskDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, anchor := s.findLocked(anchorID)
	if anchor == nil {
		return nil, apperr.ErrNotFound
	}

	sibling := models.NewNode(title, anchor.Level)
	sibling.SourceFile = doc.FilePath

	roots, ok := tree.InsertSiblingAfter(doc.RootNodes, anchorID, sibling)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	doc.RootNodes = roots
	doc.Modified = true

	if err := s.saveDocLocked(ctx, doc); err != nil {
		return nil, err
	}
	s.revalidateLocked()

	s.notifyTask("created", sibling.ID, sibling.Title)
	d := detailFromNode(sibling, doc.FilePath)
	return &d, nil
}

// DeleteTask removes a task and its whole subtree.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, n := s.findLocked(id)
	if n == nil {
		return apperr.ErrNotFound
	}

	roots, ok := tree.RemoveNode(doc.RootNodes, id)
	if !ok {
		return apperr.ErrNotFound
	}
	doc.RootNodes = roots
	doc.Modified = true

	if err := s.saveDocLocked(ctx, doc); err != nil {
		return err
	}
	s.revalidateLocked()

	s.notifyTask("deleted", id, n.Title)
	return nil
}

// MoveTask swaps a task with its adjacent sibling: direction is "up" or
// "down". Moving past the end of the sibling list is a no-op.
func (s *Service) MoveTask(ctx context.Context, id, direction string) (*TaskDetail, error) {
	delta := 0
	switch direction {
	case "up":
		delta = -1
	case "down":
		delta = 1
	default:
		return nil, fmt.Errorf("taskservice: invalid direction %q", direction)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, n := s.findLocked(id)
	if n == nil {
		return nil, apperr.ErrNotFound
	}

	roots, found, swapped := tree.SwapWithSibling(doc.RootNodes, id, delta)
	if !found {
		return nil, apperr.ErrNotFound
	}
	if swapped {
		doc.RootNodes = roots
		doc.Modified = true
		if err := s.saveDocLocked(ctx, doc); err != nil {
			return nil, err
		}
		s.notifyTask("moved", id, n.Title)
	}

	_, moved := s.findLocked(id)
	d := detailFromNode(moved, doc.FilePath)
	return &d, nil
}

// Indent increases a task's heading level by one; Outdent decreases it.
// Level changes keep tree position: re-nesting happens on the next reload
// from the serialized heading depths.
func (s *Service) Indent(ctx context.Context, id string) (*TaskDetail, error) {
	return s.changeLevel(ctx, id, 1)
}

// Outdent decreases a task's heading level by one.
func (s *Service) Outdent(ctx context.Context, id string) (*TaskDetail, error) {
	return s.changeLevel(ctx, id, -1)
}

func (s *Service) changeLevel(ctx context.Context, id string, delta int) (*TaskDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, n := s.findLocked(id)
	if n == nil {
		return nil, apperr.ErrNotFound
	}

	changed := tree.ChangeLevel(n, delta)
	if changed != n {
		roots, ok := tree.ReplaceNode(doc.RootNodes, id, changed)
		if !ok {
			return nil, apperr.ErrNotFound
		}
		doc.RootNodes = roots
		doc.Modified = true
		if err := s.saveDocLocked(ctx, doc); err != nil {
			return nil, err
		}
		s.notifyTask("moved", id, changed.Title)
	}

	d := detailFromNode(changed, doc.FilePath)
	return &d, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Warnings returns the current project warnings.
func (s *Service) Warnings(_ context.Context) []models.Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Warning(nil), s.project.Warnings...)
}

// Export writes the project in the given format.
func (s *Service) Export(_ context.Context, w io.Writer, format export.Format) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return export.Export(w, s.project, format)
}

// findLocked locates a node and its document by ID. Caller holds mu.
func (s *Service) findLocked(id string) (*models.Document, *models.Node) {
	for _, doc := range s.project.Documents {
		if n := tree.Find(doc.RootNodes, id); n != nil {
			return doc, n
		}
	}
	return nil, nil
}

// renameDependsLocked rewrites depends references across all documents
// when a task title changes. Caller holds mu; touched documents are left
// Modified for the caller's save.
func (s *Service) renameDependsLocked(oldTitle, newTitle string) {
	for _, doc := range s.project.Documents {
		touched := false
		for _, n := range doc.AllNodes() {
			deps := n.DependsList()
			changed := false
			for i, d := range deps {
				if d == oldTitle {
					deps[i] = newTitle
					changed = true
				}
			}
			if !changed {
				continue
			}
			newDepends := joinDepends(deps)
			doc.RootNodes, _ = tree.Update(doc.RootNodes, n.ID, func(c *models.Node) {
				c.Depends = newDepends
			})
			touched = true
		}
		if touched {
			doc.Modified = true
		}
	}
}

func joinDepends(deps []string) string {
	out := ""
	for i, d := range deps {
		if i > 0 {
			out += "; "
		}
		out += d
	}
	return out
}

// saveDocLocked persists every modified document and re-indexes each.
// Caller holds mu. The primary doc is always written; rename propagation
// may have touched others.
func (s *Service) saveDocLocked(_ context.Context, primary *models.Document) error {
	for _, doc := range s.project.Documents {
		if !doc.Modified && doc != primary {
			continue
		}
		if err := writer.WriteDocument(doc, s.backup); err != nil {
			return err
		}
		if err := s.indexDocLocked(doc); err != nil {
			s.logger.Warn("reindex failed",
				slog.String("path", doc.FilePath),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Service) indexDocLocked(doc *models.Document) error {
	rel := doc.FilePath
	if fs, ok := s.store.(*storage.FS); ok {
		if r, err := filepath.Rel(fs.Root(), doc.FilePath); err == nil {
			rel = r
		}
	}
	var rows []index.TaskRow
	for _, n := range doc.AllNodes() {
		rows = append(rows, index.RowFromNode(n, rel))
	}
	return s.db.ReplaceFile(rel, checksum.Sum([]byte(doc.RawContent)), rows)
}

func applyPatch(n *models.Node, patch TaskPatch) error {
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Status != nil {
		st, ok := models.StatusFromString(*patch.Status)
		if !ok {
			return fmt.Errorf("taskservice: invalid status %q", *patch.Status)
		}
		n.Status = st
	}
	if patch.Priority != nil {
		pr, ok := models.PriorityFromString(*patch.Priority)
		if !ok {
			return fmt.Errorf("taskservice: invalid priority %q", *patch.Priority)
		}
		n.Priority = pr
	}
	if patch.Assignee != nil {
		n.Assignee = *patch.Assignee
	}
	if patch.Duration != nil {
		n.Duration = *patch.Duration
	}
	if patch.Depends != nil {
		n.Depends = *patch.Depends
	}
	if patch.Start != nil {
		t, err := parseDate(*patch.Start)
		if err != nil {
			return err
		}
		n.Start = t
	}
	if patch.End != nil {
		t, err := parseDate(*patch.End)
		if err != nil {
			return err
		}
		n.End = t
	}
	if patch.Milestone != nil {
		n.Milestone = *patch.Milestone
	}
	if patch.Progress != nil {
		p := *patch.Progress
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		n.Progress = &p
	}
	if patch.Memo != nil {
		n.Memo = *patch.Memo
	}
	return nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("taskservice: invalid date %q (want YYYY-MM-DD)", s)
	}
	return &t, nil
}

func detailFromNode(n *models.Node, path string) TaskDetail {
	d := TaskDetail{
		ID:        n.ID,
		Title:     n.Title,
		Level:     n.Level,
		Status:    string(n.Status),
		Priority:  string(n.Priority),
		Assignee:  n.Assignee,
		Duration:  n.Duration,
		Depends:   nonNilSlice(n.DependsList()),
		Milestone: n.Milestone,
		Progress:  n.ComputedProgress(),
		Memo:      n.Memo,
		Path:      path,
		Children:  []string{},
	}
	if n.Start != nil {
		d.Start = n.Start.Format(models.DateLayout)
	}
	if n.End != nil {
		d.End = n.End.Format(models.DateLayout)
	}
	if len(n.CustomFields) > 0 {
		d.Custom = make(map[string]string, len(n.CustomFields))
		for _, f := range n.CustomFields {
			d.Custom[f.Key] = f.Value
		}
	}
	for _, c := range n.Children {
		d.Children = append(d.Children, c.ID)
	}
	return d
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// IsNotFound reports whether err is the missing-task sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
