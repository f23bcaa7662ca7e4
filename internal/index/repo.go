package index

import (
	"fmt"
	"time"

	"github.com/starford/jera/internal/models"
)

// TaskRow represents a row in the tasks table.
type TaskRow struct {
	ID        string
	Path      string
	Title     string
	Level     int
	Status    string
	Priority  string
	Assignee  string
	Start     string // YYYY-MM-DD or empty
	End       string
	Milestone bool
	Progress  *int
	Memo      string
	Depends   []string
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string
	Path    string
	Title   string
	Snippet string
}

// RowFromNode flattens a parsed node into its index row.
func RowFromNode(n *models.Node, path string) TaskRow {
	row := TaskRow{
		ID:        n.ID,
		Path:      path,
		Title:     n.Title,
		Level:     n.Level,
		Status:    string(n.Status),
		Priority:  string(n.Priority),
		Assignee:  n.Assignee,
		Milestone: n.Milestone,
		Progress:  n.Progress,
		Memo:      n.Memo,
		Depends:   n.DependsList(),
	}
	if n.Start != nil {
		row.Start = n.Start.Format(models.DateLayout)
	}
	if n.End != nil {
		row.End = n.End.Format(models.DateLayout)
	}
	return row
}

// ReplaceFile swaps the indexed contents of one document in a single
// transaction: all rows for the path are dropped and re-inserted, and the
// file checksum is recorded.
func (db *DB) ReplaceFile(path, checksum string, rows []TaskRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, _ = tx.Exec(`DELETE FROM deps WHERE source IN (SELECT title FROM tasks WHERE path = ?)`, path)
	_, _ = tx.Exec(`DELETE FROM tasks WHERE path = ?`, path)
	ftsDeleteFile(tx, path)

	taskStmt, err := tx.Prepare(`
		INSERT INTO tasks (id, path, title, level, status, priority, assignee,
		                   start_date, end_date, milestone, progress, memo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare task insert: %w", err)
	}
	defer taskStmt.Close()

	depStmt, err := tx.Prepare(`INSERT OR IGNORE INTO deps (source, target) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare dep insert: %w", err)
	}
	defer depStmt.Close()

	for _, r := range rows {
		if _, err := taskStmt.Exec(r.ID, r.Path, r.Title, r.Level, r.Status, r.Priority,
			r.Assignee, r.Start, r.End, r.Milestone, r.Progress, r.Memo); err != nil {
			return fmt.Errorf("index: insert task: %w", err)
		}
		if err := ftsUpsert(tx, r.ID, r.Path, r.Title, r.Memo, r.Assignee); err != nil {
			return err
		}
		for _, target := range r.Depends {
			if _, err := depStmt.Exec(r.Title, target); err != nil {
				return fmt.Errorf("index: insert dep: %w", err)
			}
		}
	}

	_, err = tx.Exec(`
		INSERT INTO files (path, checksum, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, path, checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}

	return tx.Commit()
}

// DeleteFile removes a document and all of its tasks from the index.
func (db *DB) DeleteFile(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM deps WHERE source IN (SELECT title FROM tasks WHERE path = ?)`, path)
	ftsDeleteFile(tx, path)
	_, _ = tx.Exec(`DELETE FROM tasks WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM files WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string
// if not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM files WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// AllPaths returns every indexed document path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// GetTask returns one task row by node ID, or nil when absent.
func (db *DB) GetTask(id string) (*TaskRow, error) {
	var r TaskRow
	err := db.conn.QueryRow(`
		SELECT id, path, title, level, status, priority, assignee,
		       start_date, end_date, milestone, progress, memo
		FROM tasks WHERE id = ?
	`, id).Scan(&r.ID, &r.Path, &r.Title, &r.Level, &r.Status, &r.Priority,
		&r.Assignee, &r.Start, &r.End, &r.Milestone, &r.Progress, &r.Memo)
	if err != nil {
		return nil, nil //nolint:nilnil // absent task is not an error
	}
	return &r, nil
}

// ListTasks returns a page of task rows, optionally filtered by status.
func (db *DB) ListTasks(limit, offset int, status string) ([]TaskRow, int, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []any{}
	if status != "" {
		where = "WHERE status = ?"
		args = append(args, status)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM tasks `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count tasks: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, path, title, level, status, priority, assignee,
		       start_date, end_date, milestone, progress, memo
		FROM tasks %s
		ORDER BY path, level, title
		LIMIT ? OFFSET ?
	`, where)
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var r TaskRow
		if err := rows.Scan(&r.ID, &r.Path, &r.Title, &r.Level, &r.Status, &r.Priority,
			&r.Assignee, &r.Start, &r.End, &r.Milestone, &r.Progress, &r.Memo); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Dependents returns the titles of tasks that depend on target.
func (db *DB) Dependents(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM deps WHERE target = ?`, target)
	if err != nil {
		return nil, fmt.Errorf("index: dependents: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
