package index

import (
	"log/slog"
	"path/filepath"

	"github.com/starford/jera/internal/checksum"
	"github.com/starford/jera/internal/models"
)

// Sync replaces the index contents with rows built from the parsed
// project and prunes entries whose documents are gone. Rows come from the
// in-memory trees, never from a second parse, so the node IDs stored here
// are exactly the ones the service hands out.
func Sync(db *DB, project *models.Project, logger *slog.Logger) error {
	indexed, err := db.AllPaths()
	if err != nil {
		return err
	}

	for _, doc := range project.Documents {
		rel := doc.FilePath
		if r, relErr := filepath.Rel(project.Dir, doc.FilePath); relErr == nil {
			rel = r
		}

		var rows []TaskRow
		for _, n := range doc.AllNodes() {
			rows = append(rows, RowFromNode(n, rel))
		}
		if err := db.ReplaceFile(rel, checksum.Sum([]byte(doc.RawContent)), rows); err != nil {
			logger.Warn("sync: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		delete(indexed, rel)
		logger.Debug("sync: indexed", slog.String("path", rel))
	}

	// Remove stale entries.
	for p := range indexed {
		if err := db.DeleteFile(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("path", p))
		}
	}

	return nil
}
