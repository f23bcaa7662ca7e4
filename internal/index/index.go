package index

// TaskIndex defines the interface for task indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type TaskIndex interface {
	ReplaceFile(path, checksum string, rows []TaskRow) error
	DeleteFile(path string) error
	GetChecksum(path string) (string, error)
	GetTask(id string) (*TaskRow, error)
	ListTasks(limit, offset int, status string) ([]TaskRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Dependents(target string) ([]string, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies TaskIndex at compile time.
var _ TaskIndex = (*DB)(nil)
