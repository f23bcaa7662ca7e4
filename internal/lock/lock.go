// Package lock implements a PID-based advisory lock so only one process
// edits a project directory at a time.
//
// The lock file lives at <project>/.jera/.lock and holds "pid|unix-ts".
// A lock is stale when its owner process is gone or the file is older
// than MaxAge; stale locks are silently reclaimed.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/starford/jera/internal/apperr"
)

// MaxAge is the age past which a lock is considered abandoned regardless
// of the recorded PID.
const MaxAge = time.Hour

const lockDir = ".jera"

// Lock guards one project directory.
type Lock struct {
	path string // lock file path
	held bool
}

// New returns a lock for the given project directory. Nothing is acquired
// yet.
func New(projectDir string) *Lock {
	return &Lock{path: filepath.Join(projectDir, lockDir, ".lock")}
}

// Acquire takes the lock. Returns apperr.ErrLocked if a live process
// already holds it.
func (l *Lock) Acquire() error {
	if pid, ok := l.currentOwner(); ok {
		return fmt.Errorf("%w (pid %d)", apperr.ErrLocked, pid)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("lock: mkdir: %w", err)
	}
	content := fmt.Sprintf("%d|%d", os.Getpid(), time.Now().Unix())
	if err := os.WriteFile(l.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("lock: write: %w", err)
	}
	l.held = true
	return nil
}

// Release removes the lock file if this process holds it. Releasing an
// unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lock: remove: %w", err)
	}
	return nil
}

// IsLocked reports whether a live foreign process holds the lock.
func (l *Lock) IsLocked() bool {
	_, ok := l.currentOwner()
	return ok
}

// currentOwner reads the lock file and returns the holder PID if the lock
// is live: the PID belongs to a running process other than ours and the
// file is younger than MaxAge.
func (l *Lock) currentOwner() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}

	parts := strings.SplitN(strings.TrimSpace(string(data)), "|", 2)
	if len(parts) != 2 {
		return 0, false // malformed, treat as stale
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		return 0, false
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}

	if pid == os.Getpid() {
		return 0, false
	}
	if time.Since(time.Unix(ts, 0)) > MaxAge {
		return 0, false
	}
	if !processAlive(pid) {
		return 0, false
	}
	return pid, true
}

// processAlive probes pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return err == syscall.EPERM
}
