// Package procfs implements the /proc/self/exe synthesis of §4.10: for
// reads of /proc/self/exe (or /proc/<mypid>/exe) it materializes, under
// <session_dir>/proc/X.<depth>/<logical-path>, a symlink to the
// original unmapped executable name, and returns that synthetic path
// so a subsequent readlink(2) on it yields the expected string.
package procfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Handler synthesizes the staging symlink tree. It satisfies
// rules.ProcfsHandler.
type Handler struct {
	SessionDir string
	MyPID      int

	// Symlink creates a symlink the way os.Symlink does; overridable
	// for tests.
	Symlink func(oldname, newname string) error
	// MkdirAll creates the staging directory; overridable for tests.
	MkdirAll func(path string, perm os.FileMode) error
}

// New builds a Handler using the real filesystem.
func New(sessionDir string, pid int) *Handler {
	return &Handler{
		SessionDir: sessionDir,
		MyPID:      pid,
		Symlink:    os.Symlink,
		MkdirAll:   os.MkdirAll,
	}
}

// IsProcExe reports whether virtualPath is /proc/self/exe or
// /proc/<mypid>/exe, the two forms this handler intercepts.
func (h *Handler) IsProcExe(virtualPath string) bool {
	self := "/proc/self/exe"
	mine := fmt.Sprintf("/proc/%d/exe", h.MyPID)
	return virtualPath == self || virtualPath == mine
}

// Handle implements the PROCFS action (§4.3): given the logical
// (original, unmapped) executable path, it materializes a symlink to
// it under a depth-keyed staging directory and returns that synthetic
// path. depthKeyFor derives the "X.<depth>" directory name from
// logicalPath's component count, so readlink on the synthetic path
// reproduces a string of the expected length/shape.
func (h *Handler) Handle(logicalPath string) (string, bool) {
	if h.SessionDir == "" {
		return "", false
	}
	depth := strings.Count(strings.Trim(logicalPath, "/"), "/") + 1
	dir := filepath.Join(h.SessionDir, "proc", fmt.Sprintf("%d.%d", h.MyPID, depth), filepath.Dir(strings.TrimPrefix(logicalPath, "/")))
	if err := h.MkdirAll(dir, 0o755); err != nil {
		return "", false
	}
	synthetic := filepath.Join(dir, filepath.Base(logicalPath))
	_ = h.Symlink(logicalPath, synthetic) // EEXIST from a prior call is fine
	return synthetic, true
}

// ParsePID extracts the numeric pid from a /proc/<pid>/exe virtual
// path, used by callers deciding whether a given path is "my own"
// /proc/<pid>/exe before calling IsProcExe.
func ParsePID(virtualPath string) (int, bool) {
	parts := strings.Split(strings.Trim(virtualPath, "/"), "/")
	if len(parts) != 3 || parts[0] != "proc" || parts[2] != "exe" {
		return 0, false
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return pid, true
}
