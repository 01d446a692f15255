// Package fdpath implements the process-local fd → virtual-path table
// of §4.11: populated by the open/openat/creat/fopen postprocessors
// and by dup/dup2/dup3/fcntl(F_DUPFD), cleared by close, and consulted
// by the AT-family gates to synthesize an absolute virtual path from
// (dirfd, relpath) when dirfd != AT_FDCWD.
package fdpath

import "sync"

// AtFDCWD mirrors the libc/kernel sentinel meaning "use the current
// working directory", the one dirfd value the *at() gates never need
// to look up.
const AtFDCWD = -100

// singleThreaded, when true, skips the mutex: §5 "Shared resources"
// says the fdpath DB's mutex is "omitted if the process is
// single-threaded (detected once by looking up pthread symbols
// dynamically)". Go always runs a multi-goroutine runtime regardless
// of how many OS threads the traced program itself spawns, so this
// implementation always takes the lock; the field only documents the
// original design's optimization for callers porting tuning
// expectations from the C implementation.
const singleThreaded = false

// Table is the per-process fd → virtual-path map.
type Table struct {
	mu    sync.Mutex
	paths map[int]string
}

// New builds an empty Table.
func New() *Table {
	return &Table{paths: make(map[int]string)}
}

// Set records the absolute virtual path used to open fd.
func (t *Table) Set(fd int, virtualPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths[fd] = virtualPath
}

// Dup copies the path entry for oldfd to newfd, as dup/dup2/dup3/
// fcntl(F_DUPFD) require. A missing oldfd entry clears newfd's entry
// too, so a stale path never lingers on a reused descriptor.
func (t *Table) Dup(oldfd, newfd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.paths[oldfd]; ok {
		t.paths[newfd] = p
	} else {
		delete(t.paths, newfd)
	}
}

// Close removes fd's entry.
func (t *Table) Close(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.paths, fd)
}

// Lookup returns the recorded virtual path for fd, if any.
func (t *Table) Lookup(fd int) (virtualPath string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.paths[fd]
	return p, ok
}

// Resolve synthesizes the absolute virtual path an *at()-family call
// should use from (dirfd, relPath): AT_FDCWD or an absolute relPath
// pass through untouched; any other dirfd is looked up and joined.
// warn is true when dirfd has no table entry, the case the spec says
// should "proceed with the relative path and a warning".
func (t *Table) Resolve(dirfd int, relPath string) (virtualPath string, warn bool) {
	if len(relPath) > 0 && relPath[0] == '/' {
		return relPath, false
	}
	if dirfd == AtFDCWD {
		return relPath, false
	}
	dir, ok := t.Lookup(dirfd)
	if !ok {
		return relPath, true
	}
	if relPath == "" {
		return dir, false
	}
	return dir + "/" + relPath, false
}
