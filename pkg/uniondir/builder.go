//go:build linux

package uniondir

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/sb2root/sbcore/pkg/rules"
)

type mount struct {
	path   string
	server *fuse.Server
}

// Builder implements rules.UnionDirBuilder (the UNION_DIR action):
// each distinct source set is mounted exactly once per session and
// reused on subsequent Materialize calls for the same sources, since
// a rule's UNION_DIR list is fixed at session-compile time and
// re-mounting it per access would be wasted FUSE setup.
type Builder struct {
	// MountRoot is the parent directory fresh mountpoints are created
	// under, normally the session directory (§3's session-scoped
	// lifetime applies here too: the mount does not outlive the
	// session).
	MountRoot string

	mu     sync.Mutex
	mounts map[string]mount // sources key -> mount
}

// NewBuilder returns a Builder creating mountpoints under mountRoot.
func NewBuilder(mountRoot string) *Builder {
	return &Builder{MountRoot: mountRoot, mounts: make(map[string]mount)}
}

var _ rules.UnionDirBuilder = (*Builder)(nil)

// Materialize mounts (or returns the already-mounted) union of
// sources and returns its host mountpoint.
func (b *Builder) Materialize(sources []string) (string, error) {
	key := strings.Join(sources, "\x00")

	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.mounts[key]; ok {
		return m.path, nil
	}

	mountpoint, err := os.MkdirTemp(b.MountRoot, "uniondir-")
	if err != nil {
		return "", fmt.Errorf("uniondir: create mountpoint: %w", err)
	}

	root := &dirNode{sources: sources}
	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:   "sbcore-uniondir",
			Name:     "uniondir",
			ReadOnly: true,
		},
	})
	if err != nil {
		os.Remove(mountpoint)
		return "", fmt.Errorf("uniondir: mount %v: %w", sources, err)
	}
	go server.Wait()

	b.mounts[key] = mount{path: mountpoint, server: server}
	return mountpoint, nil
}

// Close unmounts every mountpoint this Builder created, for a clean
// session teardown.
func (b *Builder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for key, m := range b.mounts {
		if err := m.server.Unmount(); err != nil && firstErr == nil {
			firstErr = err
		}
		os.Remove(m.path)
		delete(b.mounts, key)
	}
	return firstErr
}
