// Package chroot implements the per-process virtual chroot simulation
// of §4.12: a prefix, when active, prepended to absolute virtual paths
// before mapping, validated against the mapper itself rather than a
// real chroot(2) call.
package chroot

import (
	"errors"
	"path"
	"strings"

	"github.com/sb2root/sbcore/internal/errx"
)

var (
	// ErrNotExist is returned when the chroot target does not resolve
	// to anything through the mapper.
	ErrNotExist = errors.New("chroot: target does not exist")
	// ErrNotDir is returned when the chroot target resolves to a
	// non-directory.
	ErrNotDir = errors.New("chroot: target is not a directory")
)

// StatFunc validates a would-be chroot target the way "a standard
// stat-through-the-mapper" does: ok is false if the path doesn't
// exist, isDir reports whether it is a directory.
type StatFunc func(virtualPath string) (ok, isDir bool, err error)

// Simulator holds the process-global virtual-chroot prefix.
type Simulator struct {
	prefix string // "" means inactive
	stat   StatFunc
}

// New builds a Simulator. initial is the chroot path inherited via
// __SB2_CHROOT_PATH/SBOX_CHROOT_PATH at spawn, already validated by a
// parent process; it is not re-validated here since doing so would
// require the mapper before the mapper itself is constructed.
func New(stat StatFunc, initial string) *Simulator {
	return &Simulator{prefix: initial, stat: stat}
}

// Active reports whether a virtual chroot is currently in effect.
func (s *Simulator) Active() bool { return s.prefix != "" }

// Path returns the active chroot prefix, or "" if inactive.
func (s *Simulator) Path() string { return s.prefix }

// Chroot implements chroot(path): "/" deactivates the simulation;
// any other path is validated to exist and be a directory, then
// stored as the already-absolutized virtual path.
func (s *Simulator) Chroot(virtualPath string) error {
	if virtualPath == "/" {
		s.prefix = ""
		return nil
	}
	abs := virtualPath
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	abs = path.Clean(abs)

	ok, isDir, err := s.stat(s.Apply(abs))
	if err != nil {
		return errx.Wrap(ErrNotExist, err)
	}
	if !ok {
		return ErrNotExist
	}
	if !isDir {
		return ErrNotDir
	}
	s.prefix = abs
	return nil
}

// Apply prepends the active chroot prefix to an absolute virtual path
// before mapping, per §4.12: map("/x") under chroot C must equal
// map("C/x") with chroot inactive. A relative path is untouched.
func (s *Simulator) Apply(virtualPath string) string {
	if s.prefix == "" || !strings.HasPrefix(virtualPath, "/") {
		return virtualPath
	}
	if virtualPath == "/" {
		return s.prefix
	}
	return path.Join(s.prefix, virtualPath)
}
