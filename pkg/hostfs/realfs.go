package hostfs

import (
	"os"
	"path/filepath"
)

// RealFSProvider is a Provider backed by an actual directory tree on
// disk, confined to root the way the teacher's vfs.RealFSProvider
// roots guest mounts at a host directory: every path a caller passes
// is joined under root and cleaned, so "../../etc/shadow" can never
// escape it.
type RealFSProvider struct {
	root     string
	readonly bool
}

// NewRealFSProvider returns a Provider rooted at root.
func NewRealFSProvider(root string) *RealFSProvider {
	return &RealFSProvider{root: root}
}

// NewReadonlyRealFSProvider is NewRealFSProvider with Readonly true,
// mirroring vfs.NewReadonlyProvider's read-only wrapper but as a plain
// constructor flag instead of a decorator, since RealFSProvider has no
// other state a wrapper would need to intercept.
func NewReadonlyRealFSProvider(root string) *RealFSProvider {
	return &RealFSProvider{root: root, readonly: true}
}

func (p *RealFSProvider) Readonly() bool { return p.readonly }

// resolve cleans path as if rooted at "/" and joins it under root, so a
// leading ".." run is clamped at root instead of escaping it — the same
// confinement guarantee a chroot gives a traced process, applied here
// at the provider boundary instead.
func (p *RealFSProvider) resolve(path string) string {
	cleaned := filepath.Clean("/" + path)
	return filepath.Join(p.root, cleaned)
}

func (p *RealFSProvider) Stat(path string) (FileInfo, error) {
	fi, err := os.Lstat(p.resolve(path))
	if err != nil {
		return FileInfo{}, err
	}
	return NewFileInfo(fi.Name(), fi.Size(), fi.Mode(), fi.ModTime(), fi.IsDir()), nil
}

func (p *RealFSProvider) ReadDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(p.resolve(path))
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		fi := NewFileInfo(info.Name(), info.Size(), info.Mode(), info.ModTime(), info.IsDir())
		out = append(out, NewDirEntry(e.Name(), e.IsDir(), info.Mode(), fi))
	}
	return out, nil
}

func (p *RealFSProvider) Open(path string, flags int, mode os.FileMode) (Handle, error) {
	f, err := os.OpenFile(p.resolve(path), flags, mode)
	if err != nil {
		return nil, err
	}
	return realFSHandle{f}, nil
}

func (p *RealFSProvider) Create(path string, mode os.FileMode) (Handle, error) {
	return p.Open(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
}

func (p *RealFSProvider) Mkdir(path string, mode os.FileMode) error {
	return os.Mkdir(p.resolve(path), mode)
}

func (p *RealFSProvider) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(p.resolve(path), mode)
}

func (p *RealFSProvider) Remove(path string) error {
	return os.Remove(p.resolve(path))
}

func (p *RealFSProvider) RemoveAll(path string) error {
	return os.RemoveAll(p.resolve(path))
}

func (p *RealFSProvider) Rename(oldPath, newPath string) error {
	return os.Rename(p.resolve(oldPath), p.resolve(newPath))
}

func (p *RealFSProvider) Symlink(target, link string) error {
	// target is stored verbatim: an absolute symlink target is a
	// virtual-root path, not a host path, and must not be rerooted.
	return os.Symlink(target, p.resolve(link))
}

func (p *RealFSProvider) Readlink(path string) (string, error) {
	target, err := os.Readlink(p.resolve(path))
	if err != nil {
		return "", err
	}
	return target, nil
}

type realFSHandle struct{ f *os.File }

func (h realFSHandle) Read(p []byte) (int, error)                { return h.f.Read(p) }
func (h realFSHandle) ReadAt(p []byte, off int64) (int, error)   { return h.f.ReadAt(p, off) }
func (h realFSHandle) Write(p []byte) (int, error)               { return h.f.Write(p) }
func (h realFSHandle) WriteAt(p []byte, off int64) (int, error)  { return h.f.WriteAt(p, off) }
func (h realFSHandle) Seek(off int64, whence int) (int64, error) { return h.f.Seek(off, whence) }
func (h realFSHandle) Close() error                              { return h.f.Close() }
func (h realFSHandle) Sync() error                               { return h.f.Sync() }
func (h realFSHandle) Truncate(size int64) error                 { return h.f.Truncate(size) }

func (h realFSHandle) Stat() (FileInfo, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return FileInfo{}, err
	}
	return NewFileInfo(fi.Name(), fi.Size(), fi.Mode(), fi.ModTime(), fi.IsDir()), nil
}
