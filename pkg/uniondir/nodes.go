//go:build linux

package uniondir

import (
	"context"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// dirNode is a directory in the union view: every source directory
// that contributes at this level of the tree, in priority order.
type dirNode struct {
	fs.Inode
	sources []string
}

var (
	_ fs.NodeLookuper  = (*dirNode)(nil)
	_ fs.NodeReaddirer = (*dirNode)(nil)
	_ fs.NodeGetattrer = (*dirNode)(nil)
)

func (n *dirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	_, info, ok := resolveWinner(n.sources, ".")
	if ok {
		fillAttr(&out.Attr, info)
		return 0
	}
	out.Mode = syscall.S_IFDIR | 0o555
	return 0
}

func (n *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	host, info, ok := resolveWinner(n.sources, name)
	if !ok {
		return nil, syscall.ENOENT
	}
	fillAttr(&out.Attr, info)

	if info.IsDir() {
		child := &dirNode{sources: dirSources(n.sources, name)}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
	}
	child := &fileNode{path: host}
	mode := uint32(syscall.S_IFREG)
	if info.Mode()&os.ModeSymlink != 0 {
		mode = syscall.S_IFLNK
	}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: mode}), 0
}

func (n *dirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names, err := mergeNames(n.sources)
	if err != nil {
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		_, info, ok := resolveWinner(n.sources, name)
		if !ok {
			continue
		}
		mode := uint32(syscall.S_IFREG)
		switch {
		case info.IsDir():
			mode = syscall.S_IFDIR
		case info.Mode()&os.ModeSymlink != 0:
			mode = syscall.S_IFLNK
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: mode})
	}
	return fs.NewListDirStream(entries), 0
}

// fileNode is a leaf in the union view: exactly one real file, backed
// by the winning source's path, read-only.
type fileNode struct {
	fs.Inode
	path string
}

var (
	_ fs.NodeOpener    = (*fileNode)(nil)
	_ fs.NodeGetattrer = (*fileNode)(nil)
	_ fs.NodeReadlinker = (*fileNode)(nil)
)

func (n *fileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := os.Lstat(n.path)
	if err != nil {
		return fs.ToErrno(err)
	}
	fillAttr(&out.Attr, info)
	return 0
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fd, err := syscall.Open(n.path, syscall.O_RDONLY, 0)
	if err != nil {
		return nil, 0, fs.ToErrno(err)
	}
	return fs.NewLoopbackFile(fd), fuse.FOPEN_KEEP_CACHE, 0
}

func (n *fileNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := os.Readlink(n.path)
	if err != nil {
		return nil, fs.ToErrno(err)
	}
	return []byte(target), 0
}

func fillAttr(attr *fuse.Attr, info os.FileInfo) {
	attr.Mode = uint32(info.Mode().Perm())
	switch {
	case info.IsDir():
		attr.Mode |= syscall.S_IFDIR
	case info.Mode()&os.ModeSymlink != 0:
		attr.Mode |= syscall.S_IFLNK
	default:
		attr.Mode |= syscall.S_IFREG
	}
	attr.Size = uint64(info.Size())
	attr.Mtime = uint64(info.ModTime().Unix())
}
