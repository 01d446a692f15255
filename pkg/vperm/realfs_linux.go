//go:build linux

package vperm

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// OSRealFS is the production RealFS, backed directly by
// golang.org/x/sys/unix the way pkg/ruletree's mmap arena and the
// exec inspector's ELF/xattr reads already depend on it for raw Linux
// syscalls.
type OSRealFS struct{}

// NewOSRealFS returns the real-filesystem RealFS implementation.
func NewOSRealFS() OSRealFS { return OSRealFS{} }

func wrapEPERM(err error) error {
	if errors.Is(err, unix.EPERM) {
		return ErrPermission
	}
	return err
}

func (OSRealFS) Stat(path string) (HostStat, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return HostStat{}, err
	}
	return HostStat{
		Dev:   uint64(st.Dev),
		Ino:   st.Ino,
		Nlink: uint32(st.Nlink),
		Mode:  st.Mode,
		UID:   st.Uid,
		GID:   st.Gid,
	}, nil
}

func (OSRealFS) Chown(path string, uid, gid int) error {
	return wrapEPERM(unix.Lchown(path, uid, gid))
}

func (OSRealFS) Chmod(path string, mode uint32) error {
	return wrapEPERM(unix.Chmod(path, mode))
}

func (OSRealFS) Mknod(path string, mode uint32, dev uint64) error {
	return wrapEPERM(unix.Mknod(path, mode, int(dev)))
}

func (OSRealFS) Mkdir(path string, mode uint32) error {
	return wrapEPERM(unix.Mkdir(path, mode))
}

func (OSRealFS) Create(path string, mode uint32) error {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY, mode)
	if err != nil {
		return wrapEPERM(err)
	}
	unix.Close(fd)
	return os.Chmod(path, os.FileMode(mode))
}
