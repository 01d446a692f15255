package ruletree

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/sb2root/sbcore/internal/errx"
)

// MappedFile is a RuleTree arena backed by a read-only mmap of an
// on-disk file, so every session thread shares one physical copy of
// the rule database instead of re-parsing or re-copying it.
type MappedFile struct {
	*Reader
	data []byte
	f    *os.File
}

// Open mmaps path read-only and wraps it in a Reader. The mapping is
// released by Close.
func Open(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errx.Wrap(ErrOpenFile, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errx.Wrap(ErrOpenFile, err)
	}
	size := fi.Size()
	if size < headerSize {
		f.Close()
		return nil, ErrTruncated
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errx.Wrap(ErrMmapFailed, err)
	}

	reader, err := NewReader(data)
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, err
	}

	return &MappedFile{Reader: reader, data: data, f: f}, nil
}

// Close unmaps the arena and closes the backing file descriptor.
func (m *MappedFile) Close() error {
	err := unix.Munmap(m.data)
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteTo persists a Builder's finished arena to path, creating or
// truncating it, so a later Open can mmap it back in.
func WriteTo(path string, b *Builder) error {
	return os.WriteFile(path, b.Bytes(), 0o644)
}
