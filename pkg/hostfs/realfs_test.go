package hostfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealFSProvider_Chmod(t *testing.T) {
	dir := t.TempDir()
	p := NewRealFSProvider(dir)

	f, err := os.Create(filepath.Join(dir, "file.txt"))
	require.NoError(t, err)
	f.Close()

	require.NoError(t, p.Chmod("/file.txt", 0o700))

	info, err := p.Stat("/file.txt")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestRealFSProvider_Chmod_NonExistent(t *testing.T) {
	dir := t.TempDir()
	p := NewRealFSProvider(dir)

	err := p.Chmod("/nope", 0o644)
	require.Error(t, err)
}

func TestRealFSProvider_ConfinesTraversalUnderRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("x"), 0o644))

	p := NewRealFSProvider(dir)

	_, err := p.Stat("/../../../../etc/passwd")
	assert.Error(t, err)

	info, err := p.Stat("/secret.txt")
	require.NoError(t, err)
	assert.Equal(t, "secret.txt", info.Name())
}

func TestRealFSProvider_ReadDirListsEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	p := NewRealFSProvider(dir)
	entries, err := p.ReadDir("/")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = e.IsDir()
	}
	assert.False(t, names["a.txt"])
	assert.True(t, names["sub"])
}

func TestRealFSProvider_SymlinkAndReadlink(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target.txt"), []byte("x"), 0o644))

	p := NewRealFSProvider(dir)
	require.NoError(t, p.Symlink("/target.txt", "/link.txt"))

	target, err := p.Readlink("/link.txt")
	require.NoError(t, err)
	assert.Equal(t, "/target.txt", target)
}

func TestRealFSProvider_CreateWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := NewRealFSProvider(dir)

	h, err := p.Create("/new.txt", 0o644)
	require.NoError(t, err)
	_, err = h.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	h, err = p.Open("/new.txt", os.O_RDONLY, 0)
	require.NoError(t, err)
	defer h.Close()
	buf := make([]byte, 5)
	n, err := h.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestReadonlyRealFSProvider_ReportsReadonly(t *testing.T) {
	p := NewReadonlyRealFSProvider(t.TempDir())
	assert.True(t, p.Readonly())
	assert.False(t, NewRealFSProvider(t.TempDir()).Readonly())
}
