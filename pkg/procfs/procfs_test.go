package procfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcExe(t *testing.T) {
	h := &Handler{MyPID: 1234}
	assert.True(t, h.IsProcExe("/proc/self/exe"))
	assert.True(t, h.IsProcExe("/proc/1234/exe"))
	assert.False(t, h.IsProcExe("/proc/5678/exe"))
	assert.False(t, h.IsProcExe("/proc/self/status"))
}

func TestHandleMaterializesSymlink(t *testing.T) {
	var mkdirCalls []string
	var symlinkCalls [][2]string
	h := &Handler{
		SessionDir: "/S",
		MyPID:      42,
		MkdirAll: func(path string, perm os.FileMode) error {
			mkdirCalls = append(mkdirCalls, path)
			return nil
		},
		Symlink: func(oldname, newname string) error {
			symlinkCalls = append(symlinkCalls, [2]string{oldname, newname})
			return nil
		},
	}

	synthetic, ok := h.Handle("/usr/bin/foo")
	require.True(t, ok)
	assert.Equal(t, "/S/proc/42.3/usr/bin/foo", synthetic)
	require.Len(t, symlinkCalls, 1)
	assert.Equal(t, "/usr/bin/foo", symlinkCalls[0][0])
	assert.Equal(t, synthetic, symlinkCalls[0][1])
}

func TestHandleNoSessionDir(t *testing.T) {
	h := &Handler{}
	_, ok := h.Handle("/bin/sh")
	assert.False(t, ok)
}

func TestParsePID(t *testing.T) {
	pid, ok := ParsePID("/proc/99/exe")
	assert.True(t, ok)
	assert.Equal(t, 99, pid)

	_, ok = ParsePID("/proc/self/exe")
	assert.False(t, ok)

	_, ok = ParsePID("/proc/99/status")
	assert.False(t, ok)
}
