package fdpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLookupClose(t *testing.T) {
	tbl := New()
	tbl.Set(5, "/tools/bin/ls")

	p, ok := tbl.Lookup(5)
	assert.True(t, ok)
	assert.Equal(t, "/tools/bin/ls", p)

	tbl.Close(5)
	_, ok = tbl.Lookup(5)
	assert.False(t, ok)
}

func TestDupCopiesEntry(t *testing.T) {
	tbl := New()
	tbl.Set(3, "/etc/passwd")
	tbl.Dup(3, 9)

	p, ok := tbl.Lookup(9)
	assert.True(t, ok)
	assert.Equal(t, "/etc/passwd", p)
}

func TestDupWithNoSourceClearsTarget(t *testing.T) {
	tbl := New()
	tbl.Set(9, "/stale")
	tbl.Dup(3, 9)

	_, ok := tbl.Lookup(9)
	assert.False(t, ok)
}

func TestResolveAbsoluteAndAtFDCWD(t *testing.T) {
	tbl := New()
	p, warn := tbl.Resolve(AtFDCWD, "rel/path")
	assert.Equal(t, "rel/path", p)
	assert.False(t, warn)

	p, warn = tbl.Resolve(7, "/abs/path")
	assert.Equal(t, "/abs/path", p)
	assert.False(t, warn)
}

func TestResolveDirfdJoins(t *testing.T) {
	tbl := New()
	tbl.Set(4, "/tools/etc")
	p, warn := tbl.Resolve(4, "resolv.conf")
	assert.Equal(t, "/tools/etc/resolv.conf", p)
	assert.False(t, warn)
}

func TestResolveUnknownDirfdWarns(t *testing.T) {
	tbl := New()
	p, warn := tbl.Resolve(42, "x")
	assert.Equal(t, "x", p)
	assert.True(t, warn)
}
