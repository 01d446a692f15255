package chroot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeStat(dirs map[string]bool) StatFunc {
	return func(p string) (bool, bool, error) {
		isDir, ok := dirs[p]
		return ok, isDir, nil
	}
}

func TestChrootActivateAndApply(t *testing.T) {
	sim := New(fakeStat(map[string]bool{"/opt/root": true}), "")
	assert.False(t, sim.Active())

	require.NoError(t, sim.Chroot("/opt/root"))
	assert.True(t, sim.Active())
	assert.Equal(t, "/opt/root/x", sim.Apply("/x"))
	assert.Equal(t, "/opt/root", sim.Apply("/"))
}

func TestChrootRootDeactivates(t *testing.T) {
	sim := New(fakeStat(map[string]bool{"/opt/root": true}), "/opt/root")
	require.NoError(t, sim.Chroot("/"))
	assert.False(t, sim.Active())
	assert.Equal(t, "/x", sim.Apply("/x"))
}

func TestChrootRejectsNonexistent(t *testing.T) {
	sim := New(fakeStat(map[string]bool{}), "")
	err := sim.Chroot("/nope")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestChrootRejectsNonDirectory(t *testing.T) {
	sim := New(fakeStat(map[string]bool{"/etc/passwd": false}), "")
	err := sim.Chroot("/etc/passwd")
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestChrootCompositionProperty(t *testing.T) {
	// §8 property 8: map("/x") with chroot C active == map("C/x") inactive.
	sim := New(fakeStat(map[string]bool{"/C": true}), "")
	require.NoError(t, sim.Chroot("/C"))
	withChroot := sim.Apply("/x")

	inactive := New(fakeStat(nil), "")
	withoutChroot := inactive.Apply("/C/x")

	assert.Equal(t, withoutChroot, withChroot)
}
