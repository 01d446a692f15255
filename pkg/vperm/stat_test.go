package vperm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sb2root/sbcore/pkg/ruletree"
)

func TestVirtualizeUIDGID(t *testing.T) {
	st := Stat{Mode: 0o100644, UID: 0, GID: 0}
	rec := ruletree.InodeStat{Active: ruletree.FieldUID | ruletree.FieldGID, UID: 1000, GID: 1000}

	out := Virtualize(st, rec)
	assert.EqualValues(t, 1000, out.UID)
	assert.EqualValues(t, 1000, out.GID)
	assert.Equal(t, uint32(0o100644), out.Mode, "file type preserved")
}

func TestVirtualizeModePreservesFileType(t *testing.T) {
	st := Stat{Mode: 0o040755} // directory
	rec := ruletree.InodeStat{Active: ruletree.FieldMode, Mode: 0o700}

	out := Virtualize(st, rec)
	assert.Equal(t, uint32(0o040700), out.Mode)
}

func TestVirtualizeDeviceOverridesTypeAndRdev(t *testing.T) {
	st := Stat{Mode: 0o100644}
	rec := ruletree.InodeStat{
		Active:     ruletree.FieldDevice | ruletree.FieldRdev,
		DeviceMode: 0o020000, // S_IFCHR
		Rdev:       0x0103,   // e.g. major 1 minor 3
	}

	out := Virtualize(st, rec)
	assert.Equal(t, uint32(0o020000), out.Mode&modeTypeMask)
	assert.Equal(t, uint64(0x0103), out.Rdev)
}

func TestVirtualizeSuidSgidIndependentOfMode(t *testing.T) {
	st := Stat{Mode: 0o100644}
	rec := ruletree.InodeStat{
		Active: ruletree.FieldMode | ruletree.FieldSuid,
		Mode:   0o755,
	}
	out := Virtualize(st, rec)
	assert.Equal(t, uint32(0o100755), out.Mode)
}
