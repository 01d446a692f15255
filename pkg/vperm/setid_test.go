package vperm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rootIDs() VirtualIDs {
	ids, _ := Parse("u0:0:0:0,g0:0:0:0")
	return ids
}

func unprivIDs() VirtualIDs {
	ids, _ := Parse("u1000:1000:1000:1000,g1000:1000:1000:1000")
	return ids
}

func TestSetUIDPrivilegedSetsAll(t *testing.T) {
	ids := rootIDs()
	require.NoError(t, ids.SetUID(1000))
	assert.Equal(t, IDSet{Real: 1000, Effective: 1000, Saved: 1000, FS: 1000}, ids.UID)
}

func TestSetUIDUnprivilegedMustChooseAmongOwnIDs(t *testing.T) {
	ids := unprivIDs()
	err := ids.SetUID(5000)
	assert.ErrorIs(t, err, ErrSetIDPermission)

	ids2 := unprivIDs()
	ids2.UID.Saved = 2000
	require.NoError(t, ids2.SetUID(2000))
	assert.EqualValues(t, 2000, ids2.UID.Effective)
}

func TestSetEUIDUnprivileged(t *testing.T) {
	ids := unprivIDs()
	require.NoError(t, ids.SetEUID(1000))
	err := ids.SetEUID(42)
	assert.ErrorIs(t, err, ErrSetIDPermission)
}

func TestSetResUIDPrivilegedArbitrary(t *testing.T) {
	ids := rootIDs()
	require.NoError(t, ids.SetResUID(1, true, 2, true, 3, true))
	assert.Equal(t, uint32(1), ids.UID.Real)
	assert.Equal(t, uint32(2), ids.UID.Effective)
	assert.Equal(t, uint32(3), ids.UID.Saved)
}

func TestSetResUIDUnprivilegedRejectsOutsideSet(t *testing.T) {
	ids := unprivIDs()
	err := ids.SetResUID(9999, true, 1000, true, 1000, true)
	assert.ErrorIs(t, err, ErrSetIDPermission)
}

func TestSetReUIDLeavesUnsetComponents(t *testing.T) {
	ids := unprivIDs()
	require.NoError(t, ids.SetReUID(0, false, 1000, true))
	assert.EqualValues(t, 1000, ids.UID.Real)
	assert.EqualValues(t, 1000, ids.UID.Effective)
}
