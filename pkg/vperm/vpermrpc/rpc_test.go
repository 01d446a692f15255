package vpermrpc

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb2root/sbcore/pkg/ruletree"
	"github.com/sb2root/sbcore/pkg/vperm"
)

func startServer(t *testing.T, store vperm.Store) string {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "vperm.sock")
	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)

	srv := &Server{Store: store}
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })
	return sockPath
}

func TestClientSetThenGetRoundTrip(t *testing.T) {
	store := vperm.NewMemoryStore()
	addr := startServer(t, store)
	client := NewClient(addr)

	require.NoError(t, client.Set(ruletree.InodeStat{
		Dev: 1, Ino: 5, Active: ruletree.FieldUID, UID: 1000,
	}))

	rec, err := client.Get(vperm.InodeKey{Dev: 1, Ino: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 1000, rec.UID)
}

func TestClientGetMissingReturnsErrNoRecord(t *testing.T) {
	store := vperm.NewMemoryStore()
	addr := startServer(t, store)
	client := NewClient(addr)

	_, err := client.Get(vperm.InodeKey{Dev: 9, Ino: 9})
	assert.ErrorIs(t, err, vperm.ErrNoRecord)
}

func TestClientReleaseClearsField(t *testing.T) {
	store := vperm.NewMemoryStore()
	require.NoError(t, store.Set(ruletree.InodeStat{Dev: 1, Ino: 5, Active: ruletree.FieldUID, UID: 1000}))
	addr := startServer(t, store)
	client := NewClient(addr)

	require.NoError(t, client.Release(vperm.InodeKey{Dev: 1, Ino: 5}, ruletree.FieldUID))
	_, err := store.Get(vperm.InodeKey{Dev: 1, Ino: 5})
	assert.ErrorIs(t, err, vperm.ErrNoRecord)
}

func TestClientClearRemovesRecord(t *testing.T) {
	store := vperm.NewMemoryStore()
	require.NoError(t, store.Set(ruletree.InodeStat{Dev: 1, Ino: 5, Active: ruletree.FieldMode, Mode: 0o755}))
	addr := startServer(t, store)
	client := NewClient(addr)

	require.NoError(t, client.Clear(vperm.InodeKey{Dev: 1, Ino: 5}))
	_, err := store.Get(vperm.InodeKey{Dev: 1, Ino: 5})
	assert.ErrorIs(t, err, vperm.ErrNoRecord)
}
