package vperm

import (
	"errors"
	"sync"

	"github.com/sb2root/sbcore/pkg/ruletree"
)

// InodeKey identifies an InodeStat record.
type InodeKey struct {
	Dev uint64
	Ino uint64
}

// ErrNoRecord is returned by Store.Get when no InodeStat exists for a
// key.
var ErrNoRecord = errors.New("vperm: no InodeStat record for inode")

// Store is the abstraction over the session daemon's InodeStat table
// (§5: "mutated through an out-of-process RPC"). Implementations must
// serialize concurrent mutations; vpermrpc.Client implements this
// against a real daemon, MemoryStore is a direct in-process stand-in
// for tests and single-process sessions.
type Store interface {
	Get(key InodeKey) (ruletree.InodeStat, error)
	Set(rec ruletree.InodeStat) error
	// Release clears fields from the record at key, deleting the
	// record entirely if no field remains active.
	Release(key InodeKey, fields ruletree.InodeField) error
	// Clear removes the record at key entirely (an unlinked/renamed-
	// over inode's virtual state does not outlive the inode).
	Clear(key InodeKey) error
}

// MemoryStore is a mutex-guarded in-process Store, the direct
// equivalent of a session daemon for a single-process test or a
// session with exactly one traced process.
type MemoryStore struct {
	mu      sync.Mutex
	records map[InodeKey]ruletree.InodeStat
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[InodeKey]ruletree.InodeStat)}
}

func (s *MemoryStore) Get(key InodeKey) (ruletree.InodeStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return ruletree.InodeStat{}, ErrNoRecord
	}
	return rec, nil
}

func (s *MemoryStore) Set(rec ruletree.InodeStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := InodeKey{Dev: rec.Dev, Ino: rec.Ino}
	existing, ok := s.records[key]
	if ok {
		existing.Active |= rec.Active
		if rec.Active&ruletree.FieldUID != 0 {
			existing.UID = rec.UID
		}
		if rec.Active&ruletree.FieldGID != 0 {
			existing.GID = rec.GID
		}
		if rec.Active&ruletree.FieldMode != 0 {
			existing.Mode = rec.Mode
		}
		if rec.Active&ruletree.FieldSuid != 0 {
			existing.SuidUID = rec.SuidUID
		}
		if rec.Active&ruletree.FieldSgid != 0 {
			existing.SgidGID = rec.SgidGID
		}
		if rec.Active&(ruletree.FieldDevice|ruletree.FieldRdev) != 0 {
			existing.DeviceMode = rec.DeviceMode
			existing.Rdev = rec.Rdev
			existing.Active |= ruletree.FieldRdev
		}
		s.records[key] = existing
		return nil
	}
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) Release(key InodeKey, fields ruletree.InodeField) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	rec.Active &^= fields
	if rec.Active == 0 {
		delete(s.records, key)
		return nil
	}
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) Clear(key InodeKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
