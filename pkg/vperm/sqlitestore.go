package vperm

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/sb2root/sbcore/pkg/ruletree"
)

// SQLiteStore is a Store backed by a single-table sqlite database, the
// way the teacher's pkg/image store persists its own per-scope
// metadata across process restarts: one CREATE TABLE IF NOT EXISTS
// migration run once at open, thereafter plain prepared statements.
// cmd/sb2-vpermd wires this in so a daemon restart does not lose every
// traced process's simulated-root state.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes the read-modify-write in Set and Release
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS inode_stat (
  dev INTEGER NOT NULL,
  ino INTEGER NOT NULL,
  active INTEGER NOT NULL,
  uid INTEGER NOT NULL,
  gid INTEGER NOT NULL,
  mode INTEGER NOT NULL,
  suid_uid INTEGER NOT NULL,
  sgid_gid INTEGER NOT NULL,
  device_mode INTEGER NOT NULL,
  rdev INTEGER NOT NULL,
  PRIMARY KEY (dev, ino)
);
`

// OpenSQLiteStore opens (creating if necessary) a sqlite database at
// path and ensures its schema is present.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vperm: open sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vperm: migrate sqlite store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(key InodeKey) (ruletree.InodeStat, error) {
	row := s.db.QueryRow(`SELECT active, uid, gid, mode, suid_uid, sgid_gid, device_mode, rdev
		FROM inode_stat WHERE dev = ? AND ino = ?`, key.Dev, key.Ino)

	var rec ruletree.InodeStat
	rec.Dev, rec.Ino = key.Dev, key.Ino
	err := row.Scan(&rec.Active, &rec.UID, &rec.GID, &rec.Mode, &rec.SuidUID, &rec.SgidGID, &rec.DeviceMode, &rec.Rdev)
	if errors.Is(err, sql.ErrNoRows) {
		return ruletree.InodeStat{}, ErrNoRecord
	}
	if err != nil {
		return ruletree.InodeStat{}, fmt.Errorf("vperm: get inode_stat: %w", err)
	}
	return rec, nil
}

// Set merges rec's actively-set fields into any existing row, the same
// field-by-field merge MemoryStore.Set performs, so a daemon restart
// between a chown and a later stat sees the identical accumulated
// record either store would have produced.
func (s *SQLiteStore) Set(rec ruletree.InodeStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := InodeKey{Dev: rec.Dev, Ino: rec.Ino}
	existing, err := s.Get(key)
	if err != nil && !errors.Is(err, ErrNoRecord) {
		return err
	}
	if errors.Is(err, ErrNoRecord) {
		existing = rec
	} else {
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
	}

	_, err = s.db.Exec(`INSERT INTO inode_stat (dev, ino, active, uid, gid, mode, suid_uid, sgid_gid, device_mode, rdev)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dev, ino) DO UPDATE SET
			active = excluded.active, uid = excluded.uid, gid = excluded.gid, mode = excluded.mode,
			suid_uid = excluded.suid_uid, sgid_gid = excluded.sgid_gid,
			device_mode = excluded.device_mode, rdev = excluded.rdev`,
		key.Dev, key.Ino, existing.Active, existing.UID, existing.GID, existing.Mode,
		existing.SuidUID, existing.SgidGID, existing.DeviceMode, existing.Rdev)
	if err != nil {
		return fmt.Errorf("vperm: set inode_stat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Release(key InodeKey, fields ruletree.InodeField) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.Get(key)
	if errors.Is(err, ErrNoRecord) {
		return nil
	}
	if err != nil {
		return err
	}
	rec.Active &^= fields
	if rec.Active == 0 {
		return s.Clear(key)
	}
	_, err = s.db.Exec(`UPDATE inode_stat SET active = ? WHERE dev = ? AND ino = ?`, rec.Active, key.Dev, key.Ino)
	if err != nil {
		return fmt.Errorf("vperm: release inode_stat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(key InodeKey) error {
	_, err := s.db.Exec(`DELETE FROM inode_stat WHERE dev = ? AND ino = ?`, key.Dev, key.Ino)
	if err != nil {
		return fmt.Errorf("vperm: clear inode_stat: %w", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
