package ruletree

// InodeField bits mark which fields of an InodeStat are actively
// overridden; vperm only simulates the fields a caller has touched,
// leaving the rest to pass through from the real stat(2) result.
type InodeField uint32

const (
	FieldUID InodeField = 1 << iota
	FieldGID
	FieldMode
	FieldSuid
	FieldSgid
	FieldDevice
	FieldRdev
)

// InodeStat is the persisted virtual-permission record keyed by
// (dev, ino) in the session's InodeStat table.
type InodeStat struct {
	Dev          uint64
	Ino          uint64
	Active       InodeField
	UID          uint32
	GID          uint32
	Mode         uint32
	SuidUID      uint32
	SgidGID      uint32
	DeviceMode   uint32 // S_IFCHR / S_IFBLK
	Rdev         uint64
}

func (b *Builder) PutInodeStat(s InodeStat) Offset {
	off := b.offset()
	b.putByte(byte(KindInodeStat))
	b.putU32(uint32(s.Dev >> 32))
	b.putU32(uint32(s.Dev))
	b.putU32(uint32(s.Ino >> 32))
	b.putU32(uint32(s.Ino))
	b.putU32(uint32(s.Active))
	b.putU32(s.UID)
	b.putU32(s.GID)
	b.putU32(s.Mode)
	b.putU32(s.SuidUID)
	b.putU32(s.SgidGID)
	b.putU32(s.DeviceMode)
	b.putU32(uint32(s.Rdev >> 32))
	b.putU32(uint32(s.Rdev))
	return off
}
