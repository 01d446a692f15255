package vperm

import "github.com/sb2root/sbcore/pkg/ruletree"

// Stat is the subset of a stat(2) result vperm virtualizes, kept
// independent of any particular syscall struct so the substitution
// logic in this file has no platform dependency; the linux-specific
// syscall plumbing (OSRealFS) lives in realfs_linux.go.
type Stat struct {
	Mode uint32 // full st_mode, including S_IFMT type bits
	UID  uint32
	GID  uint32
	Rdev uint64
}

const modeTypeMask = 0o170000 // S_IFMT
const modePermMask = 0o007777 // permission + suid/sgid/sticky bits
const modeSuidSgid = 0o006000 // S_ISUID | S_ISGID

// Virtualize substitutes st's fields with whatever rec marks active,
// per §4.9: "Mode substitution preserves the file-type bits (S_IFMT)
// and the real SUID/SGID unless those are separately virtualized.
// Simulated device nodes override S_IFMT and st_rdev."
func Virtualize(st Stat, rec ruletree.InodeStat) Stat {
	out := st

	if rec.Active&ruletree.FieldUID != 0 {
		out.UID = rec.UID
	}
	if rec.Active&ruletree.FieldGID != 0 {
		out.GID = rec.GID
	}

	if rec.Active&ruletree.FieldMode != 0 {
		typeBits := out.Mode & modeTypeMask
		suidSgid := out.Mode & modeSuidSgid
		if rec.Active&ruletree.FieldSuid != 0 {
			suidSgid = (suidSgid &^ 0o004000) | (rec.SuidUID & 0o004000)
		}
		if rec.Active&ruletree.FieldSgid != 0 {
			suidSgid = (suidSgid &^ 0o002000) | (rec.SgidGID & 0o002000)
		}
		out.Mode = typeBits | suidSgid | (rec.Mode &^ modeSuidSgid & modePermMask)
	}

	if rec.Active&ruletree.FieldDevice != 0 {
		out.Mode = (out.Mode &^ modeTypeMask) | (rec.DeviceMode & modeTypeMask)
		out.Rdev = rec.Rdev
	}

	return out
}
