// Package vperm implements virtual permissions (§4.9): per-inode
// simulation of uid/gid/mode, suid/sgid bits, and device nodes, plus
// the virtual-id bookkeeping (§3 "Virtualized IDs") that lets an
// unprivileged process observe and perform privileged operations
// consistently across stat/chown/chmod/mknod.
package vperm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// IDSet is one of the two (real, effective, saved, fs) quadruples a
// VirtualIDs value carries.
type IDSet struct {
	Real      uint32
	Effective uint32
	Saved     uint32
	FS        uint32
}

func (s IDSet) String() string {
	return fmt.Sprintf("%d:%d:%d:%d", s.Real, s.Effective, s.Saved, s.FS)
}

func parseIDSet(prefix byte, s string) (IDSet, error) {
	if len(s) == 0 || s[0] != prefix {
		return IDSet{}, fmt.Errorf("vperm: expected %q prefix in %q", string(prefix), s)
	}
	parts := strings.Split(s[1:], ":")
	if len(parts) != 4 {
		return IDSet{}, fmt.Errorf("vperm: malformed id quadruple %q", s)
	}
	vals := make([]uint32, 4)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return IDSet{}, fmt.Errorf("vperm: bad id %q in %q: %w", p, s, err)
		}
		vals[i] = uint32(n)
	}
	return IDSet{Real: vals[0], Effective: vals[1], Saved: vals[2], FS: vals[3]}, nil
}

// VirtualIDs is the per-process struct §3 describes: real/effective/
// saved/fs uid and gid, whether root-fs-permission simulation is
// active, and the optional owner/group attributed to files of unknown
// origin.
type VirtualIDs struct {
	UID IDSet
	GID IDSet

	// SimulateRootFS mirrors the "p" flag's absence: when true, a
	// simulated-root process gets root-like filesystem permission
	// simulation (mkdir/chmod relaxation, etc. per §4.9).
	SimulateRootFS bool

	// UnknownOwnerUID/GID are attributed to files of unknown origin
	// when set; HasUnknownOwner reports whether the "f" field was
	// present at all.
	HasUnknownOwner  bool
	UnknownOwnerUID  uint32
	UnknownOwnerGID  uint32
}

// ErrMalformed is returned by Parse for an unparseable SBOX_VPERM_IDS
// value.
var ErrMalformed = errors.New("vperm: malformed SBOX_VPERM_IDS value")

// Parse decodes the SBOX_VPERM_IDS format:
//
//	u<r>:<e>:<s>:<fs>,g<r>:<e>:<s>:<fs>[,f<uid>.<gid>][,p]
func Parse(value string) (VirtualIDs, error) {
	var ids VirtualIDs
	ids.SimulateRootFS = true // absent "p" means simulation is active

	fields := strings.Split(value, ",")
	if len(fields) < 2 {
		return VirtualIDs{}, ErrMalformed
	}

	uidSet, err := parseIDSet('u', fields[0])
	if err != nil {
		return VirtualIDs{}, errors.Join(ErrMalformed, err)
	}
	gidSet, err := parseIDSet('g', fields[1])
	if err != nil {
		return VirtualIDs{}, errors.Join(ErrMalformed, err)
	}
	ids.UID = uidSet
	ids.GID = gidSet

	for _, f := range fields[2:] {
		switch {
		case f == "p":
			ids.SimulateRootFS = false
		case strings.HasPrefix(f, "f"):
			parts := strings.SplitN(f[1:], ".", 2)
			if len(parts) != 2 {
				return VirtualIDs{}, ErrMalformed
			}
			u, err1 := strconv.ParseUint(parts[0], 10, 32)
			g, err2 := strconv.ParseUint(parts[1], 10, 32)
			if err1 != nil || err2 != nil {
				return VirtualIDs{}, ErrMalformed
			}
			ids.HasUnknownOwner = true
			ids.UnknownOwnerUID = uint32(u)
			ids.UnknownOwnerGID = uint32(g)
		default:
			return VirtualIDs{}, ErrMalformed
		}
	}
	return ids, nil
}

// Serialize re-encodes ids back into SBOX_VPERM_IDS form, the
// inverse of Parse, used every time the exec pipeline re-exports
// virtual ids into a child's envp.
func (ids VirtualIDs) Serialize() string {
	var b strings.Builder
	fmt.Fprintf(&b, "u%s,g%s", ids.UID, ids.GID)
	if ids.HasUnknownOwner {
		fmt.Fprintf(&b, ",f%d.%d", ids.UnknownOwnerUID, ids.UnknownOwnerGID)
	}
	if !ids.SimulateRootFS {
		b.WriteString(",p")
	}
	return b.String()
}

// IsSimulatedRoot reports whether the effective uid is 0, the
// condition that triggers privileged-operation simulation throughout
// §4.9.
func (ids VirtualIDs) IsSimulatedRoot() bool { return ids.UID.Effective == 0 }
