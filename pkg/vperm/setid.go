package vperm

import "errors"

// ErrSetIDPermission is returned when an unprivileged caller tries to
// assume an id outside its real/effective/saved set.
var ErrSetIDPermission = errors.New("vperm: operation not permitted")

// setOne applies classic POSIX setuid(2)/setgid(2) semantics against
// set: a privileged caller (effective id 0) may become any id, setting
// real, effective, and saved all at once; an unprivileged caller may
// only choose among its own real/effective/saved ids, and only the
// effective id (and the fs id, which follows it) changes.
func setOne(set IDSet, privileged bool, newID uint32) (IDSet, error) {
	if privileged {
		return IDSet{Real: newID, Effective: newID, Saved: newID, FS: newID}, nil
	}
	if newID != set.Real && newID != set.Effective && newID != set.Saved {
		return set, ErrSetIDPermission
	}
	set.Effective = newID
	set.FS = newID
	return set, nil
}

// setE applies seteuid(2)/setegid(2): only the effective id (and the
// fs id, which follows it) changes, and an unprivileged caller may only choose among real/effective/
// saved.
func setE(set IDSet, privileged bool, newID uint32) (IDSet, error) {
	if !privileged && newID != set.Real && newID != set.Effective && newID != set.Saved {
		return set, ErrSetIDPermission
	}
	set.Effective = newID
	set.FS = newID
	return set, nil
}

// setRE applies setreuid(2)/setregid(2): -1 (represented by ok=false)
// leaves a component unchanged; an unprivileged caller may still only
// select among real/effective/saved for each component it does change.
func setRE(set IDSet, privileged bool, newReal uint32, setReal bool, newEff uint32, setEff bool) (IDSet, error) {
	if !privileged {
		if setReal && newReal != set.Real && newReal != set.Effective {
			return set, ErrSetIDPermission
		}
		if setEff && newEff != set.Real && newEff != set.Effective && newEff != set.Saved {
			return set, ErrSetIDPermission
		}
	}
	out := set
	if setReal {
		out.Real = newReal
	}
	if setEff {
		out.Effective = newEff
		out.FS = newEff
	}
	if (setReal && newReal != set.Real) || (setEff && newEff != set.Real) {
		out.Saved = out.Effective
	}
	return out, nil
}

// setRES applies setresuid(2)/setresgid(2): each of real/effective/
// saved may be independently left unchanged (setX=false) or set to a
// new value; an unprivileged caller may only set a component to one of
// its current real/effective/saved values.
func setRES(set IDSet, privileged bool, r uint32, setR bool, e uint32, setE bool, s uint32, setS bool) (IDSet, error) {
	valid := func(v uint32) bool { return v == set.Real || v == set.Effective || v == set.Saved }
	if !privileged {
		if setR && !valid(r) {
			return set, ErrSetIDPermission
		}
		if setE && !valid(e) {
			return set, ErrSetIDPermission
		}
		if setS && !valid(s) {
			return set, ErrSetIDPermission
		}
	}
	out := set
	if setR {
		out.Real = r
	}
	if setE {
		out.Effective = e
		out.FS = e
	}
	if setS {
		out.Saved = s
	}
	return out, nil
}

// SetUID implements setuid(2) against ids.UID.
func (ids *VirtualIDs) SetUID(newUID uint32) error {
	set, err := setOne(ids.UID, ids.IsSimulatedRoot(), newUID)
	if err != nil {
		return err
	}
	ids.UID = set
	return nil
}

// SetGID implements setgid(2) against ids.GID. Privilege for a gid
// change is still gated on the effective *uid* being simulated root,
// matching POSIX (there is no separate "privileged gid" concept).
func (ids *VirtualIDs) SetGID(newGID uint32) error {
	set, err := setOne(ids.GID, ids.IsSimulatedRoot(), newGID)
	if err != nil {
		return err
	}
	ids.GID = set
	return nil
}

// SetEUID implements seteuid(2).
func (ids *VirtualIDs) SetEUID(newUID uint32) error {
	set, err := setE(ids.UID, ids.IsSimulatedRoot(), newUID)
	if err != nil {
		return err
	}
	ids.UID = set
	return nil
}

// SetEGID implements setegid(2).
func (ids *VirtualIDs) SetEGID(newGID uint32) error {
	set, err := setE(ids.GID, ids.IsSimulatedRoot(), newGID)
	if err != nil {
		return err
	}
	ids.GID = set
	return nil
}

// SetReUID implements setreuid(2). Pass setReal/setEff=false to leave
// the corresponding component unchanged (the -1 convention).
func (ids *VirtualIDs) SetReUID(newReal uint32, setReal bool, newEff uint32, setEff bool) error {
	set, err := setRE(ids.UID, ids.IsSimulatedRoot(), newReal, setReal, newEff, setEff)
	if err != nil {
		return err
	}
	ids.UID = set
	return nil
}

// SetReGID implements setregid(2).
func (ids *VirtualIDs) SetReGID(newReal uint32, setReal bool, newEff uint32, setEff bool) error {
	set, err := setRE(ids.GID, ids.IsSimulatedRoot(), newReal, setReal, newEff, setEff)
	if err != nil {
		return err
	}
	ids.GID = set
	return nil
}

// SetResUID implements setresuid(2). Pass ok=false for a component
// to leave it unchanged.
func (ids *VirtualIDs) SetResUID(r uint32, setR bool, e uint32, setE bool, s uint32, setS bool) error {
	set, err := setRES(ids.UID, ids.IsSimulatedRoot(), r, setR, e, setE, s, setS)
	if err != nil {
		return err
	}
	ids.UID = set
	return nil
}

// SetResGID implements setresgid(2).
func (ids *VirtualIDs) SetResGID(r uint32, setR bool, e uint32, setE bool, s uint32, setS bool) error {
	set, err := setRES(ids.GID, ids.IsSimulatedRoot(), r, setR, e, setE, s, setS)
	if err != nil {
		return err
	}
	ids.GID = set
	return nil
}
