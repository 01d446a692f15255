package ruletree

import (
	"encoding/binary"
	"fmt"
)

// Reader decodes records out of an arena produced by Builder. The zero
// value is not usable; use Open or NewReader.
type Reader struct {
	buf  []byte
	root Offset
}

// NewReader wraps an already-loaded arena (e.g. returned by Builder.Bytes,
// or an mmap'd file from Open).
func NewReader(buf []byte) (*Reader, error) {
	if len(buf) < headerSize {
		return nil, ErrTruncated
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return nil, ErrBadMagic
	}
	if binary.LittleEndian.Uint32(buf[4:8]) != formatVersion {
		return nil, fmt.Errorf("ruletree: unsupported format version %d", binary.LittleEndian.Uint32(buf[4:8]))
	}
	root := Offset(binary.LittleEndian.Uint32(buf[8:12]))
	return &Reader{buf: buf, root: root}, nil
}

// Root returns the offset of the root catalog, as recorded by
// Builder.SetRoot.
func (r *Reader) Root() Offset { return r.root }

func (r *Reader) kindAt(off Offset) (Kind, error) {
	if uint32(off) >= uint32(len(r.buf)) {
		return KindNone, ErrTruncated
	}
	return Kind(r.buf[off]), nil
}

func (r *Reader) u32At(off uint32) (uint32, error) {
	if off+4 > uint32(len(r.buf)) {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(r.buf[off : off+4]), nil
}

func (r *Reader) byteAt(off uint32) (byte, error) {
	if off >= uint32(len(r.buf)) {
		return 0, ErrTruncated
	}
	return r.buf[off], nil
}

// GetString decodes a String record. NoOffset decodes to "" so callers
// can treat an omitted offset and an empty string identically.
func (r *Reader) GetString(off Offset) (string, error) {
	if off == NoOffset {
		return "", nil
	}
	k, err := r.kindAt(off)
	if err != nil {
		return "", err
	}
	if k != KindString {
		return "", ErrWrongKind
	}
	n, err := r.u32At(uint32(off) + 1)
	if err != nil {
		return "", err
	}
	start := uint32(off) + 1 + 4
	end := start + n
	if end > uint32(len(r.buf)) {
		return "", ErrTruncated
	}
	return string(r.buf[start:end]), nil
}

// GetObjectList decodes an ObjectList record into its member offsets.
func (r *Reader) GetObjectList(off Offset) ([]Offset, error) {
	if off == NoOffset {
		return nil, nil
	}
	k, err := r.kindAt(off)
	if err != nil {
		return nil, err
	}
	if k != KindObjectList {
		return nil, ErrWrongKind
	}
	n, err := r.u32At(uint32(off) + 1)
	if err != nil {
		return nil, err
	}
	out := make([]Offset, n)
	base := uint32(off) + 1 + 4
	for i := uint32(0); i < n; i++ {
		v, err := r.u32At(base + i*4)
		if err != nil {
			return nil, err
		}
		out[i] = Offset(v)
	}
	return out, nil
}

// GetStringList decodes an ObjectList of String records back into plain
// strings, the inverse of Builder.putStringList.
func (r *Reader) GetStringList(off Offset) ([]string, error) {
	offs, err := r.GetObjectList(off)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(offs))
	for i, o := range offs {
		s, err := r.GetString(o)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// GetCatalog decodes a Catalog record into its (key, value) pairs. Keys
// are resolved to strings eagerly.
func (r *Reader) GetCatalog(off Offset) ([]DecodedCatalogEntry, error) {
	if off == NoOffset {
		return nil, nil
	}
	k, err := r.kindAt(off)
	if err != nil {
		return nil, err
	}
	if k != KindCatalog {
		return nil, ErrWrongKind
	}
	n, err := r.u32At(uint32(off) + 1)
	if err != nil {
		return nil, err
	}
	base := uint32(off) + 1 + 4
	out := make([]DecodedCatalogEntry, n)
	for i := uint32(0); i < n; i++ {
		keyOffRaw, err := r.u32At(base + i*8)
		if err != nil {
			return nil, err
		}
		valOffRaw, err := r.u32At(base + i*8 + 4)
		if err != nil {
			return nil, err
		}
		key, err := r.GetString(Offset(keyOffRaw))
		if err != nil {
			return nil, err
		}
		out[i] = DecodedCatalogEntry{Key: key, Value: Offset(valOffRaw)}
	}
	return out, nil
}

// DecodedCatalogEntry is a Catalog pair with its key resolved to a
// string for lookup convenience.
type DecodedCatalogEntry struct {
	Key   string
	Value Offset
}

// CatalogLookup walks a chain of nested catalogs by key, the way the
// data model's exec-policy table is addressed as
// {"exec_policy", mode, policy}: each key in keys indexes one level
// deeper, with the final key's Value returned. ErrNoSuchEntry is
// returned if any level is missing the requested key.
func (r *Reader) CatalogLookup(catOff Offset, keys ...string) (Offset, error) {
	cur := catOff
	for i, key := range keys {
		entries, err := r.GetCatalog(cur)
		if err != nil {
			return NoOffset, err
		}
		found := false
		for _, e := range entries {
			if e.Key == key {
				cur = e.Value
				found = true
				break
			}
		}
		if !found {
			return NoOffset, ErrNoSuchEntry
		}
		if i == len(keys)-1 {
			return cur, nil
		}
	}
	return cur, nil
}

// GetFsRule decodes an FsRule record, resolving every string sub-offset
// eagerly so the rule engine never has to touch the arena directly.
func (r *Reader) GetFsRule(off Offset) (FsRule, error) {
	var rule FsRule
	k, err := r.kindAt(off)
	if err != nil {
		return rule, err
	}
	if k != KindFsRule {
		return rule, ErrWrongKind
	}
	p := uint32(off) + 1

	nameOff, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	selType, err := r.byteAt(p)
	if err != nil {
		return rule, err
	}
	p++
	selOff, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	actType, err := r.byteAt(p)
	if err != nil {
		return rule, err
	}
	p++
	actOff, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	ruleListLink, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	condType, err := r.byteAt(p)
	if err != nil {
		return rule, err
	}
	p++
	condOff, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	condList, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	flags, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	binNameOff, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	funcClassMask, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	execPolicyOff, err := r.u32At(p)
	if err != nil {
		return rule, err
	}

	rule.Name, err = r.GetString(Offset(nameOff))
	if err != nil {
		return rule, err
	}
	rule.SelectorType = SelectorType(selType)
	rule.Selector, err = r.GetString(Offset(selOff))
	if err != nil {
		return rule, err
	}
	rule.ActionType = ActionType(actType)
	rule.Action, err = r.GetString(Offset(actOff))
	if err != nil {
		return rule, err
	}
	rule.RuleListLink = Offset(ruleListLink)
	rule.ConditionType = ConditionType(condType)
	rule.Condition, err = r.GetString(Offset(condOff))
	if err != nil {
		return rule, err
	}
	rule.ConditionList = Offset(condList)
	rule.Flags = Flag(flags)
	rule.BinaryName, err = r.GetString(Offset(binNameOff))
	if err != nil {
		return rule, err
	}
	rule.FuncClassMask = funcClassMask
	rule.ExecPolicyName, err = r.GetString(Offset(execPolicyOff))
	if err != nil {
		return rule, err
	}
	return rule, nil
}

// GetNetRule decodes a NetRule record.
func (r *Reader) GetNetRule(off Offset) (NetRule, error) {
	var nr NetRule
	k, err := r.kindAt(off)
	if err != nil {
		return nr, err
	}
	if k != KindNetRule {
		return nr, ErrWrongKind
	}
	p := uint32(off) + 1
	typ, err := r.byteAt(p)
	if err != nil {
		return nr, err
	}
	p++

	fields := make([]uint32, 10)
	for i := range fields {
		v, err := r.u32At(p)
		if err != nil {
			return nr, err
		}
		fields[i] = v
		p += 4
	}

	nr.Type = NetRuleType(typ)
	if nr.FuncName, err = r.GetString(Offset(fields[0])); err != nil {
		return nr, err
	}
	if nr.BinaryName, err = r.GetString(Offset(fields[1])); err != nil {
		return nr, err
	}
	if nr.Address, err = r.GetString(Offset(fields[2])); err != nil {
		return nr, err
	}
	nr.Port = uint16(fields[3])
	if nr.NewAddress, err = r.GetString(Offset(fields[4])); err != nil {
		return nr, err
	}
	nr.NewPort = uint16(fields[5])
	nr.Errno = int32(fields[6])
	nr.Rules = Offset(fields[7])
	nr.LogLevel = int32(fields[8])
	if nr.LogMsg, err = r.GetString(Offset(fields[9])); err != nil {
		return nr, err
	}
	return nr, nil
}

// GetExecPolicySelectionRule decodes an ExecPolicySelectionRule record.
func (r *Reader) GetExecPolicySelectionRule(off Offset) (ExecPolicySelectionRule, error) {
	var rule ExecPolicySelectionRule
	k, err := r.kindAt(off)
	if err != nil {
		return rule, err
	}
	if k != KindExecPolicySelectionRule {
		return rule, ErrWrongKind
	}
	p := uint32(off) + 1
	typ, err := r.byteAt(p)
	if err != nil {
		return rule, err
	}
	p++
	flags, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	selOff, err := r.u32At(p)
	if err != nil {
		return rule, err
	}
	p += 4
	nameOff, err := r.u32At(p)
	if err != nil {
		return rule, err
	}

	rule.Type = SelectorType(typ)
	rule.Flags = flags
	if rule.Selector, err = r.GetString(Offset(selOff)); err != nil {
		return rule, err
	}
	if rule.PolicyName, err = r.GetString(Offset(nameOff)); err != nil {
		return rule, err
	}
	return rule, nil
}

// GetExecPreprocessingRule decodes an ExecPreprocessingRule record.
func (r *Reader) GetExecPreprocessingRule(off Offset) (ExecPreprocessingRule, error) {
	var rule ExecPreprocessingRule
	k, err := r.kindAt(off)
	if err != nil {
		return rule, err
	}
	if k != KindExecPreprocessingRule {
		return rule, ErrWrongKind
	}
	p := uint32(off) + 1

	offs := make([]uint32, 7)
	for i := range offs {
		v, err := r.u32At(p)
		if err != nil {
			return rule, err
		}
		offs[i] = v
		p += 4
	}
	disableMapping, err := r.byteAt(p)
	if err != nil {
		return rule, err
	}

	var gerr error
	if rule.BinaryName, gerr = r.GetString(Offset(offs[0])); gerr != nil {
		return rule, gerr
	}
	if rule.PathPrefixes, gerr = r.GetStringList(Offset(offs[1])); gerr != nil {
		return rule, gerr
	}
	if rule.AddHead, gerr = r.GetStringList(Offset(offs[2])); gerr != nil {
		return rule, gerr
	}
	if rule.AddOptions, gerr = r.GetStringList(Offset(offs[3])); gerr != nil {
		return rule, gerr
	}
	if rule.AddTail, gerr = r.GetStringList(Offset(offs[4])); gerr != nil {
		return rule, gerr
	}
	if rule.Remove, gerr = r.GetStringList(Offset(offs[5])); gerr != nil {
		return rule, gerr
	}
	if rule.NewFilename, gerr = r.GetString(Offset(offs[6])); gerr != nil {
		return rule, gerr
	}
	rule.DisableMapping = disableMapping != 0
	return rule, nil
}

// GetInodeStat decodes an InodeStat record.
func (r *Reader) GetInodeStat(off Offset) (InodeStat, error) {
	var s InodeStat
	k, err := r.kindAt(off)
	if err != nil {
		return s, err
	}
	if k != KindInodeStat {
		return s, ErrWrongKind
	}
	p := uint32(off) + 1

	words := make([]uint32, 12)
	for i := range words {
		v, err := r.u32At(p)
		if err != nil {
			return s, err
		}
		words[i] = v
		p += 4
	}

	s.Dev = uint64(words[0])<<32 | uint64(words[1])
	s.Ino = uint64(words[2])<<32 | uint64(words[3])
	s.Active = InodeField(words[4])
	s.UID = words[5]
	s.GID = words[6]
	s.Mode = words[7]
	s.SuidUID = words[8]
	s.SgidGID = words[9]
	s.DeviceMode = words[10]
	s.Rdev = uint64(words[11])<<32
	// Rdev's low word lives just past the 12 words we read above.
	lo, err := r.u32At(p)
	if err != nil {
		return s, err
	}
	s.Rdev |= uint64(lo)
	return s, nil
}
