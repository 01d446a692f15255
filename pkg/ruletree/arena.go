// Package ruletree implements the RuleTree store described in the core
// data model: an append-only, memory-mapped arena of typed records whose
// cross-references are 32-bit offsets from the file base. The builder
// side constructs the arena in process memory (used by tests and by the
// out-of-scope rule-compiler this core only consumes); the reader side
// is what a sandboxed process mmaps read-only for the lifetime of a
// session.
package ruletree

import (
	"encoding/binary"
	"errors"
)

// Offset is a 32-bit byte offset from the start of the arena. Zero means
// "none" — the arena's first byte is always the header, never a record.
type Offset uint32

const NoOffset Offset = 0

// Kind tags every record so a reader never has to guess what it is
// looking at.
type Kind byte

const (
	KindNone Kind = iota
	KindString
	KindObjectList
	KindCatalog
	KindFsRule
	KindExecPolicySelectionRule
	KindExecPreprocessingRule
	KindNetRule
	KindInodeStat
)

var (
	ErrBadMagic    = errors.New("ruletree: bad magic number")
	ErrTruncated   = errors.New("ruletree: truncated record")
	ErrWrongKind   = errors.New("ruletree: record kind mismatch")
	ErrNoSuchEntry = errors.New("ruletree: catalog key not found")
	ErrOpenFile    = errors.New("ruletree: open arena file")
	ErrMmapFailed  = errors.New("ruletree: mmap arena file")
)

const (
	magic         = uint32(0x53324252) // "S2BR"
	formatVersion = uint32(1)
	headerSize    = 16 // magic(4) + version(4) + root catalog offset(4) + reserved(4)
)

// Builder appends records to an in-memory arena. The zero value is not
// usable; use NewBuilder.
type Builder struct {
	buf  []byte
	root Offset
}

func NewBuilder() *Builder {
	b := &Builder{buf: make([]byte, headerSize)}
	return b
}

func (b *Builder) offset() Offset { return Offset(len(b.buf)) }

// SetRoot records the offset of the root catalog; Bytes embeds it in the
// header.
func (b *Builder) SetRoot(off Offset) { b.root = off }

// Bytes finalizes the header and returns the complete arena.
func (b *Builder) Bytes() []byte {
	binary.LittleEndian.PutUint32(b.buf[0:4], magic)
	binary.LittleEndian.PutUint32(b.buf[4:8], formatVersion)
	binary.LittleEndian.PutUint32(b.buf[8:12], uint32(b.root))
	return b.buf
}

func (b *Builder) putU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Builder) putByte(v byte) { b.buf = append(b.buf, v) }

// PutString appends a length-prefixed, NUL-terminated UTF-8 string.
// Returns NoOffset for the empty string so callers can treat "no value"
// and "empty string" identically the way the spec's optional offsets do.
func (b *Builder) PutString(s string) Offset {
	if s == "" {
		return NoOffset
	}
	off := b.offset()
	b.putByte(byte(KindString))
	b.putU32(uint32(len(s)))
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	return off
}

// PutObjectList appends a length-prefixed array of offsets.
func (b *Builder) PutObjectList(items []Offset) Offset {
	off := b.offset()
	b.putByte(byte(KindObjectList))
	b.putU32(uint32(len(items)))
	for _, it := range items {
		b.putU32(uint32(it))
	}
	return off
}

// CatalogEntry is one (key, value) pair of a Catalog record. Value may
// point at a nested Catalog, enabling the multi-level key lookups the
// data model describes (e.g. {"exec_policy", mode, policy}). KeyOff must
// already have been written (PutString) before the entry is handed to
// PutCatalog, since the arena is append-only and the catalog's fixed
// pair array must stay contiguous.
type CatalogEntry struct {
	KeyOff Offset
	Value  Offset
}

// CatalogEntryString is a convenience for building a CatalogEntry whose
// key isn't already a string record.
func (b *Builder) CatalogEntryString(key string, value Offset) CatalogEntry {
	return CatalogEntry{KeyOff: b.PutString(key), Value: value}
}

// PutCatalog appends an ordered list of (key-string-offset, value-offset)
// pairs.
func (b *Builder) PutCatalog(entries []CatalogEntry) Offset {
	off := b.offset()
	b.putByte(byte(KindCatalog))
	b.putU32(uint32(len(entries)))
	for _, e := range entries {
		b.putU32(uint32(e.KeyOff))
		b.putU32(uint32(e.Value))
	}
	return off
}
