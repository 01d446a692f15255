// Package vpermrpc implements the out-of-process InodeStat RPC that
// §5 requires: "virtual permission state is mutated through an
// out-of-process RPC to the session daemon" rather than mapped memory,
// because a chown/chmod retry must be linearized against every traced
// process in the session, not just the caller. The wire format mirrors
// the length-prefixed CBOR framing the teacher uses for its VFS
// request/response protocol, swapped from a raw vsock fd onto a Unix
// domain socket.
package vpermrpc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/sb2root/sbcore/pkg/ruletree"
)

// OpCode selects the Store method a Request invokes.
type OpCode uint8

const (
	OpGet OpCode = iota + 1
	OpSet
	OpRelease
	OpClear
)

// Request is the CBOR payload sent for every call; only the fields
// relevant to Op are populated.
type Request struct {
	Op     OpCode            `cbor:"op"`
	Dev    uint64            `cbor:"dev"`
	Ino    uint64            `cbor:"ino"`
	Fields ruletree.InodeField `cbor:"fields,omitempty"`
	Rec    ruletree.InodeStat  `cbor:"rec,omitempty"`
}

// Response carries either a result record or an error string; ErrNoRecord
// and other sentinels are identified by Code rather than reconstructed
// from Err, since cbor has no notion of Go error identity.
type Response struct {
	Code RespCode          `cbor:"code"`
	Err  string            `cbor:"err,omitempty"`
	Rec  ruletree.InodeStat `cbor:"rec,omitempty"`
}

// RespCode distinguishes success from the sentinel errors a caller
// must recognize with errors.Is.
type RespCode uint8

const (
	CodeOK RespCode = iota
	CodeNoRecord
	CodeError
)

const maxFrameSize = 16 << 20

// writeFrame writes a 4-byte big-endian length prefix followed by the
// CBOR encoding of v.
func writeFrame(w io.Writer, v interface{}) error {
	data, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("vpermrpc: marshal: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("vpermrpc: write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("vpermrpc: write payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed CBOR frame and decodes it into v.
func readFrame(r io.Reader, v interface{}) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("vpermrpc: read length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return fmt.Errorf("vpermrpc: frame of %d bytes exceeds limit", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("vpermrpc: read payload: %w", err)
	}
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("vpermrpc: unmarshal: %w", err)
	}
	return nil
}
