// Package execinspect classifies a candidate binary the way the exec
// pipeline needs to before it can choose a postprocessing strategy
// (§4.5): hashbang script, host ELF (static or dynamic), foreign-CPU
// target ELF, or invalid.
package execinspect

import (
	"bytes"
	"debug/elf"
	"errors"
	"os"
	"strings"

	"github.com/sb2root/sbcore/internal/errx"
)

// BinaryType is the exec inspector's classification result.
type BinaryType int

const (
	TypeNone BinaryType = iota
	TypeInvalid
	TypeHashbang
	TypeHostStatic
	TypeHostDynamic
	TypeTarget
)

func (t BinaryType) String() string {
	switch t {
	case TypeHashbang:
		return "HASHBANG"
	case TypeHostStatic:
		return "HOST_STATIC"
	case TypeHostDynamic:
		return "HOST_DYNAMIC"
	case TypeTarget:
		return "TARGET"
	case TypeInvalid:
		return "INVALID"
	default:
		return "NONE"
	}
}

// Info is everything downstream postprocessing needs about a
// classified binary.
type Info struct {
	Type              BinaryType
	Interpreter       string // PT_INTERP path, HOST_DYNAMIC only
	HasCapability     bool   // security.capability xattr present
	HashbangRest      string // text after "#!", HASHBANG only
}

// TargetArch describes the foreign CPU configuration a TARGET binary
// is checked against: the ELF machine type and byte order a session's
// exec policy is compiled for, plus the optional "el"/"eb" suffix
// convention the emulator name itself carries (e.g. "qemu-armeb").
type TargetArch struct {
	Machine   elf.Machine
	ByteOrder elf.Data // ELFDATA2LSB or ELFDATA2MSB; zero means "don't care"
}

var (
	ErrCannotOpen = errors.New("execinspect: cannot open candidate")
	ErrCannotStat = errors.New("execinspect: cannot stat candidate")
)

// legacyExecBugEnv is the env var whose presence of "x" in its value
// re-enables the legacy bug where a read-only (no +x) file is still
// treated as executable, per §4.5's "legacy bug-compat mode".
const legacyExecBugEnv = "SBOX_ALLOW_NOEXEC_BUGCOMPAT"

// Inspect opens hostPath, reads its header, and classifies it per
// §4.5. target may be the zero value when no foreign-CPU policy is
// configured, in which case no binary is ever classified TypeTarget.
func Inspect(hostPath string, target TargetArch, getenv func(string) string) (Info, error) {
	f, err := os.Open(hostPath)
	if err != nil {
		return Info{}, errx.Wrap(ErrCannotOpen, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Info{}, errx.Wrap(ErrCannotStat, err)
	}
	if !fi.Mode().IsRegular() {
		return Info{Type: TypeInvalid}, nil
	}

	if fi.Mode().Perm()&0o111 == 0 {
		bugcompat := getenv != nil && strings.Contains(getenv(legacyExecBugEnv), "x")
		if !bugcompat {
			return Info{Type: TypeInvalid}, nil
		}
	}

	header := make([]byte, 64)
	n, _ := f.ReadAt(header, 0)
	header = header[:n]

	if n >= 2 && header[0] == '#' && header[1] == '!' {
		rest, _ := readHashbangLine(f)
		return Info{Type: TypeHashbang, HashbangRest: rest}, nil
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		return Info{Type: TypeInvalid}, nil
	}
	defer ef.Close()

	hasCap := hasCapabilityXattr(hostPath)

	if isHostMachine(ef, target) {
		interp, isDynamic := findInterp(ef)
		if isDynamic {
			return Info{Type: TypeHostDynamic, Interpreter: interp, HasCapability: hasCap}, nil
		}
		return Info{Type: TypeHostStatic, HasCapability: hasCap}, nil
	}

	if target.Machine != 0 && ef.Machine == target.Machine {
		if target.ByteOrder == 0 || ef.Data == target.ByteOrder {
			return Info{Type: TypeTarget}, nil
		}
	}

	return Info{Type: TypeInvalid}, nil
}

func isHostMachine(ef *elf.File, target TargetArch) bool {
	return ef.Machine == hostMachine && ef.Data == hostByteOrder
}

func findInterp(ef *elf.File) (path string, isDynamic bool) {
	for _, prog := range ef.Progs {
		if prog.Type == elf.PT_INTERP {
			data := make([]byte, prog.Filesz)
			if _, err := prog.ReadAt(data, 0); err == nil {
				data = bytes.TrimRight(data, "\x00")
				return string(data), true
			}
			return "", true
		}
	}
	return "", false
}

func readHashbangLine(f *os.File) (string, error) {
	buf := make([]byte, 256)
	n, _ := f.ReadAt(buf, 0)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, []byte("#!"))
	if i := bytes.IndexAny(buf, "\n\x00"); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}
