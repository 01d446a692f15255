package execinspect

import (
	"debug/elf"
	"runtime"
)

// hostMachine and hostByteOrder identify the ELF machine/byte-order
// pair a binary must match to classify as HOST_STATIC/HOST_DYNAMIC
// rather than TARGET, derived from the architecture this binary
// itself was built for.
var hostMachine, hostByteOrder = detectHost()

func detectHost() (elf.Machine, elf.Data) {
	switch runtime.GOARCH {
	case "amd64":
		return elf.EM_X86_64, elf.ELFDATA2LSB
	case "386":
		return elf.EM_386, elf.ELFDATA2LSB
	case "arm64":
		return elf.EM_AARCH64, elf.ELFDATA2LSB
	case "arm":
		return elf.EM_ARM, elf.ELFDATA2LSB
	case "riscv64":
		return elf.EM_RISCV, elf.ELFDATA2LSB
	default:
		return elf.EM_X86_64, elf.ELFDATA2LSB
	}
}
