package wire

// Register identifies a single machine register in a read_register or
// write_register request. The numbering matches the historical protocol's
// register enum exactly: x86 registers first, followed by the x86_64
// extension registers, so a debugger built against the original wire values
// still addresses the same register.
type Register uint16

const (
	// x86 registers.
	RegX86Min Register = iota
	RegX86GS
	RegX86FS
	RegX86ES
	RegX86DS
	RegX86EDI
	RegX86ESI
	RegX86EBP
	RegX86ESP
	RegX86EBX
	RegX86EDX
	RegX86ECX
	RegX86EAX
	RegX86CS
	RegX86SS
	RegX86EIP
	RegX86Flags
	RegX86ST0
	RegX86ST1
	RegX86ST2
	RegX86ST3
	RegX86ST4
	RegX86ST5
	RegX86ST6
	RegX86ST7
	RegX86Max

	// x86_64 registers.
	RegX86_64Min
	RegX86_64R8
	RegX86_64R9
	RegX86_64R10
	RegX86_64R11
	RegX86_64R12
	RegX86_64R13
	RegX86_64R14
	RegX86_64R15
	RegX86_64RDI
	RegX86_64RSI
	RegX86_64RBP
	RegX86_64RBX
	RegX86_64RDX
	RegX86_64RAX
	RegX86_64RCX
	RegX86_64RSP
	RegX86_64RIP
	RegX86_64CSGSFS
	RegX86_64Flags
	RegX86_64ST0
	RegX86_64ST1
	RegX86_64ST2
	RegX86_64ST3
	RegX86_64ST4
	RegX86_64ST5
	RegX86_64ST6
	RegX86_64ST7
	RegX86_64XMM0
	RegX86_64XMM1
	RegX86_64XMM2
	RegX86_64XMM3
	RegX86_64XMM4
	RegX86_64XMM5
	RegX86_64XMM6
	RegX86_64XMM7
	RegX86_64XMM8
	RegX86_64XMM9
	RegX86_64XMM10
	RegX86_64XMM11
	RegX86_64XMM12
	RegX86_64XMM13
	RegX86_64XMM14
	RegX86_64XMM15
	RegX86_64Max
)

// ValidFor reports whether reg belongs to arch. The x86 and x86_64 register
// ranges are disjoint, so a request naming a register outside the
// debuggee's own architecture is rejected rather than silently reinterpreted.
func (reg Register) ValidFor(arch Arch) bool {
	switch arch {
	case ArchX86:
		return reg > RegX86Min && reg < RegX86Max
	case ArchX86_64:
		return reg > RegX86_64Min && reg < RegX86_64Max
	default:
		return false
	}
}

// IsFloatingPoint reports whether reg is an x87 or XMM register. The engine
// currently declines read/write requests for these (see internal/engine),
// but wire-level validation still needs to recognize them as
// legal register names.
func (reg Register) IsFloatingPoint() bool {
	switch {
	case reg >= RegX86ST0 && reg <= RegX86ST7:
		return true
	case reg >= RegX86_64ST0 && reg <= RegX86_64XMM15:
		return true
	default:
		return false
	}
}

// pcRegister returns the program-counter register for arch: EIP on x86,
// RIP on x86_64.
func pcRegister(arch Arch) Register {
	if arch == ArchX86 {
		return RegX86EIP
	}
	return RegX86_64RIP
}

// PC returns the program-counter register for arch.
func PC(arch Arch) Register { return pcRegister(arch) }

// RegisterContext is a best-effort snapshot of general-purpose register
// state at a trap site. The runtime captures none of it from the signal
// path: lifecycle's Thread.Checkpoint stores the snapshot its caller passes
// in, and any field the caller leaves unset reads as zero.
type RegisterContext struct {
	Arch  Arch
	GPRs  [17]uint64 // indexed by architecture-relative register offset
	PC    uint64
	Flags uint64

	// Valid mirrors the thread-state "context_valid" bit: register reads and
	// writes, and CFS computation, all refuse to operate on a context that
	// was never populated by a trap.
	Valid bool
}

// gprIndex maps a GPR-class Register to its slot in RegisterContext.GPRs.
// The x86 range (GS..EIP, 15 registers) and the x86_64 range (R8..RIP, 17
// registers) are stored left-aligned in the same fixed array; an x86
// debuggee simply never populates slots 15 and 16.
func gprIndex(arch Arch, reg Register) (int, bool) {
	switch arch {
	case ArchX86:
		if reg > RegX86Min && reg <= RegX86EIP {
			return int(reg - RegX86GS), true
		}
	case ArchX86_64:
		if reg > RegX86_64Min && reg <= RegX86_64RIP {
			return int(reg - RegX86_64R8), true
		}
	}
	return 0, false
}

func flagsRegister(arch Arch, reg Register) bool {
	return (arch == ArchX86 && reg == RegX86Flags) || (arch == ArchX86_64 && reg == RegX86_64Flags)
}

// Get reads a single register out of the context. Floating-point registers
// are recognized as legal names but are not backed by any captured state;
// callers must check IsFloatingPoint before calling Get/Set and report
// ErrCodeNotImplemented themselves (see internal/engine), since only the
// engine knows how to shape that as a wire failure response.
func (c *RegisterContext) Get(reg Register) (uint64, bool) {
	if flagsRegister(c.Arch, reg) {
		return c.Flags, true
	}
	idx, ok := gprIndex(c.Arch, reg)
	if !ok {
		return 0, false
	}
	return c.GPRs[idx], true
}

// Set writes a single register into the context, keeping the PC convenience
// field in sync when the program-counter register is written.
func (c *RegisterContext) Set(reg Register, value uint64) bool {
	if flagsRegister(c.Arch, reg) {
		c.Flags = value
		return true
	}
	idx, ok := gprIndex(c.Arch, reg)
	if !ok {
		return false
	}
	c.GPRs[idx] = value
	if reg == pcRegister(c.Arch) {
		c.PC = value
	}
	return true
}

// SP returns the stack-pointer register's value for the context's
// architecture: ESP on x86, RSP on x86_64.
func (c *RegisterContext) SP() uint64 {
	if c.Arch == ArchX86 {
		v, _ := c.Get(RegX86ESP)
		return v
	}
	v, _ := c.Get(RegX86_64RSP)
	return v
}
