// Package cfs computes the control-flow successor (CFS) of an instruction:
// given a program counter and register context, the address of the next
// instruction the debuggee will execute. The breakpoint engine uses this to
// seed the auxiliary "continue" breakpoint placed one instruction past a
// just-hit user breakpoint, and to place a thread-specific single-step
// breakpoint.
package cfs

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/behrlich/udi-agent/internal/memaccess"
	"github.com/behrlich/udi-agent/internal/udierr"
	"github.com/behrlich/udi-agent/internal/wire"
)

// maxInstructionLen bounds how many bytes are fetched to decode a single
// x86/x86_64 instruction; 15 is the architectural maximum.
const maxInstructionLen = 15

// Successor decodes exactly one instruction at pc and returns the address of
// the instruction that will execute next, given regs (the register context
// captured at the trap) and arch (which selects 32- vs 64-bit decoding).
func Successor(pc uint64, regs *wire.RegisterContext, arch wire.Arch, mem memaccess.Reader) (uint64, error) {
	code, err := fetchCode(pc, mem)
	if err != nil {
		return 0, err
	}

	mode := 64
	if arch == wire.ArchX86 {
		mode = 32
	}

	inst, err := x86asm.Decode(code, mode)
	if err != nil {
		return 0, udierr.New("cfs.Successor", udierr.ErrCodeInvalidArgument, "decode failed: "+err.Error())
	}

	next := pc + uint64(inst.Len)

	switch inst.Op {
	case x86asm.CALL, x86asm.JMP:
		return resolveBranchTarget(inst, next, regs, mem)
	case x86asm.RET, x86asm.RETF:
		return readReturnAddress(regs, mem)
	default:
		if isConditionalBranch(inst.Op) {
			if evaluateCondition(inst.Op, regs, mode) {
				return resolveBranchTarget(inst, next, regs, mem)
			}
			return next, nil
		}
		return next, nil
	}
}

// fetchCode reads up to maxInstructionLen bytes starting at pc, shrinking
// the request if the tail runs off an unmapped or protected page — a
// shorter read is still enough to decode a single instruction as long as the
// instruction itself does not straddle the fault.
func fetchCode(pc uint64, mem memaccess.Reader) ([]byte, error) {
	for n := maxInstructionLen; n > 0; n-- {
		code, err := mem.Read(uintptr(pc), n)
		if err == nil {
			return code, nil
		}
		if n == 1 {
			return nil, udierr.Wrap("cfs.fetchCode", err)
		}
	}
	return nil, udierr.New("cfs.fetchCode", udierr.ErrCodeMemoryFault, "unreachable")
}

// resolveBranchTarget resolves the operand of a CALL or unconditional/
// conditional JMP-family instruction: an immediate relative displacement, a
// register holding the target, or a memory operand computed from
// base+index*scale+disp against the current register context.
func resolveBranchTarget(inst x86asm.Inst, fallthroughAddr uint64, regs *wire.RegisterContext, mem memaccess.Reader) (uint64, error) {
	if len(inst.Args) == 0 || inst.Args[0] == nil {
		return fallthroughAddr, nil
	}

	switch arg := inst.Args[0].(type) {
	case x86asm.Rel:
		return uint64(int64(fallthroughAddr) + int64(arg)), nil
	case x86asm.Reg:
		v, ok := regValue(arg, regs)
		if !ok {
			return 0, udierr.New("cfs.resolveBranchTarget", udierr.ErrCodeInvalidArgument, "unsupported register operand")
		}
		return v, nil
	case x86asm.Mem:
		addr, err := memOperandAddr(arg, regs)
		if err != nil {
			return 0, err
		}
		width := pointerWidth(regs.Arch)
		raw, err := mem.Read(uintptr(addr), width)
		if err != nil {
			return 0, udierr.Wrap("cfs.resolveBranchTarget", err)
		}
		return littleEndianUint(raw), nil
	default:
		return 0, udierr.New("cfs.resolveBranchTarget", udierr.ErrCodeInvalidArgument, "unsupported branch operand kind")
	}
}

// readReturnAddress reads the machine word at the top of the stack: the
// return address a RET instruction will transfer control to.
func readReturnAddress(regs *wire.RegisterContext, mem memaccess.Reader) (uint64, error) {
	width := pointerWidth(regs.Arch)
	raw, err := mem.Read(uintptr(regs.SP()), width)
	if err != nil {
		return 0, udierr.Wrap("cfs.readReturnAddress", err)
	}
	return littleEndianUint(raw), nil
}

func memOperandAddr(m x86asm.Mem, regs *wire.RegisterContext) (uint64, error) {
	var addr int64
	if m.Base != 0 {
		v, ok := regValue(m.Base, regs)
		if !ok {
			return 0, udierr.New("cfs.memOperandAddr", udierr.ErrCodeInvalidArgument, "unsupported base register")
		}
		addr += int64(v)
	}
	if m.Index != 0 {
		v, ok := regValue(m.Index, regs)
		if !ok {
			return 0, udierr.New("cfs.memOperandAddr", udierr.ErrCodeInvalidArgument, "unsupported index register")
		}
		addr += int64(v) * int64(m.Scale)
	}
	addr += m.Disp
	return uint64(addr), nil
}

func littleEndianUint(b []byte) uint64 {
	var v uint64
	for i, by := range b {
		v |= uint64(by) << (8 * uint(i))
	}
	return v
}

func pointerWidth(a wire.Arch) int {
	if a == wire.ArchX86 {
		return 4
	}
	return 8
}
