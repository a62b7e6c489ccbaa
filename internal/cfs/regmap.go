package cfs

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/behrlich/udi-agent/internal/wire"
)

// regValue reads the value a CFS computation needs for an x86asm register
// operand (register-indirect call/jmp, or a base/index register inside a
// memory operand) out of the captured register context.
func regValue(reg x86asm.Reg, regs *wire.RegisterContext) (uint64, bool) {
	if wreg, ok := toWireRegister(reg); ok {
		return regs.Get(wreg)
	}
	return 0, false
}

func toWireRegister(reg x86asm.Reg) (wire.Register, bool) {
	switch reg {
	case x86asm.EAX:
		return wire.RegX86EAX, true
	case x86asm.ECX:
		return wire.RegX86ECX, true
	case x86asm.EDX:
		return wire.RegX86EDX, true
	case x86asm.EBX:
		return wire.RegX86EBX, true
	case x86asm.ESP:
		return wire.RegX86ESP, true
	case x86asm.EBP:
		return wire.RegX86EBP, true
	case x86asm.ESI:
		return wire.RegX86ESI, true
	case x86asm.EDI:
		return wire.RegX86EDI, true
	case x86asm.EIP:
		return wire.RegX86EIP, true

	case x86asm.RAX:
		return wire.RegX86_64RAX, true
	case x86asm.RCX:
		return wire.RegX86_64RCX, true
	case x86asm.RDX:
		return wire.RegX86_64RDX, true
	case x86asm.RBX:
		return wire.RegX86_64RBX, true
	case x86asm.RSP:
		return wire.RegX86_64RSP, true
	case x86asm.RBP:
		return wire.RegX86_64RBP, true
	case x86asm.RSI:
		return wire.RegX86_64RSI, true
	case x86asm.RDI:
		return wire.RegX86_64RDI, true
	case x86asm.R8:
		return wire.RegX86_64R8, true
	case x86asm.R9:
		return wire.RegX86_64R9, true
	case x86asm.R10:
		return wire.RegX86_64R10, true
	case x86asm.R11:
		return wire.RegX86_64R11, true
	case x86asm.R12:
		return wire.RegX86_64R12, true
	case x86asm.R13:
		return wire.RegX86_64R13, true
	case x86asm.R14:
		return wire.RegX86_64R14, true
	case x86asm.R15:
		return wire.RegX86_64R15, true
	case x86asm.RIP:
		return wire.RegX86_64RIP, true

	default:
		return 0, false
	}
}
