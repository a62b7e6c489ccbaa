package cfs

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/behrlich/udi-agent/internal/wire"
)

// EFLAGS/RFLAGS bit positions used by the condition predicates below.
const (
	flagCF = 1 << 0
	flagPF = 1 << 2
	flagZF = 1 << 6
	flagSF = 1 << 7
	flagOF = 1 << 11
)

// isConditionalBranch reports whether op is one of the conditional jump or
// loop-family opcodes spec §4.5 lists.
func isConditionalBranch(op x86asm.Op) bool {
	switch op {
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE,
		x86asm.JE, x86asm.JNE, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE,
		x86asm.JS, x86asm.JNS, x86asm.JO, x86asm.JNO, x86asm.JP, x86asm.JNP,
		x86asm.JCXZ, x86asm.JECXZ, x86asm.JRCXZ,
		x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return true
	default:
		return false
	}
}

// evaluateCondition evaluates op's predicate against the flags register and,
// for the counter-register forms (JCXZ/JECXZ/JRCXZ, LOOP/LOOPE/LOOPNE),
// the appropriate counter register, using the standard x86 condition-code
// semantics.
func evaluateCondition(op x86asm.Op, regs *wire.RegisterContext, mode int) bool {
	f := uint32(regs.Flags)
	cf := f&flagCF != 0
	zf := f&flagZF != 0
	sf := f&flagSF != 0
	of := f&flagOF != 0
	pf := f&flagPF != 0

	switch op {
	case x86asm.JO:
		return of
	case x86asm.JNO:
		return !of
	case x86asm.JB:
		return cf
	case x86asm.JAE:
		return !cf
	case x86asm.JE:
		return zf
	case x86asm.JNE:
		return !zf
	case x86asm.JBE:
		return cf || zf
	case x86asm.JA:
		return !cf && !zf
	case x86asm.JS:
		return sf
	case x86asm.JNS:
		return !sf
	case x86asm.JP:
		return pf
	case x86asm.JNP:
		return !pf
	case x86asm.JL:
		return sf != of
	case x86asm.JGE:
		return sf == of
	case x86asm.JLE:
		return zf || sf != of
	case x86asm.JG:
		return !zf && sf == of
	case x86asm.JCXZ:
		return counterValue(regs, 16) == 0
	case x86asm.JECXZ:
		return counterValue(regs, 32) == 0
	case x86asm.JRCXZ:
		return counterValue(regs, 64) == 0
	case x86asm.LOOP:
		return decrementedCounter(regs, mode) != 0
	case x86asm.LOOPE:
		return decrementedCounter(regs, mode) != 0 && zf
	case x86asm.LOOPNE:
		return decrementedCounter(regs, mode) != 0 && !zf
	default:
		return false
	}
}

func counterValue(regs *wire.RegisterContext, width int) uint64 {
	if regs.Arch == wire.ArchX86 {
		v, _ := regs.Get(wire.RegX86ECX)
		return maskWidth(v, width)
	}
	v, _ := regs.Get(wire.RegX86_64RCX)
	return maskWidth(v, width)
}

func decrementedCounter(regs *wire.RegisterContext, mode int) uint64 {
	return counterValue(regs, mode) - 1
}

func maskWidth(v uint64, width int) uint64 {
	switch width {
	case 16:
		return v & 0xFFFF
	case 32:
		return v & 0xFFFFFFFF
	default:
		return v
	}
}
