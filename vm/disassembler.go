package vm

import (
	"fmt"
	"strings"
)

// EntityKind distinguishes a successfully decoded instruction from a
// byte triple that could not be decoded as one.
type EntityKind int

const (
	EntityCode EntityKind = iota
	EntityByte
)

// Entity is one decoded (or failed-to-decode) 3-byte slot of vmem,
// transient output of the Disassembler — never fed back into the
// Machine. Pseudo-ops lower to plain instructions at assemble time, so
// neither the Machine nor the Disassembler ever needs to know about them.
type Entity struct {
	Kind         EntityKind
	Address      int
	Bytes        [3]byte
	Opcode       Opcode
	HasOpcode    bool
	Operands     [2]string
	LineComment  string
	PlateComment string
	ChangesFlow  bool
	Cursor       bool
}

// Disassemble performs a linear sweep: one Entity every 3 bytes from
// CodeBaseAddress across the full vmem. Recursive-descent disassembly is
// a possible future addition, not this contract. comments supplies
// caller-keyed per-address annotations; cursorAddr marks the machine's
// current instruction address, or -1 for no cursor.
func Disassemble(m *Machine, comments map[int]string, cursorAddr int) []Entity {
	cfg := m.Config()
	vmem := m.Vmem()

	var entities []Entity
	for addr := cfg.CodeBaseAddress; addr+3 <= len(vmem); addr += 3 {
		e := disassembleOne(vmem, cfg, addr)
		if c, ok := comments[addr]; ok {
			e.PlateComment = c
		}
		e.Cursor = addr == cursorAddr
		entities = append(entities, e)
	}
	return entities
}

func disassembleOne(vmem []byte, cfg Config, addr int) Entity {
	var physical [3]byte
	copy(physical[:], vmem[addr:addr+3])

	var logical [3]byte
	for slotIdx, role := range cfg.InstructionBytesOrder {
		logical[role] = physical[slotIdx]
	}
	opcodeByte, p1, p2 := logical[SlotOpcode], logical[SlotParam1], logical[SlotParam2]

	e := Entity{Address: addr, Bytes: physical}

	op, ok := cfg.OpcodeBytes[opcodeByte]
	if !ok {
		e.Kind = EntityByte
		e.LineComment = "Invalid Opcode"
		return e
	}
	e.Kind = EntityCode
	e.HasOpcode = true
	e.Opcode = op

	switch op {
	case OpSTK:
		dst, dstOk := cfg.RegisterBytes[p1]
		src, srcOk := cfg.RegisterBytes[p2]
		if !dstOk || !srcOk {
			return invalidRegisterEntity(e, op)
		}
		e.Operands = [2]string{dst.String(), src.String()}
		switch {
		case dst == RegN && src == RegN:
			e.LineComment = "nop"
		case src == RegN:
			e.LineComment = fmt.Sprintf("pop %s", dst)
		case dst == RegN:
			e.LineComment = fmt.Sprintf("push %s", src)
		default:
			e.LineComment = fmt.Sprintf("%s = %s", dst, src)
		}
		if dst == RegI || src == RegI {
			e.ChangesFlow = true
		}

	case OpIMM:
		dst, dstOk := cfg.RegisterBytes[p1]
		if !dstOk {
			return invalidRegisterEntity(e, op)
		}
		e.Operands = [2]string{dst.String(), fmt.Sprintf("%#02x", p2)}
		switch {
		case dst == RegI:
			e.LineComment = fmt.Sprintf("JMP %#x", int(p2)*3)
			e.ChangesFlow = true
		case p2 >= 0x20 && p2 <= 0x7e:
			e.LineComment = fmt.Sprintf("'%c'", p2)
		}

	case OpJMP:
		tgt, tgtOk := cfg.RegisterBytes[p2]
		if !tgtOk {
			return invalidRegisterEntity(e, op)
		}
		e.ChangesFlow = true
		e.Operands = [2]string{fmt.Sprintf("%#02x", p1), tgt.String()}
		if p1 == 0 {
			e.LineComment = "unconditional"
		} else {
			var letters strings.Builder
			for _, f := range cfg.Flags(p1) {
				letters.WriteString(f.String())
			}
			e.LineComment = letters.String()
		}

	case OpSYS:
		resultReg, resOk := cfg.RegisterBytes[p2]
		if !resOk {
			return invalidRegisterEntity(e, op)
		}
		e.Operands[1] = resultReg.String()
		if sys, sysOk := cfg.SyscallBytes[p1]; sysOk {
			e.Operands[0] = sys.String() + "()"
			e.LineComment = sys.String()
		} else {
			e.Operands[0] = fmt.Sprintf("%#02x", p1)
			e.LineComment = fmt.Sprintf("syscall Invalid number %#02x", p1)
		}

	default: // ADD, STM, LDM, CMP: both operands are reg8
		r1, ok1 := cfg.RegisterBytes[p1]
		r2, ok2 := cfg.RegisterBytes[p2]
		if !ok1 || !ok2 {
			return invalidRegisterEntity(e, op)
		}
		e.Operands = [2]string{r1.String(), r2.String()}
	}
	return e
}

func invalidRegisterEntity(e Entity, op Opcode) Entity {
	e.Kind = EntityByte
	e.HasOpcode = false
	e.LineComment = fmt.Sprintf("%s Invalid Register", op)
	return e
}

// Render formats a decoded listing, marking the cursor entity with ">>".
// This is plain-text formatting, not a view layer — ANSI styling stays
// out of scope.
func Render(entities []Entity) string {
	var b strings.Builder
	for _, e := range entities {
		if e.PlateComment != "" {
			fmt.Fprintf(&b, "# %s\n", e.PlateComment)
		}
		marker := "  "
		if e.Cursor {
			marker = ">>"
		}
		switch e.Kind {
		case EntityCode:
			fmt.Fprintf(&b, "%s %#04x: %-4s %s, %s", marker, e.Address, e.Opcode, e.Operands[0], e.Operands[1])
		case EntityByte:
			fmt.Fprintf(&b, "%s %#04x: .byte %#02x %#02x %#02x", marker, e.Address, e.Bytes[0], e.Bytes[1], e.Bytes[2])
		}
		if e.LineComment != "" {
			fmt.Fprintf(&b, "   # %s", e.LineComment)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
