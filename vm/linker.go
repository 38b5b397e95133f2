package vm

import "fmt"

// link resolves every unresolved label reference across the program and
// patches the corresponding byte index.
func link(instrs []UnlinkedInstruction, cfg Config) ([]UnlinkedInstruction, error) {
	labelIndex := map[string]int{}
	for idx, instr := range instrs {
		for _, label := range instr.Labels {
			if _, dup := labelIndex[label]; dup {
				return nil, fmt.Errorf("%w: %q (also defined earlier in the program)", ErrDuplicateLabel, label)
			}
			labelIndex[label] = idx
		}
	}

	linked := make([]UnlinkedInstruction, len(instrs))
	copy(linked, instrs)

	for i := range linked {
		for label, byteIdx := range linked[i].UnresolvedLabels {
			targetIdx, ok := labelIndex[label]
			if !ok {
				return nil, fmt.Errorf("%w: %q referenced at line %d", ErrUnknownLabel, label, linked[i].Line)
			}
			linked[i].Bytes[byteIdx] = byte((targetIdx + cfg.CodeBaseAddress) % 256)
		}
	}
	return linked, nil
}

// emit permutes each linked instruction's logical (opcode, p1, p2) bytes
// into the variant's physical slot order and appends them. This is the
// single place an assembled program's byte order is decided; the
// Machine and Disassembler must use the same Config.InstructionBytesOrder
// to agree with it.
func emit(instrs []UnlinkedInstruction, cfg Config) []byte {
	out := make([]byte, 0, len(instrs)*3)
	for _, instr := range instrs {
		var physical [3]byte
		for slotIdx, role := range cfg.InstructionBytesOrder {
			physical[slotIdx] = instr.Bytes[role]
		}
		out = append(out, physical[:]...)
	}
	return out
}
