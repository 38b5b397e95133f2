package vm

import (
	"errors"
	"testing"
)

func TestAssembleRejectsUnknownOpcode(t *testing.T) {
	_, err := Assemble("FROB A B\n", Default())
	assert(t, errors.Is(err, ErrUnknownOpcode), "got %v, want ErrUnknownOpcode", err)
}

func TestAssembleRejectsBracketsOnWrongOperand(t *testing.T) {
	_, err := Assemble("STM A [B]\n", Default())
	assert(t, errors.Is(err, ErrBadBrackets), "got %v, want ErrBadBrackets", err)
}

func TestAssembleRejectsBracketsOnWrongOperandLdm(t *testing.T) {
	_, err := Assemble("LDM [A] B\n", Default())
	assert(t, errors.Is(err, ErrBadBrackets), "got %v, want ErrBadBrackets", err)
}

func TestAssembleRejectsUnknownLabel(t *testing.T) {
	_, err := Assemble("IMM A :nowhere\n", Default())
	assert(t, errors.Is(err, ErrUnknownLabel), "got %v, want ErrUnknownLabel", err)
}

func TestAssembleRejectsDuplicateLabel(t *testing.T) {
	_, err := Assemble(":dup\nNOP\n:dup\nNOP\n", Default())
	assert(t, errors.Is(err, ErrDuplicateLabel), "got %v, want ErrDuplicateLabel", err)
}

func TestAssembleRejectsUnknownFlagLetter(t *testing.T) {
	_, err := Assemble("J_Q A\n", Default())
	assert(t, errors.Is(err, ErrUnknownFlag), "got %v, want ErrUnknownFlag", err)
}

func TestAssembleRejectsUnknownSyscall(t *testing.T) {
	_, err := Assemble("SYS frobnicate() D\n", Default())
	assert(t, errors.Is(err, ErrUnknownSyscall), "got %v, want ErrUnknownSyscall", err)
}

func TestAssembleCommentsAndBlankLinesIgnored(t *testing.T) {
	code, err := Assemble("# a comment\n\nIMM A 0x1 # trailing comment\n\n# another\nNOP\n", Default())
	assert(t, err == nil, "assemble failed: %v", err)
	assert(t, len(code) == 6, "expected 2 instructions (6 bytes), got %d", len(code))
}

// Assemble-then-disassemble round trip for source using no pseudo-ops:
// the produced bytes decode back to the same opcodes.
func TestRoundTripAssembleDisassemble(t *testing.T) {
	cfg := Default()
	src := "IMM A 0x10\nIMM B 0x20\nADD A B\nCMP A B\nSTM [A] B\nLDM A [B]\nJMP 0x0 A\nSYS exit() A\n"
	code, err := Assemble(src, cfg)
	assert(t, err == nil, "assemble failed: %v", err)

	m, err := New(cfg)
	assert(t, err == nil, "New failed: %v", err)
	assert(t, m.LoadCode(hexDump(code)) == nil, "load failed")

	entities := Disassemble(m, nil, -1)
	wantOps := []Opcode{OpIMM, OpIMM, OpADD, OpCMP, OpSTM, OpLDM, OpJMP, OpSYS}
	for i, op := range wantOps {
		assert(t, entities[i].Kind == EntityCode, "entity %d: not decoded as code", i)
		assert(t, entities[i].Opcode == op, "entity %d: opcode = %s, want %s", i, entities[i].Opcode, op)
	}
}

func TestPseudoOpsLowerCorrectly(t *testing.T) {
	cfg := Default()
	pushPop, err := Assemble("PUSH A\nPOP B\nNOP\n", cfg)
	assert(t, err == nil, "assemble failed: %v", err)
	direct, err := Assemble("STK N A\nSTK B N\nSTK N N\n", cfg)
	assert(t, err == nil, "assemble failed: %v", err)
	assert(t, len(pushPop) == len(direct), "length mismatch")
	for i := range pushPop {
		assert(t, pushPop[i] == direct[i], "byte %d: %#x != %#x", i, pushPop[i], direct[i])
	}
}
