package vm

import "testing"

func TestDisassembleAnnotatesStk(t *testing.T) {
	cfg := Default()
	m, err := New(cfg)
	assert(t, err == nil, "New failed: %v", err)
	code, err := Assemble("PUSH A\nPOP B\nNOP\nSTK A A\n", cfg)
	assert(t, err == nil, "assemble failed: %v", err)
	assert(t, m.LoadCode(hexDump(code)) == nil, "load failed")

	entities := Disassemble(m, nil, -1)
	assert(t, entities[0].LineComment == "push A", "got %q", entities[0].LineComment)
	assert(t, entities[1].LineComment == "pop B", "got %q", entities[1].LineComment)
	assert(t, entities[2].LineComment == "nop", "got %q", entities[2].LineComment)
	assert(t, entities[3].LineComment == "A = A", "got %q", entities[3].LineComment)
}

func TestDisassembleAnnotatesImmJumpAndChar(t *testing.T) {
	cfg := Default()
	m, err := New(cfg)
	assert(t, err == nil, "New failed: %v", err)
	code, err := Assemble("IMM i 0x2\nIMM A 0x41\n", cfg)
	assert(t, err == nil, "assemble failed: %v", err)
	assert(t, m.LoadCode(hexDump(code)) == nil, "load failed")

	entities := Disassemble(m, nil, -1)
	assert(t, entities[0].ChangesFlow, "IMM into i should set ChangesFlow")
	assert(t, entities[0].LineComment == "JMP 0x6", "got %q", entities[0].LineComment)
	assert(t, entities[1].LineComment == "'A'", "got %q", entities[1].LineComment)
}

func TestDisassembleFlagsInvalidOpcodeAndRegister(t *testing.T) {
	cfg := Default()
	m, err := New(cfg)
	assert(t, err == nil, "New failed: %v", err)
	assert(t, m.LoadCode("aa 00 00  40 ff 00") == nil, "load failed")

	entities := Disassemble(m, nil, -1)
	assert(t, entities[0].Kind == EntityByte, "expected byte entity for invalid opcode")
	assert(t, entities[0].LineComment == "Invalid Opcode", "got %q", entities[0].LineComment)
	assert(t, entities[1].Kind == EntityByte, "expected byte entity for invalid register")
	assert(t, entities[1].LineComment == "IMM Invalid Register", "got %q", entities[1].LineComment)
}

func TestDisassembleCursorMarker(t *testing.T) {
	cfg := Default()
	m, err := New(cfg)
	assert(t, err == nil, "New failed: %v", err)
	code, err := Assemble("NOP\nNOP\n", cfg)
	assert(t, err == nil, "assemble failed: %v", err)
	assert(t, m.LoadCode(hexDump(code)) == nil, "load failed")

	entities := Disassemble(m, nil, 3)
	assert(t, !entities[0].Cursor, "entity 0 should not be cursor")
	assert(t, entities[1].Cursor, "entity 1 should be cursor")
}

func TestDisassembleUnknownSyscall(t *testing.T) {
	cfg := Default()
	m, err := New(cfg)
	assert(t, err == nil, "New failed: %v", err)
	// SYS opcode byte 0x80, bogus call mask 0xfe, register N (0x00)
	assert(t, m.LoadCode("80 fe 00") == nil, "load failed")
	entities := Disassemble(m, nil, -1)
	assert(t, entities[0].Kind == EntityCode, "expected code entity")
	assert(t, entities[0].LineComment == "syscall Invalid number 0xfe", "got %q", entities[0].LineComment)
}
