package vm

import "testing"

func newDebuggerMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := New(Default())
	assert(t, err == nil, "New failed: %v", err)
	return m
}

// IMM A 0x5; IMM B 0x3; ADD A B.
func s1Program(t *testing.T, m *Machine) {
	t.Helper()
	loadHex(t, m, []byte{0x40, 0x10, 0x05, 0x40, 0x20, 0x03, 0x01, 0x10, 0x20})
}

func TestDebuggerStepAdvancesOneInstruction(t *testing.T) {
	m := newDebuggerMachine(t)
	s1Program(t, m)
	d := NewDebugger(m, nil, nil)

	assert(t, d.Step() == nil, "step failed")
	assert(t, m.ReadRegister(RegA) == 5, "A = %d, want 5", m.ReadRegister(RegA))
	assert(t, m.ReadRegister(RegB) == 0, "B = %d, want 0 (not yet executed)", m.ReadRegister(RegB))
}

func TestDebuggerReverseStepUndoesOneInstruction(t *testing.T) {
	m := newDebuggerMachine(t)
	s1Program(t, m)
	d := NewDebugger(m, nil, nil)

	assert(t, d.Step() == nil, "step failed")
	assert(t, d.Step() == nil, "step failed")
	assert(t, m.ReadRegister(RegA) == 5 && m.ReadRegister(RegB) == 3, "unexpected state after two steps")

	assert(t, d.ReverseStep() == nil, "reverse step failed")
	assert(t, m.ReadRegister(RegB) == 0, "B = %d, want 0 after undoing the second IMM", m.ReadRegister(RegB))
	assert(t, m.ReadRegister(RegA) == 5, "A should be unaffected by undoing the second instruction")
}

func TestDebuggerReverseStepAtStartIsError(t *testing.T) {
	m := newDebuggerMachine(t)
	s1Program(t, m)
	d := NewDebugger(m, nil, nil)
	assert(t, d.ReverseStep() != nil, "expected error reversing past the start of the recording")
}

func TestDebuggerContinueStopsAtBreakpoint(t *testing.T) {
	m := newDebuggerMachine(t)
	s1Program(t, m)
	// third instruction (ADD A B) starts at byte address 2*3 = 6.
	d := NewDebugger(m, []int{6}, nil)

	assert(t, d.Continue() == nil, "continue failed")
	assert(t, m.ReadRegister(RegI) == 2, "i = %d, want 2 (stopped before the third instruction)", m.ReadRegister(RegI))
	assert(t, m.ReadRegister(RegA) == 5 && m.ReadRegister(RegB) == 3, "first two instructions should have run")
}

func TestDebuggerToggleBreakpoint(t *testing.T) {
	m := newDebuggerMachine(t)
	d := NewDebugger(m, nil, nil)
	assert(t, d.ToggleBreakpoint(9), "first toggle should set the breakpoint")
	assert(t, len(d.Breakpoints()) == 1 && d.Breakpoints()[0] == 9, "breakpoint not recorded")
	assert(t, !d.ToggleBreakpoint(9), "second toggle should clear the breakpoint")
	assert(t, len(d.Breakpoints()) == 0, "breakpoint not cleared")
}

func TestDebuggerStopsSteppingPastUnhandledTrap(t *testing.T) {
	m := newDebuggerMachine(t)
	loadHex(t, m, []byte{0xaa, 0x00, 0x00})
	d := NewDebugger(m, nil, nil)

	assert(t, d.Step() == nil, "first step (into the invalid opcode) should not itself error")
	assert(t, d.TrapReached() == TrapInvalidOpcode, "trap reached = %s, want invalid_opcode", d.TrapReached())
	assert(t, d.Step() != nil, "stepping again after an unhandled trap must be refused")
}

func TestDebuggerContextReportsRegistersAndFlags(t *testing.T) {
	m := newDebuggerMachine(t)
	code, err := Assemble("IMM A 0x1\nIMM B 0x1\nCMP A B\n", m.Config())
	assert(t, err == nil, "assemble failed: %v", err)
	assert(t, m.LoadCode(hexDump(code)) == nil, "load failed")
	d := NewDebugger(m, nil, nil)

	for i := 0; i < 3; i++ {
		assert(t, d.Step() == nil, "step %d failed", i)
	}
	ctx := d.Context()
	assert(t, ctx.A == 1 && ctx.B == 1, "unexpected register snapshot")
	hasE := false
	for _, f := range ctx.Flags {
		if f == FlagE {
			hasE = true
		}
	}
	assert(t, hasE, "expected FlagE after comparing two equal registers")
}
