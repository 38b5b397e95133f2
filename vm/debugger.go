package vm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Context is the register read-out the `context` debugger operation
// produces, formatted for a console or UI status line.
type Context struct {
	I                byte
	IAddr            int
	A, B, C, D, S, F byte
	Flags            []Flag
}

func (c Context) String() string {
	var flags strings.Builder
	for _, f := range c.Flags {
		flags.WriteString(f.String())
	}
	return fmt.Sprintf("i:%#x i*3:%#x  A:%#x  B:%#x  C:%#x  D:%#x  s:%#x  f:%#x (%s)",
		c.I, c.IAddr, c.A, c.B, c.C, c.D, c.S, c.F, flags.String())
}

// Debugger wraps a Machine in single-step trap mode and maintains the
// reverse-step snapshot ring, breakpoint set, and continue-until-break
// state needed to drive it interactively. It is a state engine only —
// no view or console logic lives here; cmd/yan85 drives it from a REPL.
type Debugger struct {
	machine            *Machine
	snapshots          [][]byte
	breaks             map[int]bool
	continueUntilBreak bool
	trapReached        TrapType
	comments           map[int]string
	log                *logrus.Entry
}

// NewDebugger wraps m in trap mode and registers the internal trap
// handler. Any handler m already had is replaced — a Machine driven by a
// Debugger must not also be driven directly.
func NewDebugger(m *Machine, breakpoints []int, comments map[int]string) *Debugger {
	d := &Debugger{
		machine:  m,
		breaks:   map[int]bool{},
		comments: comments,
		log:      logrus.WithField("component", "debugger"),
	}
	for _, b := range breakpoints {
		d.breaks[b] = true
	}
	m.SetTrapModeEnabled(true)
	m.SetTrapHandler(d.trapHandler)
	return d
}

func (d *Debugger) trapHandler(t TrapType) {
	switch {
	case t != TrapMode && t != TrapNone:
		// an unhandled trap: halt and surface it
		d.trapReached = t
		d.continueUntilBreak = false
		d.log.WithField("trap", t.String()).Warn("reached unhandled trap")
	case !d.continueUntilBreak:
		// plain single step: nothing further to do, caller reads Context
	case d.isBreakpoint():
		d.continueUntilBreak = false
		d.log.Debug("reached breakpoint")
	default:
		// continuing and not yet at a breakpoint: tail-recursive step
		_ = d.Step()
	}
}

// isBreakpoint checks the address about to execute, i.e. the
// just-incremented i*3 — the check happens after the step, not before.
func (d *Debugger) isBreakpoint() bool {
	i := d.machine.ReadRegister(RegI)
	return d.breaks[int(i)*3]
}

// Step pushes a vmem snapshot and runs exactly one instruction (because
// the machine is in trap mode). It refuses to proceed while an
// unhandled trap is outstanding.
func (d *Debugger) Step() error {
	if d.trapReached != TrapNone {
		return fmt.Errorf("reached unhandled trap: %s", d.trapReached)
	}
	d.snapshots = append(d.snapshots, d.machine.VmemSnapshot())
	d.machine.RunLoop()
	return nil
}

// ReverseStep pops the most recent snapshot, restores vmem, clears the
// sticky trap, and fires the trap handler as if a trap_mode trap had
// just occurred, to refresh any attached view.
func (d *Debugger) ReverseStep() error {
	if len(d.snapshots) == 0 {
		return fmt.Errorf("reached end of the recording")
	}
	last := d.snapshots[len(d.snapshots)-1]
	d.snapshots = d.snapshots[:len(d.snapshots)-1]
	d.trapReached = TrapNone
	d.machine.RestoreVmem(last)
	d.machine.ClearTrap()
	d.trapHandler(TrapMode)
	return nil
}

// Continue sets continue-until-break and steps; the trap handler keeps
// stepping (tail-recursively) until a breakpoint address is reached or
// an unhandled trap fires.
func (d *Debugger) Continue() error {
	d.continueUntilBreak = true
	return d.Step()
}

// Context recomputes the register read-out for display.
func (d *Debugger) Context() Context {
	m := d.machine
	i := m.ReadRegister(RegI)
	f := m.ReadRegister(RegF)
	return Context{
		I: i, IAddr: int(i) * 3,
		A: m.ReadRegister(RegA), B: m.ReadRegister(RegB),
		C: m.ReadRegister(RegC), D: m.ReadRegister(RegD),
		S: m.ReadRegister(RegS), F: f,
		Flags: m.Config().Flags(f),
	}
}

// ToggleBreakpoint flips a byte-address breakpoint and reports whether
// it is now set.
func (d *Debugger) ToggleBreakpoint(addr int) bool {
	if d.breaks[addr] {
		delete(d.breaks, addr)
		return false
	}
	d.breaks[addr] = true
	return true
}

// Breakpoints returns the current breakpoint addresses in ascending
// order.
func (d *Debugger) Breakpoints() []int {
	out := make([]int, 0, len(d.breaks))
	for b := range d.breaks {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}

// TrapReached returns the outstanding unhandled trap, or TrapNone.
func (d *Debugger) TrapReached() TrapType { return d.trapReached }

// Machine returns the wrapped Machine for read-only inspection (e.g. by
// a CLI rendering the current context).
func (d *Debugger) Machine() *Machine { return d.machine }

// Disassemble renders the current program with a cursor at the
// machine's current instruction.
func (d *Debugger) Disassemble() []Entity {
	i := d.machine.ReadRegister(RegI)
	return Disassemble(d.machine, d.comments, int(i)*3+d.machine.Config().CodeBaseAddress)
}
