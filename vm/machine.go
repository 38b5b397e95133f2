package vm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// TrapHandler is invoked once per halt, after RunLoop stops, with the
// TrapType that caused the stop. This is the Debugger's render tick:
// never poll from a UI, always react to the trap handler firing.
type TrapHandler func(TrapType)

// Machine owns the flat vmem buffer, the Encoding Config, trap state, and
// an optional stdin source. It is the single source of truth; the
// Disassembler and Debugger hold a borrowed view and mutate only through
// its exported operations.
type Machine struct {
	cfg             Config
	vmem            []byte
	trapModeEnabled bool
	trapHalt        bool
	trapType        TrapType
	stdinBuffer     []byte
	trapHandler     TrapHandler
	syscalls        *syscallTable
	log             *logrus.Entry
}

// New constructs a Machine bound to cfg. cfg is validated once here and
// never mutated afterward.
func New(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Machine{
		cfg:      cfg,
		vmem:     make([]byte, cfg.VmemBytes),
		syscalls: newSyscallTable(),
		log:      logrus.WithField("component", "machine"),
	}, nil
}

// Config returns the machine's Encoding Config, shared (not copied
// mutably) with the Assembler and Disassembler constructed alongside it.
func (m *Machine) Config() Config { return m.cfg }

// SetTrapHandler registers the callback fired once per halt.
func (m *Machine) SetTrapHandler(h TrapHandler) { m.trapHandler = h }

// SetTrapModeEnabled toggles single-step trapping. The Debugger always
// runs with this set to true.
func (m *Machine) SetTrapModeEnabled(enabled bool) { m.trapModeEnabled = enabled }

// TrapModeEnabled reports whether single-step trapping is active.
func (m *Machine) TrapModeEnabled() bool { return m.trapModeEnabled }

// TrapType returns the classification of the most recent halt.
func (m *Machine) TrapType() TrapType { return m.trapType }

// SetStdin installs the finite, read-only byte source consumed by read
// syscalls. Repeated reads always start at offset 0 — the buffer is
// never advanced.
func (m *Machine) SetStdin(data []byte) { m.stdinBuffer = data }

// VmemSnapshot returns a byte-for-byte copy of vmem, suitable for the
// Debugger's reverse-step ring.
func (m *Machine) VmemSnapshot() []byte {
	out := make([]byte, len(m.vmem))
	copy(out, m.vmem)
	return out
}

// RestoreVmem overwrites vmem with a previously captured snapshot. It
// does not touch trap state; callers restoring a snapshot for
// reverse-step must clear the sticky trap themselves (the Debugger does).
func (m *Machine) RestoreVmem(snapshot []byte) {
	if len(snapshot) != len(m.vmem) {
		copy(m.vmem, snapshot)
		return
	}
	copy(m.vmem, snapshot)
}

// ClearTrap resets the sticky trap state without running anything, used
// by reverse-step to pretend the halt never happened.
func (m *Machine) ClearTrap() {
	m.trapHalt = false
	m.trapType = TrapNone
}

// LoadCode parses the hex-dump input format: ASCII lines of
// space-separated 2-digit hex bytes, blank lines ignored, landed
// contiguously at CodeBaseAddress.
func (m *Machine) LoadCode(dump string) error {
	var bytes []byte
	for _, line := range strings.Split(dump, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseUint(field, 16, 8)
			if err != nil {
				return fmt.Errorf("yan85: invalid hex byte %q: %w", field, err)
			}
			bytes = append(bytes, byte(v))
		}
	}
	if m.cfg.CodeBaseAddress+len(bytes) > len(m.vmem) {
		return fmt.Errorf("yan85: code image of %d bytes overflows vmem at base %#x", len(bytes), m.cfg.CodeBaseAddress)
	}
	copy(m.vmem[m.cfg.CodeBaseAddress:], bytes)
	m.log.WithField("bytes", len(bytes)).Debug("loaded code image")
	return nil
}

func (m *Machine) raiseTrap(t TrapType) {
	m.trapType = t
	m.trapHalt = true
	m.log.WithField("trap", t.String()).Debug("trap raised")
}

func (m *Machine) readVmem(addr int) byte {
	if addr < 0 || addr >= len(m.vmem) {
		m.raiseTrap(TrapInvalidRead)
		return 0
	}
	return m.vmem[addr]
}

func (m *Machine) writeVmem(addr int, val byte) {
	if addr < 0 || addr >= len(m.vmem) {
		m.raiseTrap(TrapInvalidWrite)
		return
	}
	m.vmem[addr] = val
}

func (m *Machine) regFromByte(b byte) (Register, bool) {
	r, ok := m.cfg.RegisterBytes[b]
	if !ok {
		m.raiseTrap(TrapInvalidRegister)
		return RegN, false
	}
	return r, true
}

// ReadRegister reads a register's current byte value. RegN always reads
// as 0 — it is the null register.
func (m *Machine) ReadRegister(r Register) byte {
	if r == RegN {
		return 0
	}
	offset, ok := m.cfg.RegistersAddrOffset[r]
	if !ok {
		m.raiseTrap(TrapInvalidRegister)
		return 0
	}
	return m.readVmem(m.cfg.RegistersBaseAddress + offset)
}

// WriteRegister writes a register's byte value. Writes to RegN are
// discarded.
func (m *Machine) WriteRegister(r Register, val byte) {
	if r == RegN {
		return
	}
	offset, ok := m.cfg.RegistersAddrOffset[r]
	if !ok {
		m.raiseTrap(TrapInvalidRegister)
		return
	}
	m.writeVmem(m.cfg.RegistersBaseAddress+offset, val)
}

// ReadMemoryAt reads one byte from the data segment at the given offset
// (MemoryBaseAddress is added to form the physical vmem address).
func (m *Machine) ReadMemoryAt(offset byte) byte {
	return m.readVmem(m.cfg.MemoryBaseAddress + int(offset))
}

// WriteMemoryAt writes one byte into the data segment at the given
// offset.
func (m *Machine) WriteMemoryAt(offset byte, val byte) {
	m.writeVmem(m.cfg.MemoryBaseAddress+int(offset), val)
}

// ReadStdin returns up to n bytes from the stdin buffer, always starting
// at offset 0 (never advanced).
func (m *Machine) ReadStdin(n int) []byte {
	if n < 0 {
		n = 0
	}
	if n > len(m.stdinBuffer) {
		n = len(m.stdinBuffer)
	}
	return m.stdinBuffer[:n]
}

// Vmem exposes the live buffer for read-only consumers (Disassembler,
// hexdump). Callers must not retain or mutate it past the current call;
// take a VmemSnapshot for that.
func (m *Machine) Vmem() []byte { return m.vmem }

// RunLoop is the fetch-execute cycle: clears trap_halt, then steps until
// the next halt. With TrapModeEnabled set, TrapMode fires after exactly
// one instruction, so a single RunLoop call executes exactly one
// instruction.
func (m *Machine) RunLoop() {
	m.trapHalt = false
	m.trapType = TrapNone
	for !m.trapHalt {
		m.stepOnce()
	}
	if m.trapHandler != nil {
		m.trapHandler(m.trapType)
	}
}

func (m *Machine) stepOnce() {
	pc := int(m.ReadRegister(RegI))
	if m.trapHalt {
		return
	}
	addr := pc*3 + m.cfg.CodeBaseAddress

	var physical [3]byte
	for i := 0; i < 3; i++ {
		physical[i] = m.readVmem(addr + i)
		if m.trapHalt {
			return
		}
	}

	var logical [3]byte
	for slotIdx, role := range m.cfg.InstructionBytesOrder {
		logical[role] = physical[slotIdx]
	}
	opcodeByte, p1, p2 := logical[SlotOpcode], logical[SlotParam1], logical[SlotParam2]

	// i is advanced before dispatch; a taken JMP overwrites this value,
	// so the increment must happen first or JMP's effect would be lost.
	m.WriteRegister(RegI, byte((pc+1)%256))
	if m.trapHalt {
		return
	}

	op, ok := m.cfg.OpcodeBytes[opcodeByte]
	if !ok {
		m.raiseTrap(TrapInvalidOpcode)
		return
	}

	m.dispatch(op, p1, p2)
	if m.trapHalt {
		return
	}

	if m.trapModeEnabled {
		m.raiseTrap(TrapMode)
	}
}

func (m *Machine) dispatch(op Opcode, p1, p2 byte) {
	switch op {
	case OpIMM:
		dst, ok := m.regFromByte(p1)
		if !ok {
			return
		}
		m.WriteRegister(dst, p2)

	case OpADD:
		r1, ok := m.regFromByte(p1)
		if !ok {
			return
		}
		r2, ok := m.regFromByte(p2)
		if !ok {
			return
		}
		sum := byte((int(m.ReadRegister(r1)) + int(m.ReadRegister(r2))) % 256)
		m.WriteRegister(r1, sum)

	case OpSTK:
		dst, ok := m.regFromByte(p1)
		if !ok {
			return
		}
		src, ok := m.regFromByte(p2)
		if !ok {
			return
		}
		if src != RegN {
			s := byte((int(m.ReadRegister(RegS)) + 1) % 256)
			m.WriteRegister(RegS, s)
			if m.trapHalt {
				return
			}
			m.WriteMemoryAt(s, m.ReadRegister(src))
			if m.trapHalt {
				return
			}
		}
		if dst != RegN {
			s := m.ReadRegister(RegS)
			val := m.ReadMemoryAt(s)
			if m.trapHalt {
				return
			}
			m.WriteRegister(dst, val)
			m.WriteRegister(RegS, byte((int(s)-1+256)%256))
		}

	case OpSTM:
		addrReg, ok := m.regFromByte(p1)
		if !ok {
			return
		}
		srcReg, ok := m.regFromByte(p2)
		if !ok {
			return
		}
		m.WriteMemoryAt(m.ReadRegister(addrReg), m.ReadRegister(srcReg))

	case OpLDM:
		dstReg, ok := m.regFromByte(p1)
		if !ok {
			return
		}
		addrReg, ok := m.regFromByte(p2)
		if !ok {
			return
		}
		val := m.ReadMemoryAt(m.ReadRegister(addrReg))
		if m.trapHalt {
			return
		}
		m.WriteRegister(dstReg, val)

	case OpCMP:
		r1, ok := m.regFromByte(p1)
		if !ok {
			return
		}
		r2, ok := m.regFromByte(p2)
		if !ok {
			return
		}
		m.compare(r1, r2)

	case OpJMP:
		tgt, ok := m.regFromByte(p2)
		if !ok {
			return
		}
		f := m.ReadRegister(RegF)
		if p1 == 0 || f&p1 != 0 {
			m.WriteRegister(RegI, m.ReadRegister(tgt))
		}

	case OpSYS:
		resultReg, ok := m.regFromByte(p2)
		if !ok {
			return
		}
		m.syscalls.dispatch(m, p1, resultReg)

	default:
		m.raiseTrap(TrapInvalidOpcode)
	}
}

// compare sets exactly these flag bits: E iff equal, N iff not equal,
// Z iff both zero, L iff r1<r2, G iff r1>r2 — OR-combined using the
// configured mask bits (the *keys* of FlagBytes, not their looked-up
// Flag values).
func (m *Machine) compare(r1, r2 Register) {
	v1 := m.ReadRegister(r1)
	v2 := m.ReadRegister(r2)
	var mask byte
	if v1 < v2 {
		if b, ok := m.cfg.FlagByte(FlagL); ok {
			mask |= b
		}
	}
	if v1 > v2 {
		if b, ok := m.cfg.FlagByte(FlagG); ok {
			mask |= b
		}
	}
	if v1 == v2 {
		if b, ok := m.cfg.FlagByte(FlagE); ok {
			mask |= b
		}
	} else {
		if b, ok := m.cfg.FlagByte(FlagN); ok {
			mask |= b
		}
	}
	if v1 == 0 && v2 == 0 {
		if b, ok := m.cfg.FlagByte(FlagZ); ok {
			mask |= b
		}
	}
	m.WriteRegister(RegF, mask)
}

// Flags decodes a raw flag-byte mask into the set of Flags whose
// configured bit is set, used by the Disassembler and Debugger context
// readout to render e.g. "f:0x6 (EZ)".
func (c Config) Flags(mask byte) []Flag {
	var out []Flag
	for b, f := range c.FlagBytes {
		if mask&b != 0 {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
