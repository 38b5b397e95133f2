package vm

import "fmt"

// Register identifies one of the eight yan85 registers. The zero value
// is RegA; RegN is the distinguished null register.
type Register int

const (
	RegA Register = iota
	RegB
	RegC
	RegD
	RegS // stack pointer
	RegI // instruction counter
	RegF // flags
	RegN // null register: reads as 0, writes discarded
)

func (r Register) String() string {
	switch r {
	case RegA:
		return "A"
	case RegB:
		return "B"
	case RegC:
		return "C"
	case RegD:
		return "D"
	case RegS:
		return "s"
	case RegI:
		return "i"
	case RegF:
		return "f"
	case RegN:
		return "N"
	default:
		return fmt.Sprintf("Register(%d)", int(r))
	}
}

// Opcode identifies one of the eight yan85 instructions.
type Opcode int

const (
	OpIMM Opcode = iota
	OpADD
	OpSTK
	OpSTM
	OpLDM
	OpCMP
	OpJMP
	OpSYS
)

func (o Opcode) String() string {
	switch o {
	case OpIMM:
		return "IMM"
	case OpADD:
		return "ADD"
	case OpSTK:
		return "STK"
	case OpSTM:
		return "STM"
	case OpLDM:
		return "LDM"
	case OpCMP:
		return "CMP"
	case OpJMP:
		return "JMP"
	case OpSYS:
		return "SYS"
	default:
		return fmt.Sprintf("Opcode(%d)", int(o))
	}
}

// Flag is one of the five OR-combinable condition bits produced by CMP
// and consumed by JMP.
type Flag int

const (
	FlagN Flag = iota // not-equal
	FlagE             // equal
	FlagZ             // both zero
	FlagG             // greater
	FlagL             // less
)

func (f Flag) String() string {
	switch f {
	case FlagN:
		return "N"
	case FlagE:
		return "E"
	case FlagZ:
		return "Z"
	case FlagG:
		return "G"
	case FlagL:
		return "L"
	default:
		return fmt.Sprintf("Flag(%d)", int(f))
	}
}

// Syscall identifies one of the machine's syscall entry points.
type Syscall int

const (
	SysExit Syscall = iota
	SysReadMemory
	SysReadCode
	SysWrite
	SysOpen
	SysSleep
)

func (s Syscall) String() string {
	switch s {
	case SysExit:
		return "exit"
	case SysReadMemory:
		return "read_memory"
	case SysReadCode:
		return "read_code"
	case SysWrite:
		return "write"
	case SysOpen:
		return "open"
	case SysSleep:
		return "sleep"
	default:
		return fmt.Sprintf("Syscall(%d)", int(s))
	}
}

// Slot names the three logical roles of an instruction byte (opcode,
// first operand, second operand); InstructionBytesOrder maps each
// physical position onto one of these roles.
type Slot int

const (
	SlotOpcode Slot = iota
	SlotParam1
	SlotParam2
)

// Config is one yan85 variant: the byte assignments that differ between
// dialects. It is immutable after construction and shared by reference
// (or value — it is small and cheap to copy) by the Machine, the
// Assembler, and the Disassembler. Never build three parallel configs
// that can drift; build one and pass it everywhere.
type Config struct {
	VmemBytes             int
	CodeBaseAddress       int
	MemoryBaseAddress     int
	RegistersBaseAddress  int
	RegisterBytes         map[byte]Register // byte -> register identity
	RegistersAddrOffset   map[Register]int  // register identity -> offset within register file
	OpcodeBytes           map[byte]Opcode
	FlagBytes             map[byte]Flag
	SyscallBytes          map[byte]Syscall
	InstructionBytesOrder [3]Slot // physical slot index -> logical role
}

// reverseRegisters and its siblings build the inverse of a byte-keyed
// map on demand, from the single canonical byte-to-identity table.
func reverseRegisters(m map[byte]Register) map[Register]byte {
	out := make(map[Register]byte, len(m))
	for b, r := range m {
		out[r] = b
	}
	return out
}

func reverseOpcodes(m map[byte]Opcode) map[Opcode]byte {
	out := make(map[Opcode]byte, len(m))
	for b, o := range m {
		out[o] = b
	}
	return out
}

func reverseSyscalls(m map[byte]Syscall) map[Syscall]byte {
	out := make(map[Syscall]byte, len(m))
	for b, s := range m {
		out[s] = b
	}
	return out
}

// RegisterByte is the reverse lookup the assembler needs: register
// identity -> its configured byte value.
func (c Config) RegisterByte(r Register) (byte, bool) {
	b, ok := reverseRegisters(c.RegisterBytes)[r]
	return b, ok
}

// OpcodeByte is the reverse lookup the assembler needs: opcode identity
// -> its configured byte value.
func (c Config) OpcodeByte(o Opcode) (byte, bool) {
	b, ok := reverseOpcodes(c.OpcodeBytes)[o]
	return b, ok
}

// SyscallByte is the reverse lookup the assembler needs: syscall identity
// -> its configured byte value.
func (c Config) SyscallByte(s Syscall) (byte, bool) {
	b, ok := reverseSyscalls(c.SyscallBytes)[s]
	return b, ok
}

// FlagByte returns the configured mask bit for a single flag letter.
// Flag mask bits are the *keys* of FlagBytes, OR-combined — never the
// looked-up Flag values. This method is the single place that does the
// lookup correctly so callers never have to reason about it.
func (c Config) FlagByte(f Flag) (byte, bool) {
	for b, flag := range c.FlagBytes {
		if flag == f {
			return b, true
		}
	}
	return 0, false
}

// Default returns the reference variant: registers A=0x10 B=0x20 C=0x02
// D=0x08 s=0x04 i=0x40 f=0x01 N=0x00; opcodes IMM=0x40 ADD=0x01 STK=0x10
// STM=0x08 LDM=0x02 CMP=0x20 JMP=0x04 SYS=0x80; flags N=0x1 E=0x2 Z=0x4
// G=0x8 L=0x10; code_base=0 mem_base=0x300 reg_base=0x400; logical
// order equals physical order.
func Default() Config {
	return Config{
		VmemBytes:            0x1000,
		CodeBaseAddress:      0x000,
		MemoryBaseAddress:    0x300,
		RegistersBaseAddress: 0x400,
		RegisterBytes: map[byte]Register{
			0x10: RegA,
			0x20: RegB,
			0x02: RegC,
			0x08: RegD,
			0x04: RegS,
			0x40: RegI,
			0x01: RegF,
			0x00: RegN,
		},
		RegistersAddrOffset: map[Register]int{
			RegA: 0,
			RegB: 1,
			RegC: 2,
			RegD: 3,
			RegS: 4,
			RegI: 5,
			RegF: 6,
			RegN: 7,
		},
		OpcodeBytes: map[byte]Opcode{
			0x40: OpIMM,
			0x01: OpADD,
			0x10: OpSTK,
			0x08: OpSTM,
			0x02: OpLDM,
			0x20: OpCMP,
			0x04: OpJMP,
			0x80: OpSYS,
		},
		FlagBytes: map[byte]Flag{
			0x1:  FlagN,
			0x2:  FlagE,
			0x4:  FlagZ,
			0x8:  FlagG,
			0x10: FlagL,
		},
		SyscallBytes: map[byte]Syscall{
			0x01: SysExit,
			0x02: SysReadMemory,
			0x04: SysReadCode,
			0x08: SysWrite,
			0x10: SysOpen,
			0x20: SysSleep,
		},
		InstructionBytesOrder: [3]Slot{SlotOpcode, SlotParam1, SlotParam2},
	}
}

// Validate checks the config for construction-time failures: missing
// null register, a non-permutation instruction byte order, missing
// required maps.
func (c Config) Validate() error {
	if len(c.RegisterBytes) == 0 {
		return fmt.Errorf("%w: no register bytes configured", ErrConfigInvalid)
	}
	if len(c.OpcodeBytes) == 0 {
		return fmt.Errorf("%w: no opcode bytes configured", ErrConfigInvalid)
	}
	if len(c.FlagBytes) == 0 {
		return fmt.Errorf("%w: no flag bytes configured", ErrConfigInvalid)
	}
	if len(c.SyscallBytes) == 0 {
		return fmt.Errorf("%w: no syscall bytes configured", ErrConfigInvalid)
	}
	foundN := false
	for _, r := range c.RegisterBytes {
		if r == RegN {
			foundN = true
			break
		}
	}
	if !foundN {
		return fmt.Errorf("%w: no null register mapped", ErrConfigInvalid)
	}
	seen := map[Slot]bool{}
	for _, s := range c.InstructionBytesOrder {
		if s < SlotOpcode || s > SlotParam2 || seen[s] {
			return fmt.Errorf("%w: instruction byte order is not a permutation", ErrConfigInvalid)
		}
		seen[s] = true
	}
	if c.VmemBytes <= 0 {
		return fmt.Errorf("%w: vmem_bytes must be positive", ErrConfigInvalid)
	}
	return nil
}
