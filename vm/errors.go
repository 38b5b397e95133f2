package vm

import "errors"

// Configuration and assembly sentinel errors: package-level errors.New
// values, wrapped with fmt.Errorf("%w") for context at the call site.
var (
	ErrConfigInvalid   = errors.New("yan85: invalid encoding config")
	ErrUnknownOpcode   = errors.New("yan85: unknown opcode")
	ErrUnknownRegister = errors.New("yan85: unknown register")
	ErrUnknownFlag     = errors.New("yan85: unknown flag letter")
	ErrUnknownSyscall  = errors.New("yan85: unknown syscall name")
	ErrUnknownLabel    = errors.New("yan85: unknown label")
	ErrDuplicateLabel  = errors.New("yan85: duplicate label definition")
	ErrBadArgCount     = errors.New("yan85: invalid argument count")
	ErrBadBrackets     = errors.New("yan85: brackets on wrong operand")
	ErrBadOperandType  = errors.New("yan85: operand does not match expected type")
	ErrParse           = errors.New("yan85: parse error")
)

// TrapType classifies why the machine halted. Traps are not errors: they
// are machine state observed through the trap handler — a halted machine
// is not a failed Go call.
type TrapType int

const (
	TrapNone TrapType = iota
	TrapMode          // single-step trap, fired after every instruction when enabled
	TrapInvalidOpcode
	TrapInvalidRead
	TrapInvalidWrite
	TrapInvalidRegister
	TrapProgramExit
)

func (t TrapType) String() string {
	switch t {
	case TrapNone:
		return "none"
	case TrapMode:
		return "trap_mode"
	case TrapInvalidOpcode:
		return "invalid_opcode"
	case TrapInvalidRead:
		return "invalid_read"
	case TrapInvalidWrite:
		return "invalid_write"
	case TrapInvalidRegister:
		return "invalid_register"
	case TrapProgramExit:
		return "program_exit"
	default:
		return "unknown_trap"
	}
}
