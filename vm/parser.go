package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// UnlinkedInstruction is one parsed statement awaiting label resolution:
// its logical bytes with unresolved label slots pre-filled with the
// sentinel 0xff, the labels it defines, and the byte indices that still
// need patching.
type UnlinkedInstruction struct {
	Tokens           []Token
	Bytes            [3]byte
	Labels           []string
	UnresolvedLabels map[string]int
	Line             int
}

const labelSentinel = 0xff

var opcodeNames = map[string]Opcode{
	"IMM": OpIMM,
	"ADD": OpADD,
	"STK": OpSTK,
	"STM": OpSTM,
	"LDM": OpLDM,
	"CMP": OpCMP,
	"JMP": OpJMP,
	"SYS": OpSYS,
}

var registerNames = map[string]Register{
	"A": RegA,
	"B": RegB,
	"C": RegC,
	"D": RegD,
	"s": RegS,
	"i": RegI,
	"f": RegF,
	"N": RegN,
}

var syscallNames = map[string]Syscall{
	"exit":        SysExit,
	"read_memory": SysReadMemory,
	"read_code":   SysReadCode,
	"write":       SysWrite,
	"open":        SysOpen,
	"sleep":       SysSleep,
}

var flagLetters = map[byte]Flag{
	'N': FlagN,
	'E': FlagE,
	'Z': FlagZ,
	'G': FlagG,
	'L': FlagL,
}

// paramKind is the schema type of one operand slot: reg8 or imm8. Every
// opcode has a fixed parameter schema.
type paramKind int

const (
	kindReg paramKind = iota
	kindImm
)

// genericSchema covers the opcodes whose source form is "OPCODE op1 op2"
// with no bracket/label/sysname decoration. STM/LDM/IMM-of-label/SYS
// always go through their decorated forms below, never this table.
var genericSchema = map[Opcode][2]paramKind{
	OpADD: {kindReg, kindReg},
	OpSTK: {kindReg, kindReg},
	OpCMP: {kindReg, kindReg},
	OpJMP: {kindImm, kindReg},
	OpIMM: {kindReg, kindImm},
}

func registerByName(name string) (Register, bool) {
	r, ok := registerNames[name]
	return r, ok
}

func parseImmediate(text string) (byte, error) {
	v, err := strconv.ParseUint(text, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a valid immediate", ErrBadOperandType, text)
	}
	return byte(v % 256), nil
}

func parseFlagMask(cfg Config, letters string) (byte, error) {
	var mask byte
	for i := 0; i < len(letters); i++ {
		flag, ok := flagLetters[letters[i]]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownFlag, string(letters[i]))
		}
		b, ok := cfg.FlagByte(flag)
		if !ok {
			return 0, fmt.Errorf("%w: flag %s has no configured byte", ErrUnknownFlag, flag)
		}
		mask |= b
	}
	return mask, nil
}

// parseStatement converts one statement's tokens (brackets/labels/
// sysnames already lexed) into an UnlinkedInstruction, recognizing
// pseudo-ops and decorations before falling back to the generic form.
func parseStatement(tokens []Token, cfg Config) (UnlinkedInstruction, error) {
	instr := UnlinkedInstruction{Tokens: tokens, UnresolvedLabels: map[string]int{}, Line: tokens[0].Line}
	if len(tokens) == 0 {
		return instr, fmt.Errorf("%w: empty statement", ErrParse)
	}
	head := tokens[0].Text

	switch {
	case head == "NOP":
		if len(tokens) != 1 {
			return instr, argCountErr(tokens, 0)
		}
		return stkInstruction(instr, cfg, RegN, RegN)

	case head == "PUSH":
		if len(tokens) != 2 {
			return instr, argCountErr(tokens, 1)
		}
		r, err := regToken(tokens[1])
		if err != nil {
			return instr, err
		}
		return stkInstruction(instr, cfg, RegN, r)

	case head == "POP":
		if len(tokens) != 2 {
			return instr, argCountErr(tokens, 1)
		}
		r, err := regToken(tokens[1])
		if err != nil {
			return instr, err
		}
		return stkInstruction(instr, cfg, r, RegN)

	case strings.HasPrefix(head, "J_"):
		if len(tokens) != 2 {
			return instr, argCountErr(tokens, 1)
		}
		mask, err := parseFlagMask(cfg, head[2:])
		if err != nil {
			return instr, err
		}
		r, err := regToken(tokens[1])
		if err != nil {
			return instr, err
		}
		rb, ok := cfg.RegisterByte(r)
		if !ok {
			return instr, fmt.Errorf("%w: register %s has no configured byte", ErrUnknownRegister, r)
		}
		opByte, ok := cfg.OpcodeByte(OpJMP)
		if !ok {
			return instr, fmt.Errorf("%w: JMP has no configured byte", ErrUnknownOpcode)
		}
		instr.Bytes = [3]byte{opByte, mask, rb}
		return instr, nil

	case head == "STM":
		addrReg, srcReg, err := parseDecorated(tokens, true)
		if err != nil {
			return instr, err
		}
		return stmInstruction(instr, cfg, addrReg, srcReg)

	case head == "LDM":
		dstReg, addrReg, err := parseDecorated(tokens, false)
		if err != nil {
			return instr, err
		}
		return ldmInstruction(instr, cfg, dstReg, addrReg)

	case head == "IMM":
		if len(tokens) != 3 {
			return instr, argCountErr(tokens, 2)
		}
		dst, err := regToken(tokens[1])
		if err != nil {
			return instr, err
		}
		dstByte, ok := cfg.RegisterByte(dst)
		if !ok {
			return instr, fmt.Errorf("%w: register %s has no configured byte", ErrUnknownRegister, dst)
		}
		opByte, ok := cfg.OpcodeByte(OpIMM)
		if !ok {
			return instr, fmt.Errorf("%w: IMM has no configured byte", ErrUnknownOpcode)
		}
		if tokens[2].Kind == TokLabel {
			label := strings.TrimPrefix(tokens[2].Text, ":")
			instr.Bytes = [3]byte{opByte, dstByte, labelSentinel}
			instr.UnresolvedLabels[label] = 2
			return instr, nil
		}
		imm, err := parseImmediate(tokens[2].Text)
		if err != nil {
			return instr, err
		}
		instr.Bytes = [3]byte{opByte, dstByte, imm}
		return instr, nil

	case head == "SYS":
		if len(tokens) != 3 || tokens[1].Kind != TokSysname {
			return instr, fmt.Errorf("%w: expected SYS name() reg", ErrBadArgCount)
		}
		name := strings.TrimSuffix(tokens[1].Text, "()")
		sys, ok := syscallNames[name]
		if !ok {
			return instr, fmt.Errorf("%w: %q", ErrUnknownSyscall, name)
		}
		callByte, ok := cfg.SyscallByte(sys)
		if !ok {
			return instr, fmt.Errorf("%w: syscall %s has no configured byte", ErrUnknownSyscall, sys)
		}
		r, err := regToken(tokens[2])
		if err != nil {
			return instr, err
		}
		rb, ok := cfg.RegisterByte(r)
		if !ok {
			return instr, fmt.Errorf("%w: register %s has no configured byte", ErrUnknownRegister, r)
		}
		opByte, ok := cfg.OpcodeByte(OpSYS)
		if !ok {
			return instr, fmt.Errorf("%w: SYS has no configured byte", ErrUnknownOpcode)
		}
		instr.Bytes = [3]byte{opByte, callByte, rb}
		return instr, nil

	default:
		return parseGeneric(instr, tokens, cfg)
	}
}

func argCountErr(tokens []Token, want int) error {
	return fmt.Errorf("%w: %s expects %d operand(s), got %d", ErrBadArgCount, tokens[0].Text, want, len(tokens)-1)
}

func regToken(t Token) (Register, error) {
	if t.Kind != TokText {
		return RegN, fmt.Errorf("%w: expected register, got %s %q", ErrBadOperandType, t.Kind, t.Text)
	}
	r, ok := registerByName(t.Text)
	if !ok {
		return RegN, fmt.Errorf("%w: %q", ErrUnknownRegister, t.Text)
	}
	return r, nil
}

// parseDecorated validates the bracket-decorated 5-token STM/LDM forms:
// "STM [ r1 ] r2" (addrFirst) or "LDM r1 [ r2 ]" (!addrFirst). Brackets
// on the wrong operand are a hard error.
func parseDecorated(tokens []Token, addrFirst bool) (Register, Register, error) {
	if len(tokens) != 5 {
		return RegN, RegN, argCountErr(tokens, 2)
	}
	if addrFirst {
		if tokens[1].Kind != TokSquareOpen || tokens[3].Kind != TokSquareClose {
			return RegN, RegN, fmt.Errorf("%w: %s expects brackets around the first operand", ErrBadBrackets, tokens[0].Text)
		}
		addrReg, err := regToken(tokens[2])
		if err != nil {
			return RegN, RegN, err
		}
		srcReg, err := regToken(tokens[4])
		if err != nil {
			return RegN, RegN, err
		}
		return addrReg, srcReg, nil
	}
	if tokens[2].Kind != TokSquareOpen || tokens[4].Kind != TokSquareClose {
		return RegN, RegN, fmt.Errorf("%w: %s expects brackets around the second operand", ErrBadBrackets, tokens[0].Text)
	}
	dstReg, err := regToken(tokens[1])
	if err != nil {
		return RegN, RegN, err
	}
	addrReg, err := regToken(tokens[3])
	if err != nil {
		return RegN, RegN, err
	}
	return dstReg, addrReg, nil
}

func stkInstruction(instr UnlinkedInstruction, cfg Config, dst, src Register) (UnlinkedInstruction, error) {
	dstByte, ok := cfg.RegisterByte(dst)
	if !ok {
		return instr, fmt.Errorf("%w: register %s has no configured byte", ErrUnknownRegister, dst)
	}
	srcByte, ok := cfg.RegisterByte(src)
	if !ok {
		return instr, fmt.Errorf("%w: register %s has no configured byte", ErrUnknownRegister, src)
	}
	opByte, ok := cfg.OpcodeByte(OpSTK)
	if !ok {
		return instr, fmt.Errorf("%w: STK has no configured byte", ErrUnknownOpcode)
	}
	instr.Bytes = [3]byte{opByte, dstByte, srcByte}
	return instr, nil
}

func stmInstruction(instr UnlinkedInstruction, cfg Config, addrReg, srcReg Register) (UnlinkedInstruction, error) {
	addrByte, ok := cfg.RegisterByte(addrReg)
	if !ok {
		return instr, fmt.Errorf("%w: register %s has no configured byte", ErrUnknownRegister, addrReg)
	}
	srcByte, ok := cfg.RegisterByte(srcReg)
	if !ok {
		return instr, fmt.Errorf("%w: register %s has no configured byte", ErrUnknownRegister, srcReg)
	}
	opByte, ok := cfg.OpcodeByte(OpSTM)
	if !ok {
		return instr, fmt.Errorf("%w: STM has no configured byte", ErrUnknownOpcode)
	}
	instr.Bytes = [3]byte{opByte, addrByte, srcByte}
	return instr, nil
}

func ldmInstruction(instr UnlinkedInstruction, cfg Config, dstReg, addrReg Register) (UnlinkedInstruction, error) {
	dstByte, ok := cfg.RegisterByte(dstReg)
	if !ok {
		return instr, fmt.Errorf("%w: register %s has no configured byte", ErrUnknownRegister, dstReg)
	}
	addrByte, ok := cfg.RegisterByte(addrReg)
	if !ok {
		return instr, fmt.Errorf("%w: register %s has no configured byte", ErrUnknownRegister, addrReg)
	}
	opByte, ok := cfg.OpcodeByte(OpLDM)
	if !ok {
		return instr, fmt.Errorf("%w: LDM has no configured byte", ErrUnknownOpcode)
	}
	instr.Bytes = [3]byte{opByte, dstByte, addrByte}
	return instr, nil
}

func parseGeneric(instr UnlinkedInstruction, tokens []Token, cfg Config) (UnlinkedInstruction, error) {
	op, ok := opcodeNames[tokens[0].Text]
	if !ok {
		return instr, fmt.Errorf("%w: %q", ErrUnknownOpcode, tokens[0].Text)
	}
	schema, ok := genericSchema[op]
	if !ok {
		return instr, fmt.Errorf("%w: %s requires a decorated form", ErrBadArgCount, op)
	}
	if len(tokens) != 3 {
		return instr, argCountErr(tokens, 2)
	}
	opByte, ok := cfg.OpcodeByte(op)
	if !ok {
		return instr, fmt.Errorf("%w: %s has no configured byte", ErrUnknownOpcode, op)
	}

	var bytes [2]byte
	for i, kind := range schema {
		tok := tokens[i+1]
		switch kind {
		case kindReg:
			r, err := regToken(tok)
			if err != nil {
				return instr, err
			}
			b, ok := cfg.RegisterByte(r)
			if !ok {
				return instr, fmt.Errorf("%w: register %s has no configured byte", ErrUnknownRegister, r)
			}
			bytes[i] = b
		case kindImm:
			if tok.Kind == TokLabel {
				label := strings.TrimPrefix(tok.Text, ":")
				instr.UnresolvedLabels[label] = i + 1
				bytes[i] = labelSentinel
				continue
			}
			b, err := parseImmediate(tok.Text)
			if err != nil {
				return instr, err
			}
			bytes[i] = b
		}
	}
	instr.Bytes = [3]byte{opByte, bytes[0], bytes[1]}
	return instr, nil
}
