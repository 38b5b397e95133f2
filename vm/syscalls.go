package vm

import "github.com/sirupsen/logrus"

// syscallHandler performs one syscall's effect against the machine and
// reports the value to store in the result register (the count/value
// the caller-supplied reg identifies).
type syscallHandler func(m *Machine) byte

// syscallTable is a synchronous dispatch table keyed by Syscall identity.
// yan85's execution model never suspends mid-instruction, so every
// handler here runs to completion synchronously before SYS's result
// register is written — no goroutines, no background work.
type syscallTable struct {
	handlers map[Syscall]syscallHandler
}

func newSyscallTable() *syscallTable {
	t := &syscallTable{handlers: map[Syscall]syscallHandler{}}
	t.handlers[SysExit] = sysExit
	t.handlers[SysReadMemory] = sysReadMemory
	t.handlers[SysReadCode] = sysStub("read_code")
	t.handlers[SysWrite] = sysStub("write")
	t.handlers[SysOpen] = sysStub("open")
	t.handlers[SysSleep] = sysStub("sleep")
	return t
}

// dispatch resolves callByte against the machine's Config and invokes
// the matching handler, writing its return value into resultReg. An
// unrecognized call byte is logged and otherwise harmless: stubbed
// syscalls must never crash the machine, so this does not raise a trap
// (only the Disassembler reports "Invalid number" for unresolved
// syscall bytes, a purely textual annotation).
func (t *syscallTable) dispatch(m *Machine, callByte byte, resultReg Register) {
	call, ok := m.cfg.SyscallBytes[callByte]
	if !ok {
		m.log.WithField("call_byte", callByte).Warn("unrecognized syscall number")
		return
	}
	handler, ok := t.handlers[call]
	if !ok {
		m.log.WithField("syscall", call.String()).Warn("syscall has no handler")
		return
	}
	m.log.WithField("syscall", call.String()).Debug("syscall dispatch")
	result := handler(m)
	m.WriteRegister(resultReg, result)
}

func sysExit(m *Machine) byte {
	m.raiseTrap(TrapProgramExit)
	return 0
}

// sysReadMemory: read_memory(fd=A, buf=B, n=C) copies up to n bytes from
// stdin_buffer into memory starting at B, returning the actual count.
func sysReadMemory(m *Machine) byte {
	buf := m.ReadRegister(RegB)
	n := int(m.ReadRegister(RegC))
	data := m.ReadStdin(n)
	for i, b := range data {
		m.WriteMemoryAt(byte((int(buf)+i)%256), b)
		if m.trapHalt {
			return byte(i)
		}
	}
	return byte(len(data))
}

// sysStub builds a handler for syscalls that are permitted to be stubbed
// (read_code, write, open, sleep): it logs the call and returns 0
// without touching machine state.
func sysStub(name string) syscallHandler {
	return func(m *Machine) byte {
		m.log.WithFields(logrus.Fields{"syscall": name}).Debug("stub syscall invoked")
		return 0
	}
}
