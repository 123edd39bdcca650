// Package vm implements the Synacor challenge architecture: a 16-bit word
// machine with a combined code/data address space, eight registers, an
// unbounded stack, and a 22-opcode instruction set.
package vm

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// NumRegisters is the number of general-purpose registers.
const NumRegisters = 8

// maxValue is the largest legal word value, 2^15-1.
const maxValue = (1 << 15) - 1

// regBase is the first word that denotes a register reference rather than a
// literal value. Words in [regBase, regBase+NumRegisters) name registers
// 0..7; anything at or above regBase+NumRegisters is never valid.
const regBase = 1 << 15

// State is one of the three observable machine states.
type State int

const (
	Running State = iota
	Halted
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunResult summarizes how Run ended. It is host-facing bookkeeping, not
// part of the VM's own state, and exists purely so a caller can report a
// fault or set a process exit code without reaching into Machine internals.
type RunResult struct {
	State State
	IP    uint16
	Err   error
}

// Machine holds all state for one Synacor program: memory, registers,
// stack and the execution pointer. All of it is owned exclusively by the
// Machine and mutated only from within Run/step; there is no shared state
// and no reentrancy.
type Machine struct {
	mem [MemSize]uint16
	reg [NumRegisters]uint16

	stack []uint16
	ip    uint16

	in  *bufio.Reader
	out *bufio.Writer

	state State
	err   error
}

// New constructs a Machine with memory initialised to program (padded with
// zeros out to MemSize) and byte-wise stdio wired to in/out. A program
// longer than MemSize words is rejected.
func New(program []uint16, in io.Reader, out io.Writer) (*Machine, error) {
	if len(program) > MemSize {
		return nil, fmt.Errorf("%w: %d words exceeds %d word capacity", ErrProgramTooLarge, len(program), MemSize)
	}

	m := &Machine{
		in:  bufio.NewReader(in),
		out: bufio.NewWriter(out),
	}
	copy(m.mem[:], program)
	return m, nil
}

// State reports the machine's current observable state.
func (m *Machine) State() State { return m.state }

// IP reports the current execution pointer.
func (m *Machine) IP() uint16 { return m.ip }

// Register reads register i (0..7) directly; used by tests that want to
// assert outcomes without re-deriving the value resolution rules.
func (m *Machine) Register(i int) uint16 { return m.reg[i] }

// MemoryAt reads memory cell addr directly, for tests and the --trace
// formatter in cmd/synacor.
func (m *Machine) MemoryAt(addr uint16) uint16 { return m.mem[addr] }

// resolve maps an argument word to its effective value: a literal in
// 0..32767 reads as itself, a register reference in 32768..32775 reads the
// named register's content, and anything else is ErrInvalidOperand.
func (m *Machine) resolve(w uint16) (uint16, error) {
	if w <= maxValue {
		return w, nil
	}
	if w < regBase+NumRegisters {
		return m.reg[w-regBase], nil
	}
	return 0, fmt.Errorf("%w: %d at %d", ErrInvalidOperand, w, m.ip)
}

// regIndex maps an argument word that must denote a register destination
// (for "register a" write targets) to its index. It never dereferences the
// register's current value: a write target names a register slot, not
// whatever is currently sitting in it.
func (m *Machine) regIndex(w uint16) (int, error) {
	if w < regBase || w >= regBase+NumRegisters {
		return 0, fmt.Errorf("%w: %d at %d", ErrInvalidWriteTarget, w, m.ip)
	}
	return int(w - regBase), nil
}

func (m *Machine) push(v uint16) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pop() (uint16, error) {
	if len(m.stack) == 0 {
		return 0, fmt.Errorf("%w at %d", ErrStackUnderflow, m.ip)
	}
	n := len(m.stack) - 1
	v := m.stack[n]
	m.stack = m.stack[:n]
	return v, nil
}

// arg reads the raw word at offset from the current instruction (offset 1
// is the first argument, following the opcode word itself at offset 0).
func (m *Machine) arg(offset uint16) uint16 {
	return m.mem[m.ip+offset]
}

// Run executes from the current IP until the machine halts or faults, or
// ctx is cancelled. Cancellation is polled once per dispatch iteration and
// is reported as a clean Halted result, never as a Failed one — the VM's
// instruction semantics have no notion of cancellation, this is strictly a
// host convenience for cmd/synacor to honor Ctrl-C.
func (m *Machine) Run(ctx context.Context) RunResult {
	for m.state == Running {
		select {
		case <-ctx.Done():
			m.state = Halted
		default:
			m.step()
		}
	}
	m.out.Flush()
	return RunResult{State: m.state, IP: m.ip, Err: m.err}
}

// fail transitions the machine to Failed with err and stops dispatch.
func (m *Machine) fail(err error) {
	m.err = err
	m.state = Failed
}

// halt transitions the machine to Halted with no fault.
func (m *Machine) halt() {
	m.state = Halted
}

// step decodes and executes exactly one instruction, re-reading mem[ip]
// fresh every time so that self-modifying code (first-class in this
// architecture) is always honored — no decoded instruction is ever cached
// across calls.
func (m *Machine) step() {
	if int(m.ip) >= MemSize {
		m.fail(fmt.Errorf("%w: %d", ErrAddressOutOfRange, m.ip))
		return
	}

	op := Opcode(m.mem[m.ip])
	if !op.valid() {
		m.fail(fmt.Errorf("%w: %d at %d", ErrUnknownOpcode, op, m.ip))
		return
	}
	if int(m.ip)+op.Arity() >= MemSize {
		m.fail(fmt.Errorf("%w: %d", ErrAddressOutOfRange, m.ip))
		return
	}

	switch op {
	case OpHalt:
		m.halt()

	case OpSet:
		a, err := m.regIndex(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		b, err := m.resolve(m.arg(2))
		if err != nil {
			m.fail(err)
			return
		}
		m.reg[a] = b
		m.ip += 3

	case OpPush:
		a, err := m.resolve(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		m.push(a)
		m.ip += 2

	case OpPop:
		a, err := m.regIndex(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		v, err := m.pop()
		if err != nil {
			m.fail(err)
			return
		}
		m.reg[a] = v
		m.ip += 2

	case OpEq:
		if !m.writeCompare(func(b, c uint16) bool { return b == c }) {
			return
		}

	case OpGt:
		if !m.writeCompare(func(b, c uint16) bool { return b > c }) {
			return
		}

	case OpJmp:
		dest, err := m.resolve(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		m.ip = dest

	case OpJt:
		cond, err := m.resolve(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		dest, err := m.resolve(m.arg(2))
		if err != nil {
			m.fail(err)
			return
		}
		if cond != 0 {
			m.ip = dest
		} else {
			m.ip += 3
		}

	case OpJf:
		cond, err := m.resolve(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		dest, err := m.resolve(m.arg(2))
		if err != nil {
			m.fail(err)
			return
		}
		if cond == 0 {
			m.ip = dest
		} else {
			m.ip += 3
		}

	case OpAdd:
		if !m.writeArith(func(b, c uint16) (uint16, error) { return (b + c) % (maxValue + 1), nil }) {
			return
		}

	case OpMult:
		if !m.writeArith(func(b, c uint16) (uint16, error) {
			return uint16((uint32(b) * uint32(c)) % (maxValue + 1)), nil
		}) {
			return
		}

	case OpMod:
		if !m.writeArith(func(b, c uint16) (uint16, error) {
			if c == 0 {
				return 0, fmt.Errorf("%w at %d", ErrDivByZero, m.ip)
			}
			return b % c, nil
		}) {
			return
		}

	case OpAnd:
		if !m.writeArith(func(b, c uint16) (uint16, error) { return b & c, nil }) {
			return
		}

	case OpOr:
		if !m.writeArith(func(b, c uint16) (uint16, error) { return b | c, nil }) {
			return
		}

	case OpNot:
		a, err := m.regIndex(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		b, err := m.resolve(m.arg(2))
		if err != nil {
			m.fail(err)
			return
		}
		m.reg[a] = ^b & maxValue
		m.ip += 3

	case OpRmem:
		a, err := m.regIndex(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		addr, err := m.resolve(m.arg(2))
		if err != nil {
			m.fail(err)
			return
		}
		m.reg[a] = m.mem[addr]
		m.ip += 3

	case OpWmem:
		addr, err := m.resolve(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		val, err := m.resolve(m.arg(2))
		if err != nil {
			m.fail(err)
			return
		}
		m.mem[addr] = val
		m.ip += 3

	case OpCall:
		dest, err := m.resolve(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		m.push(m.ip + 2)
		m.ip = dest

	case OpRet:
		dest, err := m.pop()
		if err != nil {
			// Popping an empty stack on ret is a clean halt, not a fault:
			// it's the program signaling it has nothing left to return to.
			m.halt()
			return
		}
		m.ip = dest

	case OpOut:
		c, err := m.resolve(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		m.out.WriteByte(byte(c))
		m.out.Flush()
		m.ip += 2

	case OpIn:
		a, err := m.regIndex(m.arg(1))
		if err != nil {
			m.fail(err)
			return
		}
		b, err := m.in.ReadByte()
		if err != nil {
			// End of input mid-program is a clean halt, not a fault.
			m.halt()
			return
		}
		m.reg[a] = uint16(b)
		m.ip += 2

	case OpNoop:
		m.ip++

	default:
		m.fail(fmt.Errorf("%w: %d at %d", ErrUnknownOpcode, op, m.ip))
	}
}

// writeCompare implements eq/gt: register a <- 1 if cmp(resolved b, resolved
// c) else 0. Returns false (having already called fail) if resolution
// failed, so callers can bail out of step without duplicating the pattern.
func (m *Machine) writeCompare(cmp func(b, c uint16) bool) bool {
	a, err := m.regIndex(m.arg(1))
	if err != nil {
		m.fail(err)
		return false
	}
	b, err := m.resolve(m.arg(2))
	if err != nil {
		m.fail(err)
		return false
	}
	c, err := m.resolve(m.arg(3))
	if err != nil {
		m.fail(err)
		return false
	}
	if cmp(b, c) {
		m.reg[a] = 1
	} else {
		m.reg[a] = 0
	}
	m.ip += 4
	return true
}

// writeArith implements add/mult/mod/and/or: register a <- op(resolved b,
// resolved c). op may itself fail (mod by zero).
func (m *Machine) writeArith(op func(b, c uint16) (uint16, error)) bool {
	a, err := m.regIndex(m.arg(1))
	if err != nil {
		m.fail(err)
		return false
	}
	b, err := m.resolve(m.arg(2))
	if err != nil {
		m.fail(err)
		return false
	}
	c, err := m.resolve(m.arg(3))
	if err != nil {
		m.fail(err)
		return false
	}
	result, err := op(b, c)
	if err != nil {
		m.fail(err)
		return false
	}
	m.reg[a] = result
	m.ip += 4
	return true
}
