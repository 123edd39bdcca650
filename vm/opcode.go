package vm

// Opcode identifies one of the 22 instructions the architecture defines.
// The numeric values are load-bearing: they are exactly the opcode words
// that appear in program binaries.
type Opcode uint16

const (
	OpHalt Opcode = 0
	OpSet  Opcode = 1
	OpPush Opcode = 2
	OpPop  Opcode = 3
	OpEq   Opcode = 4
	OpGt   Opcode = 5
	OpJmp  Opcode = 6
	OpJt   Opcode = 7
	OpJf   Opcode = 8
	OpAdd  Opcode = 9
	OpMult Opcode = 10
	OpMod  Opcode = 11
	OpAnd  Opcode = 12
	OpOr   Opcode = 13
	OpNot  Opcode = 14
	OpRmem Opcode = 15
	OpWmem Opcode = 16
	OpCall Opcode = 17
	OpRet  Opcode = 18
	OpOut  Opcode = 19
	OpIn   Opcode = 20
	OpNoop Opcode = 21
)

// arity is the number of argument words following the opcode word, indexed
// by Opcode. It drives both dispatch validation and the --trace formatter in
// cmd/synacor; the dispatch loop itself advances the pointer explicitly per
// case rather than trusting this table blindly, since jumps and call/ret
// don't advance by arity+1.
var arity = [...]int{
	OpHalt: 0,
	OpSet:  2,
	OpPush: 1,
	OpPop:  1,
	OpEq:   3,
	OpGt:   3,
	OpJmp:  1,
	OpJt:   2,
	OpJf:   2,
	OpAdd:  3,
	OpMult: 3,
	OpMod:  3,
	OpAnd:  3,
	OpOr:   3,
	OpNot:  2,
	OpRmem: 2,
	OpWmem: 2,
	OpCall: 1,
	OpRet:  0,
	OpOut:  1,
	OpIn:   1,
	OpNoop: 0,
}

var mnemonic = [...]string{
	OpHalt: "halt",
	OpSet:  "set",
	OpPush: "push",
	OpPop:  "pop",
	OpEq:   "eq",
	OpGt:   "gt",
	OpJmp:  "jmp",
	OpJt:   "jt",
	OpJf:   "jf",
	OpAdd:  "add",
	OpMult: "mult",
	OpMod:  "mod",
	OpAnd:  "and",
	OpOr:   "or",
	OpNot:  "not",
	OpRmem: "rmem",
	OpWmem: "wmem",
	OpCall: "call",
	OpRet:  "ret",
	OpOut:  "out",
	OpIn:   "in",
	OpNoop: "noop",
}

// String renders the mnemonic for known opcodes, or a placeholder for
// anything outside 0-21 so formatting a fault never panics.
func (o Opcode) String() string {
	if int(o) < len(mnemonic) {
		if s := mnemonic[o]; s != "" {
			return s
		}
	}
	return "?unknown?"
}

// valid reports whether o is one of the 22 defined opcodes.
func (o Opcode) valid() bool {
	return int(o) < len(arity)
}

// Arity reports the number of argument words following o's opcode word.
// Exported for the --trace formatter in cmd/synacor; unknown opcodes report
// zero so formatting never indexes out of bounds.
func (o Opcode) Arity() int {
	if !o.valid() {
		return 0
	}
	return arity[o]
}
