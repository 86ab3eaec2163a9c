package chunk

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// Opcode is a single bytecode instruction's operator (spec §4.5). Operand
// widths are fixed per opcode rather than varint-encoded: 0 bytes for
// niladic ops, 1 byte for a constant/slot/name index, and 2 bytes
// (big-endian) for jump offsets, matching the 256-constant and
// 65536-jump-offset limits spec §6/§8 require being able to overflow.
type Opcode uint8

//nolint:revive
const (
	OpConstant Opcode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpReadLocal
	OpAssignLocal
	OpReadUpvalue
	OpAssignUpvalue
	OpReadGlobal
	OpDefineGlobal
	OpAssignGlobal
	OpGetProperty
	OpSetField
	OpGetSuper
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpInvoke
	OpSuperInvoke
	OpClosure
	OpCloseUpvalue
	OpReturn
	OpClass
	OpInherit
	OpMethod

	opcodeMax
)

// operandBytes returns how many bytes of operand follow the opcode byte.
func (op Opcode) operandBytes() int {
	switch op {
	case OpConstant, OpReadLocal, OpAssignLocal, OpReadUpvalue, OpAssignUpvalue,
		OpReadGlobal, OpDefineGlobal, OpAssignGlobal, OpGetProperty, OpSetField,
		OpGetSuper, OpCall, OpClosure, OpClass, OpMethod:
		return 1
	case OpInvoke, OpSuperInvoke:
		return 2 // name_idx, argc
	case OpJump, OpJumpIfFalse, OpLoop:
		return 2 // 16-bit big-endian offset
	default:
		return 0
	}
}

var opcodeNames = [...]string{
	OpConstant:      "OP_CONSTANT",
	OpNil:           "OP_NIL",
	OpTrue:          "OP_TRUE",
	OpFalse:         "OP_FALSE",
	OpPop:           "OP_POP",
	OpReadLocal:     "OP_READ_LOCAL",
	OpAssignLocal:   "OP_ASSIGN_LOCAL",
	OpReadUpvalue:   "OP_READ_UPVALUE",
	OpAssignUpvalue: "OP_ASSIGN_UPVALUE",
	OpReadGlobal:    "OP_READ_GLOBAL",
	OpDefineGlobal:  "OP_DEFINE_GLOBAL",
	OpAssignGlobal:  "OP_ASSIGN_GLOBAL",
	OpGetProperty:   "OP_GET_PROPERTY",
	OpSetField:      "OP_SET_FIELD",
	OpGetSuper:      "OP_GET_SUPER",
	OpEqual:         "OP_EQUAL",
	OpGreater:       "OP_GREATER",
	OpLess:          "OP_LESS",
	OpAdd:           "OP_ADD",
	OpSubtract:      "OP_SUBTRACT",
	OpMultiply:      "OP_MULTIPLY",
	OpDivide:        "OP_DIVIDE",
	OpNot:           "OP_NOT",
	OpNegate:        "OP_NEGATE",
	OpPrint:         "OP_PRINT",
	OpJump:          "OP_JUMP",
	OpJumpIfFalse:   "OP_JUMP_IF_FALSE",
	OpLoop:          "OP_LOOP",
	OpCall:          "OP_CALL",
	OpInvoke:        "OP_INVOKE",
	OpSuperInvoke:   "OP_SUPER_INVOKE",
	OpClosure:       "OP_CLOSURE",
	OpCloseUpvalue:  "OP_CLOSE_UPVALUE",
	OpReturn:        "OP_RETURN",
	OpClass:         "OP_CLASS",
	OpInherit:       "OP_INHERIT",
	OpMethod:        "OP_METHOD",
}

func (op Opcode) String() string {
	if op < opcodeMax {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal op (%d)", op)
}

// reverseOpcodes maps an opcode's disassembly name back to the Opcode,
// used by debug tooling and opcode table tests. Backed by swiss.Map rather
// than a builtin map purely to exercise the same hash-table dependency the
// teacher's lang/machine.Map wraps; there are no tombstone/rehash semantics
// to preserve here (see DESIGN.md), so a generic map is the right tool.
var reverseOpcodes = func() *swiss.Map[string, Opcode] {
	m := swiss.NewMap[string, Opcode](uint32(opcodeMax))
	for op, name := range opcodeNames {
		if name != "" {
			m.Put(name, Opcode(op))
		}
	}
	return m
}()

// LookupOpcode returns the Opcode named by its disassembly name (e.g.
// "OP_ADD"), and whether it was found.
func LookupOpcode(name string) (Opcode, bool) {
	return reverseOpcodes.Get(name)
}
