// Package chunk is the bytecode container a compiled Function owns: a flat
// byte stream of opcodes and operands, a constant pool, and a run-length
// encoded line table mapping byte offsets back to source lines for runtime
// error reporting and disassembly (spec §4.5).
package chunk

import (
	"fmt"
	"strings"

	"github.com/buzzcut-s/clocks/lang/value"
)

// lineRun is one run of consecutive bytecode offsets that share a source
// line, stored instead of one line number per byte so that a chunk with
// long single-line expressions does not pay a line number per instruction
// byte.
type lineRun struct {
	line  int
	count int
}

// Chunk is a sequence of bytecode together with the constants it references
// and the source line each instruction was compiled from.
type Chunk struct {
	Code      []byte
	Constants []value.Value
	lines     []lineRun
}

// New returns an empty chunk ready to append to.
func New() *Chunk { return &Chunk{} }

// WriteByte appends a single raw byte, attributing it to line.
func (c *Chunk) WriteByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.recordLine(line)
}

// WriteOp appends op's byte, attributing it to line.
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.WriteByte(byte(op), line)
}

// WriteUint16 appends a big-endian 16-bit operand (jump offsets), all
// attributed to line.
func (c *Chunk) WriteUint16(v uint16, line int) {
	c.WriteByte(byte(v>>8), line)
	c.WriteByte(byte(v), line)
}

func (c *Chunk) recordLine(line int) {
	if n := len(c.lines); n > 0 && c.lines[n-1].line == line {
		c.lines[n-1].count++
		return
	}
	c.lines = append(c.lines, lineRun{line: line, count: 1})
}

// LineAt returns the source line the instruction byte at offset was
// compiled from.
func (c *Chunk) LineAt(offset int) int {
	remaining := offset
	for _, run := range c.lines {
		if remaining < run.count {
			return run.line
		}
		remaining -= run.count
	}
	if len(c.lines) == 0 {
		return 0
	}
	return c.lines[len(c.lines)-1].line
}

// AddConstant appends v to the constant pool and returns its index. The
// caller is responsible for enforcing the 256-constant-per-chunk limit
// (spec §8) before emitting an OpConstant operand, since only the compiler
// knows the source position to report the error against.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Len returns the number of bytecode bytes written so far, used by the
// compiler to compute jump patch targets.
func (c *Chunk) Len() int { return len(c.Code) }

// PatchUint16 overwrites the big-endian 16-bit operand at offset, used to
// back-patch a forward jump once its target address is known.
func (c *Chunk) PatchUint16(offset int, v uint16) {
	c.Code[offset] = byte(v >> 8)
	c.Code[offset+1] = byte(v)
}

// Disassemble renders the whole chunk in clox-style debug listing form,
// prefixed by name (typically the owning function's name).
func (c *Chunk) Disassemble(name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = c.disassembleInstruction(&sb, offset)
	}
	return sb.String()
}

func (c *Chunk) disassembleInstruction(sb *strings.Builder, offset int) int {
	fmt.Fprintf(sb, "%04d ", offset)
	line := c.LineAt(offset)
	if offset > 0 && line == c.LineAt(offset-1) {
		fmt.Fprint(sb, "   | ")
	} else {
		fmt.Fprintf(sb, "%4d ", line)
	}

	op := Opcode(c.Code[offset])
	switch op {
	case OpClosure:
		constIdx := c.Code[offset+1]
		fmt.Fprintf(sb, "%-16s %4d '%s'\n", op, constIdx, c.Constants[constIdx])
		next := offset + 2
		if uc, ok := c.Constants[constIdx].AsObj().(interface{ Upvalues() int }); ok {
			for i := 0; i < uc.Upvalues(); i++ {
				isLocal, idx := c.Code[next], c.Code[next+1]
				kind := "upvalue"
				if isLocal == 1 {
					kind = "local"
				}
				fmt.Fprintf(sb, "%04d      |                     %s %d\n", next, kind, idx)
				next += 2
			}
		}
		return next
	case OpInvoke, OpSuperInvoke:
		constIdx := c.Code[offset+1]
		argc := c.Code[offset+2]
		fmt.Fprintf(sb, "%-16s (%d args) %4d '%s'\n", op, argc, constIdx, c.Constants[constIdx])
		return offset + 3
	case OpJump, OpJumpIfFalse, OpLoop:
		jump := uint16(c.Code[offset+1])<<8 | uint16(c.Code[offset+2])
		sign := 1
		if op == OpLoop {
			sign = -1
		}
		fmt.Fprintf(sb, "%-16s %4d -> %d\n", op, offset, offset+3+sign*int(jump))
		return offset + 3
	default:
		if n := op.operandBytes(); n == 1 {
			idx := c.Code[offset+1]
			if isConstantOp(op) {
				fmt.Fprintf(sb, "%-16s %4d '%s'\n", op, idx, c.Constants[idx])
			} else {
				fmt.Fprintf(sb, "%-16s %4d\n", op, idx)
			}
			return offset + 2
		}
		fmt.Fprintf(sb, "%s\n", op)
		return offset + 1
	}
}

func isConstantOp(op Opcode) bool {
	switch op {
	case OpConstant, OpReadGlobal, OpDefineGlobal, OpAssignGlobal,
		OpGetProperty, OpSetField, OpGetSuper, OpClosure, OpClass, OpMethod:
		return true
	default:
		return false
	}
}
