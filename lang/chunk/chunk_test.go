package chunk_test

import (
	"testing"

	"github.com/buzzcut-s/clocks/lang/chunk"
	"github.com/buzzcut-s/clocks/lang/value"
	"github.com/stretchr/testify/require"
)

func TestWriteByteAndLineAt(t *testing.T) {
	c := chunk.New()
	c.WriteOp(chunk.OpNil, 1)
	c.WriteOp(chunk.OpNil, 1)
	c.WriteOp(chunk.OpReturn, 2)

	require.Equal(t, 1, c.LineAt(0))
	require.Equal(t, 1, c.LineAt(1))
	require.Equal(t, 2, c.LineAt(2))
}

func TestAddConstant(t *testing.T) {
	c := chunk.New()
	idx := c.AddConstant(value.Number(42))
	require.Equal(t, 0, idx)
	require.Equal(t, value.Number(42), c.Constants[idx])
}

func TestPatchUint16(t *testing.T) {
	c := chunk.New()
	c.WriteOp(chunk.OpJump, 1)
	patchAt := c.Len()
	c.WriteUint16(0xBEEF, 1) // placeholder
	c.PatchUint16(patchAt, 0x1234)

	require.Equal(t, byte(0x12), c.Code[patchAt])
	require.Equal(t, byte(0x34), c.Code[patchAt+1])
}

func TestDisassembleSimpleChunk(t *testing.T) {
	c := chunk.New()
	idx := c.AddConstant(value.Number(1))
	c.WriteOp(chunk.OpConstant, 123)
	c.WriteByte(byte(idx), 123)
	c.WriteOp(chunk.OpReturn, 123)

	out := c.Disassemble("test")
	require.Contains(t, out, "== test ==")
	require.Contains(t, out, "OP_CONSTANT")
	require.Contains(t, out, "OP_RETURN")
}

func TestLookupOpcode(t *testing.T) {
	op, ok := chunk.LookupOpcode("OP_ADD")
	require.True(t, ok)
	require.Equal(t, chunk.OpAdd, op)

	_, ok = chunk.LookupOpcode("OP_NOT_A_REAL_OP")
	require.False(t, ok)
}
