package compiler_test

import (
	"testing"

	"github.com/buzzcut-s/clocks/lang/chunk"
	"github.com/buzzcut-s/clocks/lang/compiler"
	"github.com/buzzcut-s/clocks/lang/object"
	"github.com/stretchr/testify/require"
)

// fakeInterner allocates a fresh *object.String per distinct content,
// deduping by map lookup, standing in for lang/gc.Collector's real
// allocator in these unit tests.
type fakeInterner struct {
	strings map[string]*object.String
}

func newFakeInterner() *fakeInterner {
	return &fakeInterner{strings: make(map[string]*object.String)}
}

func (f *fakeInterner) InternString(s string) *object.String {
	if existing, ok := f.strings[s]; ok {
		return existing
	}
	str := object.NewString(s)
	f.strings[s] = str
	return str
}

func compile(t *testing.T, src string) *object.Function {
	t.Helper()
	fn, err := compiler.Compile(src, "test", newFakeInterner())
	require.NoError(t, err)
	return fn
}

func opsOf(c *chunk.Chunk) []chunk.Opcode {
	var ops []chunk.Opcode
	for i := 0; i < len(c.Code); {
		op := chunk.Opcode(c.Code[i])
		ops = append(ops, op)
		switch op {
		case chunk.OpClosure:
			i += 2 // upvalue trailer not modeled here; tests avoid closures with captures
		case chunk.OpInvoke, chunk.OpSuperInvoke, chunk.OpJump, chunk.OpJumpIfFalse, chunk.OpLoop:
			i += 3
		default:
			switch {
			case op == chunk.OpReturn || op == chunk.OpPop || op == chunk.OpNil ||
				op == chunk.OpTrue || op == chunk.OpFalse || op == chunk.OpEqual ||
				op == chunk.OpGreater || op == chunk.OpLess || op == chunk.OpAdd ||
				op == chunk.OpSubtract || op == chunk.OpMultiply || op == chunk.OpDivide ||
				op == chunk.OpNot || op == chunk.OpNegate || op == chunk.OpPrint ||
				op == chunk.OpCloseUpvalue || op == chunk.OpInherit:
				i++
			default:
				i += 2
			}
		}
	}
	return ops
}

func TestCompileArithmeticExpressionStatement(t *testing.T) {
	fn := compile(t, "1 + 2 * 3;")
	ops := opsOf(fn.Chunk)
	require.Equal(t, []chunk.Opcode{
		chunk.OpConstant, chunk.OpConstant, chunk.OpConstant,
		chunk.OpMultiply, chunk.OpAdd, chunk.OpPop, chunk.OpNil, chunk.OpReturn,
	}, ops)
}

func TestCompileGlobalVarDeclarationAndPrint(t *testing.T) {
	fn := compile(t, `var greeting = "hi"; print greeting;`)
	ops := opsOf(fn.Chunk)
	require.Equal(t, []chunk.Opcode{
		chunk.OpConstant, chunk.OpDefineGlobal,
		chunk.OpReadGlobal, chunk.OpPrint,
		chunk.OpNil, chunk.OpReturn,
	}, ops)
}

func TestCompileIfElse(t *testing.T) {
	fn := compile(t, `if (true) { print 1; } else { print 2; }`)
	ops := opsOf(fn.Chunk)
	require.Equal(t, []chunk.Opcode{
		chunk.OpTrue, chunk.OpJumpIfFalse, chunk.OpPop,
		chunk.OpConstant, chunk.OpPrint,
		chunk.OpJump, chunk.OpPop,
		chunk.OpConstant, chunk.OpPrint,
		chunk.OpNil, chunk.OpReturn,
	}, ops)
}

func TestCompileWhileLoop(t *testing.T) {
	fn := compile(t, `while (false) { print 1; }`)
	ops := opsOf(fn.Chunk)
	require.Equal(t, []chunk.Opcode{
		chunk.OpFalse, chunk.OpJumpIfFalse, chunk.OpPop,
		chunk.OpConstant, chunk.OpPrint,
		chunk.OpLoop, chunk.OpPop,
		chunk.OpNil, chunk.OpReturn,
	}, ops)
}

func TestCompileFunctionDeclarationEmitsClosure(t *testing.T) {
	fn := compile(t, `fun f(a, b) { return a + b; } `)
	ops := opsOf(fn.Chunk)
	require.Equal(t, []chunk.Opcode{
		chunk.OpClosure, chunk.OpDefineGlobal, chunk.OpNil, chunk.OpReturn,
	}, ops)

	constFn, ok := fn.Chunk.Constants[1].AsObj().(*object.Function)
	require.True(t, ok)
	require.Equal(t, 2, constFn.Arity)
}

func TestCompileClassDeclaration(t *testing.T) {
	fn := compile(t, `class Greeter { greet() { print "hi"; } }`)
	ops := opsOf(fn.Chunk)
	require.Equal(t, []chunk.Opcode{
		chunk.OpClass, chunk.OpDefineGlobal,
		chunk.OpReadGlobal,
		chunk.OpClosure, chunk.OpMethod,
		chunk.OpPop,
		chunk.OpNil, chunk.OpReturn,
	}, ops)
}

func TestCompileReturnOutsideFunctionIsError(t *testing.T) {
	_, err := compiler.Compile(`return 1;`, "test", newFakeInterner())
	require.Error(t, err)
}

func TestCompileTooManyParametersIsError(t *testing.T) {
	var params string
	for i := 0; i < 256; i++ {
		if i > 0 {
			params += ", "
		}
		params += "a" + string(rune('a'+i/26)) + string(rune('a'+i%26))
	}
	_, err := compiler.Compile("fun f("+params+") {}", "test", newFakeInterner())
	require.Error(t, err)
	require.Contains(t, err.Error(), "Can't have more than 255 parameters.")
}

func TestCompileDiagnosticFormatAtToken(t *testing.T) {
	_, err := compiler.Compile(`var x = ;`, "test", newFakeInterner())
	require.Error(t, err)
	require.Equal(t, "[line 1] Error at ';': Expect expression.", err.Error())
}

func TestCompileDiagnosticFormatAtEnd(t *testing.T) {
	_, err := compiler.Compile(`var x =`, "test", newFakeInterner())
	require.Error(t, err)
	require.Equal(t, "[line 1] Error at end: Expect expression.", err.Error())
}

func TestCompileLexErrorDoesNotAbortCompilation(t *testing.T) {
	_, err := compiler.Compile("var x = 1; @ var y = 2;", "test", newFakeInterner())
	require.Error(t, err)
	require.Equal(t, "[line 1] Error: Unexpected character.", err.Error())
}

func TestCompileUnterminatedStringDiagnostic(t *testing.T) {
	_, err := compiler.Compile(`print "oops;`, "test", newFakeInterner())
	require.Error(t, err)
	require.Equal(t, "[line 1] Error: Unterminated string.", err.Error())
}
