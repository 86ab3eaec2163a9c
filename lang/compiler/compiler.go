// Package compiler implements the single-pass Pratt parser that turns a
// token stream directly into bytecode (spec §4.4): there is no separate AST
// stage, every declaration/statement/expression rule both parses and emits
// as it goes.
package compiler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/buzzcut-s/clocks/lang/chunk"
	"github.com/buzzcut-s/clocks/lang/object"
	clscanner "github.com/buzzcut-s/clocks/lang/scanner"
	"github.com/buzzcut-s/clocks/lang/token"
	"github.com/buzzcut-s/clocks/lang/value"
)

// StringInterner is how the compiler turns string and identifier lexemes
// into heap *object.String constants: it defers to whatever owns the
// allocator (lang/gc.Collector in practice) so that every string entering a
// chunk's constant pool is deduplicated the same way runtime-built strings
// are (spec §4.3's weak intern pool).
type StringInterner interface {
	InternString(s string) *object.String
}

// parserState is the token cursor and error sink shared by every nested
// Compiler compiling one source file: functions nest Compilers, but there
// is only one scanner and one error list for the whole compile.
type parserState struct {
	sc       *clscanner.Scanner
	previous token.Token
	current  token.Token

	errors    []string
	panicMode bool

	interner     StringInterner
	currentClass *classState
}

// advance pulls the next token from the scanner, reporting and skipping any
// run of lex errors along the way: a token.ILLEGAL token carries its own
// diagnostic message as its Lexeme rather than source text, so it is never
// handed to the parser proper (mirrors clox's advance()/TokenError handling).
func (st *parserState) advance() {
	st.previous = st.current
	for {
		st.current = st.sc.Scan()
		if st.current.Kind != token.ILLEGAL {
			break
		}
		st.errorAtCurrent(st.current.Lexeme)
	}
}

func (st *parserState) check(kind token.Kind) bool { return st.current.Kind == kind }

func (st *parserState) match(kind token.Kind) bool {
	if !st.check(kind) {
		return false
	}
	st.advance()
	return true
}

func (st *parserState) consume(kind token.Kind, msg string) {
	if st.check(kind) {
		st.advance()
		return
	}
	st.errorAtCurrent(msg)
}

// errorAt formats a diagnostic as "[line N] Error[ at 'LEXEME'|' at end']:
// MESSAGE" and records it, ignoring every error already in progress until
// synchronize clears panicMode (so one bad token doesn't cascade into a wall
// of follow-on complaints). An ILLEGAL token carries no " at '...'" suffix:
// its Lexeme already is the message, not source text to quote.
func (st *parserState) errorAt(tok token.Token, msg string) {
	if st.panicMode {
		return
	}
	st.panicMode = true

	var sb strings.Builder
	fmt.Fprintf(&sb, "[line %d] Error", tok.Line)
	switch tok.Kind {
	case token.EOF:
		sb.WriteString(" at end")
	case token.ILLEGAL:
	default:
		fmt.Fprintf(&sb, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(&sb, ": %s", msg)
	st.errors = append(st.errors, sb.String())
}

func (st *parserState) errorAtCurrent(msg string)  { st.errorAt(st.current, msg) }
func (st *parserState) errorAtPrevious(msg string) { st.errorAt(st.previous, msg) }

// synchronize skips tokens until it finds a likely statement boundary,
// always consuming at least one token first so a parse error discovered
// right at a boundary keyword cannot stall the declaration loop in place.
func (st *parserState) synchronize() {
	st.panicMode = false
	st.advance()
	for st.current.Kind != token.EOF {
		if st.previous.Kind == token.SEMI {
			return
		}
		switch st.current.Kind {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		st.advance()
	}
}

// Compiler compiles one function body (or the top-level script) into its
// own Chunk, chained to enclosing for upvalue resolution across nested
// function literals.
type Compiler struct {
	st        *parserState
	enclosing *Compiler

	function *object.Function
	kind     functionKind

	locals     []local
	scopeDepth int
	upvalues   []upvalueRef
}

func newCompiler(st *parserState, enclosing *Compiler, kind functionKind, name *token.Token) *Compiler {
	c := &Compiler{st: st, enclosing: enclosing, kind: kind, function: object.NewFunction()}
	if kind != kindScript {
		c.function.Name = st.interner.InternString(name.Lexeme)
	}

	// Slot 0 is reserved: the receiver for methods/initializers, or the
	// closure itself (unused by name) for plain functions and the script.
	receiver := ""
	if kind == kindMethod || kind == kindInitializer {
		receiver = "this"
	}
	c.locals = append(c.locals, local{name: token.Token{Lexeme: receiver}, depth: 0})
	return c
}

// Compile compiles source into a top-level Function ready to be wrapped in
// a Closure and run. scriptName is unused beyond identifying the scanner's
// input to itself; interner backs every string/identifier constant the
// compiled chunks reference.
func Compile(source, scriptName string, interner StringInterner) (*object.Function, error) {
	st := &parserState{sc: clscanner.New(scriptName, []byte(source)), interner: interner}
	c := newCompiler(st, nil, kindScript, nil)

	st.advance()
	for !st.check(token.EOF) {
		c.declaration()
	}

	fn := c.endCompiler()
	if len(st.errors) > 0 {
		return nil, errors.New(strings.Join(st.errors, "\n"))
	}
	return fn, nil
}

func (c *Compiler) errorAtPrevious(msg string) { c.st.errorAtPrevious(msg) }
func (c *Compiler) errorAtCurrent(msg string)   { c.st.errorAtCurrent(msg) }

func (c *Compiler) chunk() *chunk.Chunk { return c.function.Chunk }

func (c *Compiler) emitByte(b byte)           { c.chunk().WriteByte(b, c.st.previous.Line) }
func (c *Compiler) emitOp(op chunk.Opcode)    { c.chunk().WriteOp(op, c.st.previous.Line) }
func (c *Compiler) emitOps(a, b chunk.Opcode) { c.emitOp(a); c.emitOp(b) }
func (c *Compiler) emitOpByte(op chunk.Opcode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx > 255 {
		c.errorAtPrevious("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitOpByte(chunk.OpConstant, c.makeConstant(v))
}

// emitJump emits op followed by a placeholder 16-bit offset and returns the
// offset of that placeholder, to be back-patched once the jump target is
// known.
func (c *Compiler) emitJump(op chunk.Opcode) int {
	c.emitOp(op)
	c.chunk().WriteUint16(0xFFFF, c.st.previous.Line)
	return c.chunk().Len() - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := c.chunk().Len() - offset - 2
	if jump > 0xFFFF {
		c.errorAtPrevious("Too much code to jump over.")
	}
	c.chunk().PatchUint16(offset, uint16(jump))
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := c.chunk().Len() - loopStart + 2
	if offset > 0xFFFF {
		c.errorAtPrevious("Loop body too large.")
	}
	c.chunk().WriteUint16(uint16(offset), c.st.previous.Line)
}

func (c *Compiler) emitReturn() {
	if c.kind == kindInitializer {
		c.emitOpByte(chunk.OpReadLocal, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) endCompiler() *object.Function {
	c.emitReturn()
	return c.function
}

func (c *Compiler) beginScope() { c.scopeDepth++ }

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		if c.locals[len(c.locals)-1].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// --- declarations & statements ---

func (c *Compiler) declaration() {
	switch {
	case c.st.match(token.CLASS):
		c.classDeclaration()
	case c.st.match(token.FUN):
		c.funDeclaration()
	case c.st.match(token.VAR):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.st.panicMode {
		c.st.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.st.match(token.PRINT):
		c.printStatement()
	case c.st.match(token.FOR):
		c.forStatement()
	case c.st.match(token.IF):
		c.ifStatement()
	case c.st.match(token.RETURN):
		c.returnStatement()
	case c.st.match(token.WHILE):
		c.whileStatement()
	case c.st.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.st.consume(token.SEMI, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.st.consume(token.SEMI, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) block() {
	for !c.st.check(token.RBRACE) && !c.st.check(token.EOF) {
		c.declaration()
	}
	c.st.consume(token.RBRACE, "Expect '}' after block.")
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.st.match(token.EQ) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.st.consume(token.SEMI, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *Compiler) ifStatement() {
	c.st.consume(token.LPAREN, "Expect '(' after 'if'.")
	c.expression()
	c.st.consume(token.RPAREN, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.st.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.chunk().Len()
	c.st.consume(token.LPAREN, "Expect '(' after 'while'.")
	c.expression()
	c.st.consume(token.RPAREN, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.st.consume(token.LPAREN, "Expect '(' after 'for'.")
	switch {
	case c.st.match(token.SEMI):
		// no initializer clause
	case c.st.match(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.chunk().Len()
	exitJump := -1
	if !c.st.match(token.SEMI) {
		c.expression()
		c.st.consume(token.SEMI, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.st.match(token.RPAREN) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrStart := c.chunk().Len()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.st.consume(token.RPAREN, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}
	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.kind == kindScript {
		c.errorAtPrevious("Can't return from top-level code.")
	}
	if c.st.match(token.SEMI) {
		c.emitReturn()
		return
	}
	if c.kind == kindInitializer {
		c.errorAtPrevious("Can't return a value from an initializer.")
	}
	c.expression()
	c.st.consume(token.SEMI, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function(kindFunction)
	c.defineVariable(global)
}

// function compiles the parameter list and body of a function/method whose
// name token was just consumed by the caller (parseVariable, or method's
// own consume), emitting the enclosing OP_CLOSURE plus its upvalue capture
// operands once the nested Compiler finishes.
func (c *Compiler) function(kind functionKind) {
	name := c.st.previous
	sub := newCompiler(c.st, c, kind, &name)
	sub.beginScope()

	sub.st.consume(token.LPAREN, "Expect '(' after function name.")
	if !sub.st.check(token.RPAREN) {
		for {
			sub.function.Arity++
			if sub.function.Arity > 255 {
				sub.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConst := sub.parseVariable("Expect parameter name.")
			sub.defineVariable(paramConst)
			if !sub.st.match(token.COMMA) {
				break
			}
		}
	}
	sub.st.consume(token.RPAREN, "Expect ')' after parameters.")
	sub.st.consume(token.LBRACE, "Expect '{' before function body.")
	sub.block()

	fn := sub.endCompiler()
	idx := c.makeConstant(value.FromObj(fn))
	c.emitOpByte(chunk.OpClosure, idx)
	for _, up := range sub.upvalues {
		if up.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(up.index)
	}
}

func (c *Compiler) classDeclaration() {
	c.st.consume(token.IDENT, "Expect class name.")
	className := c.st.previous
	nameConst := c.identifierConstant(className)
	c.declareVariable()

	c.emitOpByte(chunk.OpClass, nameConst)
	c.defineVariable(nameConst)

	cls := &classState{enclosing: c.st.currentClass}
	c.st.currentClass = cls

	if c.st.match(token.LT) {
		c.st.consume(token.IDENT, "Expect superclass name.")
		c.variable(false)
		if className.Lexeme == c.st.previous.Lexeme {
			c.errorAtPrevious("A class can't inherit from itself.")
		}

		c.beginScope()
		c.addLocal(token.Token{Lexeme: "super"})
		c.defineVariable(0)

		c.namedVariable(className, false)
		c.emitOp(chunk.OpInherit)
		cls.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.st.consume(token.LBRACE, "Expect '{' before class body.")
	for !c.st.check(token.RBRACE) && !c.st.check(token.EOF) {
		c.method()
	}
	c.st.consume(token.RBRACE, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop)

	if cls.hasSuperclass {
		c.endScope()
	}
	c.st.currentClass = cls.enclosing
}

func (c *Compiler) method() {
	c.st.consume(token.IDENT, "Expect method name.")
	name := c.st.previous
	constant := c.identifierConstant(name)

	kind := kindMethod
	if name.Lexeme == "init" {
		kind = kindInitializer
	}
	c.function(kind)
	c.emitOpByte(chunk.OpMethod, constant)
}

// --- variable declaration/resolution plumbing ---

func (c *Compiler) parseVariable(errMsg string) byte {
	c.st.consume(token.IDENT, errMsg)
	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.st.previous)
}

func (c *Compiler) identifierConstant(name token.Token) byte {
	return c.makeConstant(value.FromObj(c.st.interner.InternString(name.Lexeme)))
}

func (c *Compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.st.previous
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if l.name.Lexeme == name.Lexeme {
			c.errorAtPrevious("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(chunk.OpDefineGlobal, global)
}

func (c *Compiler) argumentList() byte {
	var argc int
	if !c.st.check(token.RPAREN) {
		for {
			c.expression()
			if argc == 255 {
				c.errorAtPrevious("Can't have more than 255 arguments.")
			}
			argc++
			if !c.st.match(token.COMMA) {
				break
			}
		}
	}
	c.st.consume(token.RPAREN, "Expect ')' after arguments.")
	return byte(argc)
}

// --- expressions (Pratt parser core) ---

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *Compiler) parsePrecedence(prec precedence) {
	c.st.advance()
	rule := ruleFor(c.st.previous.Kind)
	if rule.prefix == nil {
		c.errorAtPrevious("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)

	for prec <= ruleFor(c.st.current.Kind).precedence {
		c.st.advance()
		ruleFor(c.st.previous.Kind).infix(c, canAssign)
	}

	if canAssign && c.st.match(token.EQ) {
		c.errorAtPrevious("Invalid assignment target.")
	}
}

func (c *Compiler) number(_ bool) {
	n, err := strconv.ParseFloat(c.st.previous.Lexeme, 64)
	if err != nil {
		c.errorAtPrevious("Invalid number literal.")
		return
	}
	c.emitConstant(value.Number(n))
}

func (c *Compiler) string(_ bool) {
	c.emitConstant(value.FromObj(c.st.interner.InternString(c.st.previous.Lexeme)))
}

func (c *Compiler) literal(_ bool) {
	switch c.st.previous.Kind {
	case token.FALSE:
		c.emitOp(chunk.OpFalse)
	case token.NIL:
		c.emitOp(chunk.OpNil)
	case token.TRUE:
		c.emitOp(chunk.OpTrue)
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.st.consume(token.RPAREN, "Expect ')' after expression.")
}

func (c *Compiler) unary(_ bool) {
	op := c.st.previous.Kind
	c.parsePrecedence(precUnary)
	switch op {
	case token.BANG:
		c.emitOp(chunk.OpNot)
	case token.MINUS:
		c.emitOp(chunk.OpNegate)
	}
}

func (c *Compiler) binary(_ bool) {
	op := c.st.previous.Kind
	rule := ruleFor(op)
	c.parsePrecedence(rule.precedence + 1)
	switch op {
	case token.BANG_EQ:
		c.emitOps(chunk.OpEqual, chunk.OpNot)
	case token.EQ_EQ:
		c.emitOp(chunk.OpEqual)
	case token.GT:
		c.emitOp(chunk.OpGreater)
	case token.GT_EQ:
		c.emitOps(chunk.OpLess, chunk.OpNot)
	case token.LT:
		c.emitOp(chunk.OpLess)
	case token.LT_EQ:
		c.emitOps(chunk.OpGreater, chunk.OpNot)
	case token.PLUS:
		c.emitOp(chunk.OpAdd)
	case token.MINUS:
		c.emitOp(chunk.OpSubtract)
	case token.STAR:
		c.emitOp(chunk.OpMultiply)
	case token.SLASH:
		c.emitOp(chunk.OpDivide)
	}
}

func (c *Compiler) and(_ bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(_ bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(_ bool) {
	argc := c.argumentList()
	c.emitOpByte(chunk.OpCall, argc)
}

func (c *Compiler) dot(canAssign bool) {
	c.st.consume(token.IDENT, "Expect property name after '.'.")
	name := c.identifierConstant(c.st.previous)
	switch {
	case canAssign && c.st.match(token.EQ):
		c.expression()
		c.emitOpByte(chunk.OpSetField, name)
	case c.st.match(token.LPAREN):
		argc := c.argumentList()
		c.emitOpByte(chunk.OpInvoke, name)
		c.emitByte(argc)
	default:
		c.emitOpByte(chunk.OpGetProperty, name)
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.st.previous, canAssign)
}

func (c *Compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp chunk.Opcode
	var arg int
	if local := c.resolveLocal(name.Lexeme); local != -1 {
		arg = local
		getOp, setOp = chunk.OpReadLocal, chunk.OpAssignLocal
	} else if up := c.resolveUpvalue(name.Lexeme); up != -1 {
		arg = up
		getOp, setOp = chunk.OpReadUpvalue, chunk.OpAssignUpvalue
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = chunk.OpReadGlobal, chunk.OpAssignGlobal
	}

	if canAssign && c.st.match(token.EQ) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func (c *Compiler) this(_ bool) {
	if c.st.currentClass == nil {
		c.errorAtPrevious("Can't use 'this' outside of a class.")
		return
	}
	c.variable(false)
}

func (c *Compiler) super(_ bool) {
	switch {
	case c.st.currentClass == nil:
		c.errorAtPrevious("Can't use 'super' outside of a class.")
	case !c.st.currentClass.hasSuperclass:
		c.errorAtPrevious("Can't use 'super' in a class with no superclass.")
	}

	c.st.consume(token.DOT, "Expect '.' after 'super'.")
	c.st.consume(token.IDENT, "Expect superclass method name.")
	name := c.identifierConstant(c.st.previous)

	c.namedVariable(token.Token{Lexeme: "this"}, false)
	if c.st.match(token.LPAREN) {
		argc := c.argumentList()
		c.namedVariable(token.Token{Lexeme: "super"}, false)
		c.emitOpByte(chunk.OpSuperInvoke, name)
		c.emitByte(argc)
	} else {
		c.namedVariable(token.Token{Lexeme: "super"}, false)
		c.emitOpByte(chunk.OpGetSuper, name)
	}
}
