package compiler

import "github.com/buzzcut-s/clocks/lang/token"

const maxLocals = 256 // local slot index is a single byte operand

// local is a block-scoped variable tracked purely at compile time: the VM
// never sees names for locals, only stack slots.
type local struct {
	name       token.Token
	depth      int // -1 while the declaring initializer is still being compiled
	isCaptured bool
}

// upvalueRef records where a closure's captured variable comes from: either
// a local slot in the immediately enclosing function, or an upvalue already
// captured by it (chained capture across more than one nesting level).
type upvalueRef struct {
	index   uint8
	isLocal bool
}

// functionKind distinguishes the handful of compile-time behaviors that
// differ by what kind of function body is being compiled: whether an
// implicit "this" local is reserved, and what a bare return produces.
type functionKind uint8

const (
	kindFunction functionKind = iota
	kindMethod
	kindInitializer
	kindScript
)

// addLocal declares name as a new local in the current scope. The local
// starts "uninitialized" (depth -1) until markInitialized is called once its
// initializer expression has finished compiling, so that reading `a` inside
// the initializer of `var a = a;` is reported by resolveLocal as an error
// instead of silently reading the uninitialized slot.
func (c *Compiler) addLocal(name token.Token) {
	if len(c.locals) >= maxLocals {
		c.errorAtPrevious("Too many local variables in function.")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: -1})
}

func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

// resolveLocal returns the slot index of name among c's locals, searching
// innermost-scope-first, or -1 if name is not a local here.
func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name.Lexeme == name {
			if c.locals[i].depth == -1 {
				c.errorAtPrevious("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue resolves name against enclosing functions, walking
// outward one level at a time and recording a capture chain through
// addUpvalue at every level crossed. Returns -1 if name is not found in any
// enclosing scope (so it must be a global).
func (c *Compiler) resolveUpvalue(name string) int {
	if c.enclosing == nil {
		return -1
	}
	if local := c.enclosing.resolveLocal(name); local != -1 {
		c.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(uint8(local), true)
	}
	if up := c.enclosing.resolveUpvalue(name); up != -1 {
		return c.addUpvalue(uint8(up), false)
	}
	return -1
}

func (c *Compiler) addUpvalue(index uint8, isLocal bool) int {
	for i, up := range c.upvalues {
		if up.index == index && up.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= maxLocals {
		c.errorAtPrevious("Too many closure variables in function.")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueRef{index: index, isLocal: isLocal})
	c.function.UpvalueCount = len(c.upvalues)
	return len(c.upvalues) - 1
}

// classState tracks the class currently being compiled, chained through
// enclosing so that "this" and "super" resolve correctly in nested class
// bodies (a class declared inside a method or function body pushes a new
// classState, mirroring the function-compiler stack).
type classState struct {
	enclosing     *classState
	hasSuperclass bool
}
