package vm

import "github.com/buzzcut-s/clocks/lang/object"

// frame is one active call's bookkeeping: which closure is running, the
// bytecode instruction pointer into that closure's chunk, and the base
// index into the VM's value stack where its locals (parameters first) live.
type frame struct {
	closure *object.Closure
	ip      int
	base    int
}

func (f *frame) function() *object.Function { return f.closure.Fn }

// line returns the source line the instruction just executed (ip already
// advanced past it) was compiled from, used for runtime error messages and
// tracebacks.
func (f *frame) line() int {
	return f.closure.Fn.Chunk.LineAt(f.ip - 1)
}
