// Package vm implements the stack-based bytecode virtual machine that
// executes a compiled Function (spec §4.6): a fixed value stack, a call
// frame stack, global and upvalue resolution, and the class/instance
// method-dispatch protocol (bind, invoke, inherit).
package vm

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/exp/slices"

	"github.com/buzzcut-s/clocks/lang/chunk"
	"github.com/buzzcut-s/clocks/lang/compiler"
	"github.com/buzzcut-s/clocks/lang/gc"
	"github.com/buzzcut-s/clocks/lang/object"
	"github.com/buzzcut-s/clocks/lang/table"
	"github.com/buzzcut-s/clocks/lang/value"
)

const (
	stackMax  = 64 * 256
	framesMax = 64
)

// VM is one independent interpreter: its value stack, call frames, global
// table, and the GC that owns every heap object it allocates. The zero
// value is not ready to use; call New.
type VM struct {
	stack    [stackMax]value.Value
	stackTop int

	frames     [framesMax]frame
	frameCount int

	globals *table.Table

	// openUpvalues holds every upvalue still pointing into a live stack slot,
	// kept sorted ascending by Slot so capture/close can use binary search
	// instead of a linear scan.
	openUpvalues []*object.Upvalue

	gc         *gc.Collector
	initString *object.String

	stdout io.Writer

	steps    int
	maxSteps int // 0 means unbounded
}

// New returns a VM backed by collector, registering itself as a GC root and
// installing the native function library. Output from the "print" statement
// and natives that write diagnostics goes to stdout. maxSteps bounds total
// dispatched instructions (0 for unbounded); independently of it, the run
// loop checks the context passed to Interpret before every instruction.
func New(collector *gc.Collector, stdout io.Writer, maxSteps int) *VM {
	vm := &VM{
		globals:  table.New(),
		gc:       collector,
		stdout:   stdout,
		maxSteps: maxSteps,
	}
	// Nothing allocated below is reachable from any root until AddRoot
	// returns, so pause collection for the duration (see gc.Collector.Pause).
	collector.Pause()
	vm.initString = collector.InternString("init")
	collector.AddRoot(vm)
	vm.defineNatives()
	collector.Resume()
	return vm
}

// MarkRoots implements gc.RootSource: the live stack slice, every active
// frame's closure, the open-upvalues chain, the globals table, and the
// interned "init" sentinel are the VM's roots.
func (vm *VM) MarkRoots(mark func(value.Value)) {
	for i := 0; i < vm.stackTop; i++ {
		mark(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		mark(value.FromObj(vm.frames[i].closure))
	}
	for _, up := range vm.openUpvalues {
		mark(value.FromObj(up))
	}
	vm.globals.Each(func(k table.Key, v value.Value) {
		mark(value.FromObj(k.(value.Obj)))
		mark(v)
	})
	mark(value.FromObj(vm.initString))
}

// Interpret compiles source and runs it to completion, returning the value
// of the implicit top-level return (always nil, since a script cannot
// return a value) or the first compile/runtime error encountered.
func (vm *VM) Interpret(ctx context.Context, source, scriptName string) (value.Value, error) {
	vm.gc.Pause()
	fn, err := compiler.Compile(source, scriptName, vm.gc)
	if err != nil {
		vm.gc.Resume()
		return value.Nil, err
	}

	// Stay paused until the closure is on the stack: until then fn and the
	// strings its chunk references are reachable from no root.
	closure := vm.gc.NewClosure(fn)
	vm.push(value.FromObj(closure))
	vm.gc.Resume()
	if err := vm.call(closure, 0); err != nil {
		return value.Nil, err
	}
	return vm.run(ctx)
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) run(ctx context.Context) (value.Value, error) {
	fr := &vm.frames[vm.frameCount-1]

	for {
		if err := ctx.Err(); err != nil {
			return value.Nil, err
		}
		vm.steps++
		if vm.maxSteps > 0 && vm.steps > vm.maxSteps {
			return value.Nil, vm.runtimeError("step limit exceeded")
		}

		op := chunk.Opcode(fr.function().Chunk.Code[fr.ip])
		fr.ip++

		switch op {
		case chunk.OpConstant:
			vm.push(vm.readConstant(fr))

		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.True)
		case chunk.OpFalse:
			vm.push(value.False)

		case chunk.OpPop:
			vm.pop()

		case chunk.OpReadLocal:
			slot := vm.readByte(fr)
			vm.push(vm.stack[fr.base+int(slot)])
		case chunk.OpAssignLocal:
			slot := vm.readByte(fr)
			vm.stack[fr.base+int(slot)] = vm.peek(0)

		case chunk.OpReadUpvalue:
			slot := vm.readByte(fr)
			vm.push(*fr.closure.Upvalues[slot].Location)
		case chunk.OpAssignUpvalue:
			slot := vm.readByte(fr)
			*fr.closure.Upvalues[slot].Location = vm.peek(0)

		case chunk.OpReadGlobal:
			name := vm.readString(fr)
			v, ok := vm.globals.Get(name)
			if !ok {
				return value.Nil, vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case chunk.OpDefineGlobal:
			name := vm.readString(fr)
			vm.globals.Insert(name, vm.peek(0))
			vm.pop()
		case chunk.OpAssignGlobal:
			name := vm.readString(fr)
			if vm.globals.Insert(name, vm.peek(0)) {
				vm.globals.Remove(name)
				return value.Nil, vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case chunk.OpGetProperty:
			name := vm.readString(fr)
			if err := vm.getProperty(name); err != nil {
				return value.Nil, err
			}
		case chunk.OpSetField:
			name := vm.readString(fr)
			if err := vm.setField(name); err != nil {
				return value.Nil, err
			}
		case chunk.OpGetSuper:
			name := vm.readString(fr)
			superclass := vm.pop().AsObj().(*object.Class)
			if err := vm.bindMethod(superclass, name); err != nil {
				return value.Nil, err
			}

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater, chunk.OpLess, chunk.OpSubtract, chunk.OpMultiply, chunk.OpDivide:
			if err := vm.binaryNumberOp(op); err != nil {
				return value.Nil, err
			}
		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return value.Nil, err
			}

		case chunk.OpNot:
			vm.push(value.Bool(!vm.pop().Truthy()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return value.Nil, vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case chunk.OpPrint:
			fmt.Fprintln(vm.stdout, vm.pop().String())

		case chunk.OpJump:
			offset := vm.readUint16(fr)
			fr.ip += int(offset)
		case chunk.OpJumpIfFalse:
			offset := vm.readUint16(fr)
			if !vm.peek(0).Truthy() {
				fr.ip += int(offset)
			}
		case chunk.OpLoop:
			offset := vm.readUint16(fr)
			fr.ip -= int(offset)

		case chunk.OpCall:
			argc := int(vm.readByte(fr))
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return value.Nil, err
			}
			fr = &vm.frames[vm.frameCount-1]

		case chunk.OpInvoke:
			name := vm.readString(fr)
			argc := int(vm.readByte(fr))
			if err := vm.invoke(name, argc); err != nil {
				return value.Nil, err
			}
			fr = &vm.frames[vm.frameCount-1]

		case chunk.OpSuperInvoke:
			name := vm.readString(fr)
			argc := int(vm.readByte(fr))
			superclass := vm.pop().AsObj().(*object.Class)
			if err := vm.invokeFromClass(superclass, name, argc); err != nil {
				return value.Nil, err
			}
			fr = &vm.frames[vm.frameCount-1]

		case chunk.OpClosure:
			fn := vm.readConstant(fr).AsObj().(*object.Function)
			closure := vm.gc.NewClosure(fn)
			for i := range closure.Upvalues {
				isLocal := vm.readByte(fr)
				index := vm.readByte(fr)
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(fr.base + int(index))
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}
			vm.push(value.FromObj(closure))

		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(fr.base)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop() // the top-level script closure itself
				return result, nil
			}
			vm.stackTop = fr.base
			vm.push(result)
			fr = &vm.frames[vm.frameCount-1]

		case chunk.OpClass:
			name := vm.readString(fr)
			vm.push(value.FromObj(vm.gc.NewClass(name)))

		case chunk.OpInherit:
			superclass, ok := asClass(vm.peek(1))
			if !ok {
				return value.Nil, vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).AsObj().(*object.Class)
			superclass.Methods.CopyInto(subclass.Methods)
			vm.pop() // the subclass value pushed for OP_INHERIT itself

		case chunk.OpMethod:
			name := vm.readString(fr)
			vm.defineMethod(name)

		default:
			return value.Nil, vm.runtimeError("illegal opcode %s", op)
		}
	}
}

func (vm *VM) readByte(fr *frame) byte {
	b := fr.function().Chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (vm *VM) readUint16(fr *frame) uint16 {
	hi := vm.readByte(fr)
	lo := vm.readByte(fr)
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readConstant(fr *frame) value.Value {
	return fr.function().Chunk.Constants[vm.readByte(fr)]
}

func (vm *VM) readString(fr *frame) *object.String {
	return vm.readConstant(fr).AsObj().(*object.String)
}

func (vm *VM) add() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(value.Number(a.AsNumber() + b.AsNumber()))
	case isString(a) && isString(b):
		vm.pop()
		vm.pop()
		as := a.AsObj().(*object.String)
		bs := b.AsObj().(*object.String)
		vm.push(value.FromObj(vm.gc.InternString(object.Concat(as, bs))))
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
	return nil
}

func (vm *VM) binaryNumberOp(op chunk.Opcode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	switch op {
	case chunk.OpSubtract:
		vm.push(value.Number(a - b))
	case chunk.OpMultiply:
		vm.push(value.Number(a * b))
	case chunk.OpDivide:
		vm.push(value.Number(a / b))
	case chunk.OpGreater:
		vm.push(value.Bool(a > b))
	case chunk.OpLess:
		vm.push(value.Bool(a < b))
	}
	return nil
}

func isString(v value.Value) bool {
	if !v.IsObj() {
		return false
	}
	_, ok := v.AsObj().(*object.String)
	return ok
}

func asClass(v value.Value) (*object.Class, bool) {
	if !v.IsObj() {
		return nil, false
	}
	c, ok := v.AsObj().(*object.Class)
	return c, ok
}

// --- call protocol ---

func (vm *VM) callValue(callee value.Value, argc int) error {
	if callee.IsObj() {
		switch fn := callee.AsObj().(type) {
		case *object.Closure:
			return vm.call(fn, argc)
		case *object.Native:
			return vm.callNative(fn, argc)
		case *object.Class:
			instance := vm.gc.NewInstance(fn)
			vm.stack[vm.stackTop-argc-1] = value.FromObj(instance)
			if initializer, ok := fn.Methods.Get(vm.initString); ok {
				return vm.call(initializer.AsObj().(*object.Closure), argc)
			} else if argc != 0 {
				return vm.runtimeError("Expected 0 arguments but got %d.", argc)
			}
			return nil
		case *object.BoundMethod:
			vm.stack[vm.stackTop-argc-1] = fn.Receiver
			return vm.call(fn.Method, argc)
		}
	}
	return vm.runtimeError("Can only call functions and classes.")
}

func (vm *VM) callNative(fn *object.Native, argc int) error {
	if argc != fn.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", fn.Arity, argc)
	}
	args := vm.stack[vm.stackTop-argc : vm.stackTop]
	result, err := fn.Fn(args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.stackTop -= argc + 1
	vm.push(result)
	return nil
}

func (vm *VM) call(closure *object.Closure, argc int) error {
	if argc != closure.Fn.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Fn.Arity, argc)
	}
	if vm.frameCount >= framesMax {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames[vm.frameCount] = frame{
		closure: closure,
		ip:      0,
		base:    vm.stackTop - argc - 1,
	}
	vm.frameCount++
	return nil
}

func (vm *VM) invoke(name *object.String, argc int) error {
	receiver := vm.peek(argc)
	if !receiver.IsObj() {
		return vm.runtimeError("Only instances have methods.")
	}
	instance, ok := receiver.AsObj().(*object.Instance)
	if !ok {
		return vm.runtimeError("Only instances have methods.")
	}

	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argc-1] = field
		return vm.callValue(field, argc)
	}
	return vm.invokeFromClass(instance.Class, name, argc)
}

func (vm *VM) invokeFromClass(class *object.Class, name *object.String, argc int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	return vm.call(method.AsObj().(*object.Closure), argc)
}

func (vm *VM) getProperty(name *object.String) error {
	receiver := vm.peek(0)
	if !receiver.IsObj() {
		return vm.runtimeError("Only instances have properties.")
	}
	instance, ok := receiver.AsObj().(*object.Instance)
	if !ok {
		return vm.runtimeError("Only instances have properties.")
	}

	if field, ok := instance.Fields.Get(name); ok {
		vm.pop()
		vm.push(field)
		return nil
	}
	return vm.bindMethod(instance.Class, name)
}

func (vm *VM) setField(name *object.String) error {
	receiver := vm.peek(1)
	if !receiver.IsObj() {
		return vm.runtimeError("Only instances have fields.")
	}
	instance, ok := receiver.AsObj().(*object.Instance)
	if !ok {
		return vm.runtimeError("Only instances have fields.")
	}

	instance.Fields.Insert(name, vm.peek(0))
	v := vm.pop()
	vm.pop()
	vm.push(v)
	return nil
}

func (vm *VM) bindMethod(class *object.Class, name *object.String) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	bound := vm.gc.NewBoundMethod(vm.peek(0), method.AsObj().(*object.Closure))
	vm.pop()
	vm.push(value.FromObj(bound))
	return nil
}

func (vm *VM) defineMethod(name *object.String) {
	method := vm.peek(0)
	class := vm.peek(1).AsObj().(*object.Class)
	class.Methods.Insert(name, method)
	vm.pop()
}

// --- upvalues ---

func upvalueSlotCmp(u *object.Upvalue, slot int) int { return u.Slot - slot }

// captureUpvalue returns the open upvalue for the given absolute stack slot,
// reusing an existing one if the slot is already captured, otherwise
// allocating one and inserting it into openUpvalues at the position that
// keeps the list sorted ascending by Slot. Using slices.BinarySearchFunc
// here (rather than unsafe pointer comparisons, clox's approach for its
// C-level linked list) is the reason Upvalue carries an explicit Slot field.
func (vm *VM) captureUpvalue(slot int) *object.Upvalue {
	idx, found := slices.BinarySearchFunc(vm.openUpvalues, slot, upvalueSlotCmp)
	if found {
		return vm.openUpvalues[idx]
	}

	created := vm.gc.NewUpvalue(&vm.stack[slot], slot)
	vm.openUpvalues = slices.Insert(vm.openUpvalues, idx, created)
	return created
}

// closeUpvalues hoists every open upvalue at or above fromSlot into its own
// Closed field, called when a scope's locals (OP_CLOSE_UPVALUE) or a whole
// call frame (OP_RETURN) are about to be popped off the stack.
func (vm *VM) closeUpvalues(fromSlot int) {
	idx, _ := slices.BinarySearchFunc(vm.openUpvalues, fromSlot, upvalueSlotCmp)
	for _, up := range vm.openUpvalues[idx:] {
		up.Close()
	}
	vm.openUpvalues = vm.openUpvalues[:idx]
}

// --- runtime errors ---

func (vm *VM) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	trace := make([]TraceFrame, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		name := "script"
		if fr.closure.Fn.Name != nil {
			name = fr.closure.Fn.Name.Chars + "()"
		}
		trace = append(trace, TraceFrame{FunctionName: name, Line: fr.line()})
	}
	vm.resetStack()
	return &RuntimeError{Message: msg, Trace: trace}
}

// resetStack discards every value, frame, and open upvalue left behind by a
// runtime error, so the VM is ready to interpret the next top-level script
// from a clean slate (matches clox's resetStack). Without this, a VM kept
// alive across multiple Interpret calls (the REPL) would carry a stale
// frameCount/stackTop into the next line.
func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = vm.openUpvalues[:0]
}

// --- natives ---

// DefineNative installs fn as a global native function callable from clocks
// source under name, satisfying the embedding API's define_native(name, fn)
// requirement. Safe to call any time after New returns: the intern-then-stash
// is bracketed in a GC pause so a collection triggered between allocating the
// Native and inserting it into globals cannot sweep it back out first.
func (vm *VM) DefineNative(name string, arity int, fn object.NativeFn) {
	vm.gc.Pause()
	native := vm.gc.NewNative(name, arity, fn)
	nameStr := vm.gc.InternString(name)
	vm.globals.Insert(nameStr, value.FromObj(native))
	vm.gc.Resume()
}

func (vm *VM) defineNatives() {
	vm.DefineNative("clock", 0, func(args []value.Value) (value.Value, error) {
		return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
	})
	vm.DefineNative("has_field", 2, func(args []value.Value) (value.Value, error) {
		if !args[0].IsObj() {
			return value.Nil, fmt.Errorf("has_field: first argument must be an instance")
		}
		instance, ok := args[0].AsObj().(*object.Instance)
		if !ok {
			return value.Nil, fmt.Errorf("has_field: first argument must be an instance")
		}
		if !args[1].IsObj() {
			return value.Nil, fmt.Errorf("has_field: second argument must be a string")
		}
		name, ok := args[1].AsObj().(*object.String)
		if !ok {
			return value.Nil, fmt.Errorf("has_field: second argument must be a string")
		}
		_, found := instance.Fields.Get(name)
		return value.Bool(found), nil
	})
}
