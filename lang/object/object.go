// Package object defines the heap-allocated object variants of the
// language's runtime: strings, functions, native functions, closures,
// upvalues, classes, instances, and bound methods. Every variant embeds
// value.Header as its first field, which is what lets the NaN-boxed Value
// encoding recover a concrete object from a bare pointer (see
// lang/value.Header).
//
// Construction here is allocation-agnostic: NewXxx only builds the Go
// struct. Linking a fresh object into the GC's intrusive list and charging
// it against the allocator's byte budget is lang/gc's job (see
// the unexported gc.Collector.track), matching the spec's "all heap objects are created
// only through the allocator" invariant.
package object

import (
	"fmt"
	"strings"

	"github.com/buzzcut-s/clocks/lang/chunk"
	"github.com/buzzcut-s/clocks/lang/table"
	"github.com/buzzcut-s/clocks/lang/value"
)

func init() {
	value.RegisterObjReconstructor(func(h *value.Header) value.Obj {
		switch h.Kind {
		case value.ObjString:
			return (*String)(ptrOf(h))
		case value.ObjFunction:
			return (*Function)(ptrOf(h))
		case value.ObjNative:
			return (*Native)(ptrOf(h))
		case value.ObjClosure:
			return (*Closure)(ptrOf(h))
		case value.ObjUpvalue:
			return (*Upvalue)(ptrOf(h))
		case value.ObjClass:
			return (*Class)(ptrOf(h))
		case value.ObjInstance:
			return (*Instance)(ptrOf(h))
		case value.ObjBoundMethod:
			return (*BoundMethod)(ptrOf(h))
		default:
			panic(fmt.Sprintf("object: unknown ObjKind %d", h.Kind))
		}
	})
}

// String is an interned sequence of bytes.
type String struct {
	value.Header
	Chars string
	Hash  uint32
}

func NewString(s string) *String {
	str := &String{Chars: s, Hash: FNV1a(s)}
	str.Header.Kind = value.ObjString
	return str
}

func (s *String) String() string { return s.Chars }
func (s *String) Type() string   { return "string" }

// KeyBytes and KeyHash implement table.Key, letting interned strings be
// used directly as hash table keys for globals, methods, and fields.
func (s *String) KeyBytes() string { return s.Chars }
func (s *String) KeyHash() uint32  { return s.Hash }

// FNV1a computes the 32-bit FNV-1a hash used to key interned strings and
// the hash table.
func FNV1a(s string) uint32 {
	const (
		offsetBasis uint32 = 2166136261
		prime       uint32 = 16777619
	)
	h := offsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// Function is a compiled function body: its arity, name, and owned Chunk.
// The function body of a module (the top-level script) is represented the
// same way, with an empty Name.
type Function struct {
	value.Header
	Arity        int
	UpvalueCount int
	Name         *String // nil for an anonymous/top-level function
	Chunk        *chunk.Chunk
}

func NewFunction() *Function {
	fn := &Function{Chunk: chunk.New()}
	fn.Header.Kind = value.ObjFunction
	return fn
}

// Upvalues reports how many upvalues f captures. Named distinctly from the
// UpvalueCount field so lang/chunk's disassembler can detect it through a
// small structural interface without importing this package.
func (f *Function) Upvalues() int { return f.UpvalueCount }

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}
func (f *Function) Type() string { return "function" }

// NativeFn is the Go function backing a Native object: argc is len(args).
type NativeFn func(args []value.Value) (value.Value, error)

// Native wraps a host-provided built-in function.
type Native struct {
	value.Header
	Name  string
	Arity int
	Fn    NativeFn
}

func NewNative(name string, arity int, fn NativeFn) *Native {
	n := &Native{Name: name, Arity: arity, Fn: fn}
	n.Header.Kind = value.ObjNative
	return n
}

func (n *Native) String() string { return fmt.Sprintf("<native fn %s>", n.Name) }
func (n *Native) Type() string   { return "native function" }

// Upvalue is an indirection cell for a captured local variable: open while
// Location still points into the live VM stack, closed once the value has
// been copied into Closed (and Location redirected to &Closed).
type Upvalue struct {
	value.Header
	Location *value.Value
	Closed   value.Value
	Slot     int // stack slot Location points into while open; unused once closed
}

func NewUpvalue(slot *value.Value, slotIndex int) *Upvalue {
	u := &Upvalue{Location: slot, Slot: slotIndex}
	u.Header.Kind = value.ObjUpvalue
	return u
}

func (u *Upvalue) String() string { return "upvalue" }
func (u *Upvalue) Type() string   { return "upvalue" }

// Close hoists the value at Location into Closed and redirects Location to
// point at it, so the upvalue remains valid after its stack slot is
// reclaimed. Closing an already-closed upvalue is a no-op, matching the
// spec's idempotence requirement for close_upvalues.
func (u *Upvalue) Close() {
	if u.Location == &u.Closed {
		return
	}
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// Closure pairs a compiled Function with the upvalues it captured at the
// point it was created.
type Closure struct {
	value.Header
	Fn       *Function
	Upvalues []*Upvalue
}

func NewClosure(fn *Function) *Closure {
	c := &Closure{Fn: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
	c.Header.Kind = value.ObjClosure
	return c
}

func (c *Closure) String() string { return c.Fn.String() }
func (c *Closure) Type() string   { return "function" }

// Class is a first-class class value: its name and its method table (method
// name -> Closure, as a Value so it is storable uniformly). The method
// table is the spec's hash table (lang/table), not a bare Go map, so that
// OpInherit's "copy superclass methods into subclass" is a table.CopyInto
// call like any other table bulk-copy.
type Class struct {
	value.Header
	Name    *String
	Methods *table.Table
}

func NewClass(name *String) *Class {
	c := &Class{Name: name, Methods: table.New()}
	c.Header.Kind = value.ObjClass
	return c
}

func (c *Class) String() string { return c.Name.Chars }
func (c *Class) Type() string   { return "class" }

// Instance is an instance of a Class with its own field table.
type Instance struct {
	value.Header
	Class  *Class
	Fields *table.Table
}

func NewInstance(class *Class) *Instance {
	i := &Instance{Class: class, Fields: table.New()}
	i.Header.Kind = value.ObjInstance
	return i
}

func (i *Instance) String() string { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }
func (i *Instance) Type() string   { return "instance" }

// BoundMethod binds a method Closure to the receiver instance it was
// accessed through, produced by property access on a method name.
type BoundMethod struct {
	value.Header
	Receiver value.Value
	Method   *Closure
}

func NewBoundMethod(receiver value.Value, method *Closure) *BoundMethod {
	bm := &BoundMethod{Receiver: receiver, Method: method}
	bm.Header.Kind = value.ObjBoundMethod
	return bm
}

func (bm *BoundMethod) String() string { return bm.Method.String() }
func (bm *BoundMethod) Type() string   { return "function" }

// Concat returns the interned-ready concatenation of two strings' contents,
// without performing the interning lookup itself (the caller, typically the
// VM's OpAdd handler, does that through the table so the result can be
// deduplicated against an existing intern).
func Concat(a, b *String) string {
	var sb strings.Builder
	sb.Grow(len(a.Chars) + len(b.Chars))
	sb.WriteString(a.Chars)
	sb.WriteString(b.Chars)
	return sb.String()
}

var (
	_ value.Obj = (*String)(nil)
	_ value.Obj = (*Function)(nil)
	_ value.Obj = (*Native)(nil)
	_ value.Obj = (*Closure)(nil)
	_ value.Obj = (*Upvalue)(nil)
	_ value.Obj = (*Class)(nil)
	_ value.Obj = (*Instance)(nil)
	_ value.Obj = (*BoundMethod)(nil)
)
