// Package gc implements the precise mark-sweep collector that owns every
// heap object's lifetime (spec §4.7): Collector is both the allocator
// (NewXxx methods wrap lang/object's constructors and link the result into
// an intrusive list) and the collector (Collect walks registered roots,
// traces references, then sweeps anything left unmarked).
package gc

import (
	"fmt"
	"io"

	"github.com/buzzcut-s/clocks/lang/object"
	"github.com/buzzcut-s/clocks/lang/table"
	"github.com/buzzcut-s/clocks/lang/value"
)

// RootSource is implemented by anything holding live Values the collector
// must not reclaim: lang/vm.VM (its stack, frames, open upvalues, globals)
// is the only production implementation.
type RootSource interface {
	MarkRoots(mark func(value.Value))
}

const (
	initialNextGC    = 1 << 20 // bytes
	heapGrowthFactor = 2
)

// Collector is the allocator and collector for one VM's heap. The zero
// value is not ready to use; call New.
type Collector struct {
	bytesAllocated int
	nextGC         int

	objects value.Obj // head of the intrusive allocation list, via Header.Next
	strings *table.Table // weak string intern pool

	roots     []RootSource
	grayStack []value.Obj

	paused int // >0 suppresses Collect from track, see Pause/Resume

	stressGC bool
	logGC    bool
	logW     io.Writer
}

// New returns a Collector ready to allocate. stressGC forces a collection
// on every single allocation (a correctness stress test, not meant for
// normal use); logGC writes a begin line and an end-of-collection summary
// line for each collection to logW.
func New(stressGC, logGC bool, logW io.Writer) *Collector {
	return &Collector{
		nextGC:   initialNextGC,
		strings:  table.New(),
		stressGC: stressGC,
		logGC:    logGC,
		logW:     logW,
	}
}

// AddRoot registers r to be walked on every future collection. Roots are
// never removed; a VM registers itself once at construction.
func (c *Collector) AddRoot(r RootSource) { c.roots = append(c.roots, r) }

// Pause suppresses collections triggered by allocation until a matching
// Resume. Compilation interns identifiers and string literals before they
// are reachable from any root (they aren't yet stored in a Chunk that any
// rooted Function owns), so a collection mid-compile could otherwise sweep
// a just-allocated string out of the intern pool; nesting is supported so
// callers don't need to reason about whether a pause is already active.
func (c *Collector) Pause()  { c.paused++ }
func (c *Collector) Resume() { c.paused-- }

func (c *Collector) track(o value.Obj) {
	c.bytesAllocated += sizeOf(o)
	if c.paused == 0 && (c.stressGC || c.bytesAllocated > c.nextGC) {
		c.Collect()
	}

	h := o.GCHeader()
	h.Next = c.objects
	c.objects = o
}

// InternString returns the canonical *object.String for s, allocating and
// interning a new one only if no equal-content string exists already. This
// implements compiler.StringInterner.
func (c *Collector) InternString(s string) *object.String {
	hash := object.FNV1a(s)
	if key, ok := c.strings.FindString(s, hash); ok {
		return key.(*object.String)
	}
	str := object.NewString(s)
	c.track(str)
	c.strings.Insert(str, value.Nil)
	return str
}

func (c *Collector) NewFunction() *object.Function {
	fn := object.NewFunction()
	c.track(fn)
	return fn
}

func (c *Collector) NewNative(name string, arity int, fn object.NativeFn) *object.Native {
	n := object.NewNative(name, arity, fn)
	c.track(n)
	return n
}

func (c *Collector) NewClosure(fn *object.Function) *object.Closure {
	cl := object.NewClosure(fn)
	c.track(cl)
	return cl
}

func (c *Collector) NewUpvalue(slot *value.Value, slotIndex int) *object.Upvalue {
	u := object.NewUpvalue(slot, slotIndex)
	c.track(u)
	return u
}

func (c *Collector) NewClass(name *object.String) *object.Class {
	cls := object.NewClass(name)
	c.track(cls)
	return cls
}

func (c *Collector) NewInstance(class *object.Class) *object.Instance {
	i := object.NewInstance(class)
	c.track(i)
	return i
}

func (c *Collector) NewBoundMethod(receiver value.Value, method *object.Closure) *object.BoundMethod {
	bm := object.NewBoundMethod(receiver, method)
	c.track(bm)
	return bm
}

// Collect runs one full mark-sweep cycle: mark every root, trace outgoing
// references to a fixed point, drop intern pool entries that turned out
// unreachable, then sweep every unmarked object from the allocation list.
func (c *Collector) Collect() {
	before := c.bytesAllocated
	if c.logGC {
		fmt.Fprintln(c.logW, "-- gc begin")
	}

	c.markRoots()
	c.traceReferences()
	c.strings.RemoveUnmarkedStrings(func(k table.Key) bool {
		return k.(*object.String).GCHeader().Marked
	})
	c.sweep()

	c.nextGC = c.bytesAllocated * heapGrowthFactor
	if c.nextGC < initialNextGC {
		c.nextGC = initialNextGC
	}
	if c.logGC {
		fmt.Fprintf(c.logW, "-- gc end, collected %d bytes (%d -> %d), next at %d\n",
			before-c.bytesAllocated, before, c.bytesAllocated, c.nextGC)
	}
}

func (c *Collector) markRoots() {
	for _, r := range c.roots {
		r.MarkRoots(c.markValue)
	}
}

func (c *Collector) markValue(v value.Value) {
	if !v.IsObj() {
		return
	}
	c.markObject(v.AsObj())
}

func (c *Collector) markObject(o value.Obj) {
	if o == nil {
		return
	}
	h := o.GCHeader()
	if h.Marked {
		return
	}
	h.Marked = true
	c.grayStack = append(c.grayStack, o)
}

func (c *Collector) traceReferences() {
	for len(c.grayStack) > 0 {
		o := c.grayStack[len(c.grayStack)-1]
		c.grayStack = c.grayStack[:len(c.grayStack)-1]
		c.blacken(o)
	}
}

func (c *Collector) blacken(o value.Obj) {
	switch v := o.(type) {
	case *object.String, *object.Native:
		// no outgoing references
	case *object.Function:
		if v.Name != nil {
			c.markObject(v.Name)
		}
		for _, constant := range v.Chunk.Constants {
			c.markValue(constant)
		}
	case *object.Closure:
		c.markObject(v.Fn)
		for _, up := range v.Upvalues {
			if up != nil {
				c.markObject(up)
			}
		}
	case *object.Upvalue:
		c.markValue(*v.Location)
	case *object.Class:
		c.markObject(v.Name)
		v.Methods.Each(func(k table.Key, val value.Value) {
			c.markObject(k.(value.Obj))
			c.markValue(val)
		})
	case *object.Instance:
		c.markObject(v.Class)
		v.Fields.Each(func(k table.Key, val value.Value) {
			c.markObject(k.(value.Obj))
			c.markValue(val)
		})
	case *object.BoundMethod:
		c.markValue(v.Receiver)
		c.markObject(v.Method)
	}
}

func (c *Collector) sweep() {
	var previous value.Obj
	obj := c.objects
	for obj != nil {
		h := obj.GCHeader()
		if h.Marked {
			h.Marked = false
			previous = obj
			obj = h.Next
			continue
		}

		unreached := obj
		obj = h.Next
		if previous != nil {
			previous.GCHeader().Next = obj
		} else {
			c.objects = obj
		}
		c.bytesAllocated -= sizeOf(unreached)
	}
}

// sizeOf is a rough, fixed per-kind byte charge used only to pace
// collections: Go's runtime owns real memory management, so this does not
// need to (and cannot, without unsafe per-field accounting) match actual
// struct size exactly.
func sizeOf(o value.Obj) int {
	switch o.(type) {
	case *object.String:
		return 32
	case *object.Function:
		return 64
	case *object.Native:
		return 48
	case *object.Closure:
		return 48
	case *object.Upvalue:
		return 40
	case *object.Class:
		return 48
	case *object.Instance:
		return 48
	case *object.BoundMethod:
		return 32
	default:
		return 32
	}
}
