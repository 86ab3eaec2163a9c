// Package value implements the runtime Value representation shared by the
// compiler and the virtual machine: a uniformly-sized tagged value holding
// nil, a boolean, a double, or a reference to a heap object.
//
// Two interchangeable encodings are provided, selected at build time: the
// default tagged-union encoding (value_tagged.go) and an opt-in NaN-boxed
// encoding (value_nanbox.go, build tag clocks_nanbox) that packs every
// variant into a single 64-bit word. Both expose the identical API in this
// file's doc and the Value methods below, so every other package only ever
// calls the abstract predicates and accessors, never relies on layout.
package value

// ObjKind discriminates the variant of a heap object.
type ObjKind uint8

const (
	ObjString ObjKind = iota
	ObjFunction
	ObjNative
	ObjClosure
	ObjUpvalue
	ObjClass
	ObjInstance
	ObjBoundMethod
)

func (k ObjKind) String() string {
	switch k {
	case ObjString:
		return "string"
	case ObjFunction:
		return "function"
	case ObjNative:
		return "native"
	case ObjClosure:
		return "closure"
	case ObjUpvalue:
		return "upvalue"
	case ObjClass:
		return "class"
	case ObjInstance:
		return "instance"
	case ObjBoundMethod:
		return "bound method"
	default:
		return "unknown"
	}
}

// Header is the common leading state of every heap object: its GC mark bit
// and the intrusive pointer threading it into the VM's all-objects list.
//
// Header must be embedded as the very first field of every concrete object
// struct (String, Function, Closure, ...). The NaN-boxed encoding recovers
// the concrete object from a bare *Header by reinterpreting the pointer as
// the type named by Kind; that reinterpretation is only valid when Header
// sits at offset zero, so this is a hard invariant of every lang/object
// type, not just a style preference.
type Header struct {
	Kind   ObjKind
	Marked bool
	Next   Obj // next object in the VM's intrusive allocation list
}

// GCHeader returns h itself, satisfying the Obj interface so that concrete
// object types need only embed Header to become a heap object.
func (h *Header) GCHeader() *Header { return h }

// Obj is implemented by every heap-allocated object (string, function,
// closure, class, instance, bound method, upvalue, native).
type Obj interface {
	String() string
	Type() string
	GCHeader() *Header
}
