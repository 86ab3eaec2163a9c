package value

// reconstructObj rebuilds the concrete Obj implementation for a heap object
// from its Header, recovering the dynamic type that the NaN-boxed encoding
// erases when it packs an object reference down to a bare pointer. It is
// installed by lang/object's init function, the only package that knows the
// concrete Go type behind each ObjKind.
var reconstructObj func(h *Header) Obj

// RegisterObjReconstructor installs the function the NaN-boxed Value
// encoding uses to turn a bare *Header back into its concrete Obj. Called
// once, from lang/object's init; harmless to call when the tagged-union
// encoding is in use since that encoding never needs it.
func RegisterObjReconstructor(fn func(h *Header) Obj) {
	reconstructObj = fn
}
