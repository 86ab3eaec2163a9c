package object

import (
	"unsafe"

	"github.com/buzzcut-s/clocks/lang/value"
)

// ptrOf converts a *value.Header into an unsafe.Pointer so it can be
// reinterpreted as a pointer to the concrete object type named by
// h.Kind. This is sound only because every object type in this package
// embeds value.Header as its first field (see package doc comment), which
// guarantees the address of the Header equals the address of the
// enclosing struct.
func ptrOf(h *value.Header) unsafe.Pointer { return unsafe.Pointer(h) }
