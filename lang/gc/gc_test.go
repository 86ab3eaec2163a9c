package gc_test

import (
	"bytes"
	"testing"

	"github.com/buzzcut-s/clocks/lang/gc"
	"github.com/buzzcut-s/clocks/lang/value"
	"github.com/stretchr/testify/require"
)

type fakeRoots struct {
	values []value.Value
}

func (f *fakeRoots) MarkRoots(mark func(value.Value)) {
	for _, v := range f.values {
		mark(v)
	}
}

func TestInternStringDedupesByContent(t *testing.T) {
	c := gc.New(false, false, &bytes.Buffer{})
	a := c.InternString("hello")
	b := c.InternString("hello")
	require.Same(t, a, b)

	other := c.InternString("world")
	require.NotSame(t, a, other)
}

func TestCollectReclaimsUnreachableStrings(t *testing.T) {
	c := gc.New(false, false, &bytes.Buffer{})
	roots := &fakeRoots{}
	c.AddRoot(roots)

	kept := c.InternString("kept")
	roots.values = []value.Value{value.FromObj(kept)}

	swept := c.InternString("unreachable")
	c.Collect()

	// The reachable string must still intern to the same object.
	require.Same(t, kept, c.InternString("kept"))

	// The unreachable string was dropped from the intern pool: re-interning
	// its content allocates a fresh object rather than returning the swept one.
	reinterned := c.InternString("unreachable")
	require.NotNil(t, reinterned)
	require.NotSame(t, swept, reinterned)
}

func TestStressGCCollectsOnEveryAllocation(t *testing.T) {
	c := gc.New(true, false, &bytes.Buffer{})
	roots := &fakeRoots{}
	c.AddRoot(roots)

	for i := 0; i < 50; i++ {
		c.InternString("x")
	}
}

func TestPauseSuppressesCollectionDuringBurst(t *testing.T) {
	c := gc.New(true, false, &bytes.Buffer{})
	roots := &fakeRoots{}
	c.AddRoot(roots)

	c.Pause()
	s := c.InternString("held")
	c.Resume()

	roots.values = []value.Value{value.FromObj(s)}
	c.Collect()
	require.Same(t, s, c.InternString("held"))
}
