// Package table implements the open-addressing hash table that backs
// globals, the string intern pool, and per-class/per-instance method and
// field tables (spec §4.3): linear probing over a power-of-two capacity,
// tombstones on delete, and a 0.75 max load factor that grows capacity by
// doubling (starting at 8).
//
// Keys are compared by identity (the Key value itself, via ==): because
// all strings are interned, pointer/interface identity already implies
// content equality for every key actually stored in a table. FindString is
// the one exception, used by the intern pool to check for an existing
// string by content before a new String object is even allocated.
package table

import (
	"github.com/buzzcut-s/clocks/lang/value"
)

// Key is implemented by interned string objects (lang/object.String) so
// that table does not need to import the object package: it only needs to
// hash and compare key content, never to construct one.
type Key interface {
	KeyBytes() string
	KeyHash() uint32
}

type entry struct {
	key   Key // nil key = empty slot (if value is Nil) or tombstone (if value is True)
	value value.Value
}

// Table is an open-addressing hash table mapping Key to value.Value.
type Table struct {
	entries []entry
	count   int // live entries + tombstones
	live    int // live entries only
}

const maxLoad = 0.75

// New returns an empty table. The zero value of Table is also ready to use.
func New() *Table { return &Table{} }

// Len returns the number of live (non-tombstone) entries.
func (t *Table) Len() int { return t.live }

// Get returns the value for key and whether it was present.
func (t *Table) Get(key Key) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Nil, false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return value.Nil, false
	}
	return e.value, true
}

// Insert sets key to val, growing the table if needed. It returns true iff
// key was not already present (a fresh key), matching the spec's insert
// semantics used to detect "new global" vs. "reassignment".
func (t *Table) Insert(key Key, val value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow(growCapacity(len(t.entries)))
	}

	e := findEntry(t.entries, key)
	isNew := e.key == nil
	if isNew && e.value == value.Nil {
		// a genuinely empty slot, not a tombstone being reused
		t.count++
	}
	e.key = key
	e.value = val
	if isNew {
		t.live++
	}
	return isNew
}

// Remove deletes key, leaving a tombstone so later probes still find keys
// that were inserted after a collision with key. Returns whether key was
// present.
func (t *Table) Remove(key Key) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = value.True // tombstone marker
	t.live--
	return true
}

// CopyInto bulk-inserts every live entry of t into dest, used by OpInherit
// to copy a superclass's method table into a subclass.
func (t *Table) CopyInto(dest *Table) {
	for i := range t.entries {
		if e := &t.entries[i]; e.key != nil {
			dest.Insert(e.key, e.value)
		}
	}
}

// FindString looks up an interned string by content instead of by Key
// identity: the caller has raw bytes and a precomputed hash but has not
// allocated a String object yet, so it cannot build a Key to probe with.
// Returns the matching Key (the already-interned String) and true, or
// (nil, false) if no such string is interned.
func (t *Table) FindString(chars string, hash uint32) (Key, bool) {
	if len(t.entries) == 0 {
		return nil, false
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if e.value == value.Nil {
				// genuinely empty slot: not found
				return nil, false
			}
			// tombstone: keep probing
		} else if e.key.KeyHash() == hash && e.key.KeyBytes() == chars {
			return e.key, true
		}
		idx = (idx + 1) & mask
	}
}

// RemoveUnmarkedStrings deletes every entry whose key fails keep, used by
// the GC to weaken the intern pool: a string unreachable from any other
// root must not be kept alive forever just because it is interned.
func (t *Table) RemoveUnmarkedStrings(keep func(Key) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !keep(e.key) {
			e.key = nil
			e.value = value.True
			t.live--
		}
	}
}

// Each calls fn for every live entry. fn must not mutate the table.
func (t *Table) Each(fn func(key Key, val value.Value)) {
	for _, e := range t.entries {
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}

func growCapacity(cap int) int {
	if cap < 8 {
		return 8
	}
	return cap * 2
}

func (t *Table) grow(newCap int) {
	newEntries := make([]entry, newCap)
	t.live = 0
	t.count = 0
	for _, e := range t.entries {
		if e.key == nil {
			continue
		}
		dst := findEntry(newEntries, e.key)
		dst.key = e.key
		dst.value = e.value
		t.count++
		t.live++
	}
	t.entries = newEntries
}

// findEntry returns the slot key should occupy: either the slot already
// holding key, the first tombstone seen along the probe sequence (so
// reinsertion reuses it), or the first empty slot.
func findEntry(entries []entry, key Key) *entry {
	mask := uint32(len(entries) - 1)
	idx := key.KeyHash() & mask
	var tombstone *entry
	for {
		e := &entries[idx]
		if e.key == nil {
			if e.value == value.Nil {
				// empty slot
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			// tombstone
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		idx = (idx + 1) & mask
	}
}
