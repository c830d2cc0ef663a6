// Package scope models the lexical environments reconstructed by the
// decompiler.
//
// An environment is created once, by the function body that executes the
// corresponding create instruction, and is then shared by every closure
// defined inside it. Only the defining function adds slot names; descendants
// read them.
package scope

import (
	"fmt"
	"sort"
)

// Env is a reconstructed lexical environment.
type Env struct {
	// Enclosing environment, nil for a root environment.
	Parent *Env
	// Number of environments between this one and the root; 0 for a root.
	Depth int
	// Slot index -> synthesized variable name. Populated on first store;
	// allocated lazily so that a literal Env is usable.
	slots map[int]string
}

// New creates an environment nested in parent. A nil parent creates a root
// environment.
func New(parent *Env) *Env {
	depth := 0
	if parent != nil {
		depth = parent.Depth + 1
	}
	return &Env{Parent: parent, Depth: depth, slots: make(map[int]string)}
}

// ChainUnderflow is returned when an ancestor walk needs more parent links
// than the environment chain has.
type ChainUnderflow struct {
	Requested int
	// -1 when there was no environment to start from.
	Available int
}

func (e *ChainUnderflow) Error() string {
	if e.Available < 0 {
		return fmt.Sprintf("need %d parent hops, no environment to start from",
			e.Requested)
	}
	return fmt.Sprintf("need %d parent hops, chain only has %d",
		e.Requested, e.Available)
}

// Ancestor follows n parent links. Ancestor(0) returns the receiver. A nil
// receiver is a chain of length 0 that cannot even satisfy Ancestor(0).
func (e *Env) Ancestor(n int) (*Env, error) {
	if n < 0 || e == nil {
		return nil, &ChainUnderflow{n, e.ChainLen()}
	}
	env := e
	for i := 0; i < n; i++ {
		if env.Parent == nil {
			return nil, &ChainUnderflow{n, e.ChainLen()}
		}
		env = env.Parent
	}
	return env, nil
}

// ChainLen returns the number of parent links reachable from e, which is the
// largest n for which Ancestor(n) succeeds. It returns -1 for a nil Env.
//
// The links are counted rather than taken from Depth, which may disagree for
// an Env not built by New.
func (e *Env) ChainLen() int {
	n := -1
	for env := e; env != nil; env = env.Parent {
		n++
	}
	return n
}

// SlotName returns the name a slot at the given depth gets. It is a pure
// function of its arguments.
func SlotName(depth, slot int) string {
	return fmt.Sprintf("_closure%d_slot%d", depth, slot)
}

// NameForSlot returns the variable name of a slot, assigning it on first use.
// The second return value reports whether this call assigned the name.
func (e *Env) NameForSlot(slot int) (string, bool) {
	if name, ok := e.slots[slot]; ok {
		return name, false
	}
	name := SlotName(e.Depth, slot)
	if e.slots == nil {
		e.slots = make(map[int]string)
	}
	e.slots[slot] = name
	return name, true
}

// LookupSlot returns the name of a slot without assigning one.
func (e *Env) LookupSlot(slot int) (string, bool) {
	name, ok := e.slots[slot]
	return name, ok
}

// Slots returns the indices of all named slots in ascending order.
func (e *Env) Slots() []int {
	indices := make([]int, 0, len(e.slots))
	for i := range e.slots {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

func (e *Env) String() string {
	return fmt.Sprintf("env(depth=%d)", e.Depth)
}
