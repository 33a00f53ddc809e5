// SPDX-License-Identifier: MIT

// Package fsm provides a small table-driven finite state machine.
package fsm

import (
	"fmt"
	"sync"
)

// Transition describes a single edge in the FSM.
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
}

// Table is an immutable transition index.
// It is intentionally strict: duplicate edges are rejected at construction.
type Table[S ~string, E ~string] struct {
	index map[string]Transition[S, E]
	edges []Transition[S, E]
}

// NewTable indexes transitions by (from, event).
func NewTable[S ~string, E ~string](transitions []Transition[S, E]) (*Table[S, E], error) {
	idx := make(map[string]Transition[S, E], len(transitions))
	for _, t := range transitions {
		k := key(t.From, t.Event)
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		idx[k] = t
	}
	edges := make([]Transition[S, E], len(transitions))
	copy(edges, transitions)
	return &Table[S, E]{index: idx, edges: edges}, nil
}

// MustTable is NewTable for package-level tables; it panics on duplicates.
func MustTable[S ~string, E ~string](transitions []Transition[S, E]) *Table[S, E] {
	t, err := NewTable(transitions)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the edge for (from, event), if any.
func (t *Table[S, E]) Lookup(from S, event E) (Transition[S, E], bool) {
	tr, ok := t.index[key(from, event)]
	return tr, ok
}

// Edges returns a copy of the registered transitions in declaration order.
func (t *Table[S, E]) Edges() []Transition[S, E] {
	out := make([]Transition[S, E], len(t.edges))
	copy(out, t.edges)
	return out
}

// Machine holds the current state and applies events through a Table.
// Unknown transitions are errors and leave the state untouched.
type Machine[S ~string, E ~string] struct {
	mu    sync.Mutex
	state S
	table *Table[S, E]
}

// New creates a Machine in the initial state.
func New[S ~string, E ~string](initial S, table *Table[S, E]) *Machine[S, E] {
	return &Machine[S, E]{state: initial, table: table}
}

// State returns the current state.
func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire applies an event atomically and returns the new state.
func (m *Machine[S, E]) Fire(event E) (S, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	t, ok := m.table.Lookup(from, event)
	if !ok {
		return from, fmt.Errorf("invalid transition: state=%s event=%s", from, event)
	}
	m.state = t.To
	return t.To, nil
}

func key[S ~string, E ~string](from S, event E) string {
	return string(from) + "|" + string(event)
}
