// Copyright (c) 2025 The TinyCompile Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package ir

import "github.com/juusokasperi/tinyCompile/utils"

// SymbolTableSize must be a power of two for the probe mask.
const SymbolTableSize = 4096

// Symbol binds a name to either a vreg (register-resident parameters
// and temporaries) or a stack slot (mutable locals).
type Symbol struct {
	Name     string
	Index    int
	IsStack  bool
	Occupied bool
}

// ScopeChange is one undo record: which table slot changed and what it
// held before. The singly linked list doubles as the scope snapshot.
type ScopeChange struct {
	index    int
	previous Symbol
	next     *ScopeChange
}

// SymbolTable is one flat open-addressed table with an undo log
// instead of chained per-scope maps: scope entry snapshots the log
// head in O(1), scope exit unwinds in O(changes), and shadowing works
// because the log remembers the outer binding byte-for-byte.
type SymbolTable struct {
	entries [SymbolTableSize]Symbol
	changes *ScopeChange
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

func fnv1a(name string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	return h
}

// Lookup returns the binding for name, or nil.
func (st *SymbolTable) Lookup(name string) *Symbol {
	idx := fnv1a(name) & (SymbolTableSize - 1)
	for i := 0; i < SymbolTableSize; i++ {
		entry := &st.entries[idx]
		if !entry.Occupied {
			return nil
		}
		if entry.Name == name {
			return entry
		}
		idx = (idx + 1) & (SymbolTableSize - 1)
	}
	return nil
}

// Add inserts or overwrites a binding and records the prior entry in
// the undo log. Returns false when the probe sequence wraps, which is
// fatal for the compilation unit.
func (st *SymbolTable) Add(name string, index int, isStack bool) bool {
	idx := fnv1a(name) & (SymbolTableSize - 1)
	for i := 0; i < SymbolTableSize; i++ {
		entry := &st.entries[idx]
		if !entry.Occupied || entry.Name == name {
			st.changes = &ScopeChange{
				index:    int(idx),
				previous: *entry,
				next:     st.changes,
			}
			*entry = Symbol{Name: name, Index: index, IsStack: isStack, Occupied: true}
			return true
		}
		idx = (idx + 1) & (SymbolTableSize - 1)
	}
	return false
}

// Snapshot returns the current log head; pass it to Restore to unwind
// everything added since.
func (st *SymbolTable) Snapshot() *ScopeChange {
	return st.changes
}

// Restore pops the undo log until its head equals target, reverting
// each change.
func (st *SymbolTable) Restore(target *ScopeChange) {
	for st.changes != target {
		utils.Assert(st.changes != nil, "restore past the bottom of the undo log")
		change := st.changes
		st.entries[change.index] = change.previous
		st.changes = change.next
	}
}
