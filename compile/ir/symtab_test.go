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

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolTableAddLookup(t *testing.T) {
	st := NewSymbolTable()
	require.True(t, st.Add("x", 1, false))
	require.True(t, st.Add("y", 0, true))

	x := st.Lookup("x")
	require.NotNil(t, x)
	assert.Equal(t, 1, x.Index)
	assert.False(t, x.IsStack)

	y := st.Lookup("y")
	require.NotNil(t, y)
	assert.Equal(t, 0, y.Index)
	assert.True(t, y.IsStack)

	assert.Nil(t, st.Lookup("z"))
}

func TestSymbolTableShadowingRestore(t *testing.T) {
	st := NewSymbolTable()
	st.Add("x", 1, false)

	snap := st.Snapshot()
	st.Add("x", 7, true)
	st.Add("inner", 2, false)

	shadowed := st.Lookup("x")
	require.NotNil(t, shadowed)
	assert.Equal(t, 7, shadowed.Index)
	assert.True(t, shadowed.IsStack)

	st.Restore(snap)

	// The outer binding is back byte-for-byte, the inner one is gone.
	outer := st.Lookup("x")
	require.NotNil(t, outer)
	assert.Equal(t, 1, outer.Index)
	assert.False(t, outer.IsStack)
	assert.Nil(t, st.Lookup("inner"))
}

func TestSymbolTableNestedScopes(t *testing.T) {
	st := NewSymbolTable()
	st.Add("a", 1, false)

	s1 := st.Snapshot()
	st.Add("b", 2, false)
	s2 := st.Snapshot()
	st.Add("b", 3, false)
	st.Add("c", 4, false)

	st.Restore(s2)
	assert.Equal(t, 2, st.Lookup("b").Index)
	assert.Nil(t, st.Lookup("c"))

	st.Restore(s1)
	assert.Nil(t, st.Lookup("b"))
	assert.Equal(t, 1, st.Lookup("a").Index)
}

func TestSymbolTableProbing(t *testing.T) {
	// Plenty of colliding-ish names; linear probing must keep every
	// binding reachable.
	st := NewSymbolTable()
	for i := 0; i < 512; i++ {
		require.True(t, st.Add(fmt.Sprintf("v%d", i), i, i%2 == 0))
	}
	for i := 0; i < 512; i++ {
		sym := st.Lookup(fmt.Sprintf("v%d", i))
		require.NotNil(t, sym)
		assert.Equal(t, i, sym.Index)
	}
}

func TestSymbolTableRestoreEmpty(t *testing.T) {
	st := NewSymbolTable()
	snap := st.Snapshot()
	st.Add("x", 1, false)
	st.Restore(snap)
	assert.Nil(t, st.Lookup("x"))
}
