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

//go:build unix

package platform

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/juusokasperi/tinyCompile/utils"
)

// CodeArena is a bump allocator over one anonymous mapping. All
// functions are emitted into it read-write; after linking the whole
// region flips to read-execute exactly once. The mapping never moves or
// grows, so code addresses handed out by Alloc stay valid for the
// lifetime of the arena.
type CodeArena struct {
	mem        []byte
	off        int
	executable bool
}

// NewCodeArena maps capacity bytes of RW anonymous memory.
func NewCodeArena(capacity int) (*CodeArena, error) {
	utils.Assert(capacity > 0, "code arena capacity must be positive")
	mem, err := unix.Mmap(-1, 0, capacity,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "mmap code arena")
	}
	return &CodeArena{mem: mem}, nil
}

// Alloc reserves size bytes aligned to align and returns the writable
// slice. Returns nil when the arena is exhausted.
func (a *CodeArena) Alloc(size, align int) []byte {
	utils.Assert(!a.executable, "allocating from an executable arena")
	utils.Assert(align > 0 && align&(align-1) == 0, "alignment must be a power of two")
	off := (a.off + align - 1) &^ (align - 1)
	if off+size > len(a.mem) {
		return nil
	}
	a.off = off + size
	return a.mem[off : off+size : off+size]
}

// Addr returns the address of buf's first byte. buf must have been
// returned by Alloc on this arena.
func (a *CodeArena) Addr(buf []byte) uintptr {
	utils.Assert(len(buf) > 0, "empty code buffer")
	return uintptr(unsafe.Pointer(&buf[0]))
}

// Used reports how many bytes have been allocated so far.
func (a *CodeArena) Used() int {
	return a.off
}

// Bytes exposes the allocated prefix of the arena.
func (a *CodeArena) Bytes() []byte {
	return a.mem[:a.off]
}

// MakeExecutable flips the entire mapping from RW to RX. All call-site
// patches must be written before this point; the arena rejects further
// allocation afterwards.
func (a *CodeArena) MakeExecutable() error {
	if err := unix.Mprotect(a.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return errors.Wrap(err, "mprotect code arena")
	}
	a.executable = true
	return nil
}

// Free unmaps the arena. Code addresses are invalid afterwards.
func (a *CodeArena) Free() error {
	if a.mem == nil {
		return nil
	}
	if err := unix.Munmap(a.mem); err != nil {
		return errors.Wrap(err, "munmap code arena")
	}
	a.mem = nil
	return nil
}
