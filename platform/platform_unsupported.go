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

//go:build !unix

package platform

import (
	"os"

	"github.com/pkg/errors"
)

// Stubs keep the package compiling where the JIT cannot run; the
// driver gates on JITSupported before touching any of this.

type CodeArena struct{}

func NewCodeArena(capacity int) (*CodeArena, error) {
	return nil, errors.New("executable memory is not supported on this platform")
}

func (a *CodeArena) Alloc(size, align int) []byte { return nil }
func (a *CodeArena) Addr(buf []byte) uintptr      { return 0 }
func (a *CodeArena) Used() int                    { return 0 }
func (a *CodeArena) Bytes() []byte                { return nil }
func (a *CodeArena) MakeExecutable() error        { return errors.New("unsupported") }
func (a *CodeArena) Free() error                  { return nil }

type FileMap struct {
	Name string
	Data []byte
}

func MapFile(path string) (*FileMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return &FileMap{Name: path, Data: data}, nil
}

func (fm *FileMap) Close() error {
	fm.Data = nil
	return nil
}

type Tracker struct {
	files  []*FileMap
	arenas []*CodeArena
}

func (t *Tracker) TrackFile(fm *FileMap)   { t.files = append(t.files, fm) }
func (t *Tracker) TrackArena(a *CodeArena) { t.arenas = append(t.arenas, a) }

func (t *Tracker) ReleaseAll() {
	for _, fm := range t.files {
		fm.Close()
	}
	t.files = nil
	t.arenas = nil
}
