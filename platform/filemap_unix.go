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
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// FileMap is a read-only mapping of one input file. The lexer and
// parser hold views into Data for the whole compilation, so mappings
// stay alive until the Tracker releases them at shutdown.
type FileMap struct {
	Name string
	Data []byte
	file *os.File
}

// MapFile opens path and maps it read-only. Empty files get an empty
// Data slice without a mapping.
func MapFile(path string) (*FileMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if st.Size() == 0 {
		return &FileMap{Name: path, Data: nil, file: f}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()),
		unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmap %s", path)
	}
	return &FileMap{Name: path, Data: data, file: f}, nil
}

func (fm *FileMap) Close() error {
	var first error
	if fm.Data != nil {
		if err := unix.Munmap(fm.Data); err != nil && first == nil {
			first = errors.Wrapf(err, "munmap %s", fm.Name)
		}
		fm.Data = nil
	}
	if fm.file != nil {
		if err := fm.file.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "close %s", fm.Name)
		}
		fm.file = nil
	}
	return first
}

// Tracker releases every mapped file and the code arena at shutdown,
// success or failure.
type Tracker struct {
	files  []*FileMap
	arenas []*CodeArena
}

func (t *Tracker) TrackFile(fm *FileMap) {
	t.files = append(t.files, fm)
}

func (t *Tracker) TrackArena(a *CodeArena) {
	t.arenas = append(t.arenas, a)
}

func (t *Tracker) ReleaseAll() {
	for _, fm := range t.files {
		fm.Close()
	}
	t.files = nil
	for _, a := range t.arenas {
		a.Free()
	}
	t.arenas = nil
}
