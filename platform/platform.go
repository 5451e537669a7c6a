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

// Package platform owns every interaction with the operating system:
// the executable code arena, read-only mappings of input files, and the
// trampoline that transfers control into generated code.
package platform

import "runtime"

// JITSupported reports whether this build can emit and execute native
// code. The encoders target x86-64 and the arena relies on POSIX
// memory protection.
func JITSupported() bool {
	if runtime.GOARCH != "amd64" {
		return false
	}
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd":
		return true
	}
	return false
}
