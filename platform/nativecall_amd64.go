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
package platform

// Invoke transfers control to generated code at codeAddr and returns
// the value the code left in RAX. The target must follow the System V
// AMD64 convention and take no arguments; callee-saved registers
// (including R14, which Go reserves for the goroutine pointer) are
// preserved by the generated prologue/epilogue.
func Invoke(codeAddr uintptr) int64 {
	return nativecall(codeAddr)
}

// nativecall is implemented in nativecall_amd64.s. It aligns the stack
// to the System V contract before the call.
func nativecall(codeAddr uintptr) int64
