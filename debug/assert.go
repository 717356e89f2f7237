// Package debug holds cheap internal invariant checks and the global
// trace-dump toggle shared by the compiler and VM.
package debug

import "fmt"

// DEBUG gates the Disassemble dumps the compiler and VM log at debug
// level. It is flipped on by the cmd package when -v/--verbosity selects
// debug or trace, never read directly by user-facing code paths.
var DEBUG = false

func Assertf(b bool, format string, a ...any) {
	if DEBUG && !b {
		panic(fmt.Sprintf(format, a...))
	}
}

func AssertEq[T comparable](expected, got T) { Assertf(expected == got, "%v != %v", expected, got) }
