package vm

import (
	"strconv"

	"github.com/josharian/intern"
)

// Value is the tagged sum the VM pushes and pops: every runtime datum is
// one of VNil, VBool, VNum, or VStr.
type Value interface {
	isValue()
	// String renders the value the way `print` writes it to stdout: no
	// quotes around strings, shortest round-tripping form for numbers.
	String() string
}

func NewValue() Value { return VNil{} }

type VBool bool

func (_ VBool) isValue() {}
func (v VBool) String() string {
	if v {
		return "true"
	}
	return "false"
}

type VNil struct{}

func (_ VNil) isValue()       {}
func (v VNil) String() string { return "nil" }

type VNum float64

func (_ VNum) isValue()        {}
func (v VNum) String() string  { return strconv.FormatFloat(float64(v), 'f', -1, 64) }

// VStr is an immutable string value. Literals and identifier names are
// interned via github.com/josharian/intern before being boxed, so
// repeated occurrences of the same text across a chunk's constant pool
// share one Go string's backing array.
type VStr string

func (_ VStr) isValue()       {}
func (v VStr) String() string { return string(v) }

// NewVStr interns s and wraps it as a Value.
func NewVStr(s string) VStr { return VStr(intern.String(s)) }

// VAdd implements `+`: number+number sums, string+string concatenates.
// Any other combination reports ok=false so the VM can raise the exact
// "Operands must be two numbers or two strings." runtime error.
func VAdd(v, w Value) (res Value, ok bool) {
	res = NewValue()
	switch v := v.(type) {
	case VNum:
		if w, ok := w.(VNum); ok {
			return v + w, true
		}
	case VStr:
		if w, ok := w.(VStr); ok {
			return NewVStr(string(v) + string(w)), true
		}
	}
	return
}

func VSub(v, w Value) (res Value, ok bool) {
	res = NewValue()
	if v, ok := v.(VNum); ok {
		if w, ok := w.(VNum); ok {
			return v - w, true
		}
	}
	return
}

func VMul(v, w Value) (res Value, ok bool) {
	res = NewValue()
	if v, ok := v.(VNum); ok {
		if w, ok := w.(VNum); ok {
			return v * w, true
		}
	}
	return
}

func VDiv(v, w Value) (res Value, ok bool) {
	res = NewValue()
	if v, ok := v.(VNum); ok {
		if w, ok := w.(VNum); ok {
			return v / w, true
		}
	}
	return
}

func VGreater(v, w Value) (res Value, ok bool) {
	res = NewValue()
	if v, ok := v.(VNum); ok {
		if w, ok := w.(VNum); ok {
			return VBool(v > w), true
		}
	}
	return
}

func VLess(v, w Value) (res Value, ok bool) {
	res = NewValue()
	if v, ok := v.(VNum); ok {
		if w, ok := w.(VNum); ok {
			return VBool(v < w), true
		}
	}
	return
}

func VNeg(v Value) (res Value, ok bool) {
	res = NewValue()
	if v, ok := v.(VNum); ok {
		return -v, true
	}
	return
}

// VTruthy implements the spec's truthiness rule: only Nil and Bool(false)
// are falsey; every other Value, including 0 and "", is truthy.
func VTruthy(v Value) VBool {
	switch v := v.(type) {
	case VBool:
		return v
	case VNil:
		return false
	default:
		return true
	}
}

// VEq implements Value equality: same variant and payload. Numeric
// equality is IEEE-754; string equality is by content.
func VEq(v, w Value) VBool {
	switch v := v.(type) {
	case VBool:
		if w, ok := w.(VBool); ok {
			return v == w
		}
	case VNum:
		if w, ok := w.(VNum); ok {
			return v == w
		}
	case VStr:
		if w, ok := w.(VStr); ok {
			return v == w
		}
	case VNil:
		_, ok := w.(VNil)
		return VBool(ok)
	}
	return false
}
