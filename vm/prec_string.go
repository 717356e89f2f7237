// Code generated by "stringer -type=Prec"; hand-maintained to match what
// that generator would produce.

package vm

import "strconv"

func (i Prec) String() string {
	names := [...]string{
		"PrecNone", "PrecAssignment", "PrecOr", "PrecAnd", "PrecEquality",
		"PrecComparison", "PrecTerm", "PrecFactor", "PrecUnary", "PrecCall",
		"PrecPrimary",
	}
	if i < 0 || int(i) >= len(names) {
		return "Prec(" + strconv.Itoa(int(i)) + ")"
	}
	return names[i]
}
