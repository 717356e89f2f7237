// Code generated by "stringer -type=TokenType"; hand-maintained to match
// what that generator would produce.

package vm

import "strconv"

func (i TokenType) String() string {
	names := [...]string{
		"TLParen", "TRParen", "TLBrace", "TRBrace", "TComma", "TDot",
		"TMinus", "TPlus", "TSemi", "TSlash", "TStar", "TBang",
		"TBangEqual", "TEqual", "TEqualEqual", "TGreater", "TGreaterEqual",
		"TLess", "TLessEqual", "TIdent", "TStr", "TNum", "TAnd", "TClass",
		"TElse", "TFalse", "TFor", "TFun", "TIf", "TNil", "TOr", "TPrint",
		"TReturn", "TSuper", "TThis", "TTrue", "TVar", "TWhile", "TErr",
		"TEOF",
	}
	if i < 0 || int(i) >= len(names) {
		return "TokenType(" + strconv.Itoa(int(i)) + ")"
	}
	return names[i]
}
