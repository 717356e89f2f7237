// Code generated by "stringer -type=OpCode"; hand-maintained to match
// what that generator would produce. DO NOT EDIT the dispatch table
// without updating the OpCode const block in chunk.go to match.

package vm

import "strconv"

func (i OpCode) String() string {
	switch i {
	case OpReturn:
		return "OpReturn"
	case OpConstant:
		return "OpConstant"
	case OpNil:
		return "OpNil"
	case OpTrue:
		return "OpTrue"
	case OpFalse:
		return "OpFalse"
	case OpPop:
		return "OpPop"
	case OpGetLocal:
		return "OpGetLocal"
	case OpSetLocal:
		return "OpSetLocal"
	case OpGetGlobal:
		return "OpGetGlobal"
	case OpDefineGlobal:
		return "OpDefineGlobal"
	case OpSetGlobal:
		return "OpSetGlobal"
	case OpEqual:
		return "OpEqual"
	case OpGreater:
		return "OpGreater"
	case OpLess:
		return "OpLess"
	case OpNot:
		return "OpNot"
	case OpNegate:
		return "OpNegate"
	case OpAdd:
		return "OpAdd"
	case OpSubtract:
		return "OpSubtract"
	case OpMultiple:
		return "OpMultiple"
	case OpDivide:
		return "OpDivide"
	case OpPrint:
		return "OpPrint"
	case OpJump:
		return "OpJump"
	case OpJumpIfFalse:
		return "OpJumpIfFalse"
	case OpLoop:
		return "OpLoop"
	default:
		return "OpCode(" + strconv.Itoa(int(i)) + ")"
	}
}
