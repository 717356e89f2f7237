package vm

import (
	"fmt"
	"os"

	e "github.com/rami3l/loxbc/errors"
	"github.com/sirupsen/logrus"

	"github.com/rami3l/loxbc/debug"
)

// VM executes a single Chunk against a value stack and a global-name
// environment. It is single-threaded, synchronous, and non-reentrant:
// Interpret runs to completion (or to the first runtime error) before
// returning, and fully owns its chunk, stack, and globals for that
// duration — no locking is required anywhere in this package.
type VM struct {
	chunk *Chunk
	ip    int
	stack []Value
	// globals maps a variable name to its current Value. Insertion order
	// is irrelevant; only presence/absence and the stored Value matter.
	globals map[string]Value
}

func NewVM() *VM {
	return &VM{globals: make(map[string]Value)}
}

func (vm *VM) push(val Value) { vm.stack = append(vm.stack, val) }

func (vm *VM) pop() (last Value) {
	len_ := len(vm.stack)
	vm.stack, last = vm.stack[:len_-1], vm.stack[len_-1]
	return
}

func (vm *VM) peek(distance int) Value { return vm.stack[len(vm.stack)-1-distance] }

// Interpret compiles src into a Chunk and, if compilation succeeds, runs
// it against this VM's existing globals. A CompileError means the chunk
// was never executed at all; a RuntimeError means it aborted partway
// through. Globals defined by an earlier successful call remain visible
// to later calls, which is what lets a REPL build up state line by line.
func (vm *VM) Interpret(src string) error {
	parser := NewParser()
	chunk, err := parser.Compile(src)
	if err != nil {
		return err
	}
	if debug.DEBUG {
		logrus.Debugln(chunk.Disassemble("interpret"))
	}

	vm.chunk = chunk
	vm.ip = 0
	return vm.run()
}

func (vm *VM) run() error {
	readByte := func() (res byte) {
		res = vm.chunk.code[vm.ip]
		vm.ip++
		return
	}
	readShort := func() (res uint16) {
		res = uint16(vm.chunk.code[vm.ip])<<8 | uint16(vm.chunk.code[vm.ip+1])
		vm.ip += 2
		return
	}
	readConst := func() Value { return vm.chunk.consts[readByte()] }

	runtimeErr := func(format string, a ...any) error {
		vm.stack = vm.stack[:0] // Runtime errors are fatal: clear the stack.
		return &e.RuntimeError{Line: vm.chunk.lines[vm.ip-1], Reason: fmt.Sprintf(format, a...)}
	}

	for {
		if debug.DEBUG {
			logrus.Debugln(vm.stackTrace())
			instDump, _ := vm.chunk.DisassembleInst(vm.ip)
			logrus.Debugln(instDump)
		}

		switch inst := OpCode(readByte()); inst {
		case OpConstant:
			vm.push(readConst())
		case OpNil:
			vm.push(VNil{})
		case OpTrue:
			vm.push(VBool(true))
		case OpFalse:
			vm.push(VBool(false))
		case OpPop:
			vm.pop()

		case OpGetLocal:
			vm.push(vm.stack[readByte()])
		case OpSetLocal:
			vm.stack[readByte()] = vm.peek(0)

		case OpGetGlobal:
			name := string(readConst().(VStr))
			val, ok := vm.globals[name]
			if !ok {
				return runtimeErr("Undefined variable '%s'.", name)
			}
			vm.push(val)
		case OpDefineGlobal:
			name := string(readConst().(VStr))
			vm.globals[name] = vm.pop()
		case OpSetGlobal:
			name := string(readConst().(VStr))
			if _, ok := vm.globals[name]; !ok {
				return runtimeErr("Undefined variable '%s'.", name)
			}
			vm.globals[name] = vm.peek(0)

		case OpEqual:
			w, v := vm.pop(), vm.pop()
			vm.push(VEq(v, w))
		case OpGreater:
			w, v := vm.pop(), vm.pop()
			res, ok := VGreater(v, w)
			if !ok {
				return runtimeErr("Operands must be numbers.")
			}
			vm.push(res)
		case OpLess:
			w, v := vm.pop(), vm.pop()
			res, ok := VLess(v, w)
			if !ok {
				return runtimeErr("Operands must be numbers.")
			}
			vm.push(res)

		case OpAdd:
			w, v := vm.pop(), vm.pop()
			res, ok := VAdd(v, w)
			if !ok {
				return runtimeErr("Operands must be two numbers or two strings.")
			}
			vm.push(res)
		case OpSubtract:
			w, v := vm.pop(), vm.pop()
			res, ok := VSub(v, w)
			if !ok {
				return runtimeErr("Operands must be numbers.")
			}
			vm.push(res)
		case OpMultiple:
			w, v := vm.pop(), vm.pop()
			res, ok := VMul(v, w)
			if !ok {
				return runtimeErr("Operands must be numbers.")
			}
			vm.push(res)
		case OpDivide:
			w, v := vm.pop(), vm.pop()
			res, ok := VDiv(v, w)
			if !ok {
				return runtimeErr("Operands must be numbers.")
			}
			vm.push(res)

		case OpNot:
			vm.push(VBool(!VTruthy(vm.pop())))
		case OpNegate:
			res, ok := VNeg(vm.peek(0))
			if !ok {
				return runtimeErr("Operand must be a number.")
			}
			vm.pop()
			vm.push(res)

		case OpPrint:
			fmt.Fprintln(os.Stdout, vm.pop())

		case OpJump:
			vm.ip += int(readShort())
		case OpJumpIfFalse:
			offset := readShort()
			if !bool(VTruthy(vm.peek(0))) {
				vm.ip += int(offset)
			}
		case OpLoop:
			vm.ip -= int(readShort())

		case OpReturn:
			return nil

		default:
			return runtimeErr("unknown instruction '%d'", inst)
		}
	}
}

func (vm *VM) stackTrace() string {
	res := "          "
	for _, slot := range vm.stack {
		res += fmt.Sprintf("[ %s ]", slot)
	}
	return res
}
