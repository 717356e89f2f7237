package vm

import (
	"math"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/rami3l/loxbc/debug"
	e "github.com/rami3l/loxbc/errors"
	"github.com/sirupsen/logrus"
)

// Compiler is the lexical-scope bookkeeping half of single-pass
// compilation: the ordered sequence of in-scope Locals (bounded at 256,
// matching the one-byte GetLocal/SetLocal operand) and the current block
// depth. It mirrors the VM's value-stack layout at compile time: local i
// lives at stack slot i.
type Compiler struct {
	locals     []Local
	scopeDepth int
}

// Uninit marks a Local whose initializer hasn't finished compiling yet,
// so resolving it inside its own initializer is a compile error rather
// than silently reading garbage.
const Uninit = -1

type Local struct {
	name  Token
	depth int
}

// Parser drives the Scanner, emits bytecode into the chunk being built,
// and owns the panic-mode error-recovery state described in the spec.
// Embedding *Scanner and *Compiler lets every parse handler reach
// lexing, scope, and emission state without a cyclic owning reference.
type Parser struct {
	*Scanner
	*Compiler
	prev, curr Token
	chunk      *Chunk

	errors    *multierror.Error
	panicMode bool
}

func NewParser() *Parser { return &Parser{} }

/* Single-pass compilation */

func (p *Parser) emitConst(val Value) { p.emitBytes(byte(OpConstant), p.makeConst(val)) }

func (p *Parser) makeConst(val Value) byte {
	if p.chunk.NumConsts() >= math.MaxUint8+1 {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return byte(p.chunk.AddConst(val))
}

func (p *Parser) number(_canAssign bool) {
	val, err := strconv.ParseFloat(p.prev.String(), 64)
	debug.Assertf(err == nil, "scanner produced an unparseable number literal %q", p.prev)
	p.emitConst(VNum(val))
}

func (p *Parser) grouping(_canAssign bool) {
	p.expression()
	p.consume(TRParen, "Expect ')' after expression.")
}

func (p *Parser) literal(_canAssign bool) {
	switch p.prev.Type {
	case TFalse:
		p.emitBytes(byte(OpFalse))
	case TNil:
		p.emitBytes(byte(OpNil))
	case TTrue:
		p.emitBytes(byte(OpTrue))
	default:
		panic(e.Unreachable)
	}
}

func (p *Parser) string_(_canAssign bool) {
	runes := p.prev.Runes
	// Copy the lexeme inside the quotes as a string; interned so repeated
	// literals across the chunk share one backing string.
	unquoted := string(runes[1 : len(runes)-1])
	p.emitConst(NewVStr(unquoted))
}

func (p *Parser) variable(canAssign bool) { p.namedVariable(p.prev, canAssign) }

func (p *Parser) namedVariable(name Token, canAssign bool) {
	var (
		arg      byte
		get, set OpCode
	)
	if slot := p.resolveLocal(name); slot != Uninit {
		arg, get, set = byte(slot), OpGetLocal, OpSetLocal
	} else {
		arg, get, set = p.identifierConstant(&name), OpGetGlobal, OpSetGlobal
	}

	if canAssign && p.match(TEqual) {
		p.expression()
		p.emitBytes(byte(set), arg)
		return
	}
	p.emitBytes(byte(get), arg)
}

func (p *Parser) unary(_canAssign bool) {
	op := p.prev.Type

	// Compile the operand at unary precedence so `-a + b` negates only
	// `a`, not `a + b`.
	p.parsePrecedence(PrecUnary)

	switch op {
	case TBang:
		p.emitBytes(byte(OpNot))
	case TMinus:
		p.emitBytes(byte(OpNegate))
	default:
		panic(e.Unreachable)
	}
}

func (p *Parser) binary(_canAssign bool) {
	op := p.prev.Type
	rule := parseRules[op]

	// One level higher than the operator's own precedence, so the
	// operator is left-associative: `1 - 2 - 3` parses as `(1 - 2) - 3`.
	p.parsePrecedence(rule.Prec + 1)

	switch op {
	case TBangEqual:
		p.emitBytes(byte(OpEqual), byte(OpNot))
	case TEqualEqual:
		p.emitBytes(byte(OpEqual))
	case TGreater:
		p.emitBytes(byte(OpGreater))
	case TGreaterEqual:
		p.emitBytes(byte(OpLess), byte(OpNot))
	case TLess:
		p.emitBytes(byte(OpLess))
	case TLessEqual:
		p.emitBytes(byte(OpGreater), byte(OpNot))
	case TPlus:
		p.emitBytes(byte(OpAdd))
	case TMinus:
		p.emitBytes(byte(OpSubtract))
	case TStar:
		p.emitBytes(byte(OpMultiple))
	case TSlash:
		p.emitBytes(byte(OpDivide))
	default:
		panic(e.Unreachable)
	}
}

func (p *Parser) and(_canAssign bool) {
	// If the LHS is falsey, `LHS and RHS == LHS`: skip the RHS and leave
	// the LHS as the result.
	endJump := p.emitJump(OpJumpIfFalse)
	// Otherwise the LHS is truthy and the result is RHS; pop the LHS.
	p.emitBytes(byte(OpPop))
	p.parsePrecedence(PrecAnd)
	p.patchJump(endJump)
}

func (p *Parser) or(_canAssign bool) {
	// If the LHS is truthy, `LHS or RHS == LHS`: skip the RHS.
	elseJump := p.emitJump(OpJumpIfFalse) // <-- falls through to RHS
	endJump := p.emitJump(OpJump)         // <-- skips RHS when LHS is truthy
	p.patchJump(elseJump)
	// The LHS was falsey, so the result is RHS; pop the LHS first.
	p.emitBytes(byte(OpPop))
	p.parsePrecedence(PrecOr)
	p.patchJump(endJump)
}

func (p *Parser) expression() { p.parsePrecedence(PrecAssignment) }

func (p *Parser) expressionStmt() {
	p.expression()
	p.consume(TSemi, "Expect ';' after expression.")
	p.emitBytes(byte(OpPop))
}

func (p *Parser) printStmt() {
	p.expression()
	p.consume(TSemi, "Expect ';' after value.")
	p.emitBytes(byte(OpPrint))
}

func (p *Parser) block() {
	for !p.check(TRBrace) && !p.check(TEOF) {
		p.declaration()
	}
	p.consume(TRBrace, "Expect '}' after block.")
}

func (p *Parser) ifStmt() {
	p.consume(TLParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(TRParen, "Expect ')' after condition.")

	thenJump := p.emitJump(OpJumpIfFalse)
	p.emitBytes(byte(OpPop)) // Drop the predicate before the `then` branch.
	p.statement()

	elseJump := p.emitJump(OpJump)
	p.patchJump(thenJump)

	p.emitBytes(byte(OpPop)) // Drop the predicate before the `else` branch.
	if p.match(TElse) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStmt() {
	loopStart := len(p.chunk.code)
	p.consume(TLParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(TRParen, "Expect ')' after condition.")

	exitJump := p.emitJump(OpJumpIfFalse)
	p.emitBytes(byte(OpPop)) // Pop the condition before the body.
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitBytes(byte(OpPop)) // Pop the condition on exit.
}

func (p *Parser) forStmt() {
	// for (init; cond; incr) body
	p.beginScope()
	defer p.endScope()

	p.consume(TLParen, "Expect '(' after 'for'.")
	switch {
	case p.match(TSemi):
		// No initializer.
	case p.match(TVar):
		p.varDecl()
	default:
		p.expressionStmt()
	}

	loopStart := len(p.chunk.code)
	exitJump := -1
	if !p.match(TSemi) {
		p.expression()
		p.consume(TSemi, "Expect ';' after loop condition.")
		exitJump = p.emitJump(OpJumpIfFalse)
		p.emitBytes(byte(OpPop)) // Pop the condition if the loop runs.
	}

	if !p.match(TRParen) {
		bodyJump := p.emitJump(OpJump)
		incrStart := len(p.chunk.code)
		p.expression() // Increment, parsed as an expression-statement sans ';'.
		p.emitBytes(byte(OpPop))
		p.consume(TRParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitBytes(byte(OpPop)) // Pop the condition on exit.
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(TPrint):
		p.printStmt()
	case p.match(TIf):
		p.ifStmt()
	case p.match(TWhile):
		p.whileStmt()
	case p.match(TFor):
		p.forStmt()
	case p.match(TLBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStmt()
	}
}

func (p *Parser) identifierConstant(name *Token) byte { return p.makeConst(NewVStr(name.String())) }

func (p *Parser) varDecl() {
	global, isGlobal := p.parseVariable("Expect variable name.")
	if p.match(TEqual) {
		p.expression()
	} else {
		p.emitBytes(byte(OpNil))
	}
	p.consume(TSemi, "Expect ';' after variable declaration.")
	p.defineVariable(global, isGlobal)
}

func (p *Parser) declaration() {
	switch {
	case p.match(TVar):
		p.varDecl()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

type ParseFn = func(p *Parser, canAssign bool)

type ParseRule struct {
	Prefix, Infix ParseFn
	Prec
}

var parseRules []ParseRule

func init() {
	parseRules = []ParseRule{
		TLParen:       {(*Parser).grouping, nil, PrecNone},
		TMinus:        {(*Parser).unary, (*Parser).binary, PrecTerm},
		TPlus:         {nil, (*Parser).binary, PrecTerm},
		TSlash:        {nil, (*Parser).binary, PrecFactor},
		TStar:         {nil, (*Parser).binary, PrecFactor},
		TBang:         {(*Parser).unary, nil, PrecNone},
		TBangEqual:    {nil, (*Parser).binary, PrecEquality},
		TEqualEqual:   {nil, (*Parser).binary, PrecEquality},
		TGreater:      {nil, (*Parser).binary, PrecComparison},
		TGreaterEqual: {nil, (*Parser).binary, PrecComparison},
		TLess:         {nil, (*Parser).binary, PrecComparison},
		TLessEqual:    {nil, (*Parser).binary, PrecComparison},
		TIdent:        {(*Parser).variable, nil, PrecNone},
		TStr:          {(*Parser).string_, nil, PrecNone},
		TNum:          {(*Parser).number, nil, PrecNone},
		TAnd:          {nil, (*Parser).and, PrecAnd},
		TOr:           {nil, (*Parser).or, PrecOr},
		TFalse:        {(*Parser).literal, nil, PrecNone},
		TNil:          {(*Parser).literal, nil, PrecNone},
		TTrue:         {(*Parser).literal, nil, PrecNone},
		TEOF:          {},
	}
}

func (p *Parser) rule(ty TokenType) ParseRule {
	if int(ty) >= len(parseRules) {
		return ParseRule{}
	}
	return parseRules[ty]
}

func (p *Parser) parsePrecedence(min Prec) {
	p.advance()

	prefix := p.rule(p.prev.Type).Prefix
	if prefix == nil {
		p.error("Expect expression.")
		return
	}
	canAssign := min <= PrecAssignment
	prefix(p, canAssign)

	for min <= p.rule(p.curr.Type).Prec {
		p.advance()
		infix := p.rule(p.prev.Type).Infix
		if infix == nil {
			panic(e.Unreachable)
		}
		infix(p, canAssign)
	}

	if canAssign && p.match(TEqual) {
		p.error("Invalid assignment target.")
	}
}

/* Parsing helpers */

func (p *Parser) check(ty TokenType) bool { return p.curr.Type == ty }

func (p *Parser) advance() {
	p.prev = p.curr
	for {
		p.curr = p.ScanToken()
		if p.curr.Type != TErr {
			break
		}
		p.errorAt(p.curr, p.curr.String())
	}
}

func (p *Parser) match(ty TokenType) (matched bool) {
	if !p.check(ty) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(ty TokenType, errorMsg string) {
	if !p.check(ty) {
		p.errorAtCurrent(errorMsg)
		return
	}
	p.advance()
}

/* Compiling helpers */

// Compile drives the whole single-pass translation: the Scanner feeds
// the Parser one token at a time, the Parser emits bytes straight into
// the returned Chunk, and scope/jump bookkeeping happen inline. The
// Chunk is valid to execute iff the returned error is nil.
func (p *Parser) Compile(src string) (*Chunk, error) {
	p.chunk = NewChunk()
	p.Compiler = &Compiler{}
	p.Scanner = NewScanner(src)

	p.advance()
	for !p.match(TEOF) {
		p.declaration()
	}
	p.endCompiler()

	return p.chunk, p.errors.ErrorOrNil()
}

func (p *Parser) emitBytes(bs ...byte) {
	for _, b := range bs {
		p.chunk.Write(b, p.prev.Line)
	}
}

func (p *Parser) endCompiler() {
	p.emitBytes(byte(OpReturn))
	if debug.DEBUG {
		logrus.Debugln(p.chunk.Disassemble("<script>"))
	}
}

//go:generate stringer -type=Prec
type Prec int

const (
	PrecNone Prec = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

/* Lexical scope resolution */

func (p *Parser) parseVariable(errorMsg string) (global byte, isGlobal bool) {
	p.consume(TIdent, errorMsg)
	p.declareVariable()
	if p.scopeDepth > 0 {
		return 0, false
	}
	return p.identifierConstant(&p.prev), true
}

func (p *Parser) declareVariable() {
	if p.scopeDepth == 0 {
		return
	}
	name := p.prev
	for i := len(p.locals) - 1; i >= 0; i-- {
		local := p.locals[i]
		if local.depth != Uninit && local.depth < p.scopeDepth {
			break // Shadowing a variable from an enclosing scope is fine.
		}
		if name.Eq(local.name) {
			p.error("Variable with this name already declared in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *Parser) addLocal(name Token) {
	if len(p.locals) > math.MaxUint8 {
		p.error("Too many local variables in function.")
		return
	}
	p.locals = append(p.locals, Local{name, Uninit})
}

func (p *Parser) markInitialized() {
	if p.scopeDepth == 0 {
		return
	}
	p.locals[len(p.locals)-1].depth = p.scopeDepth
}

func (p *Parser) defineVariable(global byte, isGlobal bool) {
	if !isGlobal {
		p.markInitialized()
		return
	}
	p.emitBytes(byte(OpDefineGlobal), global)
}

// resolveLocal scans locals from the back (innermost, most-recently
// declared first) for a name match. It returns Uninit when nothing
// matches, which callers treat as "resolve as a global instead".
func (p *Parser) resolveLocal(name Token) int {
	for i := len(p.locals) - 1; i >= 0; i-- {
		local := p.locals[i]
		if name.Eq(local.name) {
			if local.depth == Uninit {
				p.error("Cannot read local variable in its own initializer.")
			}
			return i
		}
	}
	return Uninit
}

func (p *Parser) beginScope() { p.scopeDepth++ }

func (p *Parser) endScope() {
	p.scopeDepth--
	for len(p.locals) > 0 && p.locals[len(p.locals)-1].depth > p.scopeDepth {
		p.emitBytes(byte(OpPop))
		p.locals = p.locals[:len(p.locals)-1]
	}
}

/* Jump patching */

func (p *Parser) emitJump(inst OpCode) (offset int) {
	p.emitBytes(byte(inst), 0xff, 0xff)
	return len(p.chunk.code) - 2
}

// patchJump back-fills a forward jump's placeholder operand with the
// number of bytes to skip, measured from just after the operand.
func (p *Parser) patchJump(offset int) {
	jump := len(p.chunk.code) - offset - 2
	if jump > math.MaxUint16 {
		p.error("Too much code to jump over.")
		return
	}
	p.chunk.code[offset] = byte(jump >> 8 & 0xff)
	p.chunk.code[offset+1] = byte(jump & 0xff)
}

// emitLoop emits a backward Loop instruction to loopStart.
func (p *Parser) emitLoop(loopStart int) {
	p.emitBytes(byte(OpLoop))
	backJump := len(p.chunk.code) - loopStart + 2
	if backJump > math.MaxUint16 {
		p.error("Loop body too large.")
		return
	}
	p.emitBytes(byte(backJump>>8&0xff), byte(backJump&0xff))
}

/* Error handling */

// synchronize advances tokens until it sees either a `;` just consumed or
// one of the statement-leading keywords as the current token, clearing
// panicMode so the next error is reported rather than swallowed.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.curr.Type != TEOF {
		if p.prev.Type == TSemi {
			return
		}
		switch p.curr.Type {
		case TClass, TFun, TVar, TFor, TIf, TWhile, TPrint, TReturn:
			return
		}
		p.advance()
	}
}

func (p *Parser) errorAt(tk Token, reason string) {
	// Cascaded errors during the same panic-mode window are swallowed;
	// only the first one (and whatever follows synchronize()) surfaces.
	if p.panicMode {
		return
	}
	p.panicMode = true

	where := "at '" + tk.String() + "'"
	if tk.Type == TEOF {
		where = "at end"
	}
	err := &e.CompilationError{Line: tk.Line, Where: where, Reason: reason}

	if debug.DEBUG {
		logrus.Debugln(err)
	}
	p.errors = multierror.Append(p.errors, err)
}

func (p *Parser) error(reason string)          { p.errorAt(p.prev, reason) }
func (p *Parser) errorAtCurrent(reason string) { p.errorAt(p.curr, reason) }
func (p *Parser) HadError() bool               { return p.errors != nil }
