package vm_test

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/rami3l/loxbc/vm"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func init() { logrus.SetLevel(logrus.WarnLevel) }

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// whatever it wrote there. Tests using this must not run in parallel
// with each other, since os.Stdout is process-global.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	assert.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	assert.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	assert.NoError(t, err)
	return string(out)
}

// run interprets src against a fresh VM and returns everything it
// printed plus the resulting error, if any.
func run(t *testing.T, src string) (string, error) {
	t.Helper()
	vm_ := vm.NewVM()
	var runErr error
	out := captureStdout(t, func() { runErr = vm_.Interpret(src) })
	return out, runErr
}

func assertPrints(t *testing.T, src, want string) {
	t.Helper()
	out, err := run(t, src)
	assert.NoError(t, err)
	assert.Equal(t, want, out)
}

func assertCompileErr(t *testing.T, src, wantSubstr string) {
	t.Helper()
	_, err := run(t, src)
	if !assert.Error(t, err) {
		return
	}
	var merr *multierror.Error
	assert.True(t, errors.As(err, &merr), "expected a compile-error bundle, got %T", err)
	assert.ErrorContains(t, err, wantSubstr)
}

func assertRuntimeErr(t *testing.T, src, wantSubstr string) {
	t.Helper()
	_, err := run(t, src)
	if !assert.Error(t, err) {
		return
	}
	var merr *multierror.Error
	assert.False(t, errors.As(err, &merr), "expected a lone runtime error, got a compile-error bundle")
	assert.ErrorContains(t, err, wantSubstr)
}

func TestSeedScenarios(t *testing.T) {
	assertPrints(t, `print 1 + 2 * 3;`, "7\n")
	assertPrints(t, `var a = "hi"; var b = " there"; print a + b;`, "hi there\n")
	assertPrints(t, `{var a = 1; {var a = 2; print a;} print a;}`, "2\n1\n")
	assertPrints(t, `var i = 0; while (i < 3) { print i; i = i + 1; }`, "0\n1\n2\n")
	assertPrints(t, `print "a" == "a"; print 1 == "1"; print nil == false;`, "true\nfalse\nfalse\n")
	assertRuntimeErr(t, `print -true;`, "Operand must be a number.\n[line 1] in script")
}

func TestArithmetic(t *testing.T) {
	assertPrints(t, `print (1 + 2) * 3 - 4 / 2;`, "7\n")
	assertPrints(t, `print 11.4 + 5.14 / 19198.10;`, "11.400267734827926\n")
	assertPrints(t, `print -6 * (-4 + -3) == 6 * 4 + 2 * ((((9))));`, "true\n")
}

func TestStringConcat(t *testing.T) {
	assertPrints(t, `print "foo" + "bar";`, "foobar\n")
	assertPrints(t, `print "trick" or "treat";`, "trick\n")
}

func TestNestedBlockScoping(t *testing.T) {
	assertPrints(t, heredoc.Doc(`
		var a = "global";
		{
			var a = "outer";
			{
				var a = "inner";
				print a;
			}
			print a;
		}
		print a;
	`), "inner\nouter\nglobal\n")
}

func TestWhileLoop(t *testing.T) {
	assertPrints(t, heredoc.Doc(`
		var i = 1;
		var product = 1;
		while (i <= 5) {
			product = product * i;
			i = i + 1;
		}
		print product;
	`), "120\n")
}

func TestForLoop(t *testing.T) {
	assertPrints(t, heredoc.Doc(`
		var product = 1;
		for (var i = 1; i <= 5; i = i + 1) {
			product = product * i;
		}
		print product;
	`), "120\n")
}

func TestIfElse(t *testing.T) {
	assertPrints(t, heredoc.Doc(`
		var foo = 2;
		if (foo == 2) foo = foo + 1; else { foo = 42; }
		print foo;
		if (foo == 2) { foo = foo + 1; } else foo = nil;
		print foo;
	`), "3\nnil\n")
}

func TestAndOr(t *testing.T) {
	assertPrints(t, `var B = 66; print 2 * B or !2 * B;`, "132\n")
	assertPrints(t, `print nil and "unreached";`, "nil\n")
}

func TestEqualityAcrossTypes(t *testing.T) {
	assertPrints(t, `print 1 == "1";`, "false\n")
	assertPrints(t, `print nil == false;`, "false\n")
	assertPrints(t, `print nil == nil;`, "true\n")
	assertPrints(t, `print "abc" == "abc";`, "true\n")
}

func TestUnaryNegateRuntimeError(t *testing.T) {
	assertRuntimeErr(t, `-true;`, "Operand must be a number.")
}

func TestBinaryOperandsMustBeNumbers(t *testing.T) {
	assertRuntimeErr(t, `true - false;`, "Operands must be numbers.")
	assertRuntimeErr(t, `"a" + 1;`, "Operands must be two numbers or two strings.")
}

func TestUninitializedGlobalIsNil(t *testing.T) {
	assertPrints(t, `var a; print a;`, "nil\n")
}

func TestUndefinedVariableRuntimeError(t *testing.T) {
	assertRuntimeErr(t, `print undefined_name;`, "Undefined variable 'undefined_name'.")
}

func TestOwnInitializerIsACompileError(t *testing.T) {
	assertCompileErr(t, `{ var a = a; }`, "Cannot read local variable in its own initializer.")
}

func TestRedeclarationInSameScopeIsACompileError(t *testing.T) {
	assertCompileErr(t, `{ var a = 1; var a = 2; }`, "Variable with this name already declared in this scope.")
}

func TestInvalidAssignmentTarget(t *testing.T) {
	assertCompileErr(t, `(a) = 3;`, "Invalid assignment target.")
}

func TestUnterminatedStringIsACompileError(t *testing.T) {
	assertCompileErr(t, `print "never closed;`, "Unterminated string.")
}

func TestUnexpectedCharacterIsACompileError(t *testing.T) {
	assertCompileErr(t, `var a = @;`, "Unexpected character.")
}

func TestMissingSemicolonIsACompileError(t *testing.T) {
	assertCompileErr(t, `print 1`, "Expect ';' after value.")
}

func TestMultipleCompileErrorsAccumulate(t *testing.T) {
	_, err := run(t, heredoc.Doc(`
		var 1a = 1;
		print "unterminated;
	`))
	if !assert.Error(t, err) {
		return
	}
	var merr *multierror.Error
	assert.True(t, errors.As(err, &merr))
	assert.GreaterOrEqual(t, len(merr.Errors), 2)
}

func TestTooManyConstantsIsACompileError(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "%d;\n", i)
	}
	assertCompileErr(t, b.String(), "Too many constants in one chunk.")
}

func TestTooManyLocalsIsACompileError(t *testing.T) {
	var b strings.Builder
	b.WriteString("{\n")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "var a%d = %d;\n", i, i)
	}
	b.WriteString("}\n")
	assertCompileErr(t, b.String(), "Too many local variables in function.")
}

func TestLoopBodyTooLargeIsACompileError(t *testing.T) {
	var b strings.Builder
	b.WriteString("while (false) {\n")
	for i := 0; i < 40000; i++ {
		b.WriteString("nil;\n")
	}
	b.WriteString("}\n")
	assertCompileErr(t, b.String(), "Loop body too large.")
}

func TestTooMuchCodeToJumpOverIsACompileError(t *testing.T) {
	var b strings.Builder
	b.WriteString("if (false) {\n")
	for i := 0; i < 40000; i++ {
		b.WriteString("nil;\n")
	}
	b.WriteString("}\n")
	assertCompileErr(t, b.String(), "Too much code to jump over.")
}

func TestPrecedenceTable(t *testing.T) {
	assertPrints(t,
		`print (1 + 2) * 3 - 4 / 2 == 7 and !false or 1 >= 2;`,
		"true\n")
}

func TestTwoErrorsOnSameLine(t *testing.T) {
	_, err := run(t, `var 1x; print @;`)
	if !assert.Error(t, err) {
		return
	}
	var merr *multierror.Error
	assert.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.ErrorContains(t, err, "Expect variable name.")
	assert.ErrorContains(t, err, "Unexpected character.")
}

func TestGlobalAssignmentReturnsAssignedValue(t *testing.T) {
	assertPrints(t, `var a; print a = 2;`, "2\n")
}

func TestLocalShadowingAcrossScopes(t *testing.T) {
	assertPrints(t, heredoc.Doc(`
		var a = "global";
		{
			var unused = nil;
			var a = "block";
			print a;
		}
		print a;
	`), "block\nglobal\n")
}
