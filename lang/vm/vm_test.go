package vm_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/buzzcut-s/clocks/lang/gc"
	"github.com/buzzcut-s/clocks/lang/value"
	"github.com/buzzcut-s/clocks/lang/vm"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, source string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	collector := gc.New(false, false, &out)
	machine := vm.New(collector, &out, 0)
	_, err := machine.Interpret(context.Background(), source, "<test>")
	return out.String(), err
}

func TestArithmeticAndPrint(t *testing.T) {
	out, err := run(t, `print 1 + 2 * 3;`)
	require.NoError(t, err)
	require.Equal(t, "7\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	require.NoError(t, err)
	require.Equal(t, "foobar\n", out)
}

func TestGlobalVariables(t *testing.T) {
	out, err := run(t, `
		var a = 1;
		a = a + 1;
		print a;
	`)
	require.NoError(t, err)
	require.Equal(t, "2\n", out)
}

func TestIfElse(t *testing.T) {
	out, err := run(t, `
		if (1 < 2) {
			print "yes";
		} else {
			print "no";
		}
	`)
	require.NoError(t, err)
	require.Equal(t, "yes\n", out)
}

func TestWhileLoop(t *testing.T) {
	out, err := run(t, `
		var i = 0;
		while (i < 3) {
			print i;
			i = i + 1;
		}
	`)
	require.NoError(t, err)
	require.Equal(t, "0\n1\n2\n", out)
}

func TestFunctionCallAndReturn(t *testing.T) {
	out, err := run(t, `
		fun add(a, b) {
			return a + b;
		}
		print add(3, 4);
	`)
	require.NoError(t, err)
	require.Equal(t, "7\n", out)
}

func TestClosureCapturesUpvalue(t *testing.T) {
	out, err := run(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		print counter();
		print counter();
		print counter();
	`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestClassInstanceAndMethod(t *testing.T) {
	out, err := run(t, `
		class Greeter {
			init(name) {
				this.name = name;
			}
			greet() {
				print "hello " + this.name;
			}
		}
		var g = Greeter("world");
		g.greet();
	`)
	require.NoError(t, err)
	require.Equal(t, "hello world\n", out)
}

func TestInheritanceAndSuper(t *testing.T) {
	out, err := run(t, `
		class Animal {
			speak() {
				print "...";
			}
		}
		class Dog < Animal {
			speak() {
				super.speak();
				print "woof";
			}
		}
		Dog().speak();
	`)
	require.NoError(t, err)
	require.Equal(t, "...\nwoof\n", out)
}

func TestRuntimeErrorUndefinedVariable(t *testing.T) {
	_, err := run(t, `print undefined_name;`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Undefined variable")
}

func TestRuntimeErrorTypeMismatch(t *testing.T) {
	_, err := run(t, `print 1 + "a";`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Operands must be two numbers or two strings.")
}

func TestRuntimeErrorWrongArity(t *testing.T) {
	_, err := run(t, `
		fun f(a) { return a; }
		f(1, 2);
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Expected 1 arguments but got 2.")
}

func TestNativeClockIsCallable(t *testing.T) {
	_, err := run(t, `print clock();`)
	require.NoError(t, err)
}

func TestHasFieldNative(t *testing.T) {
	out, err := run(t, `
		class Point {}
		var p = Point();
		p.x = 1;
		print has_field(p, "x");
		print has_field(p, "y");
	`)
	require.NoError(t, err)
	require.Equal(t, "true\nfalse\n", out)
}

func TestDefineNativeIsCallable(t *testing.T) {
	var out bytes.Buffer
	collector := gc.New(false, false, &out)
	machine := vm.New(collector, &out, 0)
	machine.DefineNative("answer", 0, func(args []value.Value) (value.Value, error) {
		return value.Number(42), nil
	})

	_, err := machine.Interpret(context.Background(), `print answer();`, "<test>")
	require.NoError(t, err)
	require.Equal(t, "42\n", out.String())
}

func TestStackOverflowAt65thCall(t *testing.T) {
	_, err := run(t, `
		fun recurse(n) { return recurse(n + 1); }
		recurse(0);
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Stack overflow.")
}

func TestRuntimeErrorResetsStackForSubsequentInterpret(t *testing.T) {
	var out bytes.Buffer
	collector := gc.New(false, false, &out)
	machine := vm.New(collector, &out, 0)

	_, err := machine.Interpret(context.Background(), `print nope + 1;`, "<test>")
	require.Error(t, err)

	_, err = machine.Interpret(context.Background(), `print 1 + 2;`, "<test>")
	require.NoError(t, err)
	require.Equal(t, "3\n", out.String())
}
