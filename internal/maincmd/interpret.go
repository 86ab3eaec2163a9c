package maincmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/buzzcut-s/clocks/internal/clconfig"
	"github.com/buzzcut-s/clocks/lang/compiler"
	"github.com/buzzcut-s/clocks/lang/gc"
	"github.com/buzzcut-s/clocks/lang/vm"
)

func newMachine(stdio mainer.Stdio, dbg clconfig.Debug) (*gc.Collector, *vm.VM) {
	collector := gc.New(dbg.StressGC, dbg.LogGC, stdio.Stderr)
	return collector, vm.New(collector, stdio.Stdout, 0)
}

// dump disassembles source to stdio.Stderr without running it, ahead of the
// real Interpret call that follows. A second, throwaway compile is the price
// of keeping this entirely outside the VM's hot path.
func dump(stdio mainer.Stdio, source, name string, collector *gc.Collector) {
	fn, err := compiler.Compile(source, name, collector)
	if err != nil {
		return
	}
	fmt.Fprint(stdio.Stderr, fn.Chunk.Disassemble(name))
}

// runFile reads path, compiles and runs it, and maps the outcome to a
// sysexits-style exit code: 74 if the file cannot be read, 65 for a compile
// error, 70 for a runtime error, 0 on success.
func runFile(ctx context.Context, stdio mainer.Stdio, dbg clconfig.Debug, path string) mainer.ExitCode {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
		return exitIOErr
	}

	collector, machine := newMachine(stdio, dbg)
	if dbg.TraceExecution {
		dump(stdio, string(src), path, collector)
	}

	if _, err := machine.Interpret(ctx, string(src), path); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		var rerr *vm.RuntimeError
		if errors.As(err, &rerr) {
			return exitRuntime
		}
		return exitCompile
	}
	return mainer.Success
}

// repl reads and interprets one line at a time until stdin closes. Every
// line compiles as its own top-level script, but all lines share the one VM,
// so global declarations from an earlier line stay visible to later ones,
// matching clox's REPL.
func repl(ctx context.Context, stdio mainer.Stdio, dbg clconfig.Debug) mainer.ExitCode {
	collector, machine := newMachine(stdio, dbg)

	scan := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scan.Scan() {
			break
		}
		line := scan.Text()
		if line == "" {
			continue
		}

		if dbg.TraceExecution {
			dump(stdio, line, "<stdin>", collector)
		}
		if _, err := machine.Interpret(ctx, line, "<stdin>"); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
		}
	}
	return mainer.Success
}
