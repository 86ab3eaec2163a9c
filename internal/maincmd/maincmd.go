// Package maincmd implements the clocks command line: no arguments starts an
// interactive REPL, one argument runs that file, anything else is a usage
// error. Exit codes follow sysexits.h, the same convention clox's own CLI
// uses (spec §6).
package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/buzzcut-s/clocks/internal/clconfig"
)

const binName = "clocks"

var (
	shortUsage = fmt.Sprintf("usage: %s [<option>...] [<path>]\nRun '%[1]s --help' for details.\n", binName)

	longUsage = fmt.Sprintf(`usage: %[1]s [<option>...] [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

Bytecode compiler and virtual machine for the clocks scripting language.

With no <path>, starts an interactive REPL reading from stdin. With a
<path>, compiles and runs that file.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --dump                    Disassemble compiled bytecode to stderr
                                 before running it.
`, binName)
)

// Exit codes follow sysexits.h: EX_USAGE, EX_DATAERR, EX_SOFTWARE, EX_IOERR.
const (
	exitUsage   mainer.ExitCode = 64
	exitCompile mainer.ExitCode = 65
	exitRuntime mainer.ExitCode = 70
	exitIOErr   mainer.ExitCode = 74
)

// Cmd is the clocks command. BuildVersion and BuildDate are expected to be
// set by the caller before Main runs.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`
	Dump    bool `flag:"dump"`

	args []string
}

func (c *Cmd) SetArgs(args []string)      { c.args = args }
func (c *Cmd) SetFlags(_ map[string]bool) {}

// Validate rejects more than one positional argument. A single argument is a
// script path; zero starts the REPL.
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) > 1 {
		return fmt.Errorf("at most one file path may be given, got %d", len(c.args))
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return exitUsage
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	dbg, err := clconfig.Load()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return exitUsage
	}
	if c.Dump {
		dbg.TraceExecution = true
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)

	if len(c.args) == 0 {
		return repl(ctx, stdio, dbg)
	}
	return runFile(ctx, stdio, dbg, c.args[0])
}
