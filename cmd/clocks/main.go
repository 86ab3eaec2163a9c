// Command clocks is the clocks language REPL and script runner.
package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/buzzcut-s/clocks/internal/maincmd"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	c := maincmd.Cmd{BuildVersion: version, BuildDate: buildDate}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
