// Package clconfig loads the environment-driven debug and runtime tuning
// knobs that stand in for clox's compile-time DEBUG_* macros (spec §9):
// since Go has no preprocessor, the stress-GC/log-GC/trace-execution
// switches clox flips with #ifdef become ordinary struct fields parsed from
// CLOCKS_* environment variables at process startup.
package clconfig

import (
	"fmt"

	"github.com/caarlos0/env/v6"

	"github.com/buzzcut-s/clocks/lang/value"
)

// Debug holds every environment-driven debug toggle the VM, GC, and compiler
// consult. Each field mirrors one of clox's DEBUG_* compile-time flags.
type Debug struct {
	// StressGC forces a collection before every allocation instead of
	// waiting for the heap to cross its grow-factor threshold, the
	// equivalent of clox's DEBUG_STRESS_GC. Exercises GC correctness paths
	// that would otherwise only trigger under heap pressure.
	StressGC bool `env:"CLOCKS_STRESS_GC" envDefault:"false"`

	// LogGC prints a line to stderr when each collection starts and a summary
	// line (bytes collected, next threshold) when it ends, the equivalent of
	// clox's DEBUG_LOG_GC.
	LogGC bool `env:"CLOCKS_LOG_GC" envDefault:"false"`

	// TraceExecution disassembles compiled bytecode to stderr before running
	// it, the equivalent of clox's DEBUG_TRACE_EXECUTION (minus the
	// per-instruction stack trace clox prints live, since that would mean
	// threading a tracing hook through every VM dispatch case). The CLI's
	// --dump flag sets this regardless of the environment.
	TraceExecution bool `env:"CLOCKS_TRACE_EXECUTION" envDefault:"false"`
}

// Load parses Debug from the process environment. A malformed value (e.g.
// CLOCKS_STRESS_GC=maybe) is reported rather than silently treated as
// false, so a typo'd env var fails loudly instead of just not tracing.
func Load() (Debug, error) {
	var d Debug
	if err := env.Parse(&d); err != nil {
		return Debug{}, fmt.Errorf("clconfig: %w", err)
	}
	return d, nil
}

// Encoding reports which Value representation this binary was built with
// (the tagged-union default, or NaN-boxed under the clocks_nanbox build
// tag), for a startup banner or --dump header to include.
func Encoding() string { return value.Encoding }
