package vm

import (
	"fmt"
	"strings"
)

// TraceFrame is one entry of a RuntimeError's call stack, innermost call
// first.
type TraceFrame struct {
	FunctionName string
	Line         int
}

// RuntimeError is returned by Interpret when execution fails after
// compiling successfully: a type error, an undefined variable, a stack
// overflow, and so on (spec §4.6).
type RuntimeError struct {
	Message string
	Trace   []TraceFrame
}

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	for _, f := range e.Trace {
		fmt.Fprintf(&sb, "\n[line %d] in %s", f.Line, f.FunctionName)
	}
	return sb.String()
}
