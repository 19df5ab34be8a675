package asm

import (
	"fmt"
	"strings"
)

// maxErrors caps how many problems a single assembly run collects before
// giving up, the same bound the teacher's asm.parser uses.
const maxErrors = 10

// ErrAsm collects every error found while assembling, each tagged with
// its source position (§7: "Collected; emission continues... to gather
// more errors"). Assemble returns every error found in the source as an
// ErrAsm.
type ErrAsm []struct {
	Pos Position
	Msg string
}

func (e ErrAsm) Error() string {
	lines := make([]string, 0, len(e))
	for _, err := range e {
		lines = append(lines, fmt.Sprintf("%s: %s", err.Pos, err.Msg))
	}
	return strings.Join(lines, "\n")
}

// errCollector is embedded by the includer, preprocessor and parser so
// all three phases report and cap errors identically.
type errCollector struct {
	errs ErrAsm
}

func (c *errCollector) errorAt(pos Position, msg string) {
	c.errs = append(c.errs, struct {
		Pos Position
		Msg string
	}{pos, msg})
}

func (c *errCollector) errorf(pos Position, format string, args ...interface{}) {
	c.errorAt(pos, fmt.Sprintf(format, args...))
}

func (c *errCollector) abort() bool { return len(c.errs) >= maxErrors }
