// Package clilog holds the logrus setup shared by cmd/avm and cmd/avmas:
// silent by default, raised one level per repeated -v, writing to stderr
// so stdout stays free for program/VM output.
package clilog

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/avm-project/avm/vm"
)

// New returns a logger at the level implied by verbosity (flag.Var-counted
// repeated -v) and debug (the teacher's cmd/retro -debug flag), built on
// vm.NewLogger so both CLIs and the VM's own default logger share one
// formatter.
func New(verbosity int, debug bool) *logrus.Logger {
	level := logrus.WarnLevel
	switch {
	case debug || verbosity >= 3:
		level = logrus.TraceLevel
	case verbosity == 2:
		level = logrus.DebugLevel
	case verbosity == 1:
		level = logrus.InfoLevel
	}
	return vm.NewLogger(os.Stderr, level)
}

// Count implements flag.Value for a repeatable -v flag (`-v -v -v`),
// the same `flag.Var`-based custom flag idiom cmd/retro uses for -with.
type Count int

func (c *Count) String() string { return "" }

func (c *Count) Set(string) error {
	*c++
	return nil
}

func (c *Count) Get() interface{} { return int(*c) }

func (c *Count) IsBoolFlag() bool { return true }
