// Command avm loads an assembled image and runs it, reporting the VM's
// exit code or, on a trap, the trap kind and faulting PC.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/avm-project/avm/internal/clilog"
	"github.com/avm-project/avm/vm"
)

func atExit(i *vm.Instance, err error, debug bool) {
	if err == nil {
		os.Exit(i.ExitCode())
	}
	if debug {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	var trapErr *vm.TrapError
	if errors.As(err, &trapErr) {
		fmt.Fprintf(os.Stderr, "PC: %d, kind: %s\n", trapErr.PC, trapErr.Kind)
		if debug {
			fmt.Fprintf(os.Stderr, "stack: % x\n", i.StackTrace())
		}
	}
	os.Exit(1)
}

func main() {
	var verbosity clilog.Count
	flag.Var(&verbosity, "v", "increase log verbosity (repeatable)")
	debug := flag.Bool("debug", false, "enable trace-level diagnostics")
	stackSize := flag.Int("stack", 0, "operand stack size in bytes (0: VM default)")
	unsafeMode := flag.Bool("unsafe", false, "disable operand-stack bounds checking")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: avm [flags] <image>")
		os.Exit(2)
	}

	log := clilog.New(int(verbosity), *debug)

	img, err := vm.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	opts := []vm.Option{vm.Logger(log)}
	if *stackSize > 0 {
		opts = append(opts, vm.StackSize(*stackSize))
	}
	if *unsafeMode {
		opts = append(opts, vm.SafeMode(false))
	}

	i, err := vm.New(img, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	err = i.Run()
	atExit(i, err, *debug)
}
